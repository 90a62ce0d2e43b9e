// Package tokenizer provides the default token-measurement collaborator: a
// byte-count heuristic with a ChatML-style chat template. Real model
// tokenizers plug in behind the same interfaces.
package tokenizer

import (
	"fmt"
	"strings"

	"ragchat/pkg/types"
)

// DefaultBytesPerToken approximates one model token per four UTF-8 bytes.
const DefaultBytesPerToken = 4

// Heuristic estimates token counts from byte length. It never fails, which
// makes it a safe default for budget enforcement.
type Heuristic struct {
	bytesPerToken int
}

// NewHeuristic creates a heuristic tokenizer. Non-positive values fall
// back to DefaultBytesPerToken.
func NewHeuristic(bytesPerToken int) *Heuristic {
	if bytesPerToken <= 0 {
		bytesPerToken = DefaultBytesPerToken
	}
	return &Heuristic{bytesPerToken: bytesPerToken}
}

// Encode returns a pseudo-token sequence whose length is
// ceil(len(text)/bytesPerToken). Callers use only the length.
func (h *Heuristic) Encode(text string) ([]int, error) {
	n := (len(text) + h.bytesPerToken - 1) / h.bytesPerToken
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids, nil
}

// ApplyChatTemplate renders messages in ChatML form.
func (h *Heuristic) ApplyChatTemplate(messages []types.Message, addGenerationPrompt bool) (string, error) {
	var b strings.Builder
	for _, msg := range messages {
		if msg.Role == "" {
			return "", fmt.Errorf("message with empty role")
		}
		fmt.Fprintf(&b, "<|im_start|>%s\n%s<|im_end|>\n", msg.Role, msg.Content)
	}
	if addGenerationPrompt {
		b.WriteString("<|im_start|>assistant\n")
	}
	return b.String(), nil
}
