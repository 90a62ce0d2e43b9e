package prompt

import (
	"fmt"
	"strings"

	"ragchat/pkg/types"
)

// Retrieval context framing injected as a pinned system message.
const (
	contextHeader = "# Knowledge Base Context\n\n"
	contextFooter = "\n\n---\n\nUse the above context to help answer questions when relevant."
)

// Templater formats and measures prompts. Both operations may fail;
// failure is tolerated as "cannot verify length" and triggers the manual
// fallback in PreparePrompt.
type Templater interface {
	// Encode tokenizes text; only the sequence length is used here.
	Encode(text string) ([]int, error)

	// ApplyChatTemplate renders messages into the model's chat format,
	// optionally appending the generation prompt.
	ApplyChatTemplate(messages []types.Message, addGenerationPrompt bool) (string, error)
}

// Conversation holds an ordered message history with a pinned system
// prompt. Not safe for concurrent use.
type Conversation struct {
	systemPrompt string
	messages     []types.Message
}

// NewConversation builds a conversation seeded with the resolved system
// prompt, if any.
func NewConversation(sp SystemPrompt) *Conversation {
	return NewConversationWithPath(sp, DefaultPromptPath)
}

// NewConversationWithPath resolves the default system prompt from the
// given file instead of the standard location.
func NewConversationWithPath(sp SystemPrompt, promptPath string) *Conversation {
	c := &Conversation{}
	if text, ok := sp.resolve(promptPath); ok && text != "" {
		c.systemPrompt = text
		c.messages = append(c.messages, types.Message{Role: types.RoleSystem, Content: text})
	}
	return c
}

// Add appends a message to the history.
func (c *Conversation) Add(role, content string) {
	c.messages = append(c.messages, types.Message{Role: role, Content: content})
}

// Messages returns the current history including the system prompt.
func (c *Conversation) Messages() []types.Message {
	return c.messages
}

// SystemPromptText returns the resolved system prompt, or "" when absent.
func (c *Conversation) SystemPromptText() string {
	return c.systemPrompt
}

// PreparePrompt produces one formatted prompt string that fits maxLength
// tokens. The system prompt and, when retrievedContext is non-empty, the
// injected context message are pinned; the oldest non-pinned messages are
// dropped one at a time until the prompt fits. If even the pinned prefix
// plus the single most recent message does not fit, or the templater
// fails, a manual template takes over. The result is always non-empty.
func (c *Conversation) PreparePrompt(t Templater, maxLength int, retrievedContext string) string {
	msgs, pinned := c.withContext(retrievedContext)

	if formatted, ok := tryFormat(t, msgs, maxLength); ok {
		return formatted
	}

	// Drop oldest non-pinned messages until the prompt fits or only the
	// pinned prefix plus the most recent message remains.
	pruned := make([]types.Message, len(msgs))
	copy(pruned, msgs)
	for len(pruned) > pinned+1 {
		pruned = append(pruned[:pinned], pruned[pinned+1:]...)
		if formatted, ok := tryFormat(t, pruned, maxLength); ok {
			return formatted
		}
	}

	minimal := c.minimalMessages(msgs, pinned)
	if formatted, ok := tryFormat(t, minimal, maxLength); ok {
		return formatted
	}

	return manualFormat(minimal)
}

// withContext returns the message list with the retrieval context injected
// after the system prompt, plus the count of pinned leading messages.
func (c *Conversation) withContext(retrievedContext string) ([]types.Message, int) {
	pinned := 0
	hasSystem := len(c.messages) > 0 && c.messages[0].Role == types.RoleSystem
	if hasSystem {
		pinned++
	}

	if strings.TrimSpace(retrievedContext) == "" {
		msgs := make([]types.Message, len(c.messages))
		copy(msgs, c.messages)
		return msgs, pinned
	}

	msgs := make([]types.Message, 0, len(c.messages)+1)
	rest := c.messages
	if hasSystem {
		msgs = append(msgs, c.messages[0])
		rest = c.messages[1:]
	}
	msgs = append(msgs, types.Message{
		Role:    types.RoleSystem,
		Content: contextHeader + retrievedContext + contextFooter,
	})
	msgs = append(msgs, rest...)

	return msgs, pinned + 1
}

// minimalMessages is the pinned prefix plus the single most recent message.
func (c *Conversation) minimalMessages(msgs []types.Message, pinned int) []types.Message {
	minimal := make([]types.Message, 0, pinned+1)
	minimal = append(minimal, msgs[:pinned]...)

	if len(msgs) > pinned {
		minimal = append(minimal, msgs[len(msgs)-1])
	} else if pinned == 0 {
		minimal = append(minimal, types.Message{Role: types.RoleUser, Content: ""})
	}
	return minimal
}

// tryFormat renders msgs and verifies the token count against maxLength.
// Any templater failure reads as "does not fit".
func tryFormat(t Templater, msgs []types.Message, maxLength int) (string, bool) {
	formatted, err := t.ApplyChatTemplate(msgs, true)
	if err != nil {
		return "", false
	}
	ids, err := t.Encode(formatted)
	if err != nil {
		return "", false
	}
	if len(ids) > maxLength {
		return "", false
	}
	return formatted, true
}

// manualFormat is the last-resort template. It depends on no external
// formatting capability and always succeeds.
func manualFormat(msgs []types.Message) string {
	var b strings.Builder
	for _, msg := range msgs {
		fmt.Fprintf(&b, "<|%s|>\n%s</s>\n", msg.Role, msg.Content)
	}
	b.WriteString("<|assistant|>\n")
	return b.String()
}
