package prompt

import (
	"log"
	"os"
	"strings"
)

// DefaultSystemPrompt is the built-in fallback when no prompt file exists.
const DefaultSystemPrompt = "You are a helpful assistant. Keep your answers brief and concise. Do not ramble."

// DefaultPromptPath is the active system prompt file.
const DefaultPromptPath = "prompts/system.md"

// SystemPrompt is a three-state value distinguishing "use the default",
// "use exactly this text", and "no system prompt at all". The zero value
// means use the default.
type SystemPrompt struct {
	kind  int
	value string
}

const (
	spDefault = iota
	spExplicit
	spAbsent
)

// Default resolves the system prompt from the active prompt file, falling
// back to the built-in text.
func Default() SystemPrompt {
	return SystemPrompt{kind: spDefault}
}

// Explicit uses exactly the given text, including the empty string.
func Explicit(text string) SystemPrompt {
	return SystemPrompt{kind: spExplicit, value: text}
}

// Absent configures a conversation with no system prompt.
func Absent() SystemPrompt {
	return SystemPrompt{kind: spAbsent}
}

// resolve returns the prompt text and whether a system message should be
// pinned at all.
func (sp SystemPrompt) resolve(promptPath string) (string, bool) {
	switch sp.kind {
	case spExplicit:
		return sp.value, sp.value != ""
	case spAbsent:
		return "", false
	default:
		return loadPromptFile(promptPath), true
	}
}

// loadPromptFile reads the active system prompt, returning the built-in
// default when the file is missing or unreadable.
func loadPromptFile(path string) string {
	if path == "" {
		path = DefaultPromptPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSystemPrompt
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return DefaultSystemPrompt
	}
	log.Printf("loaded system prompt from %s", path)
	return text
}
