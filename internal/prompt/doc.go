// Package prompt assembles the final model prompt: pinned system prompt,
// optional retrieved-context injection, and conversation history pruned
// oldest-first to fit a token budget.
package prompt
