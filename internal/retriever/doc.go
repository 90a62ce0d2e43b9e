// Package retriever ranks indexed chunks by cosine similarity to a query
// and selects a token-budget-respecting subset for prompt injection.
package retriever
