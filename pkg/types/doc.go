// Package types defines the shared value types passed between the corpus
// index, retriever, and prompt assembler.
package types
