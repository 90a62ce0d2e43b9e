package types

import "time"

// Chunk is a contiguous span of source text, the atomic unit of retrieval.
// Chunks are immutable once produced by the chunker.
type Chunk struct {
	// Text is the chunk content with surrounding whitespace trimmed.
	Text string

	// Start is the byte offset of the chunk within the source document,
	// before trimming.
	Start int

	// End is the byte offset one past the last byte of the untrimmed span.
	End int
}

// Document identifies a source file in the corpus directory. Documents are
// ephemeral: the set is re-enumerated on every corpus load.
type Document struct {
	Name    string // Base filename, the cache key
	Path    string // Full path on disk
	ModTime time.Time
}

// ChunkRef ties an indexed chunk back to its source document.
type ChunkRef struct {
	Document Document
	Ordinal  int // Position of the chunk within its document
}

// Stats describes the state of a loaded corpus index.
type Stats struct {
	Loaded    bool     `json:"loaded"`
	NumChunks int      `json:"num_chunks"`
	NumFiles  int      `json:"num_files"`
	Files     []string `json:"files,omitempty"`
}
