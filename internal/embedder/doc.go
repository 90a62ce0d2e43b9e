// Package embedder generates vector embeddings for text through pluggable
// providers: a local Ollama server, an OpenAI-compatible API, or a
// deterministic offline fallback. An in-memory LRU cache keyed by content
// hash avoids re-embedding identical text within a process.
package embedder
