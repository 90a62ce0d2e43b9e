// Package corpus orchestrates the retrieval index: it scans a document
// directory, reuses cached embeddings for unchanged files, batch-embeds
// new or modified content, and exposes one flat searchable view used for
// query-time retrieval.
package corpus
