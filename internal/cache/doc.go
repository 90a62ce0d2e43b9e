// Package cache persists per-document chunk embeddings across process
// restarts. Entries are keyed by filename and validated against the source
// file's modification time, so edits invalidate stale embeddings and
// deleted files can be garbage-collected.
package cache
