package cache

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
)

// DefaultCacheFile is the cache filename inside the corpus directory.
const DefaultCacheFile = ".embeddings_cache.json"

// ErrCorrupted is returned by Load when a cache file exists but cannot be
// decoded. An absent cache file is not an error.
var ErrCorrupted = errors.New("embeddings cache corrupted")

// Entry holds the cached chunks and embeddings for one document, keyed by
// the file's modification time at embedding time.
type Entry struct {
	ModTimeNanos int64
	Chunks       []string
	Vectors      [][]float32
}

// Cache is a persistent store of per-document chunk embeddings. An entry is
// valid only while its recorded modification time equals the live file's
// mtime; any mismatch is an ordinary miss.
//
// Cache is not safe for concurrent use.
type Cache struct {
	fileName string
	entries  map[string]*Entry
}

// New creates an empty cache using the default cache filename.
func New() *Cache {
	return NewWithFile(DefaultCacheFile)
}

// NewWithFile creates an empty cache persisted under the given filename.
func NewWithFile(fileName string) *Cache {
	if fileName == "" {
		fileName = DefaultCacheFile
	}
	return &Cache{
		fileName: fileName,
		entries:  make(map[string]*Entry),
	}
}

// Load reads persisted state from dir. A missing cache file leaves the
// cache empty and returns nil. A file that exists but cannot be decoded
// resets the cache to empty and returns an error wrapping ErrCorrupted so
// the caller may rebuild.
func (c *Cache) Load(dir string) error {
	c.entries = make(map[string]*Entry)

	path := filepath.Join(dir, c.fileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("no embeddings cache at %s, starting fresh", path)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	entries, err := decodeEntries(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	c.entries = entries
	log.Printf("loaded embeddings cache with %d entries", len(c.entries))
	return nil
}

// Save persists the full cache into dir, creating it if needed. The data is
// written to a temporary file and renamed into place so a crash mid-write
// never corrupts the previously saved state.
func (c *Cache) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	data, err := encodeEntries(c.entries)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	path := filepath.Join(dir, c.fileName)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace cache: %w", err)
	}

	return nil
}

// Get returns the cached chunks and embeddings for filename if the entry's
// recorded modification time exactly matches the file's current mtime.
// Absence, a changed mtime, or an unstattable file are all misses.
func (c *Cache) Get(filename, filePath string) ([]string, [][]float32, bool) {
	entry, ok := c.entries[filename]
	if !ok {
		return nil, nil, false
	}

	info, err := os.Stat(filePath)
	if err != nil {
		log.Printf("could not stat %s: %v", filename, err)
		return nil, nil, false
	}

	if entry.ModTimeNanos != info.ModTime().UnixNano() {
		return nil, nil, false
	}

	return entry.Chunks, entry.Vectors, true
}

// Set unconditionally overwrites the entry for filename, recording the
// file's current modification time. If the file cannot be statted the
// entry is not stored.
func (c *Cache) Set(filename, filePath string, chunks []string, vectors [][]float32) {
	info, err := os.Stat(filePath)
	if err != nil {
		log.Printf("could not stat %s, not caching: %v", filename, err)
		return
	}

	c.entries[filename] = &Entry{
		ModTimeNanos: info.ModTime().UnixNano(),
		Chunks:       chunks,
		Vectors:      vectors,
	}
}

// Invalidate removes a single entry.
func (c *Cache) Invalidate(filename string) {
	delete(c.entries, filename)
}

// Clean removes entries whose source file no longer exists and reports how
// many were removed.
func (c *Cache) Clean(existing []string) int {
	keep := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		keep[name] = struct{}{}
	}

	removed := 0
	for name := range c.entries {
		if _, ok := keep[name]; !ok {
			delete(c.entries, name)
			removed++
		}
	}

	if removed > 0 {
		log.Printf("cleaned embeddings cache: removed %d deleted files", removed)
	}
	return removed
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.entries = make(map[string]*Entry)
}

// Len returns the number of cached documents.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Files returns the cached document names in sorted order.
func (c *Cache) Files() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TotalChunks returns the chunk count across all entries.
func (c *Cache) TotalChunks() int {
	total := 0
	for _, entry := range c.entries {
		total += len(entry.Chunks)
	}
	return total
}
