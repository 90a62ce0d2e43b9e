package corpus

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the corpus directory and flips a dirty flag when an
// eligible document is created, modified, or removed. It never mutates the
// index itself: the caller decides when to run the next Load, keeping all
// index access on one goroutine.
type Watcher struct {
	fsw        *fsnotify.Watcher
	extensions []string
	excluded   []string
	dirty      atomic.Bool
}

// NewWatcher starts watching dir for changes to eligible files: an
// allow-listed extension and a name not on the exclude-list, the same
// rules the index applies when scanning.
func NewWatcher(dir string, extensions, excluded []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if excluded == nil {
		excluded = DefaultExcluded
	}

	return &Watcher{fsw: fsw, extensions: extensions, excluded: excluded}, nil
}

// Run consumes filesystem events until the context is cancelled or the
// underlying watcher closes. Call it on its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if w.dirty.CompareAndSwap(false, true) {
				log.Printf("corpus changed (%s), reload pending", filepath.Base(event.Name))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("corpus watcher error: %v", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	for _, excluded := range w.excluded {
		if name == excluded {
			return false
		}
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range w.extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Dirty reports whether the corpus changed since the last Reset.
func (w *Watcher) Dirty() bool {
	return w.dirty.Load()
}

// Reset clears the dirty flag, typically right before a reload.
func (w *Watcher) Reset() {
	w.dirty.Store(false)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
