package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGet_MissOnUnknownFile(t *testing.T) {
	c := New()
	_, _, ok := c.Get("notes.md", "/nonexistent/notes.md")
	assert.False(t, ok)
}

func TestSetGet_HitWhileUnmodified(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "notes.md", "hello world")

	c := New()
	c.Set("notes.md", path, []string{"hello world"}, [][]float32{{0.1, 0.2}})

	chunks, vectors, ok := c.Get("notes.md", path)
	require.True(t, ok)
	assert.Equal(t, []string{"hello world"}, chunks)
	require.Len(t, vectors, 1)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
}

func TestGet_MissAfterModification(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "notes.md", "hello world")

	c := New()
	c.Set("notes.md", path, []string{"hello world"}, [][]float32{{0.1}})

	// Bump the mtime to simulate an edit.
	future := time.Now().Add(2 * time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	_, _, ok := c.Get("notes.md", path)
	assert.False(t, ok)
}

func TestGet_MissWhenFileDeleted(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "notes.md", "hello")

	c := New()
	c.Set("notes.md", path, []string{"hello"}, [][]float32{{0.5}})
	require.NoError(t, os.Remove(path))

	_, _, ok := c.Get("notes.md", path)
	assert.False(t, ok)
}

func TestSet_SkipsUnstattableFile(t *testing.T) {
	c := New()
	c.Set("ghost.md", "/nonexistent/ghost.md", []string{"x"}, [][]float32{{1}})
	assert.Equal(t, 0, c.Len())
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	pathA := writeDoc(t, dir, "a.md", "alpha")
	pathB := writeDoc(t, dir, "b.txt", "beta")

	c := New()
	c.Set("a.md", pathA, []string{"alpha"}, [][]float32{{0.25, -1.5, 3.0}})
	c.Set("b.txt", pathB, []string{"be", "ta"}, [][]float32{{1, 0, 0}, {0, 1, 0}})
	require.NoError(t, c.Save(dir))

	loaded := New()
	require.NoError(t, loaded.Load(dir))

	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, []string{"a.md", "b.txt"}, loaded.Files())
	assert.Equal(t, 3, loaded.TotalChunks())

	chunks, vectors, ok := loaded.Get("a.md", pathA)
	require.True(t, ok)
	assert.Equal(t, []string{"alpha"}, chunks)
	require.Len(t, vectors, 1)
	require.Len(t, vectors[0], 3)
	for i, want := range []float32{0.25, -1.5, 3.0} {
		assert.InDelta(t, want, vectors[0][i], 1e-6)
	}
}

func TestLoad_MissingFileStartsEmpty(t *testing.T) {
	c := New()
	require.NoError(t, c.Load(t.TempDir()))
	assert.Equal(t, 0, c.Len())
}

func TestLoad_CorruptedFile(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, DefaultCacheFile, "{not valid json")

	c := New()
	err := c.Load(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupted)
	assert.Equal(t, 0, c.Len())
}

func TestLoad_WrongVersion(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, DefaultCacheFile, `{"version": 99, "dimension": 3, "entries": {}}`)

	c := New()
	assert.ErrorIs(t, c.Load(dir), ErrCorrupted)
}

func TestSave_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.md", "alpha")

	c := New()
	c.Set("a.md", path, []string{"alpha"}, [][]float32{{1}})
	require.NoError(t, c.Save(dir))

	_, err := os.Stat(filepath.Join(dir, DefaultCacheFile))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, DefaultCacheFile+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestClean_RemovesStaleEntries(t *testing.T) {
	dir := t.TempDir()
	pathA := writeDoc(t, dir, "a.md", "alpha")
	pathB := writeDoc(t, dir, "b.md", "beta")

	c := New()
	c.Set("a.md", pathA, []string{"alpha"}, [][]float32{{1}})
	c.Set("b.md", pathB, []string{"beta"}, [][]float32{{2}})

	removed := c.Clean([]string{"a.md"})
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"a.md"}, c.Files())
}

func TestInvalidateAndClear(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.md", "alpha")

	c := New()
	c.Set("a.md", path, []string{"alpha"}, [][]float32{{1}})
	c.Invalidate("a.md")
	assert.Equal(t, 0, c.Len())

	c.Set("a.md", path, []string{"alpha"}, [][]float32{{1}})
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCodec_RejectsMismatchedBlob(t *testing.T) {
	dir := t.TempDir()
	// A vector blob whose length is not a multiple of the dimension.
	writeDoc(t, dir, DefaultCacheFile,
		`{"version": 1, "dimension": 3, "entries": {"a.md": {"mtime_unix_ns": 1, "chunks": ["x"], "vectors": ["AAAA"]}}}`)

	c := New()
	assert.ErrorIs(t, c.Load(dir), ErrCorrupted)
}
