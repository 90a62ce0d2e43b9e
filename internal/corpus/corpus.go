package corpus

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ragchat/internal/cache"
	"ragchat/internal/chunker"
	"ragchat/internal/embedder"
	"ragchat/internal/retriever"
	"ragchat/pkg/types"
)

// DefaultDir is the corpus directory scanned for documents.
const DefaultDir = "memory"

// Default document eligibility rules.
var (
	DefaultExtensions = []string{".md", ".txt"}
	DefaultExcluded   = []string{"README.md", "readme.md", "README.txt", "readme.txt"}
)

// State describes the index lifecycle.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateEmpty
	StateLoadFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateEmpty:
		return "empty"
	case StateLoadFailed:
		return "load_failed"
	default:
		return "unloaded"
	}
}

// Config controls corpus scanning and retrieval defaults. Construct once
// and pass in; components never read ambient globals.
type Config struct {
	Dir          string
	Extensions   []string
	Excluded     []string
	CacheFile    string
	MaxChars     int
	OverlapChars int
	TopK         int
	FillRatio    float64
}

// DefaultConfig returns the standard corpus configuration.
func DefaultConfig() Config {
	return Config{
		Dir:          DefaultDir,
		Extensions:   DefaultExtensions,
		Excluded:     DefaultExcluded,
		MaxChars:     chunker.DefaultMaxChars,
		OverlapChars: chunker.DefaultOverlapChars,
		TopK:         retriever.DefaultTopK,
		FillRatio:    retriever.DefaultFillRatio,
	}
}

// Index holds the flat searchable view of the corpus: chunk texts, their
// embeddings, and per-chunk source references. The three slices always
// have equal length and matching order.
//
// Index is not safe for concurrent use; callers must serialize Load and
// Retrieve against the same instance.
type Index struct {
	cfg      Config
	embedder embedder.Embedder
	chunker  *chunker.Chunker
	cache    *cache.Cache

	state   State
	chunks  []string
	vectors [][]float32
	refs    []types.ChunkRef
}

// New creates an unloaded Index over the configured directory.
func New(cfg Config, emb embedder.Embedder) *Index {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.Excluded == nil {
		cfg.Excluded = DefaultExcluded
	}
	if cfg.TopK <= 0 {
		cfg.TopK = retriever.DefaultTopK
	}

	return &Index{
		cfg:      cfg,
		embedder: emb,
		chunker:  chunker.New(cfg.MaxChars, cfg.OverlapChars),
		cache:    cache.NewWithFile(cfg.CacheFile),
	}
}

// pendingFile tracks a document whose chunks await batch embedding.
type pendingFile struct {
	doc      types.Document
	chunks   []string
	startIdx int
}

// Load scans the corpus directory, reuses cached embeddings where files
// are unchanged, embeds new or modified content in one batched call, and
// rebuilds the flat index from current disk contents. Returns false only
// when the embedding collaborator fails; a missing or empty directory is
// not an error. Load is not safe to invoke concurrently with itself.
func (ix *Index) Load(ctx context.Context, showProgress bool) bool {
	log.Printf("loading corpus from %s", ix.cfg.Dir)
	ix.state = StateLoading
	ix.chunks, ix.vectors, ix.refs = nil, nil, nil

	if err := ix.embedder.Load(ctx); err != nil {
		log.Printf("embedding backend failed to load: %v", err)
		ix.state = StateLoadFailed
		return false
	}

	if _, err := os.Stat(ix.cfg.Dir); os.IsNotExist(err) {
		log.Printf("corpus directory %s does not exist, creating it", ix.cfg.Dir)
		if err := os.MkdirAll(ix.cfg.Dir, 0o755); err != nil {
			log.Printf("could not create corpus directory: %v", err)
		}
		ix.state = StateEmpty
		return true
	}

	// A corrupted cache is discarded and rebuilt, never fatal.
	if err := ix.cache.Load(ix.cfg.Dir); err != nil {
		log.Printf("discarding unreadable embeddings cache: %v", err)
	}

	var (
		allChunks []string
		allRefs   []types.ChunkRef
		pending   []pendingFile
		existing  []string
	)

	docs, err := ix.scanDir()
	if err != nil {
		log.Printf("could not read corpus directory: %v", err)
		ix.state = StateEmpty
		return true
	}

	for _, doc := range docs {
		existing = append(existing, doc.Name)

		if chunks, vectors, ok := ix.cache.Get(doc.Name, doc.Path); ok {
			allChunks = append(allChunks, chunks...)
			allRefs = appendRefs(allRefs, doc, len(chunks))
			ix.vectors = append(ix.vectors, vectors...)
			if showProgress {
				log.Printf("loaded %d chunks from %s (cached)", len(chunks), doc.Name)
			}
			continue
		}

		data, err := os.ReadFile(doc.Path)
		if err != nil {
			log.Printf("error loading file %s: %v", doc.Name, err)
			continue
		}

		fileChunks := chunkTexts(ix.chunker.Split(string(data)))
		if len(fileChunks) == 0 {
			log.Printf("no chunks generated from %s", doc.Name)
			continue
		}

		pending = append(pending, pendingFile{
			doc:      doc,
			chunks:   fileChunks,
			startIdx: len(allChunks),
		})
		allChunks = append(allChunks, fileChunks...)
		allRefs = appendRefs(allRefs, doc, len(fileChunks))
		// Reserve vector slots; filled after the batch embed below.
		ix.vectors = append(ix.vectors, make([][]float32, len(fileChunks))...)
		if showProgress {
			log.Printf("processing %d chunks from %s", len(fileChunks), doc.Name)
		}
	}

	if len(allChunks) == 0 {
		log.Printf("no content found in %s", ix.cfg.Dir)
		ix.vectors = nil
		ix.state = StateEmpty
		ix.finishCache(existing)
		return true
	}

	if len(pending) > 0 {
		if !ix.embedPending(ctx, allChunks, pending) {
			ix.chunks, ix.vectors, ix.refs = nil, nil, nil
			ix.state = StateLoadFailed
			return false
		}
	}

	ix.chunks = allChunks
	ix.refs = allRefs
	ix.state = StateLoaded

	log.Printf("corpus loaded: %d chunks from %d files", len(ix.chunks), countFiles(ix.refs))
	ix.finishCache(existing)
	return true
}

// embedPending embeds every queued chunk across all miss-documents in one
// batched collaborator call, then slices the vectors back per originating
// document and caches each independently.
func (ix *Index) embedPending(ctx context.Context, allChunks []string, pending []pendingFile) bool {
	var toEmbed []string
	for _, pf := range pending {
		toEmbed = append(toEmbed, pf.chunks...)
	}

	log.Printf("generating embeddings for %d new/changed chunks", len(toEmbed))
	vectors, err := ix.embedder.Embed(ctx, toEmbed)
	if err != nil {
		log.Printf("error generating embeddings: %v", err)
		return false
	}
	if len(vectors) != len(toEmbed) {
		log.Printf("embedding count mismatch: got %d vectors for %d chunks", len(vectors), len(toEmbed))
		return false
	}

	offset := 0
	for _, pf := range pending {
		fileVectors := vectors[offset : offset+len(pf.chunks)]
		ix.cache.Set(pf.doc.Name, pf.doc.Path, pf.chunks, fileVectors)
		copy(ix.vectors[pf.startIdx:], fileVectors)
		offset += len(pf.chunks)
	}
	return true
}

// finishCache drops entries for deleted documents and persists the cache.
// Persistence failures never block the in-memory index built this run.
func (ix *Index) finishCache(existing []string) {
	ix.cache.Clean(existing)
	if err := ix.cache.Save(ix.cfg.Dir); err != nil {
		log.Printf("could not save embeddings cache: %v", err)
	}
}

// scanDir enumerates eligible documents: regular files with an allow-listed
// extension whose name is not excluded. Entries are returned in directory
// name order for deterministic indexing.
func (ix *Index) scanDir() ([]types.Document, error) {
	entries, err := os.ReadDir(ix.cfg.Dir)
	if err != nil {
		return nil, err
	}

	var docs []types.Document
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if ix.isExcluded(name) || !ix.isSupported(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Printf("could not stat %s: %v", name, err)
			continue
		}

		docs = append(docs, types.Document{
			Name:    name,
			Path:    filepath.Join(ix.cfg.Dir, name),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func (ix *Index) isExcluded(name string) bool {
	for _, excluded := range ix.cfg.Excluded {
		if name == excluded {
			return true
		}
	}
	return false
}

func (ix *Index) isSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range ix.cfg.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Retrieve embeds the query, ranks every indexed chunk by cosine
// similarity, and returns the top candidates that fit maxTokens, joined by
// blank lines, plus the token count consumed. An unloaded or empty index
// returns ("", 0); so does any collaborator failure.
func (ix *Index) Retrieve(ctx context.Context, query string, tok retriever.Tokenizer, maxTokens, topK int) (string, int) {
	if ix.state != StateLoaded || len(ix.chunks) == 0 {
		return "", 0
	}
	if topK <= 0 {
		topK = ix.cfg.TopK
	}

	queryVec, err := ix.embedder.EmbedSingle(ctx, query)
	if err != nil {
		log.Printf("error embedding query: %v", err)
		return "", 0
	}

	ranked := retriever.TopK(retriever.Rank(queryVec, ix.vectors), topK)
	policy := retriever.Policy{FillRatio: ix.cfg.FillRatio}

	selected, tokens, err := retriever.Select(ranked, ix.chunks, tok, maxTokens, policy)
	if err != nil {
		log.Printf("error during retrieval: %v", err)
		return "", 0
	}

	log.Printf("retrieved %d tokens of context for query", tokens)
	return selected, tokens
}

// IsLoaded reports whether the index holds at least one embedded chunk.
func (ix *Index) IsLoaded() bool {
	return ix.state == StateLoaded
}

// State returns the current lifecycle state.
func (ix *Index) State() State {
	return ix.state
}

// Stats summarizes the loaded index.
func (ix *Index) Stats() types.Stats {
	if ix.state != StateLoaded {
		return types.Stats{}
	}

	seen := make(map[string]struct{})
	var files []string
	for _, ref := range ix.refs {
		if _, ok := seen[ref.Document.Name]; !ok {
			seen[ref.Document.Name] = struct{}{}
			files = append(files, ref.Document.Name)
		}
	}
	sort.Strings(files)

	return types.Stats{
		Loaded:    true,
		NumChunks: len(ix.chunks),
		NumFiles:  len(files),
		Files:     files,
	}
}

func appendRefs(refs []types.ChunkRef, doc types.Document, n int) []types.ChunkRef {
	for i := 0; i < n; i++ {
		refs = append(refs, types.ChunkRef{Document: doc, Ordinal: i})
	}
	return refs
}

func chunkTexts(chunks []types.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}

func countFiles(refs []types.ChunkRef) int {
	seen := make(map[string]struct{})
	for _, ref := range refs {
		seen[ref.Document.Name] = struct{}{}
	}
	return len(seen)
}
