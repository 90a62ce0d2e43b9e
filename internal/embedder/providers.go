package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider names and defaults
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendLocal  = "local"

	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOpenAIURL   = "https://api.openai.com/v1"
	DefaultOpenAIModel = "text-embedding-3-small"

	// LocalDimension is the vector width of the offline provider.
	LocalDimension = 384

	// MaxBatchSize caps texts per upstream API call; larger batches are
	// split transparently.
	MaxBatchSize = 100
)

// OllamaProvider implements Embedder against a local Ollama server.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	cache      *Cache
	dim        int
	loaded     bool
}

// NewOllamaProvider creates an Ollama embedder. Empty arguments fall back
// to the local default server and model.
func NewOllamaProvider(baseURL, model string, cache *Cache) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaProvider{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		cache:      cache,
	}
}

// Load checks that the Ollama server is reachable.
func (o *OllamaProvider) Load(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: server returned %d", ErrProviderFailed, resp.StatusCode)
	}

	o.loaded = true
	return nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates embeddings one prompt at a time; the Ollama embeddings
// endpoint takes a single prompt per call.
func (o *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}
	if !o.loaded {
		return nil, ErrNotLoaded
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		hash := ComputeHash(text)
		if o.cache != nil {
			if vec, ok := o.cache.Get(hash); ok {
				vectors[i] = vec
				continue
			}
		}

		vec, err := retry(ctx, func() ([]float32, error) {
			return o.callAPI(ctx, text)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: text %d: %v", ErrProviderFailed, i, err)
		}

		if o.dim == 0 {
			o.dim = len(vec)
		}
		if o.cache != nil {
			o.cache.Set(hash, vec)
		}
		vectors[i] = vec
	}

	return vectors, nil
}

// EmbedSingle generates an embedding for one text.
func (o *OllamaProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (o *OllamaProvider) callAPI(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	return apiResp.Embedding, nil
}

func (o *OllamaProvider) Dimension() int  { return o.dim }
func (o *OllamaProvider) Backend() string { return BackendOllama }
func (o *OllamaProvider) Model() string   { return o.model }

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Embedder against an OpenAI-compatible API.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	cache      *Cache
	dim        int
	loaded     bool
}

// NewOpenAIProvider creates an OpenAI-compatible embedder.
func NewOpenAIProvider(baseURL, apiKey, model string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key not set", ErrProviderFailed)
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}, nil
}

// Load marks the provider ready. Credentials were checked at construction;
// the first Embed call surfaces any upstream failure.
func (o *OpenAIProvider) Load(ctx context.Context) error {
	o.loaded = true
	return nil
}

// Embed generates embeddings in API-limit-sized sub-batches, preserving
// input order.
func (o *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}
	if !o.loaded {
		return nil, ErrNotLoaded
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		batchVectors, err := retry(ctx, func() ([][]float32, error) {
			return o.callAPI(ctx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		vectors = append(vectors, batchVectors...)
	}

	if o.dim == 0 && len(vectors) > 0 {
		o.dim = len(vectors[0])
	}
	return vectors, nil
}

// EmbedSingle generates an embedding for one text, consulting the cache.
func (o *OpenAIProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	hash := ComputeHash(text)
	if o.cache != nil {
		if vec, ok := o.cache.Get(hash); ok {
			return vec, nil
		}
	}

	vectors, err := o.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if o.cache != nil {
		o.cache.Set(hash, vectors[0])
	}
	return vectors[0], nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(apiResp.Data), len(texts))
	}

	vectors := make([][]float32, len(apiResp.Data))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}

func (o *OpenAIProvider) Dimension() int  { return o.dim }
func (o *OpenAIProvider) Backend() string { return BackendOpenAI }
func (o *OpenAIProvider) Model() string   { return o.model }

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider is a deterministic offline embedder. Vectors are derived
// from content hashes, so identical text always maps to the identical
// vector. Useful where no model server is available and in tests.
type LocalProvider struct {
	model  string
	cache  *Cache
	loaded bool
}

// NewLocalProvider creates the offline embedder.
func NewLocalProvider(cache *Cache) *LocalProvider {
	return &LocalProvider{
		model: "local-hash",
		cache: cache,
	}
}

// Load always succeeds; the local provider has no external dependency.
func (l *LocalProvider) Load(ctx context.Context) error {
	l.loaded = true
	return nil
}

// Embed generates deterministic vectors for each text.
func (l *LocalProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}
	if !l.loaded {
		return nil, ErrNotLoaded
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = l.embedText(text)
	}
	return vectors, nil
}

// EmbedSingle generates a deterministic vector for one text.
func (l *LocalProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := l.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (l *LocalProvider) embedText(text string) []float32 {
	hash := ComputeHash(text)
	if l.cache != nil {
		if vec, ok := l.cache.Get(hash); ok {
			return vec
		}
	}

	// Fill the vector from a chain of content hashes.
	vec := make([]float32, LocalDimension)
	block := sha256.Sum256([]byte(text))
	for i := 0; i < LocalDimension; i++ {
		if i > 0 && i%len(block) == 0 {
			block = sha256.Sum256(block[:])
		}
		vec[i] = float32(block[i%len(block)])/255.0 - 0.5
	}

	if l.cache != nil {
		l.cache.Set(hash, vec)
	}
	return vec
}

func (l *LocalProvider) Dimension() int  { return LocalDimension }
func (l *LocalProvider) Backend() string { return BackendLocal }
func (l *LocalProvider) Model() string   { return l.model }
func (l *LocalProvider) Close() error    { return nil }
