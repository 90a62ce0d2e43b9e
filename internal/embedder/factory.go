package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by NewFromEnv.
const (
	EnvBackend      = "RAGCHAT_EMBEDDING_BACKEND"
	EnvOllamaHost   = "OLLAMA_HOST"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config holds embedder construction parameters.
type Config struct {
	Backend   string
	BaseURL   string
	APIKey    string
	Model     string
	CacheSize int
}

// New creates an embedder from explicit configuration.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Backend) {
	case BackendOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cache), nil
	case BackendOpenAI:
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, cache)
	case BackendLocal, "":
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// NewFromEnv creates an embedder based on environment variables.
// Priority: explicit RAGCHAT_EMBEDDING_BACKEND, then OLLAMA_HOST, then
// OPENAI_API_KEY, falling back to the offline local provider.
func NewFromEnv() (Embedder, error) {
	cache := NewCache(0)

	if backend := os.Getenv(EnvBackend); backend != "" {
		switch strings.ToLower(backend) {
		case BackendOllama:
			return NewOllamaProvider(os.Getenv(EnvOllamaHost), "", cache), nil
		case BackendOpenAI:
			return NewOpenAIProvider("", os.Getenv(EnvOpenAIAPIKey), "", cache)
		case BackendLocal:
			return NewLocalProvider(cache), nil
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
		}
	}

	if host := os.Getenv(EnvOllamaHost); host != "" {
		return NewOllamaProvider(host, "", cache), nil
	}
	if key := os.Getenv(EnvOpenAIAPIKey); key != "" {
		return NewOpenAIProvider("", key, "", cache)
	}

	return NewLocalProvider(cache), nil
}
