// Package config loads the application configuration from YAML. The
// resulting value is constructed once in main and passed into each
// component; nothing reads configuration through globals.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file consulted when none is given.
const DefaultPath = "ragchat.yaml"

// EmbedderConfig selects and configures the embedding backend.
type EmbedderConfig struct {
	Backend   string `yaml:"backend"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	CacheSize int    `yaml:"cache_size"`
}

// CorpusConfig controls document scanning and chunking.
type CorpusConfig struct {
	Dir          string   `yaml:"dir"`
	Extensions   []string `yaml:"extensions,omitempty"`
	Excluded     []string `yaml:"excluded,omitempty"`
	MaxChars     int      `yaml:"max_chars"`
	OverlapChars int      `yaml:"overlap_chars"`
	Watch        bool     `yaml:"watch"`
}

// RetrievalConfig controls ranking and budget selection.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`

	// FillRatio is the opportunistic-fill threshold for budget selection.
	FillRatio float64 `yaml:"fill_ratio"`

	// ContextShare is the fraction of the model context window offered to
	// retrieved context when the caller derives a token budget.
	ContextShare float64 `yaml:"context_share"`
}

// PromptConfig controls prompt assembly.
type PromptConfig struct {
	SystemPromptPath string `yaml:"system_prompt_path"`
	MaxLength        int    `yaml:"max_length"`
}

// Config is the root configuration value.
type Config struct {
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Prompt    PromptConfig    `yaml:"prompt"`
}

// Load reads a config file. A missing file yields defaults, not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Defaults()
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Defaults returns the standard configuration.
func Defaults() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Embedder.Backend == "" {
		cfg.Embedder.Backend = "local"
	}
	if cfg.Embedder.CacheSize == 0 {
		cfg.Embedder.CacheSize = 4096
	}
	if cfg.Corpus.Dir == "" {
		cfg.Corpus.Dir = "memory"
	}
	if len(cfg.Corpus.Extensions) == 0 {
		cfg.Corpus.Extensions = []string{".md", ".txt"}
	}
	if cfg.Corpus.Excluded == nil {
		cfg.Corpus.Excluded = []string{"README.md", "readme.md", "README.txt", "readme.txt"}
	}
	if cfg.Corpus.MaxChars == 0 {
		cfg.Corpus.MaxChars = 800
	}
	if cfg.Corpus.OverlapChars == 0 {
		cfg.Corpus.OverlapChars = 120
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 10
	}
	if cfg.Retrieval.FillRatio == 0 {
		cfg.Retrieval.FillRatio = 0.8
	}
	if cfg.Retrieval.ContextShare == 0 {
		cfg.Retrieval.ContextShare = 0.25
	}
	if cfg.Prompt.SystemPromptPath == "" {
		cfg.Prompt.SystemPromptPath = "prompts/system.md"
	}
	if cfg.Prompt.MaxLength == 0 {
		cfg.Prompt.MaxLength = 4096
	}
}

// APIKey resolves the embedder API key from the configured environment
// variable, defaulting to OPENAI_API_KEY.
func (e EmbedderConfig) APIKey() string {
	env := e.APIKeyEnv
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	return os.Getenv(env)
}

// ContextBudget derives the retrieval token budget from the prompt window.
func (c *Config) ContextBudget() int {
	budget := int(float64(c.Prompt.MaxLength) * c.Retrieval.ContextShare)
	if budget < 0 {
		budget = 0
	}
	return budget
}
