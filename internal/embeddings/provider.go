package embeddings

import (
	"context"
	"os"
	"path/filepath"
)

// DefaultModel is the model the daemon loads when none is configured.
// The fastembed backend cannot load Unigram-tokenizer models yet, which
// rules out the multilingual-e5 family; MiniLM is the most
// language-tolerant model it ships, and cross-language coverage leans on
// the per-language anchor catalog. Revisit when upstream enables
// fast-multilingual-e5-large.
const DefaultModel = "sentence-transformers/all-MiniLM-L6-v2"

// Provider is the interface for embedding backends.
type Provider interface {
	// EmbedQuery embeds a single input text. E5-family models prepend
	// the "query: " instruction prefix.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EmbedDocuments embeds a batch of texts with the passage prefix.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// Config holds configuration for creating an embedding provider.
type Config struct {
	// Model is the embedding model name. Defaults to DefaultModel.
	Model string `koanf:"model" json:"model"`

	// CacheDir is the model cache directory.
	// Defaults to ~/.cache/reflectd/models.
	CacheDir string `koanf:"cache_dir" json:"cache_dir"`

	// MaxLength is the maximum input sequence length in tokens. Longer
	// inputs are truncated by the model, never rejected. Defaults to 512.
	MaxLength int `koanf:"max_length" json:"max_length"`

	// ShowProgress enables download progress bars. Off for daemon use.
	ShowProgress bool `koanf:"show_progress" json:"show_progress"`
}

// modelDimensions maps accepted model names to embedding dimensions.
// Both the HuggingFace-style names and the fastembed names are accepted.
var modelDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"fast-bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"fast-bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"fast-bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"fast-bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"fast-bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-all-MiniLM-L6-v2":                  384,
}

// ModelDimension returns the embedding dimension for a model name.
func ModelDimension(model string) (int, bool) {
	dim, ok := modelDimensions[model]
	return dim, ok
}

// DefaultCacheDir returns the default model cache location.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "models")
	}
	return filepath.Join(home, ".cache", "reflectd", "models")
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir()
	}
	if c.MaxLength == 0 {
		c.MaxLength = 512
	}
	return c
}

// New creates the embedding provider for cfg. The context bounds model
// and runtime downloads on first use.
func New(ctx context.Context, cfg Config) (Provider, error) {
	p, err := NewFastEmbedProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}
