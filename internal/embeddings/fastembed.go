//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/anush008/fastembed-go"
)

// passageBatchSize is the batch size passed to fastembed for document
// embedding. Anchor sets are far smaller than this, so a single batch
// covers every call the daemon makes.
const passageBatchSize = 256

// modelMapping translates HuggingFace-style model names to fastembed
// models. Raw fastembed names ("fast-…") pass through NewFastEmbedProvider
// directly after a dimension-table check.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"fast-bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"fast-bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"fast-bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"fast-bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"fast-bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"fast-all-MiniLM-L6-v2":                  fastembed.AllMiniLML6V2,
}

// FastEmbedProvider generates embeddings locally through ONNX runtime.
// No text leaves the process.
type FastEmbedProvider struct {
	mu        sync.RWMutex
	embedder  *fastembed.FlagEmbedding
	model     string
	dimension int
}

// NewFastEmbedProvider loads the configured model. The first run
// downloads the model into cfg.CacheDir and the ONNX runtime library
// into the shared library directory; both are reused afterwards.
// Failures wrap ErrModelLoad and are fatal to daemon startup.
func NewFastEmbedProvider(ctx context.Context, cfg Config) (*FastEmbedProvider, error) {
	cfg = cfg.withDefaults()

	dim, ok := ModelDimension(cfg.Model)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported model %q", ErrInvalidConfig, cfg.Model)
	}
	fbModel, ok := modelMapping[cfg.Model]
	if !ok {
		// A raw fastembed model name; the dimension table already
		// vouched for it.
		fbModel = fastembed.EmbeddingModel(cfg.Model)
	}

	libPath, err := EnsureONNXRuntime(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: onnx runtime: %v", ErrModelLoad, err)
	}
	if err := setONNXPathEnv(libPath); err != nil {
		return nil, fmt.Errorf("%w: onnx runtime: %v", ErrModelLoad, err)
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: cache dir: %v", ErrModelLoad, err)
	}

	show := cfg.ShowProgress
	embedder, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                fbModel,
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &show,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	return &FastEmbedProvider{
		embedder:  embedder,
		model:     cfg.Model,
		dimension: dim,
	}, nil
}

// EmbedQuery embeds a single text with the query instruction prefix.
func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyInput
	}

	p.mu.RLock()
	embedder := p.embedder
	p.mu.RUnlock()
	if embedder == nil {
		return nil, fmt.Errorf("%w: provider closed", ErrEmbeddingFailed)
	}

	vec, err := embedder.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vec, nil
}

// EmbedDocuments embeds a batch of texts with the passage prefix.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("%w: text at index %d", ErrEmptyInput, i)
		}
	}

	p.mu.RLock()
	embedder := p.embedder
	p.mu.RUnlock()
	if embedder == nil {
		return nil, fmt.Errorf("%w: provider closed", ErrEmbeddingFailed)
	}

	vecs, err := embedder.PassageEmbed(texts, passageBatchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vecs, nil
}

// Dimension returns the embedding dimension for the loaded model.
func (p *FastEmbedProvider) Dimension() int {
	return p.dimension
}

// Model returns the loaded model name.
func (p *FastEmbedProvider) Model() string {
	return p.model
}

// Close releases the ONNX session. Safe to call more than once.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.embedder != nil {
		p.embedder.Destroy()
		p.embedder = nil
	}
	return nil
}
