package embeddings

import (
	"context"
	"time"
)

// instrumentedProvider decorates a Provider with generation metrics.
type instrumentedProvider struct {
	inner   Provider
	metrics *Metrics
	model   string
}

// Instrumented wraps p so that every embedding call records duration,
// batch size, and errors under the given model label. A nil Metrics
// returns p unchanged.
func Instrumented(p Provider, m *Metrics, model string) Provider {
	if m == nil {
		return p
	}
	return &instrumentedProvider{inner: p, metrics: m, model: model}
}

func (ip *instrumentedProvider) EmbedQuery(ctx context.Context, text string) (_ []float32, err error) {
	start := time.Now()
	defer func() {
		ip.metrics.RecordGeneration(ctx, ip.model, "query", time.Since(start), 0, err)
	}()
	return ip.inner.EmbedQuery(ctx, text)
}

func (ip *instrumentedProvider) EmbedDocuments(ctx context.Context, texts []string) (_ [][]float32, err error) {
	start := time.Now()
	defer func() {
		ip.metrics.RecordGeneration(ctx, ip.model, "batch", time.Since(start), len(texts), err)
	}()
	return ip.inner.EmbedDocuments(ctx, texts)
}

func (ip *instrumentedProvider) Dimension() int { return ip.inner.Dimension() }

func (ip *instrumentedProvider) Close() error { return ip.inner.Close() }
