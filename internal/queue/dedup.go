package queue

import (
	"context"
	"errors"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reflectd/internal/logging"
)

// DefaultDedupThreshold is the cosine similarity at or above which a new
// capture counts as a duplicate of an existing item.
const DefaultDedupThreshold = 0.92

const dedupCollection = "queue"

var errNoVector = errors.New("embedder returned no vector")

// EmbedFunc produces an embedding for text, or nil when the daemon is
// unreachable. client.Embed has this shape.
type EmbedFunc func(text string) []float32

// Match identifies the queue item a new capture duplicates.
type Match struct {
	ID         string
	Similarity float32
}

// Deduper suppresses near-duplicate captures using an in-memory chromem
// collection over embeddings of existing queue items. Every method is
// best-effort: when the daemon cannot embed, dedup stands aside and the
// capture proceeds.
type Deduper struct {
	embed     EmbedFunc
	threshold float32
	coll      *chromem.Collection
	logger    *logging.Logger
}

// NewDeduper builds an empty index. A non-positive threshold uses
// DefaultDedupThreshold.
func NewDeduper(embed EmbedFunc, threshold float64, logger *logging.Logger) (*Deduper, error) {
	if threshold <= 0 {
		threshold = DefaultDedupThreshold
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Deduper{
		embed:     embed,
		threshold: float32(threshold),
		logger:    logger.Named("dedup"),
	}

	coll, err := chromem.NewDB().GetOrCreateCollection(dedupCollection, nil, d.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup collection: %w", err)
	}
	d.coll = coll
	return d, nil
}

// Seed indexes existing queue items. Items the daemon cannot embed are
// skipped; they simply never match.
func (d *Deduper) Seed(ctx context.Context, items []Item) {
	for _, item := range items {
		d.Index(ctx, item)
	}
}

// Index adds one item to the duplicate index.
func (d *Deduper) Index(ctx context.Context, item Item) {
	vec := d.embed(item.Message)
	if vec == nil {
		d.logger.Debug(ctx, "skipping unembeddable queue item", zap.String("id", item.ID))
		return
	}

	doc := chromem.Document{ID: item.ID, Content: item.Message, Embedding: vec}
	if err := d.coll.AddDocument(ctx, doc); err != nil {
		d.logger.Warn(ctx, "failed to index queue item",
			zap.String("id", item.ID),
			zap.Error(err),
		)
	}
}

// Check reports the indexed item text duplicates, or nil when the text is
// novel or dedup is unavailable.
func (d *Deduper) Check(ctx context.Context, text string) *Match {
	if d.coll.Count() == 0 {
		return nil
	}

	vec := d.embed(text)
	if vec == nil {
		return nil
	}

	results, err := d.coll.QueryEmbedding(ctx, vec, 1, nil, nil)
	if err != nil {
		d.logger.Warn(ctx, "dedup query failed", zap.Error(err))
		return nil
	}
	if len(results) == 0 || results[0].Similarity < d.threshold {
		return nil
	}
	return &Match{ID: results[0].ID, Similarity: results[0].Similarity}
}

// embeddingFunc adapts EmbedFunc to chromem's interface. Documents and
// queries always carry precomputed vectors, so chromem only calls this
// when a caller forgets one.
func (d *Deduper) embeddingFunc() chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		vec := d.embed(text)
		if vec == nil {
			return nil, errNoVector
		}
		return vec, nil
	}
}
