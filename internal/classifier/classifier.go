// Package classifier implements anchor-based similarity classification.
// An input vector is compared against every anchor by cosine similarity;
// each category is scored by its best anchor, never an average, because
// anchors are curated examples and a single strong match should dominate
// many weak ones. No model, no training, no I/O.
package classifier

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/reflectd/internal/anchors"
	"github.com/fyrsmithlabs/reflectd/internal/category"
)

// ErrInvalidConfig indicates an unusable classifier configuration.
var ErrInvalidConfig = errors.New("invalid classifier config")

// Tuned against the default multilingual anchor set; recalibrate when the
// anchor set changes materially.
const (
	// DefaultMinScore is the acceptance threshold. Winning scores below
	// it are not evidence of membership in any category.
	DefaultMinScore = 0.55

	// DefaultEpsilon is the tie-break margin. Top scores closer than this
	// are treated as ambiguous and resolved conservatively.
	DefaultEpsilon = 0.02
)

// conservativeRank orders categories for tie-breaking, lowest first.
// When the signal is ambiguous we bias toward not over-claiming a learning.
var conservativeRank = map[category.Category]int{
	category.NotLearning: 0,
	category.Positive:    1,
	category.Guardrail:   2,
	category.Correction:  3,
}

// Config tunes the acceptance threshold and tie-break margin. Zero values
// take the defaults.
type Config struct {
	MinScore float64 `koanf:"min_score" json:"min_score"`
	Epsilon  float64 `koanf:"epsilon" json:"epsilon"`
}

// Classifier scores vectors against a fixed anchor set. Safe for
// concurrent use: the anchor set is read-only after construction.
type Classifier struct {
	set      *anchors.Set
	minScore float64
	epsilon  float64
}

// New builds a classifier over a set whose vectors are already computed.
func New(set *anchors.Set, cfg Config) (*Classifier, error) {
	if set == nil {
		return nil, fmt.Errorf("%w: nil anchor set", ErrInvalidConfig)
	}
	if set.Dimension() == 0 {
		return nil, fmt.Errorf("%w: anchor vectors not computed", ErrInvalidConfig)
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = DefaultMinScore
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		return nil, fmt.Errorf("%w: min_score %v outside [0,1]", ErrInvalidConfig, cfg.MinScore)
	}
	if cfg.Epsilon < 0 || cfg.Epsilon >= 1 {
		return nil, fmt.Errorf("%w: epsilon %v outside [0,1)", ErrInvalidConfig, cfg.Epsilon)
	}
	return &Classifier{set: set, minScore: cfg.MinScore, epsilon: cfg.Epsilon}, nil
}

// categoryScore is one category's best anchor similarity.
type categoryScore struct {
	cat   category.Category
	score float64
	label string
}

// Classify scores vec against the anchor set and decides a category.
// Deterministic: identical vector and anchor set always yield the same
// result. The input is normalized internally, so callers may pass raw
// embedder output.
func (c *Classifier) Classify(vec []float32) category.Result {
	if len(vec) != c.set.Dimension() {
		// Nothing comparable was produced. Weak or absent similarity is
		// never evidence of membership, so this is a certain negative,
		// not an uncertain one.
		return category.Result{
			Category:   category.NotLearning,
			Confidence: 1.0,
			Source:     category.SourceEmbedding,
		}
	}

	vec = anchors.Normalize(vec)

	// One pass over the anchors, keeping each category's maximum.
	best := make(map[category.Category]categoryScore, 4)
	for _, a := range c.set.Anchors() {
		sim := dot(vec, a.Vector)
		if cur, ok := best[a.Category]; !ok || sim > cur.score {
			best[a.Category] = categoryScore{cat: a.Category, score: sim, label: a.Label}
		}
	}

	// Fixed category order keeps the argmax deterministic.
	scores := make([]categoryScore, 0, len(best))
	for _, cat := range category.Classifiable() {
		if s, ok := best[cat]; ok {
			scores = append(scores, s)
		}
	}

	winner := scores[0]
	for _, s := range scores[1:] {
		if s.score > winner.score {
			winner = s
		}
	}

	// Everything within epsilon of the top is ambiguous; prefer the most
	// conservative contender rather than over-claiming a learning. The
	// window is anchored to the raw top so reassignment cannot widen it.
	top := winner.score
	for _, s := range scores {
		if top-s.score < c.epsilon && conservativeRank[s.cat] < conservativeRank[winner.cat] {
			winner = s
		}
	}

	confidence := clamp(winner.score)

	if winner.score < c.minScore {
		return category.Result{
			Category:   category.NotLearning,
			Confidence: confidence,
			TopAnchor:  winner.label,
			Source:     category.SourceEmbedding,
		}
	}

	return category.Result{
		Category:   winner.cat,
		Confidence: confidence,
		TopAnchor:  winner.label,
		Source:     category.SourceEmbedding,
	}
}

// MinScore returns the acceptance threshold in effect.
func (c *Classifier) MinScore() float64 {
	return c.minScore
}

// Epsilon returns the tie-break margin in effect.
func (c *Classifier) Epsilon() float64 {
	return c.epsilon
}

// dot is cosine similarity for unit vectors.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func clamp(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
