// Package category defines the classification labels and result shape shared
// by the prefilter, the daemon, and the client.
package category

import (
	"errors"
	"fmt"
)

// ErrUnknownCategory indicates a label outside the known set.
var ErrUnknownCategory = errors.New("unknown category")

// Category labels a short message by its learning value.
type Category string

const (
	// Correction is an explicit user correction or instruction
	// ("remember: always run tests first", "no, use X instead of Y").
	Correction Category = "correction"

	// Guardrail is a standing constraint or prohibition
	// ("never commit directly to main").
	Guardrail Category = "guardrail"

	// Positive is approving feedback worth reinforcing
	// ("perfect, that's exactly what I wanted").
	Positive Category = "positive"

	// NotLearning is noise: questions, one-off tasks, acknowledgements.
	// It is a confident negative, not an absence of opinion.
	NotLearning Category = "not_learning"

	// Unknown means classification could not run (daemon unreachable,
	// timeout, malformed response). Callers treat it as "no opinion",
	// never as a negative.
	Unknown Category = "unknown"
)

// Classifiable returns the categories the similarity classifier may emit.
// Unknown is excluded: it is reserved for the degraded path and never
// produced by a live classifier.
func Classifiable() []Category {
	return []Category{Correction, Guardrail, Positive, NotLearning}
}

// Valid reports whether c is one of the known labels, including Unknown.
func (c Category) Valid() bool {
	switch c {
	case Correction, Guardrail, Positive, NotLearning, Unknown:
		return true
	}
	return false
}

// Learning reports whether c represents a reusable learning worth capturing.
func (c Category) Learning() bool {
	switch c {
	case Correction, Guardrail, Positive:
		return true
	}
	return false
}

// Parse converts a wire label into a Category.
func Parse(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Source records which layer produced a classification result.
type Source string

const (
	// SourcePrefilter means the structural prefilter short-circuited the daemon.
	SourcePrefilter Source = "prefilter"

	// SourceEmbedding means the embedding daemon classified the text.
	SourceEmbedding Source = "embedding"

	// SourceFallback means the daemon was unreachable and the client degraded.
	SourceFallback Source = "fallback"
)

// Result is the outcome of one classification call.
type Result struct {
	// Category is the decided label. Never empty.
	Category Category `json:"category"`

	// Confidence is in [0,1]. For the daemon path it is the winning
	// cosine similarity; for the prefilter it is 1.0; for the degraded
	// path it is 0.0.
	Confidence float64 `json:"confidence"`

	// TopAnchor identifies the best-matching anchor for diagnostics,
	// e.g. "correction/es:0". Empty outside the daemon path.
	TopAnchor string `json:"top_anchor,omitempty"`

	// LatencyMS is wall time spent producing this result.
	LatencyMS float64 `json:"latency_ms"`

	// Source is the layer that decided. Empty in wire payloads from
	// older daemons; treat empty as SourceEmbedding.
	Source Source `json:"source,omitempty"`
}

// Unavailable is the degraded result returned when the daemon cannot be
// reached. Confidence zero distinguishes it from every live result.
func Unavailable() Result {
	return Result{Category: Unknown, Confidence: 0, Source: SourceFallback}
}
