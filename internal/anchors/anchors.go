// Package anchors loads and validates the curated multilingual example
// sentences the similarity classifier compares against. Anchor data is pure:
// loaded once at daemon startup, embedded exactly once per daemon lifetime,
// read-only afterwards.
package anchors

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/reflectd/internal/category"
)

// ErrData indicates the anchor file is missing, malformed, or fails a
// structural invariant. Fatal at daemon startup.
var ErrData = errors.New("anchor data invalid")

// minLanguages is the per-category floor that keeps the set from collapsing
// into single-language bias.
const minLanguages = 3

// maxFileSize caps anchor file reads.
const maxFileSize = 1 << 20 // 1MB

// Anchor is one curated example sentence with its category and, once
// computed, its unit-length embedding vector.
type Anchor struct {
	Category category.Category
	Lang     string
	Text     string
	Vector   []float32

	// Label identifies the anchor for diagnostics, e.g. "correction/es:0".
	// The ordinal counts within the anchor's category. Assigned at load.
	Label string
}

// Set is an immutable, ordered collection of anchors. Order is fixed at
// load time (category order, then file order) so classification over the
// set is deterministic.
type Set struct {
	version int
	anchors []Anchor
	dim     int
}

// fileFormat is the on-disk shape: a version plus category-keyed entries.
type fileFormat struct {
	Version    int                      `yaml:"version"`
	Categories map[string][]anchorEntry `yaml:"categories"`
}

type anchorEntry struct {
	Lang string `yaml:"lang"`
	Text string `yaml:"text"`
}

// Load reads and validates an anchor file.
func Load(path string) (*Set, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrData, path, err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrData, path, maxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrData, path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates anchor data.
func LoadBytes(data []byte) (*Set, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrData, err)
	}
	if f.Version < 1 {
		return nil, fmt.Errorf("%w: missing or invalid version", ErrData)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrData)
	}

	for key := range f.Categories {
		c, err := category.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("%w: category %q", ErrData, key)
		}
		if c == category.Unknown {
			return nil, fmt.Errorf("%w: category %q may not carry anchors", ErrData, key)
		}
	}

	set := &Set{version: f.Version}

	// Fixed category order, then file order, so the set is deterministic
	// regardless of map iteration.
	for _, c := range category.Classifiable() {
		entries, ok := f.Categories[string(c)]
		if !ok || len(entries) == 0 {
			return nil, fmt.Errorf("%w: category %q has no anchors", ErrData, c)
		}

		langs := make(map[string]bool)
		for i, e := range entries {
			if strings.TrimSpace(e.Text) == "" {
				return nil, fmt.Errorf("%w: category %q anchor %d has empty text", ErrData, c, i)
			}
			if strings.TrimSpace(e.Lang) == "" {
				return nil, fmt.Errorf("%w: category %q anchor %d has no language tag", ErrData, c, i)
			}
			langs[e.Lang] = true
			set.anchors = append(set.anchors, Anchor{
				Category: c,
				Lang:     e.Lang,
				Text:     e.Text,
				Label:    fmt.Sprintf("%s/%s:%d", c, e.Lang, i),
			})
		}
		if len(langs) < minLanguages {
			return nil, fmt.Errorf("%w: category %q covers %d languages, need at least %d",
				ErrData, c, len(langs), minLanguages)
		}
	}

	return set, nil
}

// Embedder computes document vectors for anchor texts.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// ComputeVectors embeds every anchor text in one batch and stores the
// normalized vectors. Called once at daemon startup; a second call is a
// no-op. Returns ErrData wrapped around embedding failures since a set
// without vectors is unusable.
func (s *Set) ComputeVectors(ctx context.Context, embedder Embedder) error {
	if s.dim != 0 {
		return nil
	}

	texts := make([]string, len(s.anchors))
	for i, a := range s.anchors {
		texts[i] = a.Text
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embedding anchors: %v", ErrData, err)
	}
	if len(vectors) != len(s.anchors) {
		return fmt.Errorf("%w: embedder returned %d vectors for %d anchors",
			ErrData, len(vectors), len(s.anchors))
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim || dim == 0 {
			return fmt.Errorf("%w: anchor %d has dimension %d, want %d", ErrData, i, len(v), dim)
		}
		s.anchors[i].Vector = Normalize(v)
	}
	s.dim = dim
	return nil
}

// Anchors returns the ordered anchor slice. Callers must not mutate it.
func (s *Set) Anchors() []Anchor {
	return s.anchors
}

// Count returns the number of anchors in the set.
func (s *Set) Count() int {
	return len(s.anchors)
}

// Dimension returns the vector dimensionality, or 0 before ComputeVectors.
func (s *Set) Dimension() int {
	return s.dim
}

// Version returns the data file version.
func (s *Set) Version() int {
	return s.version
}

// Normalize returns v scaled to unit length. A zero vector is returned
// unchanged: normalizing it has no meaningful direction and dividing by
// zero would poison every similarity downstream.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
