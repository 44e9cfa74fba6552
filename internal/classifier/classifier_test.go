package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reflectd/internal/anchors"
	"github.com/fyrsmithlabs/reflectd/internal/category"
)

// basisSet builds an anchor set whose vectors span a tiny synthetic space:
// correction on axis 0, guardrail on axis 1, positive on axis 2,
// not_learning on axis 3. Dot products with crafted inputs are then exact.
const basisYAML = `
version: 1
categories:
  correction:
    - {lang: en, text: "c-en"}
    - {lang: es, text: "c-es"}
    - {lang: fr, text: "c-fr"}
  guardrail:
    - {lang: en, text: "g-en"}
    - {lang: es, text: "g-es"}
    - {lang: fr, text: "g-fr"}
  positive:
    - {lang: en, text: "p-en"}
    - {lang: es, text: "p-es"}
    - {lang: fr, text: "p-fr"}
  not_learning:
    - {lang: en, text: "n-en"}
    - {lang: es, text: "n-es"}
    - {lang: fr, text: "n-fr"}
`

// axisEmbedder maps each anchor text onto its category's axis.
type axisEmbedder struct{}

func (axisEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 4)
		switch t[0] {
		case 'c':
			v[0] = 1
		case 'g':
			v[1] = 1
		case 'p':
			v[2] = 1
		case 'n':
			v[3] = 1
		}
		out[i] = v
	}
	return out, nil
}

func basisClassifier(t *testing.T, cfg Config) *Classifier {
	t.Helper()
	set, err := anchors.LoadBytes([]byte(basisYAML))
	require.NoError(t, err)
	require.NoError(t, set.ComputeVectors(context.Background(), axisEmbedder{}))

	c, err := New(set, cfg)
	require.NoError(t, err)
	return c
}

func TestNewValidation(t *testing.T) {
	t.Run("nil set", func(t *testing.T) {
		_, err := New(nil, Config{})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("vectors not computed", func(t *testing.T) {
		set, err := anchors.LoadBytes([]byte(basisYAML))
		require.NoError(t, err)
		_, err = New(set, Config{})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("bad min score", func(t *testing.T) {
		set, err := anchors.LoadBytes([]byte(basisYAML))
		require.NoError(t, err)
		require.NoError(t, set.ComputeVectors(context.Background(), axisEmbedder{}))
		_, err = New(set, Config{MinScore: 1.5})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("defaults applied", func(t *testing.T) {
		c := basisClassifier(t, Config{})
		assert.Equal(t, DefaultMinScore, c.MinScore())
		assert.Equal(t, DefaultEpsilon, c.Epsilon())
	})
}

func TestClassifyWinners(t *testing.T) {
	c := basisClassifier(t, Config{})

	tests := []struct {
		name    string
		vec     []float32
		want    category.Category
		minConf float64
	}{
		{name: "pure correction", vec: []float32{1, 0, 0, 0}, want: category.Correction, minConf: 0.99},
		{name: "pure guardrail", vec: []float32{0, 1, 0, 0}, want: category.Guardrail, minConf: 0.99},
		{name: "pure positive", vec: []float32{0, 0, 1, 0}, want: category.Positive, minConf: 0.99},
		{name: "pure noise", vec: []float32{0, 0, 0, 1}, want: category.NotLearning, minConf: 0.99},
		{name: "clear lead", vec: []float32{0.9, 0.1, 0, 0}, want: category.Correction, minConf: 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.Classify(tt.vec)
			assert.Equal(t, tt.want, r.Category)
			assert.GreaterOrEqual(t, r.Confidence, tt.minConf)
			assert.LessOrEqual(t, r.Confidence, 1.0)
			assert.Equal(t, category.SourceEmbedding, r.Source)
			assert.NotEmpty(t, r.TopAnchor)
		})
	}
}

func TestClassifySelfSimilarity(t *testing.T) {
	// Every anchor's own vector must classify as the anchor's category
	// with confidence at or above the acceptance threshold.
	c := basisClassifier(t, Config{})
	for _, a := range c.set.Anchors() {
		r := c.Classify(a.Vector)
		assert.Equal(t, a.Category, r.Category, "anchor %s", a.Label)
		assert.GreaterOrEqual(t, r.Confidence, c.MinScore(), "anchor %s", a.Label)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := basisClassifier(t, Config{})
	vec := []float32{0.3, 0.2, 0.9, 0.1}

	first := c.Classify(vec)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, c.Classify(vec))
	}
}

func TestClassifyMaxNotMean(t *testing.T) {
	// correction holds one perfect anchor and two useless ones; a mean
	// aggregate (~0.33) would lose to not_learning's uniform 0.5 anchors.
	// The max rule must let the single strong match dominate.
	const yml = `
version: 1
categories:
  correction:
    - {lang: en, text: "c-strong"}
    - {lang: es, text: "n-weak1"}
    - {lang: fr, text: "n-weak2"}
  guardrail:
    - {lang: en, text: "g-1"}
    - {lang: es, text: "g-2"}
    - {lang: fr, text: "g-3"}
  positive:
    - {lang: en, text: "p-1"}
    - {lang: es, text: "p-2"}
    - {lang: fr, text: "p-3"}
  not_learning:
    - {lang: en, text: "m-1"}
    - {lang: es, text: "m-2"}
    - {lang: fr, text: "m-3"}
`
	set, err := anchors.LoadBytes([]byte(yml))
	require.NoError(t, err)
	require.NoError(t, set.ComputeVectors(context.Background(), mixEmbedder{}))

	c, err := New(set, Config{})
	require.NoError(t, err)

	r := c.Classify([]float32{1, 0, 0, 0})
	assert.Equal(t, category.Correction, r.Category)
	assert.InDelta(t, 1.0, r.Confidence, 1e-6)
}

// mixEmbedder gives "m-" texts a half-on-axis-0 direction so not_learning
// scores a uniform 0.5 against axis-0 inputs, while "c-strong" sits exactly
// on axis 0 and "n-weak"/"g-"/"p-" texts sit on axis 3, 1, 2.
type mixEmbedder struct{}

func (mixEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		switch t[0] {
		case 'c':
			out[i] = []float32{1, 0, 0, 0}
		case 'g':
			out[i] = []float32{0, 1, 0, 0}
		case 'p':
			out[i] = []float32{0, 0, 1, 0}
		case 'n':
			out[i] = []float32{0, 0, 0, 1}
		case 'm':
			out[i] = []float32{0.5, 0, 0, 0.8660254}
		}
	}
	return out, nil
}

func TestClassifyThreshold(t *testing.T) {
	c := basisClassifier(t, Config{})

	// Equidistant from every axis: best score 0.5, below 0.55.
	r := c.Classify([]float32{1, 1, 1, 1})
	assert.Equal(t, category.NotLearning, r.Category)
	assert.InDelta(t, 0.5, r.Confidence, 1e-6)
}

func TestClassifyTieBreakConservative(t *testing.T) {
	c := basisClassifier(t, Config{})

	tests := []struct {
		name string
		vec  []float32
		want category.Category
	}{
		// Exact ties resolve down the conservative ordering
		// not_learning > positive > guardrail > correction.
		{name: "guardrail vs positive", vec: []float32{0, 1, 1, 0}, want: category.Positive},
		{name: "correction vs not_learning", vec: []float32{1, 0, 0, 1}, want: category.NotLearning},
		{name: "correction vs guardrail", vec: []float32{1, 1, 0, 0}, want: category.Guardrail},
		{name: "three-way", vec: []float32{1, 1, 1, 0}, want: category.Positive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.Classify(tt.vec)
			assert.Equal(t, tt.want, r.Category)
		})
	}
}

func TestClassifyOutsideEpsilonKeepsWinner(t *testing.T) {
	c := basisClassifier(t, Config{})

	// Correction leads not_learning by far more than epsilon.
	r := c.Classify([]float32{1, 0, 0, 0.3})
	assert.Equal(t, category.Correction, r.Category)
}

func TestClassifyDimensionMismatch(t *testing.T) {
	c := basisClassifier(t, Config{})

	for _, vec := range [][]float32{nil, {}, {1, 0}, {1, 0, 0, 0, 0}} {
		r := c.Classify(vec)
		assert.Equal(t, category.NotLearning, r.Category)
		assert.InDelta(t, 1.0, r.Confidence, 1e-6, "a vector that cannot be scored is a certain negative")
	}
}

func TestClassifyNormalizesInput(t *testing.T) {
	c := basisClassifier(t, Config{})

	// A scaled copy of an axis must classify identically to the unit one.
	unit := c.Classify([]float32{0, 1, 0, 0})
	scaled := c.Classify([]float32{0, 250, 0, 0})
	assert.Equal(t, unit.Category, scaled.Category)
	assert.InDelta(t, unit.Confidence, scaled.Confidence, 1e-6)
}
