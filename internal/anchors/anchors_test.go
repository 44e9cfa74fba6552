package anchors

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reflectd/internal/category"
)

// stubEmbedder produces deterministic synthetic vectors keyed on text
// length, good enough to exercise the load/compute path without a model.
type stubEmbedder struct {
	dim int
	err error
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, s.dim)
		for j := range v {
			v[j] = float32((len(t)+i+j)%7) + 1
		}
		out[i] = v
	}
	return out, nil
}

func TestDefault(t *testing.T) {
	set, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 1, set.Version())
	assert.Zero(t, set.Dimension(), "vectors must not exist before ComputeVectors")

	byCategory := make(map[category.Category]map[string]bool)
	for _, a := range set.Anchors() {
		require.True(t, a.Category.Valid())
		require.NotEqual(t, category.Unknown, a.Category)
		require.NotEmpty(t, a.Text)
		require.NotEmpty(t, a.Lang)
		require.NotEmpty(t, a.Label)
		if byCategory[a.Category] == nil {
			byCategory[a.Category] = make(map[string]bool)
		}
		byCategory[a.Category][a.Lang] = true
	}

	for _, c := range category.Classifiable() {
		langs := byCategory[c]
		require.NotNil(t, langs, "category %s missing from default set", c)
		assert.GreaterOrEqual(t, len(langs), minLanguages, "category %s language spread", c)
	}
}

func TestLoadBytesValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not yaml", data: "{{{"},
		{name: "missing version", data: "categories:\n  correction:\n    - {lang: en, text: x}\n"},
		{
			name: "unknown category key",
			data: `
version: 1
categories:
  learnings:
    - {lang: en, text: "x"}
`,
		},
		{
			name: "unknown reserved as key",
			data: `
version: 1
categories:
  unknown:
    - {lang: en, text: "x"}
`,
		},
		{
			name: "empty text",
			data: `
version: 1
categories:
  correction:
    - {lang: en, text: "  "}
`,
		},
		{
			name: "missing lang",
			data: `
version: 1
categories:
  correction:
    - {text: "no, use X"}
`,
		},
		{
			name: "missing category",
			data: `
version: 1
categories:
  correction:
    - {lang: en, text: "a"}
    - {lang: es, text: "b"}
    - {lang: fr, text: "c"}
`,
		},
		{
			name: "too few languages",
			data: `
version: 1
categories:
  correction:
    - {lang: en, text: "a"}
    - {lang: en, text: "b"}
  guardrail:
    - {lang: en, text: "a"}
    - {lang: es, text: "b"}
    - {lang: fr, text: "c"}
  positive:
    - {lang: en, text: "a"}
    - {lang: es, text: "b"}
    - {lang: fr, text: "c"}
  not_learning:
    - {lang: en, text: "a"}
    - {lang: es, text: "b"}
    - {lang: fr, text: "c"}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrData)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "anchors.yaml")
		require.NoError(t, os.WriteFile(path, defaultData, 0o600))

		set, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 1, set.Version())
		assert.Greater(t, set.Count(), 0)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrData)
	})
}

func TestComputeVectors(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes and sets dimension", func(t *testing.T) {
		set, err := Default()
		require.NoError(t, err)

		require.NoError(t, set.ComputeVectors(ctx, &stubEmbedder{dim: 8}))
		assert.Equal(t, 8, set.Dimension())

		for _, a := range set.Anchors() {
			require.Len(t, a.Vector, 8)
			var sum float64
			for _, x := range a.Vector {
				sum += float64(x) * float64(x)
			}
			assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6, "anchor %s not unit length", a.Label)
		}
	})

	t.Run("second call is a no-op", func(t *testing.T) {
		set, err := Default()
		require.NoError(t, err)
		require.NoError(t, set.ComputeVectors(ctx, &stubEmbedder{dim: 4}))

		first := set.Anchors()[0].Vector
		require.NoError(t, set.ComputeVectors(ctx, &stubEmbedder{dim: 16}))
		assert.Equal(t, 4, set.Dimension())
		assert.Equal(t, first, set.Anchors()[0].Vector)
	})

	t.Run("embedder failure wraps ErrData", func(t *testing.T) {
		set, err := Default()
		require.NoError(t, err)

		err = set.ComputeVectors(ctx, &stubEmbedder{err: errors.New("onnx exploded")})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrData)
		assert.Zero(t, set.Dimension())
	})
}

func TestNormalize(t *testing.T) {
	t.Run("unit length", func(t *testing.T) {
		v := Normalize([]float32{3, 4})
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
	})

	t.Run("zero vector unchanged", func(t *testing.T) {
		v := Normalize([]float32{0, 0, 0})
		assert.Equal(t, []float32{0, 0, 0}, v)
	})

	t.Run("already normalized stays put", func(t *testing.T) {
		v := Normalize([]float32{1, 0, 0})
		assert.InDelta(t, 1.0, v[0], 1e-9)
	})
}
