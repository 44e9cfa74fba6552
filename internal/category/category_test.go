package category

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Category
		wantErr bool
	}{
		{name: "correction", input: "correction", want: Correction},
		{name: "guardrail", input: "guardrail", want: Guardrail},
		{name: "positive", input: "positive", want: Positive},
		{name: "not_learning", input: "not_learning", want: NotLearning},
		{name: "unknown is valid on the wire", input: "unknown", want: Unknown},
		{name: "empty", input: "", wantErr: true},
		{name: "unrecognized", input: "learnings", wantErr: true},
		{name: "case sensitive", input: "Correction", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnknownCategory)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifiableExcludesUnknown(t *testing.T) {
	for _, c := range Classifiable() {
		assert.True(t, c.Valid())
		assert.NotEqual(t, Unknown, c)
	}
	assert.Len(t, Classifiable(), 4)
}

func TestLearning(t *testing.T) {
	assert.True(t, Correction.Learning())
	assert.True(t, Guardrail.Learning())
	assert.True(t, Positive.Learning())
	assert.False(t, NotLearning.Learning())
	assert.False(t, Unknown.Learning())
}

func TestUnavailable(t *testing.T) {
	r := Unavailable()
	assert.Equal(t, Unknown, r.Category)
	assert.Zero(t, r.Confidence)
	assert.Equal(t, SourceFallback, r.Source)
}

func TestResultJSONOmitsEmptyDiagnostics(t *testing.T) {
	data, err := json.Marshal(Result{Category: NotLearning, Confidence: 0.7})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "top_anchor")
	assert.Contains(t, string(data), `"category":"not_learning"`)
}
