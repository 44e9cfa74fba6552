package prefilter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reflectd/internal/category"
)

func TestClassifyDefinitive(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantCat     category.Category
		wantPattern string
	}{
		{
			name:        "explicit marker english",
			input:       "remember: always run tests first",
			wantCat:     category.Correction,
			wantPattern: "marker:remember:",
		},
		{
			name:        "explicit marker uppercase",
			input:       "Remember: use tabs in Makefiles",
			wantCat:     category.Correction,
			wantPattern: "marker:remember:",
		},
		{
			name:        "explicit marker spanish",
			input:       "recuerda: usa siempre la rama develop",
			wantCat:     category.Correction,
			wantPattern: "marker:recuerda:",
		},
		{
			name:        "explicit marker russian",
			input:       "запомни: не трогай прод в пятницу",
			wantCat:     category.Correction,
			wantPattern: "marker:запомни:",
		},
		{
			name:        "explicit marker chinese no colon",
			input:       "记住要先跑测试",
			wantCat:     category.Correction,
			wantPattern: "marker:记住",
		},
		{
			name:        "explicit marker japanese",
			input:       "覚えておいて、コミットの前にテストを実行する",
			wantCat:     category.Correction,
			wantPattern: "marker:覚えて",
		},
		{
			name:        "question english",
			input:       "What time is it?",
			wantCat:     category.NotLearning,
			wantPattern: "question",
		},
		{
			name:        "question fullwidth",
			input:       "现在几点了？",
			wantCat:     category.NotLearning,
			wantPattern: "question",
		},
		{
			name:        "question arabic mark",
			input:       "كم الساعة؟",
			wantCat:     category.NotLearning,
			wantPattern: "question",
		},
		{
			name:        "question with trailing bang",
			input:       "seriously, again?!",
			wantCat:     category.NotLearning,
			wantPattern: "question",
		},
		{
			name:        "empty",
			input:       "",
			wantCat:     category.NotLearning,
			wantPattern: "empty",
		},
		{
			name:        "whitespace only",
			input:       "   \n\t ",
			wantCat:     category.NotLearning,
			wantPattern: "empty",
		},
		{
			name:        "xml noise",
			input:       "<local-command-stdout>ok</local-command-stdout>",
			wantCat:     category.NotLearning,
			wantPattern: "structural-noise",
		},
		{
			name:        "json noise",
			input:       `{"type":"tool_result","content":"done"}`,
			wantCat:     category.NotLearning,
			wantPattern: "structural-noise",
		},
		{
			name:        "bracket noise",
			input:       "[tool output truncated]",
			wantCat:     category.NotLearning,
			wantPattern: "structural-noise",
		},
		{
			name:        "session continuation banner",
			input:       "This session is being continued from a previous conversation.",
			wantCat:     category.NotLearning,
			wantPattern: "structural-noise",
		},
		{
			name:        "overlength paste",
			input:       strings.Repeat("x", maxLength+1),
			wantCat:     category.NotLearning,
			wantPattern: "overlength",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Classify(tt.input)
			require.True(t, ok, "expected a definitive match")
			assert.Equal(t, tt.wantCat, m.Category)
			assert.Equal(t, tt.wantPattern, m.Pattern)
			assert.Greater(t, m.Confidence, 0.0)
			assert.LessOrEqual(t, m.Confidence, 1.0)
		})
	}
}

func TestClassifyDefers(t *testing.T) {
	// None of these carry a definitive structural signal; all must go to
	// the embedding path.
	inputs := []string{
		"no, usa Python en vez de Node",
		"don't use tabs in this repo",
		"perfect, that's exactly what I wanted",
		"never commit directly to main",
		"fix the login bug",
		"das ist falsch, nimm PostgreSQL",
		"これは違う、Reactを使って",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, ok := Classify(input)
			assert.False(t, ok)
		})
	}
}

func TestNegatedQuestionDefers(t *testing.T) {
	// A negated question reads as a correction in disguise. The question
	// branch must not claim it; the anchors decide.
	inputs := []string{
		"no, shouldn't we use Postgres instead?",
		"why don't you run the linter first?",
		"¿no deberíamos usar la rama develop?",
		"不要用Node吧，用Python不行吗？",
		// "nie" negates in both German and Polish; one table entry serves both.
		"warum nie den Linter ausführen?",
		"nie powinniśmy używać Dockera?",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			m, ok := Classify(input)
			if ok {
				assert.NotEqual(t, "question", m.Pattern)
			}
		})
	}
}

func TestOverlengthWithMarkerDefers(t *testing.T) {
	// An explicit marker buried in a long paste keeps the message alive
	// for the daemon instead of rejecting it as noise.
	input := strings.Repeat("a", maxLength) + " remember: keep this"
	_, ok := Classify(input)
	assert.False(t, ok)
}

func TestMatchResult(t *testing.T) {
	m, ok := Classify("remember: always run tests first")
	require.True(t, ok)

	r := m.Result()
	assert.Equal(t, category.Correction, r.Category)
	assert.Equal(t, 1.0, r.Confidence)
	assert.Equal(t, category.SourcePrefilter, r.Source)
	assert.Equal(t, "marker:remember:", r.TopAnchor)
}

func TestClassifyNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"?",
		"？",
		"!!!",
		"   -",
		"\x00\x01",
		strings.Repeat("？", 5000),
	}
	for _, input := range inputs {
		assert.NotPanics(t, func() { Classify(input) })
	}
}
