// Package prefilter implements the structural first pass over raw message
// text. It decides without I/O and without the embedding daemon whenever a
// surface-level signal is unambiguous: explicit marker tokens, trailing
// question marks, structural noise. Everything else is deferred to the
// daemon path.
//
// Definitive branches rely only on punctuation and fixed multi-locale marker
// tokens. Phrasing-level heuristics ("no, use X") belong to the anchor set,
// not here: a regex that only understands English must not be authoritative.
package prefilter

import (
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/reflectd/internal/category"
)

// maxLength bounds text the daemon path will accept. Longer messages are
// almost always pasted logs or diffs, not learnings, unless an explicit
// marker says otherwise. Matches the protocol text bound.
const maxLength = 2000

// Match is a definitive prefilter decision.
type Match struct {
	// Category is the decided label.
	Category category.Category

	// Confidence is the fixed confidence of the structural cue.
	Confidence float64

	// Pattern names the cue that fired, e.g. "marker:remember:" or
	// "question". Diagnostic only.
	Pattern string
}

// Result converts the match into the shared result shape.
func (m Match) Result() category.Result {
	return category.Result{
		Category:   m.Category,
		Confidence: m.Confidence,
		TopAnchor:  m.Pattern,
		Source:     category.SourcePrefilter,
	}
}

// Classify runs the structural pass over text. The second return value is
// false when no definitive structural signal is present and the caller
// should defer to embedding classification. Never errors.
func Classify(text string) (Match, bool) {
	trimmed := strings.TrimSpace(text)

	if trimmed == "" {
		return Match{Category: category.NotLearning, Confidence: 1.0, Pattern: "empty"}, true
	}

	if isStructuralNoise(text, trimmed) {
		return Match{Category: category.NotLearning, Confidence: 1.0, Pattern: "structural-noise"}, true
	}

	lower := strings.ToLower(trimmed)

	if marker := markerAtStart(lower); marker != "" {
		return Match{Category: category.Correction, Confidence: 1.0, Pattern: "marker:" + marker}, true
	}

	if isQuestion(trimmed) && !hasNegation(lower) {
		return Match{Category: category.NotLearning, Confidence: 0.9, Pattern: "question"}, true
	}

	if len(trimmed) > maxLength && !containsMarker(lower) {
		return Match{Category: category.NotLearning, Confidence: 0.95, Pattern: "overlength"}, true
	}

	return Match{}, false
}

// isStructuralNoise reports whether the message is machine output rather
// than something a person typed: tool payloads, serialized data, session
// continuation banners. The raw text is checked too because the indented
// list cue lives in leading whitespace.
func isStructuralNoise(raw, trimmed string) bool {
	switch trimmed[0] {
	case '<', '[', '{':
		return true
	}
	for _, sub := range noiseSubstrings {
		if strings.Contains(trimmed, sub) {
			return true
		}
	}
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return strings.HasPrefix(raw, "   -")
}

// markerAtStart returns the explicit marker token that starts the message,
// or "" if none does. Input must already be lowercased.
func markerAtStart(lower string) string {
	for _, m := range explicitMarkers {
		if strings.HasPrefix(lower, m) {
			return m
		}
	}
	return ""
}

// containsMarker reports whether any explicit marker appears anywhere in
// the message. Over-length messages carrying a marker are still deferred to
// the daemon instead of being rejected outright.
func containsMarker(lower string) bool {
	for _, m := range explicitMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// isQuestion reports whether the message ends in a question mark from any
// supported script, allowing a trailing punctuation cluster like "?!".
func isQuestion(trimmed string) bool {
	runes := []rune(trimmed)
	for i := len(runes) - 1; i >= 0; i-- {
		r := runes[i]
		if questionMarks[r] {
			return true
		}
		if !unicode.IsPunct(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return false
}

// hasNegation reports whether the message carries a negation token.
// Questions that negate ("no, shouldn't we use X?") read as corrections,
// so the question branch must not claim them. Word tokens are compared per
// field; CJK tokens are substring-matched because those scripts do not
// delimit words with spaces.
func hasNegation(lower string) bool {
	for _, f := range strings.Fields(lower) {
		f = strings.TrimFunc(f, unicode.IsPunct)
		if negationWords[f] {
			return true
		}
	}
	for _, sub := range negationSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
