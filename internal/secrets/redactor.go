package secrets

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// previewLen is how many leading characters of a secret survive in the
// redaction marker.
const previewLen = 4

// Finding describes one redacted secret.
type Finding struct {
	// RuleID is the gitleaks rule that matched, e.g. "github-pat".
	RuleID string

	// Description is the rule's human-readable description.
	Description string

	// Preview is the secret's leading characters, enough to tell two
	// redactions apart and nothing more.
	Preview string
}

// Redactor detects and replaces secrets. Construction compiles the full
// gitleaks default ruleset, which is expensive; build one and reuse it.
type Redactor struct {
	detector *detect.Detector
}

// New builds a Redactor over the gitleaks default configuration.
func New() (*Redactor, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("building secret detector: %w", err)
	}
	return &Redactor{detector: detector}, nil
}

// Redact replaces every detected secret in text with a
// [REDACTED:rule-id:prefix] marker and reports what was replaced.
// Text without secrets is returned unchanged.
func (r *Redactor) Redact(text string) (string, []Finding) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	raw := r.detector.DetectString(text)
	if len(raw) == 0 {
		return text, nil
	}

	// Longest secrets first so a secret containing another is replaced
	// whole instead of being corrupted by the inner replacement.
	sort.Slice(raw, func(i, j int) bool {
		return len(raw[i].Secret) > len(raw[j].Secret)
	})

	findings := make([]Finding, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, f := range raw {
		if f.Secret == "" || seen[f.Secret] {
			continue
		}
		seen[f.Secret] = true

		marker := fmt.Sprintf("[REDACTED:%s:%s]", f.RuleID, preview(f.Secret))
		text = strings.ReplaceAll(text, f.Secret, marker)

		findings = append(findings, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Preview:     preview(f.Secret),
		})
	}
	return text, findings
}

// Check reports detected secrets without modifying the text.
func (r *Redactor) Check(text string) []Finding {
	_, findings := r.Redact(text)
	return findings
}

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen]
}
