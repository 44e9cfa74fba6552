// Package secrets redacts credentials from captured text before it is
// persisted. Detection uses the gitleaks default ruleset; redaction
// replaces every occurrence of a detected secret with a marker that
// names the rule and keeps a short prefix, so queue items stay
// recognizable without carrying the secret itself.
package secrets
