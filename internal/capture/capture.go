// Package capture implements the learning capture pipeline behind the
// prompt hook: payload parsing, layered classification, secret redaction,
// duplicate suppression, queue append. The pipeline never breaks the hook;
// anything that is not a clean capture is a silent skip.
package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reflectd/internal/category"
	"github.com/fyrsmithlabs/reflectd/internal/logging"
	"github.com/fyrsmithlabs/reflectd/internal/prefilter"
	"github.com/fyrsmithlabs/reflectd/internal/project"
	"github.com/fyrsmithlabs/reflectd/internal/queue"
	"github.com/fyrsmithlabs/reflectd/internal/secrets"
)

// previewLen bounds the captured-text preview in the acknowledgement line.
const previewLen = 40

// Source labels recorded on queue items by entry point.
const (
	SourceHook = "hook"
	SourceScan = "scan"
)

// Classifier is the daemon-backed classification surface the pipeline
// needs. *client.Client satisfies it.
type Classifier interface {
	Classify(text string) category.Result
}

// Payload is the hook's stdin shape. Field names vary across hook
// versions; the first non-empty one wins.
type Payload struct {
	Prompt  string `json:"prompt"`
	Message string `json:"message"`
	Text    string `json:"text"`
}

// ParsePayload extracts the user text from a hook payload. ok is false
// for empty input, malformed JSON, and payloads without text.
func ParsePayload(data []byte) (string, bool) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", false
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", false
	}
	for _, s := range []string{p.Prompt, p.Message, p.Text} {
		if s != "" {
			return s, true
		}
	}
	return "", false
}

// Detect classifies text through the layered path: structural prefilter
// first, daemon only when the prefilter has no opinion. It never fails;
// with the daemon unreachable the result is Unknown.
func Detect(text string, c Classifier) category.Result {
	if m, ok := prefilter.Classify(text); ok {
		return m.Result()
	}
	if c == nil {
		return category.Unavailable()
	}
	return c.Classify(text)
}

// Options configures a capture pipeline.
type Options struct {
	// Store receives accepted items. Required.
	Store *queue.Store

	// Classifier is the daemon client. Required.
	Classifier Classifier

	// Redactor scrubs secrets from captured text before it is persisted.
	// Nil disables redaction.
	Redactor *secrets.Redactor

	// Dedup suppresses near-duplicate captures. Nil disables dedup.
	Dedup *queue.Deduper

	// WorkDir is where project identity is resolved from. Empty means
	// the current directory.
	WorkDir string

	// Source labels queue items from this pipeline. Defaults to SourceHook.
	Source string
}

// Pipeline turns raw messages into queue items.
type Pipeline struct {
	opts   Options
	logger *logging.Logger
}

// New builds a capture pipeline.
func New(opts Options, logger *logging.Logger) (*Pipeline, error) {
	if opts.Store == nil {
		return nil, errors.New("capture: store is required")
	}
	if opts.Classifier == nil {
		return nil, errors.New("capture: classifier is required")
	}
	if opts.Source == "" {
		opts.Source = SourceHook
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{opts: opts, logger: logger.Named("capture")}, nil
}

// Outcome reports what the pipeline did with one message. The zero
// Outcome means the payload carried no usable text.
type Outcome struct {
	// Result is the classification that drove the decision.
	Result category.Result

	// Item is the stored queue item, set only when the message was
	// captured.
	Item *queue.Item

	// Duplicate is set when an existing queue item suppressed the
	// capture.
	Duplicate *queue.Match

	// Ack is the single acknowledgement line for hook stdout, set only
	// when the message was captured.
	Ack string
}

// Detect classifies text without touching the queue.
func (p *Pipeline) Detect(text string) category.Result {
	return Detect(text, p.opts.Classifier)
}

// Capture runs one message through the pipeline. Only a queue write
// failure is an error; every other non-capture is reported through the
// Outcome so hook callers can stay on the exit-0 path.
func (p *Pipeline) Capture(ctx context.Context, text string) (Outcome, error) {
	res := p.Detect(text)
	out := Outcome{Result: res}
	if !res.Category.Learning() {
		return out, nil
	}

	message := strings.TrimSpace(text)
	if p.opts.Redactor != nil {
		redacted, findings := p.opts.Redactor.Redact(message)
		if len(findings) > 0 {
			p.logger.Info(ctx, "redacted secrets from capture",
				zap.Int("findings", len(findings)),
			)
		}
		message = redacted
	}

	if p.opts.Dedup != nil {
		if m := p.opts.Dedup.Check(ctx, message); m != nil {
			p.logger.Debug(ctx, "duplicate capture suppressed",
				zap.String("duplicate_of", m.ID),
				zap.Float32("similarity", m.Similarity),
			)
			out.Duplicate = m
			return out, nil
		}
	}

	item := queue.Item{
		Category:   res.Category,
		Message:    message,
		Confidence: res.Confidence,
		Project:    project.Detect(p.opts.WorkDir),
		Source:     p.opts.Source,
	}
	if res.TopAnchor != "" {
		item.Patterns = []string{res.TopAnchor}
	}

	stored, err := p.opts.Store.Append(item)
	if err != nil {
		return out, fmt.Errorf("failed to append queue item: %w", err)
	}
	out.Item = &stored

	if p.opts.Dedup != nil {
		p.opts.Dedup.Index(ctx, stored)
	}

	out.Ack = ackLine(message, res.Confidence)
	p.logger.Info(ctx, "learning captured",
		zap.String("id", stored.ID),
		zap.String("category", string(stored.Category)),
		zap.Float64("confidence", stored.Confidence),
		zap.String("source", stored.Source),
	)
	return out, nil
}

// CaptureHook runs the stdin hook flow: parse the payload, capture its
// text. A payload without usable text is a no-op, not an error.
func (p *Pipeline) CaptureHook(ctx context.Context, payload []byte) (Outcome, error) {
	text, ok := ParsePayload(payload)
	if !ok {
		return Outcome{}, nil
	}
	return p.Capture(ctx, text)
}

// ackLine is the one line of hook stdout acknowledging a capture. Hook
// stdout becomes conversation context, so it stays short and carries the
// already-redacted text only.
func ackLine(message string, confidence float64) string {
	preview := message
	if runes := []rune(message); len(runes) > previewLen {
		preview = string(runes[:previewLen]) + "..."
	}
	return fmt.Sprintf("📝 Learning captured: '%s' (confidence: %.0f%%)", preview, confidence*100)
}
