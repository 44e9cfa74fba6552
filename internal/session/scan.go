package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reflectd/internal/capture"
	"github.com/fyrsmithlabs/reflectd/internal/logging"
)

// Result summarizes one batch scan.
type Result struct {
	// Files is the number of transcripts read.
	Files int

	// Entries is the number of capture candidates extracted.
	Entries int

	// Captured is the number of entries that became queue items.
	Captured int

	// Duplicates is the number of entries suppressed as near-duplicates.
	Duplicates int
}

// Scanner feeds transcript entries through a capture pipeline.
type Scanner struct {
	pipeline *capture.Pipeline
	logger   *logging.Logger
}

// NewScanner builds a scanner over pipeline.
func NewScanner(pipeline *capture.Pipeline, logger *logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{pipeline: pipeline, logger: logger.Named("session")}
}

// ScanFiles extracts every transcript and captures what qualifies.
// Unreadable transcripts are logged and skipped; a queue write failure
// aborts the scan.
func (s *Scanner) ScanFiles(ctx context.Context, paths []string) (Result, error) {
	var res Result
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		entries, err := ExtractFile(path)
		if err != nil {
			s.logger.Warn(ctx, "skipping unreadable transcript",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		res.Files++

		for _, e := range entries {
			res.Entries++
			out, err := s.pipeline.Capture(ctx, e.Text)
			if err != nil {
				return res, err
			}
			switch {
			case out.Item != nil:
				res.Captured++
			case out.Duplicate != nil:
				res.Duplicates++
			}
		}

		s.logger.Debug(ctx, "scanned transcript",
			zap.String("path", path),
			zap.Int("entries", len(entries)),
		)
	}
	return res, nil
}
