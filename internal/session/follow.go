package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Follow captures the transcript at path and then tails it until ctx
// ends, running each appended entry through the pipeline as it arrives.
// It returns nil when the transcript is removed, which is how a session
// ends.
func (s *Scanner) Follow(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch transcript: %w", err)
	}

	// Catch up on content written before the watch started.
	carry, err := s.consume(ctx, f, nil)
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "following transcript", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				s.logger.Info(ctx, "transcript gone, stopping follow", zap.String("path", path))
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				if carry, err = s.consume(ctx, f, carry); err != nil {
					return err
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn(ctx, "transcript watch error", zap.Error(err))
		}
	}
}

// consume reads everything appended to f since the last call, prepends
// carry, and captures each complete line's entries. The trailing partial
// line is returned to be carried into the next call.
func (s *Scanner) consume(ctx context.Context, f *os.File, carry []byte) ([]byte, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return carry, fmt.Errorf("failed to read transcript: %w", err)
	}
	if len(data) == 0 {
		return carry, nil
	}

	buf := append(carry, data...)
	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSpace(buf[:idx])
		buf = buf[idx+1:]
		if len(line) == 0 {
			continue
		}
		for _, e := range parseLine(line, 0) {
			if _, err := s.pipeline.Capture(ctx, e.Text); err != nil {
				return nil, err
			}
		}
	}
	return buf, nil
}
