// Package queue stores captured learnings awaiting review. Items live in a
// JSON array file rewritten atomically on every change, and an in-memory
// chromem index suppresses near-duplicate captures.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/reflectd/internal/category"
	"github.com/fyrsmithlabs/reflectd/internal/project"
)

// ErrCorrupted indicates the queue file exists but cannot be parsed.
var ErrCorrupted = errors.New("queue file corrupted")

// Item is one captured learning.
type Item struct {
	// ID is a UUID assigned at append time.
	ID string `json:"id"`

	// Category is the classification that made this worth keeping.
	Category category.Category `json:"category"`

	// Message is the captured text, already redacted.
	Message string `json:"message"`

	// Patterns are the cues that drove the classification: prefilter
	// pattern names or the winning anchor id.
	Patterns []string `json:"patterns,omitempty"`

	// Confidence is the classification confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Project identifies where the message was captured.
	Project project.Identity `json:"project"`

	// CapturedAt is the append time in UTC.
	CapturedAt time.Time `json:"captured_at"`

	// Source names the capture entry point, e.g. "hook" or "scan".
	Source string `json:"source,omitempty"`
}

// Store persists queue items as a JSON array file.
type Store struct {
	mu    sync.RWMutex
	path  string
	items []Item
}

// Open loads the queue at path, creating parent directories as needed.
// A missing file is an empty queue.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	s := &Store{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Append adds item to the queue and persists it. A missing ID or capture
// time is filled in; the stored item is returned.
func (s *Store) Append(item Item) (Item, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CapturedAt.IsZero() {
		item.CapturedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, item)
	if err := s.save(); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Items returns a copy of the queued items, oldest first.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of queued items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear empties the queue and persists the empty state.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	return s.save()
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read queue file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &s.items); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return nil
}

// save writes the queue to disk. Callers hold s.mu.
func (s *Store) save() error {
	items := s.items
	if items == nil {
		items = []Item{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}

	// Write atomically: write to temp file, then rename.
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write queue file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename queue file: %w", err)
	}
	return nil
}
