package queue

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reflectd/internal/category"
	"github.com/fyrsmithlabs/reflectd/internal/project"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.json")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestOpen_MissingFileIsEmptyQueue(t *testing.T) {
	s, _ := testStore(t)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Items())
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "queue.json")
	_, err := Open(path)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpen_CorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	require.NoError(t, os.WriteFile(path, []byte("{definitely not an array"), 0o600))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestAppend_AssignsIDAndTimestamp(t *testing.T) {
	s, _ := testStore(t)

	stored, err := s.Append(Item{
		Category:   category.Correction,
		Message:    "always run the linter before committing",
		Confidence: 0.91,
	})
	require.NoError(t, err)

	_, err = uuid.Parse(stored.ID)
	assert.NoError(t, err, "appended item should get a UUID")
	assert.WithinDuration(t, time.Now().UTC(), stored.CapturedAt, 5*time.Second)
	assert.Equal(t, 1, s.Len())
}

func TestAppend_KeepsExplicitIDAndTimestamp(t *testing.T) {
	s, _ := testStore(t)

	when := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	stored, err := s.Append(Item{
		ID:         "fixed-id",
		Category:   category.Guardrail,
		Message:    "never push directly to main",
		CapturedAt: when,
	})
	require.NoError(t, err)

	assert.Equal(t, "fixed-id", stored.ID)
	assert.True(t, stored.CapturedAt.Equal(when))
}

func TestAppend_PersistsAcrossReopen(t *testing.T) {
	s, path := testStore(t)

	first, err := s.Append(Item{
		Category:   category.Correction,
		Message:    "use table tests for the parser",
		Patterns:   []string{"imperative_instruction"},
		Confidence: 0.88,
		Project: project.Identity{
			Name:   "acme/widgets",
			Root:   "/home/dev/widgets",
			Remote: "git@github.com:acme/widgets.git",
		},
		Source: "hook",
	})
	require.NoError(t, err)

	_, err = s.Append(Item{
		Category:   category.Positive,
		Message:    "that refactor is exactly right",
		Confidence: 0.79,
		Source:     "scan",
	})
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, 2, reopened.Len())

	items := reopened.Items()
	assert.Equal(t, first.ID, items[0].ID)
	assert.Equal(t, category.Correction, items[0].Category)
	assert.Equal(t, "use table tests for the parser", items[0].Message)
	assert.Equal(t, []string{"imperative_instruction"}, items[0].Patterns)
	assert.InDelta(t, 0.88, items[0].Confidence, 1e-9)
	assert.Equal(t, "acme/widgets", items[0].Project.Name)
	assert.Equal(t, "git@github.com:acme/widgets.git", items[0].Project.Remote)
	assert.Equal(t, "hook", items[0].Source)
	assert.WithinDuration(t, first.CapturedAt, items[0].CapturedAt, time.Second)

	assert.Equal(t, category.Positive, items[1].Category)
	assert.Equal(t, "scan", items[1].Source)
}

func TestAppend_LeavesNoTempFile(t *testing.T) {
	s, path := testStore(t)

	_, err := s.Append(Item{Category: category.Correction, Message: "x"})
	require.NoError(t, err)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestAppend_SaveFailure(t *testing.T) {
	s, path := testStore(t)

	// A directory squatting on the temp path makes the atomic write fail.
	require.NoError(t, os.Mkdir(path+".tmp", 0o700))

	_, err := s.Append(Item{Category: category.Correction, Message: "x"})
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	s, path := testStore(t)

	_, err := s.Append(Item{Category: category.Correction, Message: "a"})
	require.NoError(t, err)
	_, err = s.Append(Item{Category: category.Guardrail, Message: "b"})
	require.NoError(t, err)

	require.NoError(t, s.Clear())
	assert.Equal(t, 0, s.Len())

	// An empty queue is a JSON array, not null.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Len())
}

func TestItems_ReturnsCopy(t *testing.T) {
	s, _ := testStore(t)

	_, err := s.Append(Item{Category: category.Correction, Message: "original"})
	require.NoError(t, err)

	got := s.Items()
	got[0].Message = "mutated"

	assert.Equal(t, "original", s.Items()[0].Message)
}

func TestAppend_Concurrent(t *testing.T) {
	s, path := testStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, err := s.Append(Item{Category: category.Correction, Message: "concurrent"})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 50, s.Len())

	reopened, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, 50, reopened.Len())

	seen := make(map[string]bool)
	for _, item := range reopened.Items() {
		assert.False(t, seen[item.ID], "duplicate id %s", item.ID)
		seen[item.ID] = true
	}
}
