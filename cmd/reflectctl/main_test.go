package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/reflectd/internal/client"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{
			name:   "string shorter than max",
			input:  "hello",
			maxLen: 10,
			want:   "hello",
		},
		{
			name:   "string equal to max",
			input:  "hello",
			maxLen: 5,
			want:   "hello",
		},
		{
			name:   "string longer than max",
			input:  "hello world",
			maxLen: 8,
			want:   "hello...",
		},
		{
			name:   "empty string",
			input:  "",
			maxLen: 10,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestHumanAge(t *testing.T) {
	tests := []struct {
		name string
		age  time.Duration
		want string
	}{
		{
			name: "seconds round to now",
			age:  42 * time.Second,
			want: "now",
		},
		{
			name: "minutes",
			age:  7 * time.Minute,
			want: "7m",
		},
		{
			name: "hours",
			age:  3*time.Hour + 20*time.Minute,
			want: "3h",
		},
		{
			name: "days",
			age:  49 * time.Hour,
			want: "2d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := humanAge(tt.age)
			if got != tt.want {
				t.Errorf("humanAge(%v) = %q, want %q", tt.age, got, tt.want)
			}
		})
	}
}

func TestOneLine(t *testing.T) {
	got := oneLine("use make test\n   instead of calling\tgo test")
	want := "use make test instead of calling go test"
	if got != want {
		t.Errorf("oneLine() = %q, want %q", got, want)
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{
			name: "seconds",
			d:    42 * time.Second,
			want: "42s",
		},
		{
			name: "minutes and seconds",
			d:    3*time.Minute + 12*time.Second,
			want: "3m12s",
		},
		{
			name: "hours and minutes",
			d:    2*time.Hour + 5*time.Minute,
			want: "2h5m",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatUptime(tt.d)
			if got != tt.want {
				t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestStatusLine(t *testing.T) {
	if got := statusLine(client.Status{}); !strings.Contains(got, "not running") {
		t.Errorf("statusLine(zero) = %q, want it to mention not running", got)
	}
	if got := statusLine(client.Status{Running: true, State: "ready"}); !strings.Contains(got, "ready") {
		t.Errorf("statusLine(ready) = %q, want it to mention ready", got)
	}
	if got := statusLine(client.Status{Running: true, State: "loading"}); !strings.Contains(got, "loading") {
		t.Errorf("statusLine(loading) = %q, want it to mention loading", got)
	}
}

func TestReadText(t *testing.T) {
	got, err := readText([]string{"use", "make", "test"})
	if err != nil {
		t.Fatalf("readText() error: %v", err)
	}
	if got != "use make test" {
		t.Errorf("readText() = %q, want %q", got, "use make test")
	}
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	file1 := filepath.Join(dir, "a.jsonl")
	nested := filepath.Join(dir, "project")
	file2 := filepath.Join(nested, "b.jsonl")

	if err := os.MkdirAll(nested, 0o700); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{file1, file2} {
		if err := os.WriteFile(p, []byte("{}\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	// Not a transcript; directory expansion must skip it.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("directory expands to transcripts", func(t *testing.T) {
		got, err := expandPaths([]string{dir})
		if err != nil {
			t.Fatalf("expandPaths() error: %v", err)
		}
		sort.Strings(got)
		want := []string{file1, file2}
		if len(got) != len(want) {
			t.Fatalf("expandPaths() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("expandPaths()[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("file passes through", func(t *testing.T) {
		got, err := expandPaths([]string{file1})
		if err != nil {
			t.Fatalf("expandPaths() error: %v", err)
		}
		if len(got) != 1 || got[0] != file1 {
			t.Errorf("expandPaths() = %v, want [%s]", got, file1)
		}
	})

	t.Run("missing path errors", func(t *testing.T) {
		if _, err := expandPaths([]string{filepath.Join(dir, "missing.jsonl")}); err == nil {
			t.Error("expandPaths() expected error for missing path")
		}
	})
}
