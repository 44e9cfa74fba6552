// Package session extracts capture candidates from session transcripts,
// the JSONL files written while a conversation runs. Two kinds of text
// matter: messages the user typed, and the words a user gives when
// declining a tool call. Everything else in a transcript is machine
// output.
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxScanTokenSize bounds one transcript line. Lines carry entire tool
// results, so the default scanner limit is far too small.
const maxScanTokenSize = 10 * 1024 * 1024

// rejectionMarker identifies a tool result produced by the user declining
// a tool call.
const rejectionMarker = "The user doesn't want to proceed"

// rejectionPrefix precedes the user's own words inside a rejection result.
// Matched case-insensitively.
const rejectionPrefix = "the user said:"

// Entry is one capture candidate pulled from a transcript.
type Entry struct {
	// Text is the user-authored text.
	Text string

	// Rejection marks text recovered from a declined tool call rather
	// than a typed prompt.
	Rejection bool

	// Line is the 1-based transcript line the entry came from. Zero when
	// the entry was parsed from a stream without line tracking.
	Line int
}

// transcriptLine is the raw JSONL shape. Only user entries matter here.
type transcriptLine struct {
	Type    string          `json:"type"`
	IsMeta  bool            `json:"isMeta"`
	Message json.RawMessage `json:"message"`
}

type transcriptMessage struct {
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	IsError bool            `json:"is_error"`
	Content json.RawMessage `json:"content"`
}

// ExtractFile reads the transcript at path and returns its capture
// candidates in order.
func ExtractFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()
	return Extract(f)
}

// Extract reads JSONL from r. Unparseable lines are skipped rather than
// failing the extraction: a live transcript's tail may hold a partial
// write, and old transcripts mix schema versions.
func Extract(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entries = append(entries, parseLine([]byte(line), lineNum)...)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("failed to scan transcript: %w", err)
	}
	return entries, nil
}

// FindTranscripts lists the JSONL transcripts under dir, including one
// level of subdirectories, sorted by path.
func FindTranscripts(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob transcripts: %w", err)
	}
	nested, _ := filepath.Glob(filepath.Join(dir, "*", "*.jsonl"))
	files = append(files, nested...)
	sort.Strings(files)
	return files, nil
}

// parseLine pulls the capture candidates out of one transcript line.
func parseLine(data []byte, lineNum int) []Entry {
	var tl transcriptLine
	if err := json.Unmarshal(data, &tl); err != nil {
		return nil
	}
	if tl.Type != "user" || tl.IsMeta {
		return nil
	}

	var msg transcriptMessage
	if err := json.Unmarshal(tl.Message, &msg); err != nil {
		return nil
	}

	// User content is either a plain string or a block array.
	var plain string
	if err := json.Unmarshal(msg.Content, &plain); err == nil {
		if plain == "" {
			return nil
		}
		return []Entry{{Text: plain, Line: lineNum}}
	}

	var blocks []contentBlock
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return nil
	}

	var entries []Entry
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				entries = append(entries, Entry{Text: b.Text, Line: lineNum})
			}
		case "tool_result":
			if text := rejectionText(b); text != "" {
				entries = append(entries, Entry{Text: text, Rejection: true, Line: lineNum})
			}
		}
	}
	return entries
}

// rejectionText recovers the user's words from a declined tool call. The
// block must be an error whose string content carries the rejection
// marker; the user's text is the first non-empty line after
// "the user said:".
func rejectionText(b contentBlock) string {
	if !b.IsError {
		return ""
	}

	var content string
	if err := json.Unmarshal(b.Content, &content); err != nil {
		return ""
	}
	if !strings.Contains(content, rejectionMarker) {
		return ""
	}

	idx := strings.Index(strings.ToLower(content), rejectionPrefix)
	if idx < 0 {
		return ""
	}
	for _, line := range strings.Split(content[idx+len(rejectionPrefix):], "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
