// Package protocol implements the framed request/response codec spoken
// between the classification daemon and its clients over a local socket.
//
// A frame is a 4-byte big-endian length prefix followed by a JSON body,
// capped at 64 KiB. One request and one response per connection. The shape
// is fixed and versionless; the length prefix leaves room to add a version
// field later without breaking parsing.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/reflectd/internal/category"
)

const (
	// MaxFrameSize bounds a single frame body.
	MaxFrameSize = 64 << 10

	// MaxTextLen bounds request text in runes. Longer inputs are
	// truncated, never rejected: the embedding model truncates anyway
	// and a partial classification beats none.
	MaxTextLen = 2000
)

// Sentinel errors for framing failures. All of them degrade to an
// "unknown" result on the client side.
var (
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	ErrBadFrame      = errors.New("malformed frame")
)

// Well-known wire error strings emitted by the daemon.
const (
	// ErrMsgNotReady is sent while the daemon is still loading the model.
	// Clients fail fast to their fallback path instead of queueing.
	ErrMsgNotReady = "not ready"

	// ErrMsgBusy is sent when the request rate limiter rejects load.
	ErrMsgBusy = "busy"

	// ErrMsgEmptyText is sent for classify/embed requests without text.
	ErrMsgEmptyText = "empty text"

	// ErrMsgBadOp is sent for unrecognized operations.
	ErrMsgBadOp = "unrecognized op"
)

// Op selects the daemon operation.
type Op string

const (
	// OpClassify embeds the text and scores it against the anchors.
	OpClassify Op = "classify"

	// OpEmbed returns the raw normalized embedding vector.
	OpEmbed Op = "embed"

	// OpStatus reports daemon state without touching the model.
	OpStatus Op = "status"
)

// Request is one classification/embedding/status call.
type Request struct {
	// ID is an opaque correlation token echoed back in the response.
	ID string `json:"id"`

	// Op selects the operation. An empty op means classify, matching
	// early clients that only spoke that operation.
	Op Op `json:"op,omitempty"`

	// Text is the input for classify and embed.
	Text string `json:"text,omitempty"`
}

// NewRequest builds a request with a fresh correlation ID and bounded text.
func NewRequest(op Op, text string) Request {
	return Request{
		ID:   uuid.NewString(),
		Op:   op,
		Text: TruncateText(text),
	}
}

// Response carries the result for exactly one request.
type Response struct {
	// ID echoes the request ID. A mismatch means the frame answers some
	// other request and must be discarded.
	ID string `json:"id"`

	// Classify fields.
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	TopAnchor  string  `json:"top_anchor,omitempty"`
	LatencyMS  float64 `json:"latency_ms,omitempty"`
	Source     string  `json:"source,omitempty"`

	// Embed field.
	Vector []float32 `json:"vector,omitempty"`

	// Status fields.
	State       string `json:"state,omitempty"`
	Model       string `json:"model,omitempty"`
	AnchorCount int    `json:"anchor_count,omitempty"`
	UptimeMS    int64  `json:"uptime_ms,omitempty"`

	// Error is set instead of the fields above when the daemon could not
	// serve the request.
	Error string `json:"error,omitempty"`
}

// ResultResponse wraps a classification result for the wire.
func ResultResponse(id string, r category.Result) Response {
	return Response{
		ID:         id,
		Category:   string(r.Category),
		Confidence: r.Confidence,
		TopAnchor:  r.TopAnchor,
		LatencyMS:  r.LatencyMS,
		Source:     string(r.Source),
	}
}

// ErrorResponse wraps a wire error for the wire.
func ErrorResponse(id, msg string) Response {
	return Response{ID: id, Error: msg}
}

// Result converts a classify response back into the shared result shape.
// Responses with an unparseable category degrade to the unavailable
// result rather than erroring: a daemon speaking a different vocabulary
// is indistinguishable from no daemon at all.
func (r Response) Result() category.Result {
	if r.Error != "" {
		return category.Unavailable()
	}
	c, err := category.Parse(r.Category)
	if err != nil {
		return category.Unavailable()
	}
	src := category.Source(r.Source)
	if src == "" {
		src = category.SourceEmbedding
	}
	return category.Result{
		Category:   c,
		Confidence: r.Confidence,
		TopAnchor:  r.TopAnchor,
		LatencyMS:  r.LatencyMS,
		Source:     src,
	}
}

// WriteFrame encodes v as JSON and writes one length-prefixed frame.
func WriteFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if len(body) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}

	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(body)))
	copy(buf[4:], body)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame and decodes it into v.
func ReadFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("reading frame header: %w", err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	if size == 0 {
		return fmt.Errorf("%w: empty body", ErrBadFrame)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("reading frame body: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return nil
}

// TruncateText bounds text to MaxTextLen runes.
func TruncateText(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxTextLen {
		return text
	}
	return string(runes[:MaxTextLen])
}
