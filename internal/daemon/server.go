package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reflectd/internal/anchors"
	"github.com/fyrsmithlabs/reflectd/internal/category"
	"github.com/fyrsmithlabs/reflectd/internal/logging"
	"github.com/fyrsmithlabs/reflectd/internal/protocol"
)

// acceptLoop hands each connection to its own goroutine. It exits when
// the listener closes.
func (d *Daemon) acceptLoop(ctx context.Context) {
	defer close(d.acceptDone)

	for {
		conn, err := d.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-d.done:
				return
			default:
			}
			d.logger.Warn(ctx, "accept failed", zap.Error(err))
			continue
		}

		d.conns.Add(1)
		go func() {
			defer d.conns.Done()
			d.handleConn(ctx, conn)
		}()
	}
}

// handleConn serves exactly one request. The connection carries one
// frame each way, so responses can never interleave across requests.
func (d *Daemon) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(d.opts.RequestTimeout))

	var req protocol.Request
	if err := protocol.ReadFrame(conn, &req); err != nil {
		// Nothing in the frame can be trusted, including the id.
		d.metrics.RecordRejection(ctx, "bad_frame")
		d.logger.Debug(ctx, "malformed request frame", zap.Error(err))
		_ = protocol.WriteFrame(conn, protocol.ErrorResponse("", "malformed request"))
		return
	}
	d.touch()
	ctx = logging.WithRequestID(ctx, req.ID)

	op := req.Op
	if op == "" {
		op = protocol.OpClassify
	}

	// Status works in every state so callers can watch the load.
	if op == protocol.OpStatus {
		start := time.Now()
		err := d.handleStatus(ctx, conn, req)
		d.metrics.RecordRequest(ctx, string(op), outcome(err), time.Since(start))
		return
	}

	if d.State() != StateReady {
		d.metrics.RecordRejection(ctx, "not_ready")
		d.writeError(ctx, conn, req.ID, protocol.ErrMsgNotReady)
		return
	}
	if !d.limiter.Allow() {
		d.metrics.RecordRejection(ctx, "busy")
		d.writeError(ctx, conn, req.ID, protocol.ErrMsgBusy)
		return
	}

	start := time.Now()
	var err error
	switch op {
	case protocol.OpClassify:
		err = d.handleClassify(ctx, conn, req)
	case protocol.OpEmbed:
		err = d.handleEmbed(ctx, conn, req)
	default:
		d.metrics.RecordRejection(ctx, "bad_op")
		d.writeError(ctx, conn, req.ID, protocol.ErrMsgBadOp)
		return
	}
	d.metrics.RecordRequest(ctx, string(op), outcome(err), time.Since(start))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// handleClassify embeds the text and scores it against the anchors.
func (d *Daemon) handleClassify(ctx context.Context, conn net.Conn, req protocol.Request) error {
	start := time.Now()

	text := strings.TrimSpace(protocol.TruncateText(req.Text))
	if text == "" {
		// Nothing to embed; empty input is definitively not a learning.
		res := category.Result{
			Category:   category.NotLearning,
			Confidence: 1.0,
			Source:     category.SourceEmbedding,
			LatencyMS:  msSince(start),
		}
		return d.writeResponse(ctx, conn, protocol.ResultResponse(req.ID, res))
	}

	vec, err := d.embedQuery(ctx, text)
	if err != nil {
		d.writeError(ctx, conn, req.ID, "embedding failed")
		return err
	}

	res := d.cls.Classify(vec)
	res.LatencyMS = msSince(start)
	d.logger.Debug(ctx, "classified",
		zap.String("category", string(res.Category)),
		zap.Float64("confidence", res.Confidence),
		zap.Float64("latency_ms", res.LatencyMS),
	)
	return d.writeResponse(ctx, conn, protocol.ResultResponse(req.ID, res))
}

// handleEmbed returns the normalized embedding of the text, used by
// the queue dedup path.
func (d *Daemon) handleEmbed(ctx context.Context, conn net.Conn, req protocol.Request) error {
	text := strings.TrimSpace(protocol.TruncateText(req.Text))
	if text == "" {
		d.writeError(ctx, conn, req.ID, protocol.ErrMsgEmptyText)
		return nil
	}

	vec, err := d.embedQuery(ctx, text)
	if err != nil {
		d.writeError(ctx, conn, req.ID, "embedding failed")
		return err
	}

	return d.writeResponse(ctx, conn, protocol.Response{
		ID:     req.ID,
		Vector: anchors.Normalize(vec),
	})
}

// handleStatus reports lifecycle state and load facts.
func (d *Daemon) handleStatus(ctx context.Context, conn net.Conn, req protocol.Request) error {
	st := d.Status()
	return d.writeResponse(ctx, conn, protocol.Response{
		ID:          req.ID,
		State:       st.State,
		Model:       st.Model,
		AnchorCount: st.AnchorCount,
		UptimeMS:    st.UptimeMS,
	})
}

// embedQuery serializes access to the model. A request-time embedding
// failure wedges the ONNX session in unknown state, so it is fatal:
// the caller still gets its error frame, then the daemon exits and
// supervision restarts it clean.
func (d *Daemon) embedQuery(ctx context.Context, text string) ([]float32, error) {
	d.embedMu.Lock()
	vec, err := d.provider.EmbedQuery(ctx, text)
	d.embedMu.Unlock()
	if err != nil {
		d.logger.Error(ctx, "embedding failed, shutting down", zap.Error(err))
		d.fail(fmt.Errorf("request-time embedding failure: %w", err))
	}
	return vec, err
}

func (d *Daemon) writeResponse(ctx context.Context, conn net.Conn, resp protocol.Response) error {
	if err := protocol.WriteFrame(conn, resp); err != nil {
		d.logger.Debug(ctx, "failed to write response", zap.Error(err))
		return err
	}
	return nil
}

func (d *Daemon) writeError(ctx context.Context, conn net.Conn, id, msg string) {
	_ = d.writeResponse(ctx, conn, protocol.ErrorResponse(id, msg))
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
