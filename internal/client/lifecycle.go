package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Ensure makes sure a daemon is listening, spawning one if needed. It
// returns once the socket is dialable; model loading may still be in
// progress behind it, which classify calls surface as "not ready" until
// the daemon turns ready.
func (c *Client) Ensure(ctx context.Context) error {
	if socketDialable(c.opts.SocketPath, c.opts.Timeout) {
		return nil
	}

	if err := c.startDetached(); err != nil {
		return fmt.Errorf("spawning daemon: %w", err)
	}
	c.logger.Debug(ctx, "daemon spawned, waiting for socket",
		zap.String("socket", c.opts.SocketPath))

	deadline := time.Now().Add(c.opts.SpawnWait)
	for {
		if socketDialable(c.opts.SocketPath, c.opts.SpawnPoll) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("daemon socket not dialable after %s", c.opts.SpawnWait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.SpawnPoll):
		}
	}
}

// Stop signals the daemon identified by the PID file with SIGTERM. A
// missing or stale marker returns ErrNotRunning; a stale marker is
// cleaned up on the way out.
func (c *Client) Stop() error {
	pid, err := readPID(c.opts.PIDFile)
	if err != nil {
		return ErrNotRunning
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return ErrNotRunning
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			_ = os.Remove(c.opts.PIDFile)
			return ErrNotRunning
		}
		return fmt.Errorf("signaling pid %d: %w", pid, err)
	}

	c.logger.Debug(context.Background(), "sent SIGTERM to daemon", zap.Int("pid", pid))
	return nil
}

// readPID duplicates the daemon's marker parsing so the CLI does not
// link the daemon package (and with it the model stack).
func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", path)
	}
	return pid, nil
}

func socketDialable(path string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
