package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reflectd/internal/category"
	"github.com/fyrsmithlabs/reflectd/internal/config"
	"github.com/fyrsmithlabs/reflectd/internal/logging"
	"github.com/fyrsmithlabs/reflectd/internal/protocol"
)

const (
	// DefaultTimeout is the combined connect+read budget for one classify
	// call. Small and fixed: the caller is a prompt hook.
	DefaultTimeout = 75 * time.Millisecond

	// DefaultSpawnWait bounds how long Ensure waits for a freshly spawned
	// daemon to bind its socket.
	DefaultSpawnWait = 10 * time.Second

	// DefaultSpawnPoll is the socket probe period during Ensure.
	DefaultSpawnPoll = 300 * time.Millisecond

	// defaultDaemonBinary is resolved from PATH when no explicit daemon
	// path is configured.
	defaultDaemonBinary = "reflectd"
)

// Internal failure classes. They never escape Classify; they exist so
// debug logs can say which leg of the round trip gave up.
var (
	errConnection = errors.New("connection failed")
	errProtocol   = errors.New("protocol violation")
)

// ErrNotRunning reports that no live daemon was found behind the
// liveness markers.
var ErrNotRunning = errors.New("daemon not running")

// Options configures a Client. Zero values take defaults.
type Options struct {
	SocketPath string
	PIDFile    string

	// Timeout is the per-call budget for Classify.
	Timeout time.Duration

	// SpawnWait and SpawnPoll govern Ensure.
	SpawnWait time.Duration
	SpawnPoll time.Duration

	// DaemonPath and DaemonArgs select the binary Ensure spawns.
	// Empty path means look up "reflectd" on PATH.
	DaemonPath string
	DaemonArgs []string

	// DaemonEnv is appended to the inherited environment of the
	// spawned daemon.
	DaemonEnv []string
}

// FromConfig derives client options from the application config.
func FromConfig(cfg *config.Config) Options {
	return Options{
		SocketPath: cfg.Daemon.SocketPath,
		PIDFile:    cfg.Daemon.PIDFile,
		Timeout:    cfg.Client.Timeout,
		SpawnWait:  cfg.Client.SpawnWait,
		SpawnPoll:  cfg.Client.SpawnPoll,
		// The spawned daemon must bind the same socket this client
		// polls, even when the path came from a flag or file the
		// daemon's own config load would not see.
		DaemonEnv: []string{"REFLECTD_DAEMON_SOCKET_PATH=" + cfg.Daemon.SocketPath},
	}
}

// Client issues one-shot requests against the daemon socket. Safe for
// concurrent use; every call opens its own connection.
type Client struct {
	opts   Options
	logger *logging.Logger
}

// New builds a client. A nil logger disables logging.
func New(opts Options, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.SocketPath == "" {
		opts.SocketPath = config.DefaultSocketPath()
	}
	if opts.PIDFile == "" {
		if dir, err := config.ConfigDir(); err == nil {
			opts.PIDFile = filepath.Join(dir, "reflectd.pid")
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.SpawnWait <= 0 {
		opts.SpawnWait = DefaultSpawnWait
	}
	if opts.SpawnPoll <= 0 {
		opts.SpawnPoll = DefaultSpawnPoll
	}
	return &Client{opts: opts, logger: logger.Named("client")}
}

// Classify asks the daemon to classify text within the default budget.
// It never fails: any problem reaching or understanding the daemon
// degrades to the unknown result with confidence zero.
func (c *Client) Classify(text string) category.Result {
	return c.ClassifyTimeout(text, c.opts.Timeout)
}

// ClassifyTimeout is Classify with an explicit budget.
func (c *Client) ClassifyTimeout(text string, timeout time.Duration) category.Result {
	start := time.Now()

	resp, err := c.roundTrip(protocol.NewRequest(protocol.OpClassify, text), timeout)
	if err != nil {
		c.logger.Debug(context.Background(), "classify degraded to unknown", zap.Error(err))
		res := category.Unavailable()
		res.LatencyMS = msSince(start)
		return res
	}

	res := resp.Result()
	if res.LatencyMS == 0 {
		res.LatencyMS = msSince(start)
	}
	return res
}

// Embed returns the daemon's normalized embedding of text, or nil when
// the daemon cannot serve it. Same degradation discipline as Classify:
// callers use nil as "no dedup possible", never as an error.
func (c *Client) Embed(text string, timeout time.Duration) []float32 {
	resp, err := c.roundTrip(protocol.NewRequest(protocol.OpEmbed, text), timeout)
	if err != nil || resp.Error != "" {
		return nil
	}
	return resp.Vector
}

// Status describes a reachable daemon. The zero value means no daemon
// answered.
type Status struct {
	Running     bool
	State       string
	Model       string
	AnchorCount int
	Uptime      time.Duration
}

// Status issues the status operation.
func (c *Client) Status(timeout time.Duration) Status {
	resp, err := c.roundTrip(protocol.NewRequest(protocol.OpStatus, ""), timeout)
	if err != nil || resp.Error != "" {
		return Status{}
	}
	return Status{
		Running:     true,
		State:       resp.State,
		Model:       resp.Model,
		AnchorCount: resp.AnchorCount,
		Uptime:      time.Duration(resp.UptimeMS) * time.Millisecond,
	}
}

// roundTrip sends one request and reads one response under a single
// combined deadline covering dial, write, and read.
func (c *Client) roundTrip(req protocol.Request, timeout time.Duration) (protocol.Response, error) {
	deadline := time.Now().Add(timeout)

	conn, err := net.DialTimeout("unix", c.opts.SocketPath, timeout)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("%w: %v", errConnection, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return protocol.Response{}, fmt.Errorf("%w: %v", errConnection, err)
	}
	if err := protocol.WriteFrame(conn, req); err != nil {
		return protocol.Response{}, fmt.Errorf("%w: %v", errConnection, err)
	}

	var resp protocol.Response
	if err := protocol.ReadFrame(conn, &resp); err != nil {
		return protocol.Response{}, fmt.Errorf("%w: %v", errProtocol, err)
	}
	if resp.ID != req.ID {
		return protocol.Response{}, fmt.Errorf("%w: response id %q for request %q", errProtocol, resp.ID, req.ID)
	}
	return resp, nil
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
