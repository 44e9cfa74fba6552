package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/reflectd/internal/anchors"
	"github.com/fyrsmithlabs/reflectd/internal/classifier"
	"github.com/fyrsmithlabs/reflectd/internal/config"
	"github.com/fyrsmithlabs/reflectd/internal/embeddings"
	"github.com/fyrsmithlabs/reflectd/internal/logging"
)

// ErrAlreadyRunning means another daemon already serves the socket.
// Callers treat it as success: the goal state is "a daemon is up".
var ErrAlreadyRunning = errors.New("daemon already running")

// connDrainTimeout bounds how long shutdown waits for in-flight
// connections before abandoning them.
const connDrainTimeout = 2 * time.Second

// Options configures a Daemon.
type Options struct {
	SocketPath     string
	PIDFile        string
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	RatePerSecond  float64
	RateBurst      int

	Embedding  embeddings.Config
	Classifier classifier.Config

	// AnchorsPath overrides the embedded anchor catalog.
	AnchorsPath string

	// ProviderFactory overrides embedding provider construction.
	// Tests inject deterministic providers here; nil means fastembed.
	ProviderFactory func(context.Context) (embeddings.Provider, error)
}

// FromConfig maps the application configuration onto daemon Options.
func FromConfig(cfg *config.Config) Options {
	return Options{
		SocketPath:     cfg.Daemon.SocketPath,
		PIDFile:        cfg.Daemon.PIDFile,
		IdleTimeout:    cfg.Daemon.IdleTimeout,
		RequestTimeout: cfg.Daemon.RequestTimeout,
		RatePerSecond:  cfg.Daemon.RatePerSecond,
		RateBurst:      cfg.Daemon.RateBurst,
		Embedding: embeddings.Config{
			Model:     cfg.Embedding.Model,
			CacheDir:  cfg.Embedding.CacheDir,
			MaxLength: cfg.Embedding.MaxLength,
		},
		Classifier: classifier.Config{
			MinScore: cfg.Classifier.MinScore,
			Epsilon:  cfg.Classifier.Epsilon,
		},
		AnchorsPath: cfg.Anchors.Path,
	}
}

// Daemon serves classification requests over a Unix socket.
type Daemon struct {
	opts    Options
	logger  *logging.Logger
	metrics *Metrics

	state atomic.Int32

	// startedAt and lastActivity hold unix nanos; both are read from
	// request and admin goroutines.
	startedAt    atomic.Int64
	lastActivity atomic.Int64

	listener net.Listener
	limiter  *rate.Limiter

	provider embeddings.Provider
	set      *anchors.Set
	cls      *classifier.Classifier

	// embedMu serializes model access; the ONNX session is not safe
	// for concurrent inference.
	embedMu sync.Mutex

	conns        sync.WaitGroup
	acceptDone   chan struct{}
	done         chan struct{}
	shutdownOnce sync.Once

	fatalMu  sync.Mutex
	fatalErr error
}

// New creates a daemon. Call Run to start serving.
func New(opts Options, logger *logging.Logger) *Daemon {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		opts:       opts,
		logger:     logger.Named("daemon"),
		metrics:    NewMetrics(logger.Underlying()),
		acceptDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
	d.state.Store(int32(StateUnstarted))
	return d
}

// State returns the current lifecycle state.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

// Status is a point-in-time health snapshot, the same facts the status
// op serves on the socket.
type Status struct {
	State       string
	Model       string
	AnchorCount int
	UptimeMS    int64
}

// Status reports the daemon's health snapshot.
func (d *Daemon) Status() Status {
	state := d.State()
	st := Status{
		State:    state.String(),
		Model:    d.opts.Embedding.Model,
		UptimeMS: d.uptime().Milliseconds(),
	}
	// d.set is written during load; observing StateReady orders that
	// write before this read.
	if state == StateReady {
		st.AnchorCount = d.set.Count()
	}
	return st
}

// uptime returns zero before Run binds the socket.
func (d *Daemon) uptime() time.Duration {
	ns := d.startedAt.Load()
	if ns == 0 {
		return 0
	}
	return time.Since(time.Unix(0, ns))
}

// Run binds the socket, loads the model and anchors, and serves until
// the context is canceled, the idle timeout fires, or an embedding
// failure forces a shutdown. Load failures are returned to the caller;
// by then the socket has already been answering "not ready".
func (d *Daemon) Run(ctx context.Context) error {
	if socketDialable(d.opts.SocketPath, 250*time.Millisecond) {
		return ErrAlreadyRunning
	}
	if _, err := os.Stat(d.opts.SocketPath); err == nil {
		d.logger.Warn(ctx, "removing stale socket", zap.String("path", d.opts.SocketPath))
		if err := os.Remove(d.opts.SocketPath); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", d.opts.SocketPath)
	if err != nil {
		return fmt.Errorf("bind socket: %w", err)
	}
	d.listener = ln
	d.startedAt.Store(time.Now().UnixNano())
	d.touch()
	d.limiter = rate.NewLimiter(rate.Limit(d.opts.RatePerSecond), d.opts.RateBurst)
	d.state.Store(int32(StateLoading))

	// Serve before loading: requests during the model load get an
	// immediate "not ready" frame instead of queueing.
	go d.acceptLoop(ctx)

	if err := WritePIDFile(d.opts.PIDFile); err != nil {
		d.teardown(ctx)
		return err
	}

	d.logger.Info(ctx, "loading model and anchors",
		zap.String("socket", d.opts.SocketPath),
		zap.String("model", d.opts.Embedding.Model),
	)
	if err := d.load(ctx); err != nil {
		d.teardown(ctx)
		return err
	}
	d.state.Store(int32(StateReady))
	d.logger.Info(ctx, "daemon ready",
		zap.Int("anchors", d.set.Count()),
		zap.Int("dimension", d.set.Dimension()),
		zap.Duration("load_time", d.uptime()),
	)

	if d.opts.IdleTimeout > 0 {
		go d.idleWatchdog(ctx)
	}

	select {
	case <-ctx.Done():
		d.logger.Info(ctx, "shutdown signal received")
	case <-d.done:
	}

	d.teardown(ctx)
	return d.fatalError()
}

// load builds the embedding provider, the anchor set, and the
// classifier. Any error here is fatal to startup.
func (d *Daemon) load(ctx context.Context) error {
	factory := d.opts.ProviderFactory
	if factory == nil {
		factory = func(ctx context.Context) (embeddings.Provider, error) {
			return embeddings.New(ctx, d.opts.Embedding)
		}
	}

	provider, err := factory(ctx)
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}
	model := d.opts.Embedding.Model
	if model == "" {
		model = embeddings.DefaultModel
	}
	metrics := embeddings.NewMetrics(d.logger.Underlying())
	d.provider = embeddings.Instrumented(provider, metrics, model)

	var set *anchors.Set
	if d.opts.AnchorsPath != "" {
		set, err = anchors.Load(d.opts.AnchorsPath)
	} else {
		set, err = anchors.Default()
	}
	if err != nil {
		return fmt.Errorf("anchor catalog: %w", err)
	}
	if err := set.ComputeVectors(ctx, d.provider); err != nil {
		return fmt.Errorf("anchor vectors: %w", err)
	}
	d.set = set

	cls, err := classifier.New(set, d.opts.Classifier)
	if err != nil {
		return err
	}
	d.cls = cls
	return nil
}

// initiateShutdown asks Run to stop. Safe to call more than once.
func (d *Daemon) initiateShutdown() {
	d.shutdownOnce.Do(func() { close(d.done) })
}

// fail records the first fatal error and initiates shutdown.
func (d *Daemon) fail(err error) {
	d.fatalMu.Lock()
	if d.fatalErr == nil {
		d.fatalErr = err
	}
	d.fatalMu.Unlock()
	d.initiateShutdown()
}

func (d *Daemon) fatalError() error {
	d.fatalMu.Lock()
	defer d.fatalMu.Unlock()
	return d.fatalErr
}

// teardown stops the listener, drains connections, and removes the
// liveness markers. Closing the Unix listener unlinks the socket file.
func (d *Daemon) teardown(ctx context.Context) {
	d.state.Store(int32(StateStopped))
	d.initiateShutdown()
	_ = d.listener.Close()
	<-d.acceptDone

	if !waitTimeout(&d.conns, connDrainTimeout) {
		d.logger.Warn(ctx, "abandoning connections still in flight after drain timeout")
	}

	if d.provider != nil {
		if err := d.provider.Close(); err != nil {
			d.logger.Warn(ctx, "failed to close embedding provider", zap.Error(err))
		}
	}
	if err := RemovePIDFile(d.opts.PIDFile); err != nil {
		d.logger.Warn(ctx, "failed to remove pid file", zap.Error(err))
	}
	d.logger.Info(ctx, "daemon stopped", zap.Duration("uptime", d.uptime()))
}

// touch records request activity for the idle watchdog.
func (d *Daemon) touch() {
	d.lastActivity.Store(time.Now().UnixNano())
}

// idleWatchdog exits the daemon after IdleTimeout without requests.
func (d *Daemon) idleWatchdog(ctx context.Context) {
	tick := d.opts.IdleTimeout / 10
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	if tick > 30*time.Second {
		tick = 30 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case <-ticker.C:
			idle := time.Since(time.Unix(0, d.lastActivity.Load()))
			if idle >= d.opts.IdleTimeout {
				d.logger.Info(ctx, "idle timeout reached, exiting", zap.Duration("idle", idle))
				d.initiateShutdown()
				return
			}
		}
	}
}

// socketDialable reports whether something is accepting on the socket.
func socketDialable(path string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// waitTimeout waits on wg or gives up after timeout.
func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
