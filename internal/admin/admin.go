// Package admin serves the optional loopback admin endpoint: a health
// snapshot for humans and a Prometheus scrape target. It is never
// enabled by default and refuses to bind anywhere but loopback.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reflectd/internal/logging"
)

// ErrNotLoopback rejects admin addresses that would expose the endpoint
// beyond the local machine.
var ErrNotLoopback = errors.New("admin address is not loopback")

// Status is the health snapshot served at /healthz.
type Status struct {
	State       string `json:"state"`
	Model       string `json:"model"`
	AnchorCount int    `json:"anchor_count"`
	UptimeMS    int64  `json:"uptime_ms"`
}

// StatusFunc supplies the live daemon status.
type StatusFunc func() Status

// Options configures the admin server.
type Options struct {
	// Addr is the listen address. Must resolve to loopback.
	Addr string

	// Status supplies /healthz. Required.
	Status StatusFunc
}

// Server is the loopback admin endpoint.
type Server struct {
	echo   *echo.Echo
	opts   Options
	logger *logging.Logger
}

// statusSource feeds the registered gauges. Prometheus collectors live in
// the default registry and can only be registered once per process, so
// the gauges read through this pointer and New swaps it.
var (
	metricsOnce  sync.Once
	statusSource atomic.Pointer[StatusFunc]
)

// New builds the admin server without binding it.
func New(opts Options, logger *logging.Logger) (*Server, error) {
	if opts.Status == nil {
		return nil, errors.New("admin: status func is required")
	}
	if err := checkLoopback(opts.Addr); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	statusSource.Store(&opts.Status)
	registerMetrics()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{echo: e, opts: opts, logger: logger.Named("admin")}
	e.GET("/healthz", s.handleHealthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s, nil
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a
// clean shutdown, matching net/http semantics.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info(ctx, "admin endpoint listening", zap.String("addr", s.opts.Addr))
	return s.echo.Start(s.opts.Addr)
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "admin endpoint shutting down")
	return s.echo.Shutdown(ctx)
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.echo.ListenerAddr()
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, s.opts.Status())
}

func registerMetrics() {
	metricsOnce.Do(func() {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "reflectd_ready",
			Help: "1 when the daemon is ready to serve classifications",
		}, func() float64 {
			if f := statusSource.Load(); f != nil && (*f)().State == "ready" {
				return 1
			}
			return 0
		})

		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "reflectd_anchor_count",
			Help: "Number of anchors loaded into the classifier",
		}, func() float64 {
			if f := statusSource.Load(); f != nil {
				return float64((*f)().AnchorCount)
			}
			return 0
		})
	})
}

func checkLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid admin address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%w: %s", ErrNotLoopback, addr)
	}
	return nil
}
