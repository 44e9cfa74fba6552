// Reflectd is the local text classification daemon.
//
// It loads an embedding model once, binds a Unix socket,
// and answers classify, embed, and status frames until a signal or the
// idle timeout stops it. Hook processes normally spawn it on demand
// through the client package; running it by hand is for debugging.
//
// Configuration comes from ~/.config/reflectd/config.yaml and
// REFLECTD_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults
//	reflectd
//
//	# Custom config file
//	reflectd -config /etc/reflectd/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reflectd/internal/admin"
	"github.com/fyrsmithlabs/reflectd/internal/config"
	"github.com/fyrsmithlabs/reflectd/internal/daemon"
	"github.com/fyrsmithlabs/reflectd/internal/logging"
	"github.com/fyrsmithlabs/reflectd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/reflectd/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  reflectd           Start the classification daemon\n")
			fmt.Fprintf(os.Stderr, "  reflectd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			log.Println("Daemon already running, nothing to do")
			return
		}
		log.Fatalf("Daemon error: %v", err)
	}

	log.Println("Daemon shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("reflectd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until shutdown.
//
// This function:
//  1. Loads and validates configuration
//  2. Initializes logger and telemetry
//  3. Starts the optional loopback admin endpoint
//  4. Runs the daemon until context cancellation, idle timeout, or a
//     fatal embedding failure
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg, err := logging.NewConfig(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info(ctx, "starting reflectd",
		zap.String("version", version),
		zap.String("socket", cfg.Daemon.SocketPath),
		zap.String("model", cfg.Embedding.Model),
		zap.Duration("idle_timeout", cfg.Daemon.IdleTimeout),
	)

	tel, err := telemetry.New(ctx, cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	dmn := daemon.New(daemon.FromConfig(cfg), logger)

	if cfg.Admin.Enabled {
		adminSrv, err := admin.New(admin.Options{
			Addr:   cfg.Admin.Addr,
			Status: func() admin.Status { return admin.Status(dmn.Status()) },
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize admin endpoint: %w", err)
		}
		go func() {
			if err := adminSrv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn(ctx, "admin endpoint failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = adminSrv.Shutdown(shutdownCtx)
		}()
	}

	return dmn.Run(ctx)
}
