// Package main implements the reflectctl CLI for classifying text,
// capturing learnings, and managing the reflectd daemon.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/reflectd/internal/client"
	"github.com/fyrsmithlabs/reflectd/internal/config"
	"github.com/fyrsmithlabs/reflectd/internal/logging"
)

var (
	// configPath overrides the default config file location
	configPath string
	// socketPath overrides the daemon socket from config
	socketPath string
	// verbose enables debug logging to stderr
	verbose bool
	// version information
	version = "dev"
)

// Lipgloss styles shared across commands.
var (
	healthyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reflectctl",
	Short: "CLI for the reflectd classification daemon",
	Long: `reflectctl classifies text, captures learnings into the local queue,
scans session transcripts, and manages the reflectd daemon lifecycle.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/reflectd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "daemon socket path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
}

// loadConfig loads the application config and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	if socketPath != "" {
		cfg.Daemon.SocketPath = socketPath
	}
	return cfg, nil
}

// newLogger returns a silent logger unless --verbose is set. CLI output
// belongs on stdout; logs would pollute hook and pipe consumers.
func newLogger() *logging.Logger {
	if !verbose {
		return logging.NewNop()
	}
	cfg, err := logging.NewConfig("debug", "console")
	if err != nil {
		return logging.NewNop()
	}
	logger, err := logging.NewLogger(cfg, nil)
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func newClient(cfg *config.Config, logger *logging.Logger) *client.Client {
	opts := client.FromConfig(cfg)
	// A spawned daemon loads its own config; hand it the same file so
	// model, PID file, and timeouts line up with what this CLI loaded.
	if configPath != "" {
		opts.DaemonArgs = append(opts.DaemonArgs, "-config", configPath)
	}
	return client.New(opts, logger)
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// categoryBadge styles a category label by its learning value.
func categoryBadge(cat string) string {
	switch cat {
	case "correction", "guardrail", "positive":
		return healthyStyle.Render(cat)
	case "unknown":
		return warningStyle.Render(cat)
	default:
		return dimStyle.Render(cat)
	}
}

func warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "reflectctl: "+format+"\n", args...)
}
