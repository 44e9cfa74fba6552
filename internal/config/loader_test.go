package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/reflectd/internal/embeddings"
)

// setupTestHome points HOME at a temp directory so path validation and
// home-derived defaults stay inside the test sandbox.
func setupTestHome(t *testing.T) string {
	t.Helper()
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	return tmpHome
}

func writeTestConfig(t *testing.T, home, content string) string {
	t.Helper()
	configDir := filepath.Join(home, ".config", "reflectd")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	setupTestHome(t)

	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	if !strings.HasSuffix(cfg.Daemon.SocketPath, "reflectd.sock") {
		t.Errorf("SocketPath = %q, want */reflectd.sock", cfg.Daemon.SocketPath)
	}
	if !strings.HasSuffix(cfg.Daemon.PIDFile, filepath.Join("reflectd", "reflectd.pid")) {
		t.Errorf("PIDFile = %q, want */reflectd/reflectd.pid", cfg.Daemon.PIDFile)
	}
	if cfg.Daemon.IdleTimeout != 60*time.Minute {
		t.Errorf("IdleTimeout = %v, want 60m", cfg.Daemon.IdleTimeout)
	}
	if cfg.Daemon.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.Daemon.RequestTimeout)
	}
	if cfg.Client.Timeout != 75*time.Millisecond {
		t.Errorf("Client.Timeout = %v, want 75ms", cfg.Client.Timeout)
	}
	if cfg.Embedding.Model != embeddings.DefaultModel {
		t.Errorf("Embedding.Model = %q, want %q", cfg.Embedding.Model, embeddings.DefaultModel)
	}
	if cfg.Classifier.MinScore != 0.55 {
		t.Errorf("MinScore = %v, want 0.55", cfg.Classifier.MinScore)
	}
	if cfg.Classifier.Epsilon != 0.02 {
		t.Errorf("Epsilon = %v, want 0.02", cfg.Classifier.Epsilon)
	}
	if !cfg.Capture.RedactSecrets {
		t.Error("RedactSecrets = false, want true by default")
	}
	if cfg.Capture.DedupThreshold != 0.92 {
		t.Errorf("DedupThreshold = %v, want 0.92", cfg.Capture.DedupThreshold)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
	if cfg.Telemetry.Enabled {
		t.Error("Telemetry.Enabled = true, want disabled by default")
	}
	if cfg.Admin.Enabled {
		t.Error("Admin.Enabled = true, want disabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config fails validation: %v", err)
	}
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}
	if cfg.Client.Timeout != 75*time.Millisecond {
		t.Errorf("Client.Timeout = %v, want default 75ms", cfg.Client.Timeout)
	}
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	home := setupTestHome(t)

	configPath := writeTestConfig(t, home, `daemon:
  socket_path: /tmp/custom-reflectd.sock
  idle_timeout: 90m

classifier:
  min_score: 0.70

capture:
  redact_secrets: false
`)

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}

	if cfg.Daemon.SocketPath != "/tmp/custom-reflectd.sock" {
		t.Errorf("SocketPath = %q, want /tmp/custom-reflectd.sock", cfg.Daemon.SocketPath)
	}
	if cfg.Daemon.IdleTimeout != 90*time.Minute {
		t.Errorf("IdleTimeout = %v, want 90m", cfg.Daemon.IdleTimeout)
	}
	if cfg.Classifier.MinScore != 0.70 {
		t.Errorf("MinScore = %v, want 0.70", cfg.Classifier.MinScore)
	}
	// Explicit false must override the true default.
	if cfg.Capture.RedactSecrets {
		t.Error("RedactSecrets = true, want explicit false from file")
	}
	// Untouched sections keep defaults.
	if cfg.Classifier.Epsilon != 0.02 {
		t.Errorf("Epsilon = %v, want default 0.02", cfg.Classifier.Epsilon)
	}
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	home := setupTestHome(t)

	configPath := writeTestConfig(t, home, `classifier:
  min_score: 0.70
`)

	t.Setenv("REFLECTD_CLASSIFIER_MIN_SCORE", "0.80")
	t.Setenv("REFLECTD_DAEMON_SOCKET_PATH", "/tmp/env-reflectd.sock")
	t.Setenv("REFLECTD_CLIENT_TIMEOUT", "120ms")

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}

	if cfg.Classifier.MinScore != 0.80 {
		t.Errorf("MinScore = %v, want env override 0.80", cfg.Classifier.MinScore)
	}
	if cfg.Daemon.SocketPath != "/tmp/env-reflectd.sock" {
		t.Errorf("SocketPath = %q, want env override", cfg.Daemon.SocketPath)
	}
	if cfg.Client.Timeout != 120*time.Millisecond {
		t.Errorf("Client.Timeout = %v, want 120ms", cfg.Client.Timeout)
	}
}

func TestLoadWithFile_RejectsInsecurePermissions(t *testing.T) {
	home := setupTestHome(t)

	configDir := filepath.Join(home, ".config", "reflectd")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: info\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := LoadWithFile(configPath); err == nil {
		t.Fatal("expected error for world-readable config file")
	}
}

func TestLoadWithFile_RejectsPathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)

	outside := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(outside, []byte("logging:\n  level: info\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := LoadWithFile(outside); err == nil {
		t.Fatal("expected error for config path outside allowed directories")
	}
}

func TestLoadWithFile_RejectsOversizeFile(t *testing.T) {
	home := setupTestHome(t)

	big := append([]byte("anchors:\n  path: "), bytes.Repeat([]byte("x"), maxConfigFileSize)...)
	configDir := filepath.Join(home, ".config", "reflectd")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, big, 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := LoadWithFile(configPath); err == nil {
		t.Fatal("expected error for oversize config file")
	}
}

func TestValidate_Errors(t *testing.T) {
	setupTestHome(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty socket path", func(c *Config) { c.Daemon.SocketPath = "" }},
		{"negative idle timeout", func(c *Config) { c.Daemon.IdleTimeout = -time.Minute }},
		{"zero request timeout", func(c *Config) { c.Daemon.RequestTimeout = 0 }},
		{"zero rate", func(c *Config) { c.Daemon.RatePerSecond = 0 }},
		{"zero client timeout", func(c *Config) { c.Client.Timeout = 0 }},
		{"poll longer than wait", func(c *Config) { c.Client.SpawnPoll = c.Client.SpawnWait }},
		{"empty model", func(c *Config) { c.Embedding.Model = "" }},
		{"min score too high", func(c *Config) { c.Classifier.MinScore = 1.0 }},
		{"epsilon too large", func(c *Config) { c.Classifier.Epsilon = 0.6 }},
		{"zero dedup threshold", func(c *Config) { c.Capture.DedupThreshold = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "text" }},
		{"telemetry without protocol", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Protocol = "udp"
		}},
		{"admin on all interfaces", func(c *Config) {
			c.Admin.Enabled = true
			c.Admin.Addr = "0.0.0.0:9148"
		}},
		{"admin on lan address", func(c *Config) {
			c.Admin.Enabled = true
			c.Admin.Addr = "192.168.1.5:9148"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			if err != nil {
				t.Fatalf("Default() error = %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidateLoopbackAddr(t *testing.T) {
	valid := []string{"127.0.0.1:9148", "localhost:9148", "[::1]:9148"}
	for _, addr := range valid {
		if err := validateLoopbackAddr(addr); err != nil {
			t.Errorf("validateLoopbackAddr(%q) = %v, want nil", addr, err)
		}
	}

	invalid := []string{"0.0.0.0:9148", "192.168.1.5:9148", "example.com:9148", "no-port"}
	for _, addr := range invalid {
		if err := validateLoopbackAddr(addr); err == nil {
			t.Errorf("validateLoopbackAddr(%q) = nil, want error", addr)
		}
	}
}
