// Package config provides configuration loading for reflectd.
//
// Configuration is layered: hardcoded defaults, then an optional YAML
// file, then REFLECTD_* environment variables. Every component must
// work with an absent config file; the defaults are chosen so daemon
// and clients find each other with zero configuration.
package config

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// defaultsYAML is the bottom configuration layer. Paths that depend on
// the home directory are filled in by applyDefaults instead.
const defaultsYAML = `
daemon:
  idle_timeout: 60m
  request_timeout: 5s
  rate_per_second: 25
  rate_burst: 50
client:
  timeout: 75ms
  spawn_wait: 10s
  spawn_poll: 300ms
embedding:
  model: sentence-transformers/all-MiniLM-L6-v2
  max_length: 512
classifier:
  min_score: 0.55
  epsilon: 0.02
capture:
  redact_secrets: true
  dedup_threshold: 0.92
logging:
  level: info
  format: json
telemetry:
  enabled: false
  service_name: reflectd
  protocol: grpc
  insecure: true
admin:
  enabled: false
  addr: 127.0.0.1:9148
`

// LoadWithFile loads configuration from a YAML file, then overrides
// with environment variables.
//
// Precedence (highest to lowest):
//  1. REFLECTD_* environment variables (REFLECTD_DAEMON_SOCKET_PATH,
//     REFLECTD_CLASSIFIER_MIN_SCORE, ...)
//  2. YAML config file (default ~/.config/reflectd/config.yaml)
//  3. Hardcoded defaults
//
// A missing file is not an error. When the file exists it must live
// under ~/.config/reflectd/ or /etc/reflectd/, be at most 1MB, and
// carry 0600 or 0400 permissions.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaultsYAML)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if configPath == "" {
		path, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = path
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the descriptor to avoid a
		// TOCTOU race between the permission check and the read.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// REFLECTD_DAEMON_SOCKET_PATH -> daemon.socket_path: the first
	// underscore after the prefix separates section from field.
	if err := k.Load(env.Provider("REFLECTD_", ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, "REFLECTD_"))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration with no file and no environment
// applied. It cannot fail unless the home directory is undeterminable.
func Default() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(defaultsYAML)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultSocketPath is the zero-config daemon socket location.
func DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), "reflectd.sock")
}

// DefaultConfigPath returns ~/.config/reflectd/config.yaml.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ConfigDir returns ~/.config/reflectd.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "reflectd"), nil
}

// EnsureConfigDir creates ~/.config/reflectd with 0700 permissions.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

// applyDefaults fills home-derived paths that the static defaults
// layer cannot express.
func applyDefaults(cfg *Config) error {
	if cfg.Daemon.SocketPath == "" {
		cfg.Daemon.SocketPath = DefaultSocketPath()
	}

	if cfg.Daemon.PIDFile == "" || cfg.Capture.QueuePath == "" {
		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		if cfg.Daemon.PIDFile == "" {
			cfg.Daemon.PIDFile = filepath.Join(dir, "reflectd.pid")
		}
		if cfg.Capture.QueuePath == "" {
			cfg.Capture.QueuePath = filepath.Join(dir, "queue.json")
		}
	}

	return nil
}

// validateConfigPath checks that path sits in an allowed directory.
// Runs even when the file does not exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so a link cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Path may not exist yet; validate the literal path.
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "reflectd"),
		"/etc/reflectd",
	}

	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir) {
			return nil
		}
	}

	return fmt.Errorf("config file must be in ~/.config/reflectd/ or /etc/reflectd/")
}

// validateConfigFileProperties checks permissions and size on an
// already-opened file.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Daemon.SocketPath == "" {
		return fmt.Errorf("daemon socket path must not be empty")
	}
	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("daemon pid file must not be empty")
	}
	if c.Daemon.IdleTimeout < 0 {
		return fmt.Errorf("daemon idle timeout must not be negative")
	}
	if c.Daemon.RequestTimeout <= 0 {
		return fmt.Errorf("daemon request timeout must be positive")
	}
	if c.Daemon.RatePerSecond <= 0 {
		return fmt.Errorf("daemon rate limit must be positive")
	}
	if c.Daemon.RateBurst < 1 {
		return fmt.Errorf("daemon rate burst must be at least 1")
	}

	if c.Client.Timeout <= 0 {
		return fmt.Errorf("client timeout must be positive")
	}
	if c.Client.SpawnWait <= 0 || c.Client.SpawnPoll <= 0 {
		return fmt.Errorf("client spawn wait and poll must be positive")
	}
	if c.Client.SpawnPoll >= c.Client.SpawnWait {
		return fmt.Errorf("client spawn poll must be shorter than spawn wait")
	}

	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding model must not be empty")
	}
	if c.Embedding.MaxLength <= 0 {
		return fmt.Errorf("embedding max length must be positive")
	}

	if c.Classifier.MinScore < 0 || c.Classifier.MinScore >= 1 {
		return fmt.Errorf("classifier min score must be in [0, 1)")
	}
	if c.Classifier.Epsilon < 0 || c.Classifier.Epsilon > 0.5 {
		return fmt.Errorf("classifier epsilon must be in [0, 0.5]")
	}

	if c.Capture.QueuePath == "" {
		return fmt.Errorf("capture queue path must not be empty")
	}
	if c.Capture.DedupThreshold <= 0 || c.Capture.DedupThreshold > 1 {
		return fmt.Errorf("capture dedup threshold must be in (0, 1]")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.ServiceName == "" {
			return fmt.Errorf("telemetry service name required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
			return fmt.Errorf("telemetry protocol must be grpc or http")
		}
	}

	if c.Admin.Enabled {
		if err := validateLoopbackAddr(c.Admin.Addr); err != nil {
			return fmt.Errorf("admin addr: %w", err)
		}
	}

	return nil
}

// validateLoopbackAddr rejects admin addresses that would expose the
// endpoint beyond the local host.
func validateLoopbackAddr(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid host:port %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%q is not a loopback address", addr)
	}
	return nil
}
