package config

import "time"

// Config holds the complete reflectd configuration.
type Config struct {
	Daemon     DaemonConfig     `koanf:"daemon"`
	Client     ClientConfig     `koanf:"client"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Anchors    AnchorsConfig    `koanf:"anchors"`
	Capture    CaptureConfig    `koanf:"capture"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Admin      AdminConfig      `koanf:"admin"`
}

// DaemonConfig holds daemon lifecycle and serving configuration.
type DaemonConfig struct {
	// SocketPath is the Unix socket the daemon listens on. Defaults to
	// reflectd.sock under the OS temp directory so daemon and clients
	// find each other with zero configuration.
	SocketPath string `koanf:"socket_path"`

	// PIDFile is the liveness marker written at startup and removed on
	// clean shutdown. Defaults to ~/.config/reflectd/reflectd.pid.
	PIDFile string `koanf:"pid_file"`

	// IdleTimeout exits the daemon after this long without a request.
	// Zero disables idle exit.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// RequestTimeout is the per-connection I/O deadline.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RatePerSecond and RateBurst bound request intake; excess requests
	// get a "busy" error frame instead of queueing behind the model.
	RatePerSecond float64 `koanf:"rate_per_second"`
	RateBurst     int     `koanf:"rate_burst"`
}

// ClientConfig holds daemon client configuration.
type ClientConfig struct {
	// Timeout bounds a classify round trip, connect and read combined.
	// Kept small: callers sit on the hot path of an interactive tool.
	Timeout time.Duration `koanf:"timeout"`

	// SpawnWait is how long Ensure waits for a freshly spawned daemon
	// to come up; SpawnPoll is the dial retry period while waiting.
	SpawnWait time.Duration `koanf:"spawn_wait"`
	SpawnPoll time.Duration `koanf:"spawn_poll"`
}

// EmbeddingConfig holds embedding model configuration.
type EmbeddingConfig struct {
	// Model is the embedding model name. Must appear in the embedding
	// provider's dimension table.
	Model string `koanf:"model"`

	// CacheDir is the model cache directory. Empty means the provider
	// default (~/.cache/reflectd/models).
	CacheDir string `koanf:"cache_dir"`

	// MaxLength is the token truncation length for model input.
	MaxLength int `koanf:"max_length"`
}

// ClassifierConfig holds similarity classifier tuning.
type ClassifierConfig struct {
	// MinScore is the similarity floor below which the winner is
	// discarded in favor of not_learning.
	MinScore float64 `koanf:"min_score"`

	// Epsilon is the tie-break window within which the more
	// conservative category wins.
	Epsilon float64 `koanf:"epsilon"`
}

// AnchorsConfig points at an anchor catalog override.
type AnchorsConfig struct {
	// Path is a YAML anchor file. Empty uses the embedded catalog.
	Path string `koanf:"path"`
}

// CaptureConfig holds capture pipeline configuration.
type CaptureConfig struct {
	// QueuePath is the learning queue file. Defaults to
	// ~/.config/reflectd/queue.json.
	QueuePath string `koanf:"queue_path"`

	// RedactSecrets scrubs detected secrets from captured text before
	// it is persisted.
	RedactSecrets bool `koanf:"redact_secrets"`

	// DedupThreshold is the cosine similarity at or above which a new
	// capture is considered a duplicate of an existing queue item.
	DedupThreshold float64 `koanf:"dedup_threshold"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`
}

// TelemetryConfig holds OTLP export configuration. Disabled by default;
// nothing leaves the machine unless an endpoint is configured.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`

	// Endpoint is the OTLP collector endpoint, host:port.
	Endpoint string `koanf:"endpoint"`

	// Protocol is grpc or http.
	Protocol string `koanf:"protocol"`

	// Insecure disables TLS toward the collector (loopback default).
	Insecure bool `koanf:"insecure"`
}

// AdminConfig holds the optional loopback admin endpoint.
type AdminConfig struct {
	Enabled bool `koanf:"enabled"`

	// Addr must resolve to a loopback address.
	Addr string `koanf:"addr"`
}
