// Package config loads taskforge.yaml, the configuration shared by the
// worker and plan commands.
//
// Every section is optional. Getters return the default for a missing
// section or field, so callers never check for nil. ${VAR} references in
// the file are expanded from the environment before parsing.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/taskforge/notify"
)

// ErrNoConfig is returned when no config file exists where one was looked for.
var ErrNoConfig = errors.New("no config file found")

// FileNames are the names Load looks for inside a directory, in order.
var FileNames = []string{"taskforge.yaml", "taskforge.yml"}

// Queue backends.
const (
	QueueRedis  = "redis"
	QueueNATS   = "nats"
	QueueMemory = "memory"
)

// Config is the root of taskforge.yaml.
type Config struct {
	Log      *LogConfig         `yaml:"log,omitempty"`
	Queue    *QueueConfig       `yaml:"queue,omitempty"`
	Postgres *PostgresConfig    `yaml:"postgres,omitempty"`
	Tools    *ToolsConfig       `yaml:"tools,omitempty"`
	Workers  *WorkersConfig     `yaml:"workers,omitempty"`
	NVD      *NVDConfig         `yaml:"nvd,omitempty"`
	Mail     *notify.MailConfig `yaml:"mail,omitempty"`
	Telegram *TelegramConfig    `yaml:"telegram,omitempty"`
	Metrics  *MetricsConfig     `yaml:"metrics,omitempty"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info
	Level string `yaml:"level,omitempty"`

	// Format is json or text. Default: json
	Format string `yaml:"format,omitempty"`
}

// GetLevel parses the level, falling back to info.
func (l *LogConfig) GetLevel() slog.Level {
	if l == nil || l.Level == "" {
		return slog.LevelInfo
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// GetFormat returns json or text.
func (l *LogConfig) GetFormat() string {
	if l == nil || !strings.EqualFold(l.Format, "text") {
		return "json"
	}
	return "text"
}

// QueueConfig selects and addresses the queue backend.
type QueueConfig struct {
	// Backend is redis, nats or memory. Default: redis
	Backend string `yaml:"backend,omitempty"`

	// RedisURL. Default: redis://localhost:6379
	RedisURL string `yaml:"redis_url,omitempty"`

	// NATSURL. Default: nats://127.0.0.1:4222
	NATSURL string `yaml:"nats_url,omitempty"`

	// Stream is the JetStream stream name. Default: TASKFORGE
	Stream string `yaml:"stream,omitempty"`
}

// GetBackend returns the backend name, defaulting to redis.
func (q *QueueConfig) GetBackend() string {
	if q == nil || q.Backend == "" {
		return QueueRedis
	}
	return strings.ToLower(q.Backend)
}

// GetRedisURL returns the Redis URL or the default.
func (q *QueueConfig) GetRedisURL() string {
	if q == nil || q.RedisURL == "" {
		return "redis://localhost:6379"
	}
	return q.RedisURL
}

// GetNATSURL returns the NATS URL or the default.
func (q *QueueConfig) GetNATSURL() string {
	if q == nil || q.NATSURL == "" {
		return "nats://127.0.0.1:4222"
	}
	return q.NATSURL
}

// GetStream returns the stream name or the default.
func (q *QueueConfig) GetStream() string {
	if q == nil || q.Stream == "" {
		return "TASKFORGE"
	}
	return q.Stream
}

// PostgresConfig addresses the database. Without a DSN the in-memory
// store is used.
type PostgresConfig struct {
	DSN string `yaml:"dsn,omitempty"`

	// Migrate applies the schema at startup.
	Migrate bool `yaml:"migrate,omitempty"`
}

// GetDSN returns the DSN, or "" when Postgres is not configured.
func (p *PostgresConfig) GetDSN() string {
	if p == nil {
		return ""
	}
	return p.DSN
}

// ToolsConfig locates the tool catalog and the report directory.
type ToolsConfig struct {
	// Catalog is the path of the YAML tool catalog. Default: tools.yaml
	Catalog string `yaml:"catalog,omitempty"`

	// ReportDir receives the report files tools write. Default: reports
	ReportDir string `yaml:"report_dir,omitempty"`

	// Timeout bounds a single tool run. Default: 0 (no limit)
	Timeout string `yaml:"timeout,omitempty"`
}

// GetCatalog returns the catalog path or the default.
func (t *ToolsConfig) GetCatalog() string {
	if t == nil || t.Catalog == "" {
		return "tools.yaml"
	}
	return t.Catalog
}

// GetReportDir returns the report directory or the default.
func (t *ToolsConfig) GetReportDir() string {
	if t == nil || t.ReportDir == "" {
		return "reports"
	}
	return t.ReportDir
}

// GetTimeout returns the tool timeout, zero when unset or invalid.
func (t *ToolsConfig) GetTimeout() time.Duration {
	if t == nil {
		return 0
	}
	return parseDuration(t.Timeout, 0)
}

// WorkersConfig sizes and times the consumer pools.
type WorkersConfig struct {
	// ExecutionConcurrency. Default: 4
	ExecutionConcurrency int `yaml:"execution_concurrency,omitempty"`

	// FindingsConcurrency. Default: 2
	FindingsConcurrency int `yaml:"findings_concurrency,omitempty"`

	// ShutdownTimeout. Default: 30s
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty"`

	// HeartbeatInterval. Default: 10s
	HeartbeatInterval string `yaml:"heartbeat_interval,omitempty"`

	// PopTimeout. Default: 5s
	PopTimeout string `yaml:"pop_timeout,omitempty"`
}

// GetExecutionConcurrency returns the execution pool size or the default.
func (w *WorkersConfig) GetExecutionConcurrency() int {
	if w == nil || w.ExecutionConcurrency <= 0 {
		return 4
	}
	return w.ExecutionConcurrency
}

// GetFindingsConcurrency returns the findings pool size or the default.
func (w *WorkersConfig) GetFindingsConcurrency() int {
	if w == nil || w.FindingsConcurrency <= 0 {
		return 2
	}
	return w.FindingsConcurrency
}

// GetShutdownTimeout parses the shutdown timeout, defaulting to 30s.
func (w *WorkersConfig) GetShutdownTimeout() time.Duration {
	if w == nil {
		return 30 * time.Second
	}
	return parseDuration(w.ShutdownTimeout, 30*time.Second)
}

// GetHeartbeatInterval parses the heartbeat interval, defaulting to 10s.
func (w *WorkersConfig) GetHeartbeatInterval() time.Duration {
	if w == nil {
		return 10 * time.Second
	}
	return parseDuration(w.HeartbeatInterval, 10*time.Second)
}

// GetPopTimeout parses the pop timeout, defaulting to 5s.
func (w *WorkersConfig) GetPopTimeout() time.Duration {
	if w == nil {
		return 5 * time.Second
	}
	return parseDuration(w.PopTimeout, 5*time.Second)
}

// NVDConfig configures CVE enrichment.
type NVDConfig struct {
	// BaseURL of the CVE API. Default: the NVD 2.0 endpoint
	BaseURL string `yaml:"base_url,omitempty"`

	// RateLimit is the number of requests per second across all workers. Default: 10
	RateLimit int `yaml:"rate_limit,omitempty"`

	// MaxAttempts bounds retries of one lookup. Default: 10
	MaxAttempts int `yaml:"max_attempts,omitempty"`

	// SharedLimiter keeps the rate limit in Redis so every process shares it.
	SharedLimiter bool `yaml:"shared_limiter,omitempty"`

	// Disabled turns enrichment off.
	Disabled bool `yaml:"disabled,omitempty"`
}

// GetRateLimit returns requests per second or the default.
func (n *NVDConfig) GetRateLimit() int {
	if n == nil || n.RateLimit <= 0 {
		return 10
	}
	return n.RateLimit
}

// GetMaxAttempts returns the attempt budget or the default.
func (n *NVDConfig) GetMaxAttempts() int {
	if n == nil || n.MaxAttempts <= 0 {
		return 10
	}
	return n.MaxAttempts
}

// Enabled reports whether enrichment runs.
func (n *NVDConfig) Enabled() bool {
	return n == nil || !n.Disabled
}

// TelegramConfig configures the Telegram sender.
type TelegramConfig struct {
	Token   string `yaml:"token,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address. Empty disables the endpoint.
	Addr string `yaml:"addr,omitempty"`
}

// GetAddr returns the listen address, or "" when disabled.
func (m *MetricsConfig) GetAddr() string {
	if m == nil {
		return ""
	}
	return m.Addr
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// Parse decodes taskforge.yaml content after expanding environment
// variables. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the getters cannot default.
func (c *Config) Validate() error {
	switch c.Queue.GetBackend() {
	case QueueRedis, QueueNATS, QueueMemory:
	default:
		return fmt.Errorf("unknown queue backend %q", c.Queue.Backend)
	}
	if c.Log != nil && c.Log.Level != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
			return fmt.Errorf("invalid log level %q", c.Log.Level)
		}
	}
	if c.NVD != nil && c.NVD.SharedLimiter && c.Queue.GetBackend() != QueueRedis {
		return fmt.Errorf("nvd.shared_limiter requires the redis queue backend")
	}
	return nil
}

// Load reads a config file. If path is a directory, the first of
// FileNames found inside it is used.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		configPath = ""
		for _, name := range FileNames {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
		if configPath == "" {
			return nil, fmt.Errorf("%w: no %s in %s", ErrNoConfig, strings.Join(FileNames, " or "), path)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadFromDir searches dir and its parents for a config file. The first
// file found is returned, or its parse error.
func LoadFromDir(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		cfg, err := Load(absDir)
		if err == nil || !errors.Is(err, ErrNoConfig) {
			return cfg, err
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			return nil, fmt.Errorf("%w in %s or parent directories", ErrNoConfig, dir)
		}
		absDir = parent
	}
}

// NewLogger builds the slog logger described by l.
func (l *LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.GetLevel()}
	if l.GetFormat() == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
