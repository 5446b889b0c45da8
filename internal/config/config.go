package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the agent
type Config struct {
	// Source
	MetricDir  string `yaml:"metric_dir"`
	MetricFile string `yaml:"metric_file"`

	// Tailing
	StatePath      string        `yaml:"state_path"`
	StartPosition  int64         `yaml:"start_position"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	CheckThreshold int           `yaml:"check_threshold"`
	Watch          bool          `yaml:"watch"` // Wake on file writes instead of waiting the full poll interval

	// Self metrics
	SampleRate   float64       `yaml:"sample_rate"`
	EmitInterval time.Duration `yaml:"emit_interval"`

	// Observability
	LogLevel string        `yaml:"log_level"`
	LogFile  string        `yaml:"log_file"`
	Tracing  TracingConfig `yaml:"tracing"`

	// ClickHouse progress mirror
	Mirror MirrorConfig `yaml:"mirror"`
}

// TracingConfig configures the OTLP trace exporter
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"`
}

// MirrorConfig configures mirroring of reading progress to ClickHouse
type MirrorConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Database      string        `yaml:"database"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
}

// ErrHelp is returned by Load when usage was requested
var ErrHelp = pflag.ErrHelp

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		MetricDir:      "/var/log/application/json_metrics",
		MetricFile:     "/var/log/application/json_metrics/json_metrics.log",
		StatePath:      "/var/run/autometrics.position",
		StartPosition:  0,
		PollInterval:   time.Second,
		CheckThreshold: 5,
		SampleRate:     0.1,
		LogLevel:       "info",
		Tracing: TracingConfig{
			Protocol: "grpc",
		},
		Mirror: MirrorConfig{
			Host:          "localhost",
			Port:          9000,
			Database:      "logs",
			Username:      "default",
			Interval:      10 * time.Second,
			RetentionDays: 30,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// AUTOMETRICS_* environment variables and command-line flags, in that order.
func Load(args []string) (*Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg := Default()

	path := getEnv("AUTOMETRICS_CONFIG", "")
	if fs.Changed("config") {
		path, _ = fs.GetString("config")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.applyFlags(fs); err != nil {
		return nil, err
	}
	cfg.deriveMetricDir()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Usage returns the flag help text
func Usage() string {
	return newFlagSet().FlagUsages()
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("autometrics", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.String("config", "", "path to YAML config file")
	fs.String("dir", "", "directory holding the metric log")
	fs.String("file", "", "metric log file to follow")
	fs.String("state", "", "path to the position state database")
	fs.Int64("start-position", 0, "0 resumes from saved state, negative counts back from end, positive is a byte offset")
	fs.Duration("poll-interval", 0, "wait between empty reads")
	fs.Int("check-threshold", 0, "empty reads before checking for rotation")
	fs.Float64("sample-rate", 0, "probability that a line triggers a self metrics report")
	fs.Duration("emit-interval", 0, "report self metrics at least this often (0 disables)")
	fs.Bool("watch", false, "wake on file system events")
	fs.String("log-level", "", "debug, info, warn, error")
	fs.String("log-file", "", "also write diagnostics to this file")
	fs.Bool("tracing", false, "export OpenTelemetry traces")
	fs.Bool("mirror", false, "mirror reading progress to ClickHouse")

	return fs
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.MetricDir = getEnv("AUTOMETRICS_METRIC_DIR", c.MetricDir)
	c.MetricFile = getEnv("AUTOMETRICS_METRIC_FILE", c.MetricFile)
	c.StatePath = getEnv("AUTOMETRICS_STATE_PATH", c.StatePath)
	c.StartPosition = getEnvInt64("AUTOMETRICS_START_POSITION", c.StartPosition)
	c.PollInterval = getEnvDuration("AUTOMETRICS_POLL_INTERVAL", c.PollInterval)
	c.CheckThreshold = getEnvInt("AUTOMETRICS_CHECK_THRESHOLD", c.CheckThreshold)
	c.Watch = getEnvBool("AUTOMETRICS_WATCH", c.Watch)

	c.SampleRate = getEnvFloat("AUTOMETRICS_SAMPLE_RATE", c.SampleRate)
	c.EmitInterval = getEnvDuration("AUTOMETRICS_EMIT_INTERVAL", c.EmitInterval)

	c.LogLevel = getEnv("AUTOMETRICS_LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("AUTOMETRICS_LOG_FILE", c.LogFile)
	c.Tracing.Enabled = getEnvBool("AUTOMETRICS_TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnv("AUTOMETRICS_OTLP_ENDPOINT", c.Tracing.Endpoint)
	c.Tracing.Protocol = getEnv("AUTOMETRICS_OTLP_PROTOCOL", c.Tracing.Protocol)

	c.Mirror.Enabled = getEnvBool("AUTOMETRICS_OFFSET_MIRROR", c.Mirror.Enabled)
	c.Mirror.Host = getEnv("AUTOMETRICS_CLICKHOUSE_HOST", c.Mirror.Host)
	c.Mirror.Port = getEnvInt("AUTOMETRICS_CLICKHOUSE_PORT", c.Mirror.Port)
	c.Mirror.Database = getEnv("AUTOMETRICS_CLICKHOUSE_DB", c.Mirror.Database)
	c.Mirror.Username = getEnv("AUTOMETRICS_CLICKHOUSE_USER", c.Mirror.Username)
	c.Mirror.Password = getEnv("AUTOMETRICS_CLICKHOUSE_PASSWORD", c.Mirror.Password)
	c.Mirror.Interval = getEnvDuration("AUTOMETRICS_MIRROR_INTERVAL", c.Mirror.Interval)
	c.Mirror.RetentionDays = getEnvInt("AUTOMETRICS_LOG_RETENTION_DAYS", c.Mirror.RetentionDays)
}

func (c *Config) applyFlags(fs *pflag.FlagSet) error {
	var errs []error
	fs.Visit(func(f *pflag.Flag) {
		var err error
		switch f.Name {
		case "dir":
			c.MetricDir, err = fs.GetString(f.Name)
		case "file":
			c.MetricFile, err = fs.GetString(f.Name)
		case "state":
			c.StatePath, err = fs.GetString(f.Name)
		case "start-position":
			c.StartPosition, err = fs.GetInt64(f.Name)
		case "poll-interval":
			c.PollInterval, err = fs.GetDuration(f.Name)
		case "check-threshold":
			c.CheckThreshold, err = fs.GetInt(f.Name)
		case "sample-rate":
			c.SampleRate, err = fs.GetFloat64(f.Name)
		case "emit-interval":
			c.EmitInterval, err = fs.GetDuration(f.Name)
		case "watch":
			c.Watch, err = fs.GetBool(f.Name)
		case "log-level":
			c.LogLevel, err = fs.GetString(f.Name)
		case "log-file":
			c.LogFile, err = fs.GetString(f.Name)
		case "tracing":
			c.Tracing.Enabled, err = fs.GetBool(f.Name)
		case "mirror":
			c.Mirror.Enabled, err = fs.GetBool(f.Name)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("flag --%s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// deriveMetricDir points the source directory at the file's directory when
// only the file was moved away from the default
func (c *Config) deriveMetricDir() {
	d := Default()
	if c.MetricFile != d.MetricFile && c.MetricDir == d.MetricDir {
		c.MetricDir = filepath.Dir(c.MetricFile)
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.MetricFile == "" {
		return fmt.Errorf("metric file is required")
	}
	if c.StatePath == "" {
		return fmt.Errorf("state path is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.CheckThreshold < 1 {
		return fmt.Errorf("check threshold must be at least 1")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample rate must be between 0 and 1")
	}
	if c.EmitInterval < 0 {
		return fmt.Errorf("emit interval must not be negative")
	}
	switch c.Tracing.Protocol {
	case "grpc", "http":
	default:
		return fmt.Errorf("tracing protocol must be grpc or http")
	}
	if c.Mirror.Enabled {
		if c.Mirror.Host == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required when mirroring")
		}
		if c.Mirror.Port <= 0 || c.Mirror.Port > 65535 {
			return fmt.Errorf("CLICKHOUSE_PORT must be between 1 and 65535")
		}
		if c.Mirror.Database == "" {
			return fmt.Errorf("CLICKHOUSE_DB is required when mirroring")
		}
		if c.Mirror.RetentionDays < 1 {
			return fmt.Errorf("LOG_RETENTION_DAYS must be at least 1")
		}
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
