package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/atom/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "atomctl.yaml"

	// ConfigFileNameJSON is read when ConfigFileName does not exist.
	ConfigFileNameJSON = "atomctl.json"

	// DefaultAddr is the default inspector listen address.
	DefaultAddr = ":7070"

	// DefaultQueueSize is the default loop queue capacity.
	DefaultQueueSize = 256

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "atomctl"

	EnvAddr     = "ATOMCTL_ADDR"
	EnvLogLevel = "ATOMCTL_LOG_LEVEL"
)

// Config represents atomctl.yaml.
type Config struct {
	Serve   ServeConfig   `yaml:"serve" json:"serve"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServeConfig configures atomctl serve.
type ServeConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr" json:"addr"`

	// WriteTimeout bounds each WebSocket frame write.
	WriteTimeout time.Duration `yaml:"writeTimeout" json:"writeTimeout"`
}

// LogConfig configures the logger.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level" json:"level"`

	// Format is text or json.
	Format string `yaml:"format" json:"format"`
}

// StoreConfig configures the atom store.
type StoreConfig struct {
	// PrimitiveEviction drops primitive atom state once unmounted.
	PrimitiveEviction bool `yaml:"primitiveEviction" json:"primitiveEviction"`

	// QueueSize is the loop request queue capacity.
	QueueSize int `yaml:"queueSize" json:"queueSize"`
}

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// TracingConfig configures the OpenTelemetry observer.
type TracingConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	TracerName string `yaml:"tracerName" json:"tracerName"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Serve: ServeConfig{
			Addr:         DefaultAddr,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			QueueSize: DefaultQueueSize,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
		},
		Tracing: TracingConfig{
			TracerName: "atomctl",
		},
	}
}

// Load reads configuration from dir. It looks for atomctl.yaml, then
// atomctl.json. A directory without either yields the defaults. Environment
// overrides are applied in every case.
func Load(dir string) (*Config, error) {
	for _, name := range []string{ConfigFileName, ConfigFileNameJSON} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	cfg := New()
	cfg.applyEnv()
	return cfg, nil
}

// LoadFile reads configuration from path. JSON files are accepted since
// they are valid YAML.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("AT401").
				WithDetail("No config file at " + path)
		}
		return nil, errors.New("AT301").Wrap(err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("AT301").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check the file against the layout in 'atomctl help'")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Serve.Addr == "" {
		c.Serve.Addr = DefaultAddr
	}
	if c.Serve.WriteTimeout == 0 {
		c.Serve.WriteTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.QueueSize == 0 {
		c.Store.QueueSize = DefaultQueueSize
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = "atomctl"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Serve.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return errors.New("AT302").
			WithDetail("log.level must be debug, info, warn or error, got " + c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("AT302").
			WithDetail("log.format must be text or json, got " + c.Log.Format)
	}
	if c.Store.QueueSize < 0 {
		return errors.New("AT302").
			WithDetail("store.queueSize must not be negative")
	}
	if c.Serve.WriteTimeout < 0 {
		return errors.New("AT302").
			WithDetail("serve.writeTimeout must not be negative")
	}
	return nil
}

// Level parses Log.Level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.ToUpper(c.Log.Level)))
	return level, err
}

// Logger builds a logger writing to w in the configured format and level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
