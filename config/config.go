// Package config provides configuration for the flow server and CLI.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	// Listen is the HTTP API address.
	Listen string `yaml:"listen"`
	// PushListen is the websocket push address. Empty disables push.
	PushListen string `yaml:"push_listen"`
	// Driver selects the store: "postgres" or "sqlite".
	Driver string `yaml:"driver"`
	// DatabaseURL is the postgres connection string.
	DatabaseURL string `yaml:"database_url"`
	// SQLitePath is the sqlite database file.
	SQLitePath string `yaml:"sqlite_path"`
	LogLevel   string `yaml:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format"`
	// StrictKinds rejects unknown handle kinds instead of degrading them.
	StrictKinds       bool          `yaml:"strict_kinds"`
	RealtimeInterval  time.Duration `yaml:"realtime_interval"`
	ViewportThreshold float64       `yaml:"viewport_threshold"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:            ":3000",
		PushListen:        ":3001",
		Driver:            "postgres",
		SQLitePath:        "./flow.db",
		LogLevel:          "info",
		LogFormat:         "text",
		RealtimeInterval:  500 * time.Millisecond,
		ViewportThreshold: 0.1,
	}
}

// FromEnv creates a Config from environment variables.
func FromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// Load reads a YAML file over the defaults, then applies environment
// overrides. An empty path is the same as FromEnv.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Listen = getEnv("FLOW_LISTEN", c.Listen)
	c.PushListen = getEnv("FLOW_PUSH_LISTEN", c.PushListen)
	c.Driver = getEnv("FLOW_DRIVER", c.Driver)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.DatabaseURL = getEnv("FLOW_DATABASE_URL", c.DatabaseURL)
	c.SQLitePath = getEnv("FLOW_SQLITE_PATH", c.SQLitePath)
	c.LogLevel = getEnv("FLOW_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("FLOW_LOG_FORMAT", c.LogFormat)
	c.StrictKinds = getEnvBool("FLOW_STRICT_KINDS", c.StrictKinds)
	c.RealtimeInterval = getEnvDuration("FLOW_REALTIME_INTERVAL", c.RealtimeInterval)
	c.ViewportThreshold = getEnvFloat("FLOW_VIEWPORT_THRESHOLD", c.ViewportThreshold)
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	switch c.Driver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("config: sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("config: unknown driver %q", c.Driver)
	}
	return nil
}

// NewLogger creates a slog.Logger for the given level and format. It does
// not set the global logger.
func NewLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}

// Logger is NewLogger with the configured level and format.
func (c *Config) Logger(outW io.Writer) *slog.Logger {
	return NewLogger(c.LogLevel, c.LogFormat, outW)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
