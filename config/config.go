// Package config provides configuration loading and management for the
// diligence service.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete diligence service configuration
type Config struct {
	NATS      NATSConfig      `yaml:"nats"`
	Coherence CoherenceConfig `yaml:"coherence"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL
	URL string `yaml:"url"`
	// Stream is the JetStream stream carrying pipeline traffic
	Stream string `yaml:"stream"`
	// ConnectTimeout is the maximum time to wait for the initial connection
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// CoherenceConfig configures the coherence-reconciler component
type CoherenceConfig struct {
	// PolicyPath is the reconciliation policy YAML file (empty = calibrated defaults)
	PolicyPath string `yaml:"policy_path"`
	// PolicyReload enables hot-reloading PolicyPath on change
	PolicyReload bool `yaml:"policy_reload"`
	// ConsumerName is the durable JetStream consumer name
	ConsumerName string `yaml:"consumer_name"`
}

// LogConfig configures structured logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is "text" or "json"
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus exposition endpoint
type MetricsConfig struct {
	// Enabled controls whether the /metrics endpoint is served
	Enabled bool `yaml:"enabled"`
	// Listen is the address for the metrics HTTP server
	Listen string `yaml:"listen"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:            "nats://localhost:4222",
			Stream:         "PIPELINE",
			ConnectTimeout: 30 * time.Second,
		},
		Coherence: CoherenceConfig{
			PolicyPath:   "",
			PolicyReload: false,
			ConsumerName: "coherence-reconciler",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Listen:  ":9091",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.NATS.Stream == "" {
		return fmt.Errorf("nats.stream is required")
	}
	if c.Coherence.ConsumerName == "" {
		return fmt.Errorf("coherence.consumer_name is required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json; got %q", c.Log.Format)
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics are enabled")
	}
	return nil
}

// SlogLevel maps the configured level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Stream != "" {
		c.NATS.Stream = other.NATS.Stream
	}
	if other.NATS.ConnectTimeout != 0 {
		c.NATS.ConnectTimeout = other.NATS.ConnectTimeout
	}

	// Coherence
	if other.Coherence.PolicyPath != "" {
		c.Coherence.PolicyPath = other.Coherence.PolicyPath
	}
	if other.Coherence.PolicyReload {
		c.Coherence.PolicyReload = true
	}
	if other.Coherence.ConsumerName != "" {
		c.Coherence.ConsumerName = other.Coherence.ConsumerName
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}

	// Metrics
	if other.Metrics.Listen != "" {
		c.Metrics.Listen = other.Metrics.Listen
	}
}
