package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing nats url", func(c *Config) { c.NATS.URL = "" }, true},
		{"missing stream", func(c *Config) { c.NATS.Stream = "" }, true},
		{"missing consumer", func(c *Config) { c.Coherence.ConsumerName = "" }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "logfmt" }, true},
		{"metrics without listen", func(c *Config) { c.Metrics.Listen = "" }, true},
		{"metrics disabled without listen", func(c *Config) { c.Metrics.Enabled = false; c.Metrics.Listen = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diligence.yaml")
	content := `
nats:
  url: nats://broker:4222
coherence:
  policy_path: /etc/diligence/policy.yaml
  policy_reload: true
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}

	if config.NATS.URL != "nats://broker:4222" {
		t.Errorf("NATS.URL = %q", config.NATS.URL)
	}
	if !config.Coherence.PolicyReload {
		t.Error("PolicyReload not set")
	}
	if config.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", config.Log.Level)
	}
	// Unset fields keep defaults.
	if config.NATS.Stream != "PIPELINE" {
		t.Errorf("NATS.Stream = %q, want default PIPELINE", config.NATS.Stream)
	}
	if config.Metrics.Listen != ":9091" {
		t.Errorf("Metrics.Listen = %q, want default :9091", config.Metrics.Listen)
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Merge(&Config{
		NATS:      NATSConfig{URL: "nats://other:4222", ConnectTimeout: 5 * time.Second},
		Coherence: CoherenceConfig{PolicyPath: "/tmp/p.yaml"},
		Log:       LogConfig{Level: "warn"},
	})

	if base.NATS.URL != "nats://other:4222" {
		t.Errorf("NATS.URL = %q", base.NATS.URL)
	}
	if base.NATS.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %v", base.NATS.ConnectTimeout)
	}
	if base.NATS.Stream != "PIPELINE" {
		t.Errorf("Stream = %q, want unchanged default", base.NATS.Stream)
	}
	if base.Coherence.PolicyPath != "/tmp/p.yaml" {
		t.Errorf("PolicyPath = %q", base.Coherence.PolicyPath)
	}
	if base.Log.Level != "warn" {
		t.Errorf("Log.Level = %q", base.Log.Level)
	}
	if base.Coherence.ConsumerName != "coherence-reconciler" {
		t.Errorf("ConsumerName = %q, want unchanged default", base.Coherence.ConsumerName)
	}
}

func TestMergeNil(t *testing.T) {
	base := DefaultConfig()
	base.Merge(nil)
	if base.NATS.URL != "nats://localhost:4222" {
		t.Error("Merge(nil) must not change the config")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		config := Config{Log: LogConfig{Level: tt.level}}
		if got := config.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvNATSURL, "nats://env-broker:4222")
	t.Setenv(EnvPolicyPath, "/env/policy.yaml")

	// Run from an empty directory so no project config interferes.
	t.Chdir(t.TempDir())

	loader := NewLoader(slog.Default())
	config, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if config.NATS.URL != "nats://env-broker:4222" {
		t.Errorf("NATS.URL = %q, want env override", config.NATS.URL)
	}
	if config.Coherence.PolicyPath != "/env/policy.yaml" {
		t.Errorf("PolicyPath = %q, want env override", config.Coherence.PolicyPath)
	}
}
