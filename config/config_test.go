package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "neuralux.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[broker]
url = "nats://broker.local:4222"
name = "vision-service"
reconnect_wait_min = "250ms"
reconnect_wait_max = "4s"
max_reconnects = 10

[request]
default_timeout = "3s"

[health]
interval = "1s"
ttl = "5s"

[log]
level = "DEBUG"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Broker.URL != "nats://broker.local:4222" {
		t.Errorf("url = %q", cfg.Broker.URL)
	}
	if cfg.Broker.Name != "vision-service" {
		t.Errorf("name = %q", cfg.Broker.Name)
	}
	if cfg.Broker.ReconnectWaitMin.Std() != 250*time.Millisecond {
		t.Errorf("reconnect_wait_min = %v", cfg.Broker.ReconnectWaitMin.Std())
	}
	if cfg.Request.DefaultTimeout.Std() != 3*time.Second {
		t.Errorf("default_timeout = %v", cfg.Request.DefaultTimeout.Std())
	}
	if cfg.Health.TTL.Std() != 5*time.Second {
		t.Errorf("ttl = %v", cfg.Health.TTL.Std())
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("level = %q", cfg.Log.Level)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
[broker]
url = "nats://other:4222"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	def := Default()
	if cfg.Broker.URL != "nats://other:4222" {
		t.Errorf("url = %q", cfg.Broker.URL)
	}
	if cfg.Request.DefaultTimeout != def.Request.DefaultTimeout {
		t.Errorf("default_timeout = %v, want default", cfg.Request.DefaultTimeout.Std())
	}
	if cfg.Broker.BufferSize != def.Broker.BufferSize {
		t.Errorf("buffer_size = %d, want default", cfg.Broker.BufferSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault error: %v", err)
	}
	if cfg.Broker.URL != Default().Broker.URL {
		t.Errorf("url = %q, want default", cfg.Broker.URL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url", func(c *Config) { c.Broker.URL = "" }},
		{"zero timeout", func(c *Config) { c.Request.DefaultTimeout = 0 }},
		{"backoff bounds inverted", func(c *Config) {
			c.Broker.ReconnectWaitMin = Duration(10 * time.Second)
			c.Broker.ReconnectWaitMax = Duration(time.Second)
		}},
		{"ttl below interval", func(c *Config) {
			c.Health.Interval = Duration(10 * time.Second)
			c.Health.TTL = Duration(time.Second)
		}},
		{"bad log level", func(c *Config) { c.Log.Level = "LOUD" }},
	}

	for _, tt := range tests {
		cfg := Default()
		tt.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: Validate = %v, want ErrInvalid", tt.name, err)
		}
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
[request]
default_timeout = "0s"
`)

	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("Load = %v, want ErrInvalid", err)
	}
}
