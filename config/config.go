// Package config loads NeuraLux service configuration from TOML.
//
// A service reads its config once at startup and treats it as immutable
// thereafter; every tunable the bus consumes (broker URL, default
// request timeout, reconnect backoff bounds) lives here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Common errors.
var (
	ErrNotFound = errors.New("config file not found")
	ErrInvalid  = errors.New("invalid configuration")
)

// Duration is a time.Duration that unmarshals from TOML strings like
// "5s" or "250ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full configuration for one NeuraLux service.
type Config struct {
	Broker  BrokerConfig  `toml:"broker"`
	Request RequestConfig `toml:"request"`
	Health  HealthConfig  `toml:"health"`
	Log     LogConfig     `toml:"log"`
}

// BrokerConfig configures the transport connection.
type BrokerConfig struct {
	// URL of the broker (e.g., "nats://localhost:4222").
	URL string `toml:"url"`

	// Name identifies this client to the broker.
	Name string `toml:"name"`

	// ReconnectWaitMin is the initial wait between reconnect
	// attempts; the wait doubles up to ReconnectWaitMax.
	ReconnectWaitMin Duration `toml:"reconnect_wait_min"`
	ReconnectWaitMax Duration `toml:"reconnect_wait_max"`

	// MaxReconnects bounds reconnect attempts. -1 = unlimited.
	MaxReconnects int `toml:"max_reconnects"`

	// ConnectTimeout for the initial connection.
	ConnectTimeout Duration `toml:"connect_timeout"`

	// BufferSize for subscription channels.
	BufferSize int `toml:"buffer_size"`
}

// RequestConfig configures request/reply behavior.
type RequestConfig struct {
	// DefaultTimeout applies to requests issued without an explicit
	// timeout.
	DefaultTimeout Duration `toml:"default_timeout"`
}

// HealthConfig configures liveness reporting.
type HealthConfig struct {
	// Interval between heartbeats.
	Interval Duration `toml:"interval"`

	// TTL after which a silent service is considered stale.
	TTL Duration `toml:"ttl"`
}

// LogConfig configures console logging.
type LogConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR.
	Level string `toml:"level"`
}

// Default returns configuration with sensible defaults.
func Default() Config {
	return Config{
		Broker: BrokerConfig{
			URL:              "nats://localhost:4222",
			ReconnectWaitMin: Duration(500 * time.Millisecond),
			ReconnectWaitMax: Duration(8 * time.Second),
			MaxReconnects:    -1,
			ConnectTimeout:   Duration(5 * time.Second),
			BufferSize:       256,
		},
		Request: RequestConfig{
			DefaultTimeout: Duration(5 * time.Second),
		},
		Health: HealthConfig{
			Interval: Duration(2 * time.Second),
			TTL:      Duration(10 * time.Second),
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// Load reads a TOML config file, layering it over defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadOrDefault reads the given path if it exists, then falls back to
// neuralux.toml in the working directory, then to defaults.
func LoadOrDefault(path string) (Config, error) {
	paths := []string{}
	if path != "" {
		paths = append(paths, path)
	}
	paths = append(paths, "neuralux.toml")
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "neuralux", "neuralux.toml"))
	}

	for _, p := range paths {
		cfg, err := Load(p)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return cfg, err
		}
	}
	return Default(), nil
}

// Validate rejects configuration the bus cannot operate with.
func (c Config) Validate() error {
	if c.Broker.URL == "" {
		return fmt.Errorf("%w: broker url is empty", ErrInvalid)
	}
	if c.Request.DefaultTimeout <= 0 {
		return fmt.Errorf("%w: default request timeout must be positive", ErrInvalid)
	}
	if c.Broker.ReconnectWaitMin <= 0 || c.Broker.ReconnectWaitMax < c.Broker.ReconnectWaitMin {
		return fmt.Errorf("%w: reconnect wait bounds out of order", ErrInvalid)
	}
	if c.Health.Interval <= 0 || c.Health.TTL <= c.Health.Interval {
		return fmt.Errorf("%w: health ttl must exceed the beat interval", ErrInvalid)
	}
	switch c.Log.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}
