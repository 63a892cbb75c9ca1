// Package config provides configuration loading for the websocket client binaries.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mickaelvieira/persistent-websocket/codec"
	"github.com/mickaelvieira/persistent-websocket/resolver"
)

// Config is the root of the configuration file
type Config struct {
	Endpoint EndpointConfig `toml:"endpoint"`
	Client   ClientConfig   `toml:"client"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// EndpointConfig selects how the websocket endpoint is resolved.
// A static URL wins over origin discovery.
type EndpointConfig struct {
	URL        string `toml:"url"`
	Origin     string `toml:"origin"`
	ConfigPath string `toml:"config_path"`
}

// ClientConfig tunes the persistent client.
//
// BufferCapacity is the number of inbound messages kept in memory: zero keeps
// every message, a positive value keeps the newest ones and a negative value
// keeps none. The binaries print messages as they arrive, so the default keeps none.
type ClientConfig struct {
	ReconnectDelay Duration `toml:"reconnect_delay"`
	PingInterval   Duration `toml:"ping_interval"`
	BufferCapacity int      `toml:"buffer_capacity"`
	Codec          string   `toml:"codec"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig configures the Prometheus endpoint, disabled when Listen is empty
type MetricsConfig struct {
	Listen string `toml:"listen"`
}

// Duration is a time.Duration written as a string such as "3s"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns a configuration discovering the endpoint from a local development origin
func DefaultConfig() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			Origin:     "http://localhost:3001",
			ConfigPath: resolver.DefaultConfigPath,
		},
		Client: ClientConfig{
			ReconnectDelay: Duration{3 * time.Second},
			PingInterval:   Duration{60 * time.Second},
			BufferCapacity: -1,
			Codec:          "json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Endpoint.URL == "" && c.Endpoint.Origin == "" {
		return errors.New("endpoint.url or endpoint.origin is required")
	}
	if c.Client.ReconnectDelay.Duration <= 0 {
		return errors.New("client.reconnect_delay must be positive")
	}
	if c.Client.PingInterval.Duration < 0 {
		return errors.New("client.ping_interval must not be negative")
	}
	if _, err := codec.ByName(c.Client.Codec); err != nil {
		return fmt.Errorf("client.codec: %w", err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}

	return nil
}

// NewLogger builds the logger described by the configuration
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", l.Format)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return level, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}
