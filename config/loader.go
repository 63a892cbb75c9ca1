package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigPaths returns the locations searched when no path is given
func ConfigPaths() []string {
	paths := []string{"wsclient.toml"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "wsclient", "config.toml"))
	}
	return paths
}

// Load loads the configuration from a file path, applies
// environment overrides and validates the result.
// When path is empty the default locations are searched and
// the defaults are used if none exists.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		for _, p := range ConfigPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies WSCLIENT_* environment variables to the configuration
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("WSCLIENT_URL"); v != "" {
		cfg.Endpoint.URL = v
	}
	if v := os.Getenv("WSCLIENT_ORIGIN"); v != "" {
		cfg.Endpoint.Origin = v
	}
	if v := os.Getenv("WSCLIENT_RECONNECT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WSCLIENT_RECONNECT_DELAY: %w", err)
		}
		cfg.Client.ReconnectDelay = Duration{d}
	}
	if v := os.Getenv("WSCLIENT_BUFFER_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WSCLIENT_BUFFER_CAPACITY: %w", err)
		}
		cfg.Client.BufferCapacity = n
	}
	if v := os.Getenv("WSCLIENT_CODEC"); v != "" {
		cfg.Client.Codec = v
	}
	if v := os.Getenv("WSCLIENT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("WSCLIENT_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("WSCLIENT_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}

	return nil
}
