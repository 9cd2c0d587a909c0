package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.support24/config.toml.
type Config struct {
	// DefaultSession is the session used when no --session flag is given.
	DefaultSession string `toml:"default_session"`

	// ServerURL is the base URL of the coordination server. The REST API
	// lives under <ServerURL>/api and the realtime socket under
	// <ServerURL>/ws.
	ServerURL string `toml:"server_url"`

	// AckTimeoutMs bounds how long an outgoing message may stay pending
	// before it is marked failed.
	AckTimeoutMs int `toml:"ack_timeout_ms"`

	// Reconnect backoff tuning.
	ReconnectBaseMs      int `toml:"reconnect_base_ms"`
	ReconnectMaxMs       int `toml:"reconnect_max_ms"`
	ReconnectMaxAttempts int `toml:"reconnect_max_attempts"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultSession:       "main",
		ServerURL:            "https://api.support24.local",
		AckTimeoutMs:         12000,
		ReconnectBaseMs:      1000,
		ReconnectMaxMs:       30000,
		ReconnectMaxAttempts: 10,
	}
}

// AckTimeout returns AckTimeoutMs as a duration, falling back to the
// default when unset.
func (c *Config) AckTimeout() time.Duration {
	if c.AckTimeoutMs <= 0 {
		return time.Duration(Default().AckTimeoutMs) * time.Millisecond
	}
	return time.Duration(c.AckTimeoutMs) * time.Millisecond
}

// ReconnectBase returns the initial reconnect delay.
func (c *Config) ReconnectBase() time.Duration {
	if c.ReconnectBaseMs <= 0 {
		return time.Duration(Default().ReconnectBaseMs) * time.Millisecond
	}
	return time.Duration(c.ReconnectBaseMs) * time.Millisecond
}

// ReconnectMax returns the reconnect delay ceiling.
func (c *Config) ReconnectMax() time.Duration {
	if c.ReconnectMaxMs <= 0 {
		return time.Duration(Default().ReconnectMaxMs) * time.Millisecond
	}
	return time.Duration(c.ReconnectMaxMs) * time.Millisecond
}

// Load reads config from the given path. Missing keys keep their
// defaults; a missing file is an error the caller may ignore in favor
// of Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
