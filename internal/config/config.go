// Package config loads the daemon configuration from TOML.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pcarvalho/wacrm/internal/autoreply"
)

// Config is the global ~/.wacrm/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	ListenAddr     string `toml:"listen_addr"`

	// FlushIntervalSeconds is the snapshot flush cadence; 0 means the
	// built-in default.
	FlushIntervalSeconds int `toml:"flush_interval_seconds"`

	Responder ResponderConfig  `toml:"responder"`
	AutoReply autoreply.Config `toml:"autoreply"`
}

// ResponderConfig configures reply generation.
type ResponderConfig struct {
	Endpoint  string `toml:"endpoint"`
	OpenAIKey string `toml:"openai_key"`
	Model     string `toml:"model"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultSession: "main",
		ListenAddr:     "127.0.0.1:8790",
		AutoReply:      autoreply.Config{Enabled: false, PrivateOnly: true},
	}
}

// FlushInterval converts the configured cadence to a duration; zero means
// use the flusher default.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

// Load reads config from path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to path, creating parent dirs as needed.
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
