// Package config holds the persisted settings, including the one toggle the
// engine cares about at runtime: whether marking is enabled. Settings are
// read at startup and on change events only.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML settings file.
type Config struct {
	// Enabled is the global toggle; disabling strips marker classes without
	// touching the DOM structure or the resolution cache.
	Enabled bool `yaml:"enabled"`

	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	DBPath  string `yaml:"db_path"`

	ResolveTimeoutSeconds int `yaml:"resolve_timeout_seconds"`
	HideDelayMS           int `yaml:"hide_delay_ms"`
}

// Default returns the settings used when no file exists.
func Default() Config {
	return Config{
		Enabled:               true,
		Model:                 "gpt-4o-mini",
		DBPath:                "acrolens.db",
		ResolveTimeoutSeconds: 10,
		HideDelayMS:           200,
	}
}

// Load reads the config at path, falling back to defaults when the file does
// not exist. Unset numeric fields also fall back to their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = Default().Model
	}
	if cfg.ResolveTimeoutSeconds <= 0 {
		cfg.ResolveTimeoutSeconds = Default().ResolveTimeoutSeconds
	}
	if cfg.HideDelayMS <= 0 {
		cfg.HideDelayMS = Default().HideDelayMS
	}
	return cfg, nil
}

// ResolveTimeout returns the resolution timeout as a duration.
func (c Config) ResolveTimeout() time.Duration {
	return time.Duration(c.ResolveTimeoutSeconds) * time.Second
}

// HideDelay returns the tooltip hide delay as a duration.
func (c Config) HideDelay() time.Duration {
	return time.Duration(c.HideDelayMS) * time.Millisecond
}
