// Package config loads the bridge configuration file.
// The file is JSON with // and /* */ comments and trailing commas allowed.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"
)

// Config holds the bridge settings.
type Config struct {
	// Library is the module locator used when the caller passes none.
	Library string `json:"library"`
	// LogFile receives timestamped diagnostics when the caller passes no log path.
	LogFile string `json:"log_file"`
	// HoldSeconds keeps the calling thread blocked after a successful
	// invocation. Zero disables the hold.
	HoldSeconds int `json:"hold_seconds"`
	// StartupWindowMS is how long the service waits before reporting the tunnel running.
	StartupWindowMS int    `json:"startup_window_ms"`
	DefaultPort     int    `json:"default_port"`
	ProfileDB       string `json:"profile_db"`
	Debug           bool   `json:"debug"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Library:         "libslipstream.so",
		LogFile:         "",
		HoldSeconds:     0,
		StartupWindowMS: 1000,
		DefaultPort:     1081,
		ProfileDB:       "data/profiles.db",
		Debug:           false,
	}
}

// Hold returns HoldSeconds as a duration.
func (c *Config) Hold() time.Duration {
	return time.Duration(c.HoldSeconds) * time.Second
}

// StartupWindow returns StartupWindowMS as a duration.
func (c *Config) StartupWindow() time.Duration {
	return time.Duration(c.StartupWindowMS) * time.Millisecond
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.HoldSeconds < 0 {
		errs = append(errs, fmt.Errorf("hold_seconds must not be negative, got %d", c.HoldSeconds))
	}
	if c.StartupWindowMS < 0 {
		errs = append(errs, fmt.Errorf("startup_window_ms must not be negative, got %d", c.StartupWindowMS))
	}
	if c.DefaultPort < 1 || c.DefaultPort > 65535 {
		errs = append(errs, fmt.Errorf("default_port must be in 1..65535, got %d", c.DefaultPort))
	}
	return errors.Join(errs...)
}

// Parse decodes JSONC data on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFirst tries each path in order and returns the first file that
// exists. A file that exists but does not parse is an error. When none of
// the paths exist the defaults are returned with an empty path.
func LoadFirst(paths ...string) (*Config, string, error) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := Load(path)
		if err != nil {
			return nil, path, err
		}
		return cfg, path, nil
	}
	return Default(), "", nil
}

// SearchPaths lists where the bridge looks for its configuration.
var SearchPaths = []string{
	"slipbridge.jsonc",
	"configs/slipbridge.jsonc",
	"../configs/slipbridge.jsonc",
}
