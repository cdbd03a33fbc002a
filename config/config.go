// Package config handles marctab configuration with layered precedence:
// built-in defaults, then the user config file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// UserConfigDir is the directory for user-level config, relative to
	// the home directory.
	UserConfigDir = ".config/marctab"
	// UserConfigFile is the name of the user-level config file.
	UserConfigFile = "config.yaml"
)

// Config holds runtime settings for marctab.
type Config struct {
	// Schema is the path to an Avram JSON catalog; empty uses the
	// embedded snapshot.
	Schema string `yaml:"schema"`

	// Batch is the number of records per output batch (parquet row
	// group size).
	Batch int `yaml:"batch"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Batch:    1000,
		LogLevel: "info",
	}
}

// Load returns the effective configuration: defaults overlaid with the
// user config file when one exists. An unreadable user config is logged
// and ignored rather than failing the run.
func Load(logger *slog.Logger) *Config {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := Default()

	path := userConfigPath()
	if path == "" {
		return cfg
	}
	fileCfg, err := LoadFromFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to load user config",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return cfg
	}
	logger.Debug("loaded user config", slog.String("path", path))
	cfg.Merge(fileCfg)
	return cfg
}

// LoadFromFile parses a YAML config file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Merge overlays non-zero fields from other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Schema != "" {
		c.Schema = other.Schema
	}
	if other.Batch > 0 {
		c.Batch = other.Batch
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// SlogLevel maps the configured log level onto slog. Unknown values
// fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

func userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}
