// Package config loads and saves prepcoach configuration.
// Config lives at .prepcoach/config.yaml under the workspace; missing
// files yield defaults, and a handful of environment variables override
// the file for scripted use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all prepcoach configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Persistence layer
	Storage StorageConfig `yaml:"storage"`

	// Auth boundary (mock OTP provider)
	Auth AuthConfig `yaml:"auth"`

	// Interview session lifecycle
	Interview InterviewConfig `yaml:"interview"`

	// Streak tracking
	Streak StreakConfig `yaml:"streak"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig configures the key-value persistence adapter.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// AuthConfig configures the mock OTP/token boundary.
type AuthConfig struct {
	TokenSecret string `yaml:"token_secret"`
	TokenTTL    string `yaml:"token_ttl"`
}

// InterviewConfig configures the interview session manager.
type InterviewConfig struct {
	// Sessions older than this that never reached a terminal state are
	// auto-cancelled at load time.
	StaleAfter string `yaml:"stale_after"`

	// Cap on the finished-session history list.
	HistoryCap int `yaml:"history_cap"`

	// Question count used when a session config leaves it zero.
	DefaultQuestionCount int `yaml:"default_question_count"`
}

// StreakConfig configures the streak manager.
type StreakConfig struct {
	// Cap on the day-by-day history list.
	HistoryCap int `yaml:"history_cap"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`  // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "prepcoach",
		Version: "1.0.0",

		Storage: StorageConfig{
			DatabasePath: filepath.Join(".prepcoach", "state.db"),
		},

		Auth: AuthConfig{
			TokenSecret: "dev-only-secret",
			TokenTTL:    "720h",
		},

		Interview: InterviewConfig{
			StaleAfter:           "2h",
			HistoryCap:           50,
			DefaultQuestionCount: 5,
		},

		Streak: StreakConfig{
			HistoryCap: 30,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Path returns the config file location for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".prepcoach", "config.yaml")
}

// Load loads configuration from a YAML file.
// Returns defaults if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("PREPCOACH_DB_PATH"); path != "" {
		c.Storage.DatabasePath = path
	}
	if secret := os.Getenv("PREPCOACH_AUTH_SECRET"); secret != "" {
		c.Auth.TokenSecret = secret
	}
	if level := os.Getenv("PREPCOACH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if debug := os.Getenv("PREPCOACH_DEBUG"); debug != "" {
		if v, err := strconv.ParseBool(debug); err == nil {
			c.Logging.DebugMode = v
		}
	}
	if stale := os.Getenv("PREPCOACH_STALE_AFTER"); stale != "" {
		if _, err := time.ParseDuration(stale); err == nil {
			c.Interview.StaleAfter = stale
		}
	}
}

// StaleAfter parses the interview staleness TTL, falling back to the
// default 2h on a malformed value.
func (c *Config) StaleAfter() time.Duration {
	d, err := time.ParseDuration(c.Interview.StaleAfter)
	if err != nil || d <= 0 {
		return 2 * time.Hour
	}
	return d
}

// TokenTTL parses the auth token lifetime, falling back to 30 days.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.Auth.TokenTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}
