// Package config provides process-wide configuration for the Scribe server:
// defaults, environment variable overrides, and the global reminder/session
// knobs that apply across every repository tenant. Per-repository settings
// (storage backend, permissions, template packs) live in internal/repo.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds process-wide Scribe settings.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Session  SessionConfig  `mapstructure:"session"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Tool     ToolConfig     `mapstructure:"tool"`
}

// LoggingConfig mirrors internal/common/logger.Config for mapstructure binding.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// SessionConfig controls agent session lifecycle.
type SessionConfig struct {
	IdleTTLMinutes int `mapstructure:"idleTtlMinutes"`
}

// ReminderConfig controls the reminder engine's defaults.
type ReminderConfig struct {
	CachePath        string `mapstructure:"cachePath"`
	SessionAware     bool   `mapstructure:"sessionAware"`
	MaxPerResponse   int    `mapstructure:"maxPerResponse"`
	TeachingCapCount int    `mapstructure:"teachingCapCount"`
}

// ToolConfig controls tool-call defaults.
type ToolConfig struct {
	DeadlineSeconds int `mapstructure:"deadlineSeconds"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.outputPath", "stderr")

	v.SetDefault("session.idleTtlMinutes", 45)

	v.SetDefault("reminder.cachePath", "")
	v.SetDefault("reminder.sessionAware", true)
	v.SetDefault("reminder.maxPerResponse", 5)
	v.SetDefault("reminder.teachingCapCount", 3)

	v.SetDefault("tool.deadlineSeconds", 30)
}

// Load reads process configuration from SCRIBE_-prefixed environment
// variables and defaults. No config file is required; Scribe is typically
// launched by an MCP host with environment-only configuration.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("logging.level", "SCRIBE_LOG_LEVEL")
	_ = v.BindEnv("reminder.cachePath", "SCRIBE_REMINDER_CACHE_PATH")
	_ = v.BindEnv("reminder.sessionAware", "SCRIBE_SESSION_AWARE_HASHES")
	_ = v.BindEnv("session.idleTtlMinutes", "SCRIBE_SESSION_IDLE_TTL_MINUTES")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Reminder.CachePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.Reminder.CachePath = home + "/.scribe/reminder_cooldowns.json"
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []string
	if cfg.Session.IdleTTLMinutes <= 0 {
		errs = append(errs, "session.idleTtlMinutes must be positive")
	}
	if cfg.Reminder.MaxPerResponse <= 0 {
		errs = append(errs, "reminder.maxPerResponse must be positive")
	}
	if cfg.Tool.DeadlineSeconds <= 0 {
		errs = append(errs, "tool.deadlineSeconds must be positive")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
