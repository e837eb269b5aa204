package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Output   OutputConfig   `mapstructure:"output"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// InputConfig locates the four spreadsheet exports
type InputConfig struct {
	ChatBucaramanga   string `mapstructure:"chat_bucaramanga"`
	ChatBogota        string `mapstructure:"chat_bogota"`
	RosterBucaramanga string `mapstructure:"roster_bucaramanga"`
	RosterBogota      string `mapstructure:"roster_bogota"`
	ChatSheet         int    `mapstructure:"chat_sheet"`
	RosterSheet       int    `mapstructure:"roster_sheet"`
	Progress          bool   `mapstructure:"progress"`
}

// AnalysisConfig holds reconciliation behavior
type AnalysisConfig struct {
	Timezone          string `mapstructure:"timezone"`
	KeepInvalidPhones bool   `mapstructure:"keep_invalid_phones"`
	NoStatusLabel     string `mapstructure:"no_status_label"`
}

// OutputConfig controls where and how the result is written
type OutputConfig struct {
	Format  string `mapstructure:"format"`
	Path    string `mapstructure:"path"`
	Summary bool   `mapstructure:"summary"`
}

// StorageConfig holds run history configuration
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
}

// MetricsConfig holds the Prometheus textfile destination
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. An empty path skips
// the file and uses defaults plus CHATCONV_* variables only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// CHATCONV_TELEGRAM_BOT_TOKEN overrides telegram.bot_token
	v.SetEnvPrefix("CHATCONV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options. Every key
// needs a default so that environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	// Input defaults
	v.SetDefault("input.chat_bucaramanga", "")
	v.SetDefault("input.chat_bogota", "")
	v.SetDefault("input.roster_bucaramanga", "")
	v.SetDefault("input.roster_bogota", "")
	v.SetDefault("input.chat_sheet", 1)
	v.SetDefault("input.roster_sheet", 0)
	v.SetDefault("input.progress", false)

	// Analysis defaults
	v.SetDefault("analysis.timezone", "America/Bogota")
	v.SetDefault("analysis.keep_invalid_phones", false)
	v.SetDefault("analysis.no_status_label", "Sin Estado")

	// Output defaults
	v.SetDefault("output.format", "json")
	v.SetDefault("output.path", "")
	v.SetDefault("output.summary", true)

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.dsn", "./data/chatconv.db")
	v.SetDefault("storage.max_runs", 50)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "2s")
	v.SetDefault("telegram.rate_per_second", 1.0)

	// Metrics defaults
	v.SetDefault("metrics.textfile_path", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Input config
	if c.Input.ChatSheet < 0 {
		return fmt.Errorf("input.chat_sheet must not be negative")
	}
	if c.Input.RosterSheet < 0 {
		return fmt.Errorf("input.roster_sheet must not be negative")
	}

	// Validate Analysis config
	if _, err := c.Location(); err != nil {
		return err
	}

	// Validate Output config
	validOutputFormats := map[string]bool{"json": true, "yaml": true}
	if !validOutputFormats[c.Output.Format] {
		return fmt.Errorf("output.format must be one of: json, yaml")
	}

	// Validate Storage config
	if c.Storage.Enabled && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required when storage is enabled")
	}
	if c.Storage.MaxRuns < 0 {
		return fmt.Errorf("storage.max_runs must not be negative")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 1 {
			return fmt.Errorf("telegram.max_retries must be at least 1")
		}
		if c.Telegram.RatePerSecond <= 0 {
			return fmt.Errorf("telegram.rate_per_second must be positive")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Location resolves analysis.timezone. An empty timezone means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Analysis.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Analysis.Timezone)
	if err != nil {
		return nil, fmt.Errorf("analysis.timezone %q is not a valid IANA zone: %w", c.Analysis.Timezone, err)
	}
	return loc, nil
}
