package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
input:
  chat_bucaramanga: "./in/chat_buca.xlsx"
  chat_bogota: "./in/chat_bog.xlsx"
  roster_bucaramanga: "./in/roster_buca.xlsx"
  roster_bogota: "./in/roster_bog.xlsx"

analysis:
  timezone: "America/Bogota"
  keep_invalid_phones: true

output:
  format: "yaml"
  path: "./out/result.yaml"

storage:
  enabled: true
  dsn: ":memory:"
  max_runs: 10

telegram:
  enabled: true
  bot_token: "test_token"
  chat_id: "-100123"
  retry_delay_base: 500ms

logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Input.ChatBogota != "./in/chat_bog.xlsx" {
		t.Errorf("unexpected chat_bogota %q", cfg.Input.ChatBogota)
	}
	if cfg.Input.ChatSheet != 1 || cfg.Input.RosterSheet != 0 {
		t.Errorf("sheet defaults not applied: %+v", cfg.Input)
	}
	if !cfg.Analysis.KeepInvalidPhones || cfg.Analysis.NoStatusLabel != "Sin Estado" {
		t.Errorf("unexpected analysis config: %+v", cfg.Analysis)
	}
	if cfg.Output.Format != "yaml" || !cfg.Output.Summary {
		t.Errorf("unexpected output config: %+v", cfg.Output)
	}
	if cfg.Storage.MaxRuns != 10 {
		t.Errorf("expected max_runs 10, got %d", cfg.Storage.MaxRuns)
	}
	if cfg.Telegram.RetryDelayBase != 500*time.Millisecond || cfg.Telegram.MaxRetries != 3 || cfg.Telegram.RatePerSecond != 1 {
		t.Errorf("unexpected telegram config: %+v", cfg.Telegram)
	}

	loc, err := cfg.Location()
	if err != nil || loc.String() != "America/Bogota" {
		t.Errorf("Location() = %v, %v", loc, err)
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Output.Format != "json" || cfg.Analysis.Timezone != "America/Bogota" || cfg.Storage.Enabled {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CHATCONV_OUTPUT_FORMAT", "yaml")
	t.Setenv("CHATCONV_INPUT_CHAT_BOGOTA", "/data/bog.xlsx")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Output.Format != "yaml" || cfg.Input.ChatBogota != "/data/bog.xlsx" {
		t.Errorf("environment not applied: %+v %+v", cfg.Output, cfg.Input)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func validConfig() *Config {
	return &Config{
		Input:    InputConfig{ChatSheet: 1},
		Analysis: AnalysisConfig{Timezone: "UTC"},
		Output:   OutputConfig{Format: "json"},
		Storage:  StorageConfig{DSN: ":memory:"},
		Telegram: TelegramConfig{MaxRetries: 3, RatePerSecond: 1},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"negative chat sheet", func(c *Config) { c.Input.ChatSheet = -1 }, true},
		{"unknown timezone", func(c *Config) { c.Analysis.Timezone = "Mars/Olympus" }, true},
		{"empty timezone means UTC", func(c *Config) { c.Analysis.Timezone = "" }, false},
		{"unknown output format", func(c *Config) { c.Output.Format = "xml" }, true},
		{"storage without dsn", func(c *Config) { c.Storage.Enabled = true; c.Storage.DSN = "" }, true},
		{"negative max runs", func(c *Config) { c.Storage.MaxRuns = -1 }, true},
		{"missing telegram token when enabled", func(c *Config) {
			c.Telegram.Enabled = true
			c.Telegram.ChatID = "1"
		}, true},
		{"missing telegram chat id when enabled", func(c *Config) {
			c.Telegram.Enabled = true
			c.Telegram.BotToken = "t"
		}, true},
		{"telegram without rate", func(c *Config) {
			c.Telegram = TelegramConfig{Enabled: true, BotToken: "t", ChatID: "1", MaxRetries: 1}
		}, true},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
