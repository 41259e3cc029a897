package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. It is loaded once at startup
// and passed down immutably; no component reads ambient global state.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		APIToken string `yaml:"api_token"`
	} `yaml:"server"`
	DataSource struct {
		Provider              string `yaml:"provider"` // "yahoo" or "demo"
		ResolveTimeoutSeconds int    `yaml:"resolve_timeout_seconds"`
		MaxParallelResolves   int    `yaml:"max_parallel_resolves"`
	} `yaml:"data_source"`
	Schedule struct {
		CycleCron string `yaml:"cycle_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("FINBOARD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.Server.APIToken = v
	}
	if v := os.Getenv("PRICE_PROVIDER"); v != "" {
		cfg.DataSource.Provider = v
	}
	if v := os.Getenv("RESOLVE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DataSource.ResolveTimeoutSeconds = n
		}
	}
	if v := os.Getenv("CYCLE_CRON"); v != "" {
		cfg.Schedule.CycleCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":5000"
	}
	if cfg.Server.APIToken == "" {
		cfg.Server.APIToken = "DEMO-TOKEN"
	}
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "yahoo"
	}
	if cfg.DataSource.ResolveTimeoutSeconds == 0 {
		cfg.DataSource.ResolveTimeoutSeconds = 8
	}
	if cfg.DataSource.MaxParallelResolves == 0 {
		cfg.DataSource.MaxParallelResolves = 4
	}
	if cfg.Schedule.CycleCron == "" {
		cfg.Schedule.CycleCron = "*/30 * * * * *"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/finboard.db"
	}

	return cfg, nil
}

// Validate checks that all required fields are consistent.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case "yahoo", "demo":
	default:
		return fmt.Errorf("data_source.provider must be yahoo or demo, got %q", c.DataSource.Provider)
	}
	if c.DataSource.ResolveTimeoutSeconds < 1 {
		return fmt.Errorf("data_source.resolve_timeout_seconds must be positive")
	}
	if c.Schedule.CycleCron == "" {
		return fmt.Errorf("schedule.cycle_cron is required")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}
