// Package config loads the application configuration from a YAML file
// with environment variable overrides. A .env file next to the binary
// is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"equity-signal-lab/internal/exitmonitor"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	Capital struct {
		Total        float64 `yaml:"total"`
		MaxPositions int     `yaml:"max_positions"`
		ReservePct   float64 `yaml:"reserve_pct"`
	} `yaml:"capital"`
	Signals struct {
		TopN                      int      `yaml:"top_n"`
		TTLMinutes                int      `yaml:"ttl_minutes"`
		ConfirmationWindowMinutes int      `yaml:"confirmation_window_minutes"`
		Strategies                []string `yaml:"strategies"`
	} `yaml:"signals"`
	Feed struct {
		Endpoint string   `yaml:"endpoint"`
		Symbols  []string `yaml:"symbols"`
	} `yaml:"feed"`
	Trailing struct {
		Default    exitmonitor.TrailingConfig            `yaml:"default"`
		Strategies map[string]exitmonitor.TrailingConfig `yaml:"strategies"`
	} `yaml:"trailing"`
	Schedule struct {
		EvaluateCron string `yaml:"evaluate_cron"`
		AdvisoryCron string `yaml:"advisory_cron"`
		CloseCron    string `yaml:"close_cron"`
		ReallocCron  string `yaml:"realloc_cron"`
		Timezone     string `yaml:"timezone"`
	} `yaml:"schedule"`
	Database struct {
		PostgresDSN   string `yaml:"postgres_dsn"`
		ClickhouseDSN string `yaml:"clickhouse_dsn"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	StateFile string `yaml:"state_file"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A missing file is not an error; overrides and defaults
// still apply.
func Load(path string) (*Config, error) {
	// Optional .env for local runs; real deployments set the process
	// environment directly.
	_ = godotenv.Load()

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
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = id
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Database.ClickhouseDSN = v
	}
	if v := os.Getenv("FEED_ENDPOINT"); v != "" {
		cfg.Feed.Endpoint = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("TOTAL_CAPITAL"); v != "" {
		total, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parse TOTAL_CAPITAL: %w", err)
		}
		cfg.Capital.Total = total
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Capital.MaxPositions <= 0 {
		c.Capital.MaxPositions = 5
	}
	if c.Capital.ReservePct <= 0 {
		c.Capital.ReservePct = 0.20
	}
	if c.Signals.TopN <= 0 {
		c.Signals.TopN = 5
	}
	if c.Signals.TTLMinutes <= 0 {
		c.Signals.TTLMinutes = 30
	}
	if c.Signals.ConfirmationWindowMinutes <= 0 {
		c.Signals.ConfirmationWindowMinutes = 15
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Asia/Kolkata"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.StateFile == "" {
		c.StateFile = "monitor_state.json"
	}
}

// SignalTTL returns the signal validity window as a duration.
func (c *Config) SignalTTL() time.Duration {
	return time.Duration(c.Signals.TTLMinutes) * time.Minute
}

// ConfirmationWindow returns the cross-cycle confirmation look-back.
func (c *Config) ConfirmationWindow() time.Duration {
	return time.Duration(c.Signals.ConfirmationWindowMinutes) * time.Minute
}

// Location resolves the configured exchange timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Schedule.Timezone, err)
	}
	return loc, nil
}
