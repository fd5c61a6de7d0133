package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration loaded from environment
// variables and an optional app.env file in the working directory.
type Config struct {
	// Infrastructure
	HTTPAddr      string `mapstructure:"HTTP_ADDR"`
	MetricsAddr   string `mapstructure:"METRICS_ADDR"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"` // empty disables Redis
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`

	// Contract metadata
	ContractsPath    string        `mapstructure:"CONTRACTS_PATH"`
	ContractCacheTTL time.Duration `mapstructure:"CONTRACT_CACHE_TTL"`

	// Batch processing
	BatchWorkers int `mapstructure:"BATCH_WORKERS"`

	// Simulation and detection defaults
	CommissionRate  float64 `mapstructure:"COMMISSION_RATE"`
	SlippageTicks   int     `mapstructure:"SLIPPAGE_TICKS"`
	ChartWindow     int     `mapstructure:"CHART_WINDOW"`
	DefaultLookback int     `mapstructure:"DEFAULT_LOOKBACK"`

	// Signal fan-out
	StreamReplay     int    `mapstructure:"STREAM_REPLAY"`
	SignalWebhookURL string `mapstructure:"SIGNAL_WEBHOOK_URL"`
	TelegramToken    string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `mapstructure:"TELEGRAM_CHAT_ID"`
}

var defaults = map[string]any{
	"HTTP_ADDR":          ":8000",
	"METRICS_ADDR":       ":9090",
	"SQLITE_PATH":        "data/signals.db",
	"REDIS_ADDR":         "",
	"REDIS_PASSWORD":     "",
	"REDIS_DB":           0,
	"LOG_LEVEL":          "info",
	"CONTRACTS_PATH":     "data/futures_contracts.json",
	"CONTRACT_CACHE_TTL": "10m",
	"BATCH_WORKERS":      4,
	"COMMISSION_RATE":    0.0003,
	"SLIPPAGE_TICKS":     1,
	"CHART_WINDOW":       100,
	"DEFAULT_LOOKBACK":   5,
	"STREAM_REPLAY":      500,
	"SIGNAL_WEBHOOK_URL": "",
	"TELEGRAM_BOT_TOKEN": "",
	"TELEGRAM_CHAT_ID":   "",
}

// Load reads configuration from the environment, an optional app.env in
// the working directory, and defaults, then validates it.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom is Load with an explicit directory for app.env.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		// If config file not found, we can still use env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch {
	case c.SQLitePath == "":
		return errors.New("config: SQLITE_PATH must not be empty")
	case c.BatchWorkers <= 0:
		return fmt.Errorf("config: BATCH_WORKERS must be positive, got %d", c.BatchWorkers)
	case c.CommissionRate < 0:
		return fmt.Errorf("config: COMMISSION_RATE must not be negative, got %g", c.CommissionRate)
	case c.SlippageTicks < 0:
		return fmt.Errorf("config: SLIPPAGE_TICKS must not be negative, got %d", c.SlippageTicks)
	case c.ChartWindow <= 0:
		return fmt.Errorf("config: CHART_WINDOW must be positive, got %d", c.ChartWindow)
	case c.StreamReplay < 0:
		return fmt.Errorf("config: STREAM_REPLAY must not be negative, got %d", c.StreamReplay)
	case (c.TelegramToken == "") != (c.TelegramChatID == ""):
		return errors.New("config: TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	case c.ContractCacheTTL < 0:
		return fmt.Errorf("config: CONTRACT_CACHE_TTL must not be negative, got %s", c.ContractCacheTTL)
	}
	return nil
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }

// TelegramEnabled reports whether Telegram alerts are configured.
func (c *Config) TelegramEnabled() bool { return c.TelegramToken != "" }
