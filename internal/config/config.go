package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string        `env:"PORT" envDefault:"8080"`
	Environment string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string        `env:"LOG_LEVEL" envDefault:"info"`
	RedisURL    string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	StateTTL    time.Duration `env:"STATE_TTL" envDefault:"24h"` // 0 keeps game state forever
	StopOnError bool          `env:"STOP_ON_ERROR" envDefault:"false"`

	LogLevel slog.Level // parsed from LogLevelRaw
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)
	return &cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
