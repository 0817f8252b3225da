package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string
	HTTPPort         int

	AlertCooldownHours    int
	AlertCheckIntervalSec int
	AlertMaxConcurrency   int
	AlertCycleBackoffSec  int

	MarketCacheTTLSecs int
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.HTTPPort = 8080
	if v := strings.TrimSpace(os.Getenv("HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	cfg.AlertCooldownHours = 12
	if v := strings.TrimSpace(os.Getenv("ALERT_COOLDOWN_HOURS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AlertCooldownHours = n
		}
	}

	cfg.AlertCheckIntervalSec = 900
	if v := strings.TrimSpace(os.Getenv("ALERT_CHECK_INTERVAL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AlertCheckIntervalSec = n
		}
	}

	cfg.AlertMaxConcurrency = 4
	if v := strings.TrimSpace(os.Getenv("ALERT_MAX_CONCURRENCY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AlertMaxConcurrency = n
		}
	}

	cfg.AlertCycleBackoffSec = 30
	if v := strings.TrimSpace(os.Getenv("ALERT_CYCLE_BACKOFF_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AlertCycleBackoffSec = n
		}
	}

	cfg.MarketCacheTTLSecs = 300
	if v := strings.TrimSpace(os.Getenv("MARKET_CACHE_TTL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MarketCacheTTLSecs = n
		}
	}

	return cfg
}
