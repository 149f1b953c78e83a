package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP surfaces
	ListenAddr  string
	MetricsAddr string

	// Infrastructure
	RedisAddr     string // empty disables the snapshot publisher
	RedisPassword string
	JournalPath   string

	// Ledger
	StartingCash decimal.Decimal

	// Price feed
	FeedURL       string // empty selects the built-in simulator
	FeedLatencyMs int
	RefreshSec    int

	// Portfolio history window
	HistoryPoints int

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		JournalPath:   getEnv("JOURNAL_PATH", "data/journal.db"),

		StartingCash: getEnvDecimal("STARTING_CASH", decimal.NewFromInt(10000)),

		FeedURL:       getEnv("FEED_URL", ""),
		FeedLatencyMs: getEnvInt("FEED_LATENCY_MS", 500),
		RefreshSec:    getEnvInt("REFRESH_INTERVAL_SEC", 30),

		HistoryPoints: getEnvInt("HISTORY_POINTS", 288),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// RefreshInterval returns the price refresh cadence as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshSec) * time.Second
}

// FeedLatency returns the simulator's artificial fetch latency.
func (c *Config) FeedLatency() time.Duration {
	return time.Duration(c.FeedLatencyMs) * time.Millisecond
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
