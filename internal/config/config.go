// Package config provides configuration management for the portfolio ledger.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Analytics AnalyticsConfig
	Ingest    IngestConfig
	// Wallets are the owner's own wallets; transfers between them are internal.
	Wallets      []WalletConfig
	AnalysisFile string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the connection string used by pgx and golang-migrate.
func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig controls the derived-metrics cache.
type CacheConfig struct {
	MetricsTTL time.Duration
}

// RateLimitConfig bounds API requests per client.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// IngestConfig controls batch writes of parsed CSV rows.
type IngestConfig struct {
	BatchSize int
}

// WalletConfig is one own wallet.
type WalletConfig struct {
	Label   string
	Address string
}

// AnalyticsConfig carries every tunable threshold of the analytics engine.
// Build it once with DefaultAnalyticsConfig or LoadConfig and pass it by value.
type AnalyticsConfig struct {
	// SwapWindow is how far after an outgoing transfer an incoming one may
	// land and still count as the other leg of a swap.
	SwapWindow time.Duration
	// ValueTolerance is the relative difference allowed between swap legs.
	ValueTolerance float64
	// ZeroValueTolerance is the absolute USD difference allowed when one
	// leg has no price.
	ZeroValueTolerance float64
	// RiskFreeRate is the annual rate subtracted in the Sharpe ratio.
	RiskFreeRate float64
	// WindowDays are the lookback windows reported besides all-time.
	WindowDays []int
	// FlowPeriodDays is the default period of flow-adjusted analysis.
	FlowPeriodDays int
	// TopItems is how many items flow-adjusted analysis selects by default.
	TopItems int
}

// DefaultAnalyticsConfig returns the documented defaults.
func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		SwapWindow:         15 * time.Minute,
		ValueTolerance:     0.15,
		ZeroValueTolerance: 10,
		RiskFreeRate:       0.02,
		WindowDays:         []int{1, 7, 30},
		FlowPeriodDays:     30,
		TopItems:           5,
	}
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env is optional; the environment may be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	defaults := DefaultAnalyticsConfig()

	wallets, err := parseWallets(getEnv("WALLETS", ""))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "portfolio_ledger"),
				User:           getEnv("POSTGRES_USER", "ledger"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "portfolio_ledger"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Cache: CacheConfig{
			MetricsTTL: getEnvAsDuration("CACHE_METRICS_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Analytics: AnalyticsConfig{
			SwapWindow:         getEnvAsDuration("SWAP_WINDOW", defaults.SwapWindow),
			ValueTolerance:     getEnvAsFloat("SWAP_VALUE_TOLERANCE", defaults.ValueTolerance),
			ZeroValueTolerance: getEnvAsFloat("SWAP_ZERO_VALUE_TOLERANCE_USD", defaults.ZeroValueTolerance),
			RiskFreeRate:       getEnvAsFloat("RISK_FREE_RATE", defaults.RiskFreeRate),
			WindowDays:         getEnvAsIntList("PERFORMANCE_WINDOW_DAYS", defaults.WindowDays),
			FlowPeriodDays:     getEnvAsInt("FLOW_PERIOD_DAYS", defaults.FlowPeriodDays),
			TopItems:           getEnvAsInt("FLOW_TOP_ITEMS", defaults.TopItems),
		},
		Ingest: IngestConfig{
			BatchSize: getEnvAsInt("INGEST_BATCH_SIZE", 5000),
		},
		Wallets:      wallets,
		AnalysisFile: getEnv("ANALYSIS_FILE", ""),
	}

	return config, nil
}

// parseWallets reads "label:address,label:address".
func parseWallets(raw string) ([]WalletConfig, error) {
	var wallets []WalletConfig
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, address, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(address) == "" {
			return nil, fmt.Errorf("invalid WALLETS entry %q, want label:address", part)
		}
		wallets = append(wallets, WalletConfig{
			Label:   strings.TrimSpace(label),
			Address: strings.TrimSpace(address),
		})
	}
	return wallets, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntList(key string, defaultValue []int) []int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}
