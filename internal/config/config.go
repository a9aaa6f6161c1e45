// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	RedisURL       string `mapstructure:"REDIS_URL"`

	StoreDriver              string `mapstructure:"STORE_DRIVER"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	SQLitePath               string `mapstructure:"SQLITE_PATH"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	FeedURL       string `mapstructure:"FEED_URL"`
	FeedPath      string `mapstructure:"FEED_PATH"`
	BlacklistURL  string `mapstructure:"BLACKLIST_URL"`
	BlacklistPath string `mapstructure:"BLACKLIST_PATH"`
	RulesPath     string `mapstructure:"RULES_PATH"`

	SpamScanDelay       time.Duration `mapstructure:"SPAM_SCAN_DELAY"`
	PlagiarismScanDelay time.Duration `mapstructure:"PLAGIARISM_SCAN_DELAY"`
	SearchDebounce      time.Duration `mapstructure:"SEARCH_DEBOUNCE"`
	ScanSchedule        string        `mapstructure:"SCAN_SCHEDULE"`
	RiskCacheSize       int           `mapstructure:"RISK_CACHE_SIZE"`
	NotificationTTL     time.Duration `mapstructure:"NOTIFICATION_TTL"`
	ScanRateLimit       int           `mapstructure:"SCAN_RATE_LIMIT"`
	FeatureFlags        string        `mapstructure:"FEATURE_FLAGS"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("STORE_DRIVER", DriverRedis)
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("SQLITE_PATH", "hive-cache.db")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 10)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 2)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)

	viper.SetDefault("FEED_URL", "")
	viper.SetDefault("FEED_PATH", "")
	viper.SetDefault("BLACKLIST_URL", "")
	viper.SetDefault("BLACKLIST_PATH", "")
	viper.SetDefault("RULES_PATH", "")

	viper.SetDefault("SPAM_SCAN_DELAY", "2s")
	viper.SetDefault("PLAGIARISM_SCAN_DELAY", "3s")
	viper.SetDefault("SEARCH_DEBOUNCE", "300ms")
	viper.SetDefault("SCAN_SCHEDULE", "")
	viper.SetDefault("RISK_CACHE_SIZE", 10000)
	viper.SetDefault("NOTIFICATION_TTL", "5s")
	viper.SetDefault("SCAN_RATE_LIMIT", 10)
	viper.SetDefault("FEATURE_FLAGS", "advanced_scan=on")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env != "" && env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err == nil {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate ensures that required configuration values are present and consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.StoreDriver {
	case DriverRedis, DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.SpamScanDelay < 0 || c.PlagiarismScanDelay < 0 || c.SearchDebounce < 0 {
		return errors.New("scan and debounce delays must not be negative")
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		return errors.New("TRACING_SAMPLE_RATIO must be between 0 and 1")
	}
	if c.TracingEnabled && c.TracingExporter != "stdout" && c.TracingExporter != "otlp" {
		return fmt.Errorf("unknown TRACING_EXPORTER %q", c.TracingExporter)
	}

	if c.IsProduction() {
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
		if c.StoreDriver == DriverMemory {
			log.Println("WARNING: STORE_DRIVER=memory in production. Flags and mutes are lost on restart.")
		}
	}
	return nil
}
