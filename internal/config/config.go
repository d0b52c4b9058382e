package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Media     MediaConfig     `mapstructure:"media"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Refresher RefresherConfig `mapstructure:"refresher"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Payments  PaymentsConfig  `mapstructure:"payments"`
	LogLevel  string          `mapstructure:"log_level"`
}

type ServerConfig struct {
	Port           string  `mapstructure:"port"`
	RateLimitQPS   float64 `mapstructure:"rate_limit_qps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type AuthConfig struct {
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	APILogRetentionDays    int    `mapstructure:"api_log_retention_days"`
	CleanupIntervalMinutes int    `mapstructure:"cleanup_interval_minutes"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	QueueKey string `mapstructure:"queue_key"`
}

type MediaConfig struct {
	Root string `mapstructure:"root"`
}

// FetcherConfig seeds the runtime setting record on first run. After that
// the record in the database is authoritative and editable at runtime.
type FetcherConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

type RefresherConfig struct {
	MaxAttempts          int     `mapstructure:"max_attempts"`
	RetryDelaySeconds    int     `mapstructure:"retry_delay_seconds"`
	FetchTimeoutSeconds  int     `mapstructure:"fetch_timeout_seconds"`
	Workers              int     `mapstructure:"workers"`
	ScanIntervalMinutes  int     `mapstructure:"scan_interval_minutes"`
	LockTTLSeconds       int     `mapstructure:"lock_ttl_seconds"`
	FetchRateLimitPerSec float64 `mapstructure:"fetch_rate_limit_per_sec"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type PaymentsConfig struct {
	DefaultProvider string `mapstructure:"default_provider"`
	Currency        string `mapstructure:"currency"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. GRAMVAULT_DATABASE_DSN, GRAMVAULT_FETCHER_API_KEY
	viper.SetEnvPrefix("gramvault")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.rate_limit_qps", 50)
	viper.SetDefault("server.rate_limit_burst", 100)
	viper.SetDefault("auth.admin_key", "")
	viper.SetDefault("database.api_log_retention_days", 30)
	viper.SetDefault("database.cleanup_interval_minutes", 60)
	viper.SetDefault("redis.queue_key", "refresh:jobs")
	viper.SetDefault("media.root", "./media")
	viper.SetDefault("fetcher.timeout_seconds", 30)
	viper.SetDefault("fetcher.max_body_bytes", 65536)
	viper.SetDefault("refresher.max_attempts", 3)
	viper.SetDefault("refresher.retry_delay_seconds", 60)
	viper.SetDefault("refresher.fetch_timeout_seconds", 30)
	viper.SetDefault("refresher.workers", 4)
	viper.SetDefault("refresher.scan_interval_minutes", 60)
	viper.SetDefault("refresher.lock_ttl_seconds", 300)
	viper.SetDefault("refresher.fetch_rate_limit_per_sec", 5)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("payments.default_provider", "manual")
	viper.SetDefault("payments.currency", "USD")
	viper.SetDefault("log_level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
