package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quillback/tally/pkg/observability"
	"github.com/quillback/tally/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Billing configuration
	Billing BillingConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// BillingConfig holds subscription lifecycle settings
type BillingConfig struct {
	// DefaultTermDays is the activation window length applied when an
	// activation request does not carry an explicit expiration date.
	DefaultTermDays int

	// ExpirySweepCron enables the background sweep that flips overdue
	// subscriptions to expired. Empty disables the sweep; lazy expiry on
	// read still applies either way.
	ExpirySweepCron string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Billing:       loadBillingConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("TALLY_HOST", "0.0.0.0"),
		Port:            getEnv("TALLY_PORT", "8080"),
		ReadTimeout:     getEnvDuration("TALLY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("TALLY_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("TALLY_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("TALLY_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("TALLY_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if pgURL := getEnv("TALLY_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if replicaURLs := getEnv("TALLY_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = replicaURLs
	}
	if maxConns := getEnvInt("TALLY_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("TALLY_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("TALLY_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	if redisURL := getEnv("TALLY_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("TALLY_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("TALLY_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if cacheEnabled := getEnv("TALLY_CACHE_ENABLED", ""); cacheEnabled != "" {
		cfg.CacheEnabled = strings.ToLower(cacheEnabled) == "true"
	}
	if cacheTTL := getEnvDuration("TALLY_CACHE_TTL", 0); cacheTTL > 0 {
		cfg.CacheTTL = cacheTTL
	}

	return cfg
}

// loadBillingConfig loads billing configuration from environment
func loadBillingConfig() BillingConfig {
	return BillingConfig{
		DefaultTermDays: getEnvInt("TALLY_DEFAULT_TERM_DAYS", 31),
		ExpirySweepCron: getEnv("TALLY_EXPIRY_SWEEP_CRON", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("TALLY_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("TALLY_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Billing.DefaultTermDays <= 0 {
		return fmt.Errorf("default term days must be positive")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
