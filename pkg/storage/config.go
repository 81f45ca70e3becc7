package storage

import "time"

// Config holds storage backend configuration
type Config struct {
	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	// Redis config
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Cache config
	CacheEnabled bool
	CacheTTL     time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns: 20,
		PostgresMinConns: 5,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		CacheEnabled:     false,
		CacheTTL:         5 * time.Minute,
	}
}
