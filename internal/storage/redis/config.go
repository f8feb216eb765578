package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// MaxRetries bounds optimistic transaction retries on WATCH conflicts
	MaxRetries int

	// RetiredSessionTTL expires finished rounds; zero keeps them forever
	RetiredSessionTTL time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:               "redis://localhost:6379",
		PoolSize:          10,
		MinIdleConns:      2,
		MaxRetries:        50,
		RetiredSessionTTL: 7 * 24 * time.Hour,
	}
}
