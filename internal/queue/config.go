package queue

import "time"

const (
	DefaultMaxConcurrent   = 3
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = time.Second
	DefaultRateLimit       = 10
	DefaultRateLimitWindow = time.Minute

	// Delay before the dispatcher re-checks a full rate-limit window.
	rateLimitRecheck = time.Second

	eventBuffer = 1024
)

// Config tunes one queue instance. Zero values fall back to the defaults
// above, so Config{} is a usable configuration.
type Config struct {
	// MaxConcurrent caps the number of simultaneously in-flight items.
	MaxConcurrent int

	// MaxRetries is the default retry ceiling for items that don't carry
	// their own (see WithMaxRetries).
	MaxRetries int

	// RetryDelay is the base backoff unit. A failed item re-enters the
	// pending set after RetryDelay multiplied by its attempt number.
	RetryDelay time.Duration

	// RateLimit is the maximum number of dispatches per window.
	RateLimit int

	// RateLimitWindow is the length of one rate-limit window.
	RateLimitWindow time.Duration

	// ProcessTimeout bounds a single process call. Zero disables the
	// timeout, in which case a hung call occupies a concurrency slot
	// until it returns.
	ProcessTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = DefaultRateLimitWindow
	}
	return c
}
