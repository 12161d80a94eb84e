package config

import (
	"errors"
	"fmt"
	"time"

	"dispatchq/custom_errors"
	"dispatchq/internal/queue"
)

// Config describes one dispatcher instance: queue tuning, the storage
// backend for request history, the optional Redis response cache, the
// dashboard and housekeeping.
type Config struct {
	Instance string // Unique identifier for this instance

	// Queue tuning; zero fields use the queue package defaults.
	Queue queue.Config

	StorageDriver  StorageDriver
	PostgresConfig PostgresConfig

	// Response cache consulted by the chat-completion processor.
	CacheEnabled bool
	RedisConfig  RedisConfig
	CacheTTL     time.Duration

	DashboardEnabled     bool
	DashboardAuthEnabled bool
	DashboardPort        uint
	DashboardUserName    string
	DashboardPassword    string
	SecretKey            string // dashboard authentication cookie secret key

	// Request history rows finished longer than RetentionPeriod ago are
	// pruned on PruneSchedule (a cron expression).
	RetentionPeriod time.Duration
	PruneSchedule   string
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	ConnectionURL string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string // Redis server address (e.g., "localhost:6379")
	Password string // Password for Redis authentication (optional)
	DB       int    // Redis database number to use (0 by default)
}

// Option type for functional options pattern
type Option func(*Config) error

// New creates a Config with default values. Only the instance name is
// required; option errors are collected and returned together.
func New(instance string, opts ...Option) (*Config, error) {
	cfg := &Config{
		Instance:        instance,
		StorageDriver:   DefaultStorageDriver,
		CacheTTL:        DefaultCacheTTL,
		RetentionPeriod: DefaultRetentionPeriod,
		PruneSchedule:   DefaultPruneSchedule,
	}

	validationErrs := &custom_errors.ValidationError{}
	if instance == "" {
		validationErrs.Add(errors.New("instance name is required"))
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			validationErrs.Add(err)
		}
	}

	if validationErrs.HasError() {
		return nil, validationErrs
	}
	return cfg, nil
}

func WithMaxConcurrent(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return errors.New("max concurrent must be positive")
		}
		c.Queue.MaxConcurrent = n
		return nil
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return errors.New("max retries must be positive")
		}
		c.Queue.MaxRetries = n
		return nil
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return errors.New("retry delay must be positive")
		}
		c.Queue.RetryDelay = d
		return nil
	}
}

func WithRateLimit(limit int, window time.Duration) Option {
	return func(c *Config) error {
		if limit < 1 {
			return errors.New("rate limit must be positive")
		}
		if window <= 0 {
			return errors.New("rate limit window must be positive")
		}
		c.Queue.RateLimit = limit
		c.Queue.RateLimitWindow = window
		return nil
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return errors.New("process timeout must be positive")
		}
		c.Queue.ProcessTimeout = d
		return nil
	}
}

func WithPostgresConfig(pg PostgresConfig) Option {
	return func(c *Config) error {
		if pg.ConnectionURL == "" {
			return errors.New("postgres config: connection URL is required")
		}
		c.StorageDriver = Postgres
		c.PostgresConfig = pg
		return nil
	}
}

func WithRedisCache(r RedisConfig, ttl time.Duration) Option {
	return func(c *Config) error {
		if r.Address == "" {
			return errors.New("redis cache config: address is required")
		}
		if ttl <= 0 {
			return errors.New("redis cache config: TTL must be positive")
		}
		c.CacheEnabled = true
		c.RedisConfig = r
		c.CacheTTL = ttl
		return nil
	}
}

func WithDashboard(port uint) Option {
	return func(c *Config) error {
		if port == 0 {
			return errors.New("dashboard config: port is required")
		}
		c.DashboardEnabled = true
		c.DashboardPort = port
		return nil
	}
}

func WithDashboardAuth(username, password, secretKey string) Option {
	return func(c *Config) error {
		if username == "" || password == "" || secretKey == "" {
			return errors.New("dashboard auth config: username, password and secretKey are required")
		}
		c.DashboardAuthEnabled = true
		c.DashboardUserName = username
		c.DashboardPassword = password
		c.SecretKey = secretKey
		return nil
	}
}

func WithRetention(period time.Duration, schedule string) Option {
	return func(c *Config) error {
		if period <= 0 {
			return errors.New("retention period must be positive")
		}
		if schedule == "" {
			return fmt.Errorf("prune schedule is required")
		}
		c.RetentionPeriod = period
		c.PruneSchedule = schedule
		return nil
	}
}
