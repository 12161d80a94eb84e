package config

import (
	"testing"
	"time"

	"dispatchq/custom_errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageDriver_String(t *testing.T) {
	tests := []struct {
		name     string
		driver   StorageDriver
		expected string
	}{
		{
			name:     "Memory driver",
			driver:   Memory,
			expected: "memory",
		},
		{
			name:     "Postgres driver",
			driver:   Postgres,
			expected: "postgres",
		},
		{
			name:     "Unknown driver",
			driver:   StorageDriver(999),
			expected: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.driver.String()
			if result != tt.expected {
				t.Errorf("String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	cfg, err := New("test-instance")
	require.NoError(t, err)

	assert.Equal(t, "test-instance", cfg.Instance)
	assert.Equal(t, DefaultStorageDriver, cfg.StorageDriver)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.Equal(t, DefaultRetentionPeriod, cfg.RetentionPeriod)
	assert.Equal(t, DefaultPruneSchedule, cfg.PruneSchedule)
	assert.False(t, cfg.DashboardEnabled)
	assert.False(t, cfg.CacheEnabled)
}

func TestNew_AppliesOptions(t *testing.T) {
	cfg, err := New("test-instance",
		WithMaxConcurrent(5),
		WithMaxRetries(2),
		WithRetryDelay(500*time.Millisecond),
		WithRateLimit(20, 30*time.Second),
		WithProcessTimeout(10*time.Second),
		WithPostgresConfig(PostgresConfig{ConnectionURL: "postgres://localhost/dispatchq"}),
		WithDashboard(8080),
		WithDashboardAuth("admin", "secret", "cookie-key"),
		WithRetention(48*time.Hour, "@daily"),
	)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Queue.MaxConcurrent)
	assert.Equal(t, 2, cfg.Queue.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Queue.RetryDelay)
	assert.Equal(t, 20, cfg.Queue.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Queue.RateLimitWindow)
	assert.Equal(t, 10*time.Second, cfg.Queue.ProcessTimeout)
	assert.Equal(t, Postgres, cfg.StorageDriver)
	assert.True(t, cfg.DashboardEnabled)
	assert.Equal(t, uint(8080), cfg.DashboardPort)
	assert.True(t, cfg.DashboardAuthEnabled)
	assert.Equal(t, 48*time.Hour, cfg.RetentionPeriod)
	assert.Equal(t, "@daily", cfg.PruneSchedule)
}

func TestNew_CollectsAllValidationErrors(t *testing.T) {
	_, err := New("",
		WithMaxConcurrent(0),
		WithRateLimit(0, 0),
		WithDashboard(0),
	)
	require.Error(t, err)

	var verr *custom_errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 4)
}

func TestWithRedisCache(t *testing.T) {
	cfg, err := New("test-instance",
		WithRedisCache(RedisConfig{Address: "localhost:6379"}, 5*time.Minute))
	require.NoError(t, err)

	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, "localhost:6379", cfg.RedisConfig.Address)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)

	_, err = New("test-instance", WithRedisCache(RedisConfig{}, time.Minute))
	assert.Error(t, err)
}
