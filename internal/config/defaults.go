package config

import "time"

const (
	DefaultStorageDriver   = Memory
	DefaultRetentionPeriod = 7 * 24 * time.Hour
	DefaultPruneSchedule   = "@hourly"
	DefaultCacheTTL        = 15 * time.Minute
)
