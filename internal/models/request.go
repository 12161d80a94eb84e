package models

import (
	"encoding/json"
	"time"

	"dispatchq/internal/state"
)

// RequestRecord is the persisted view of one queued request. The queue
// discards items once they settle; the record is what the dashboard and
// history queries see afterwards.
type RequestRecord struct {
	ID          string
	Priority    int
	Payload     json.RawMessage
	Status      state.Status
	Attempts    int
	MaxAttempts int
	EnqueuedAt  time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	LastError   *string
	CreatedAt   time.Time
}
