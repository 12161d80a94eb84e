// Package store persists request history. The queue forgets an item the
// moment it settles; the store is what the dashboard and retention pruning
// operate on.
package store

import (
	"context"
	"time"

	"dispatchq/internal/models"
	"dispatchq/internal/state"
)

type RequestStore interface {
	// Insert records a freshly enqueued request in status queued.
	Insert(ctx context.Context, rec models.RequestRecord) error

	// MarkProcessing records the start of an attempt. attempt is zero-based.
	MarkProcessing(ctx context.Context, id string, attempt int, startedAt time.Time) error

	MarkSuccess(ctx context.Context, id string) error

	// MarkFailure records a failed attempt: retrying while attempts are left,
	// failed once the ceiling is reached.
	MarkFailure(ctx context.Context, id string, errMsg string, attempts, maxAttempts int) error

	MarkCleared(ctx context.Context, id string) error

	// Fetch returns a page of history, newest first, optionally filtered by
	// status.
	Fetch(ctx context.Context, page, pageSize int, statuses []state.Status) (*models.PaginationResult[models.RequestRecord], error)

	CountGroupedByStatus(ctx context.Context) (map[state.Status]int, error)

	// PruneFinishedBefore deletes terminal records finished before cutoff and
	// returns how many were removed.
	PruneFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
