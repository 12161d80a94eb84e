package store

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"dispatchq/internal/models"
	"dispatchq/internal/state"
)

// MemoryRequestStore keeps request history in process memory. Used for
// storage-less runs and tests; history is lost on restart.
type MemoryRequestStore struct {
	mu      sync.Mutex
	records map[string]*models.RequestRecord
	order   []string // insertion order, oldest first
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{
		records: make(map[string]*models.RequestRecord),
	}
}

func (s *MemoryRequestStore) Insert(ctx context.Context, rec models.RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("request %s already recorded", rec.ID)
	}
	rec.Status = state.StatusQueued
	rec.CreatedAt = time.Now()
	s.records[rec.ID] = &rec
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *MemoryRequestStore) MarkProcessing(ctx context.Context, id string, attempt int, startedAt time.Time) error {
	return s.update(id, func(rec *models.RequestRecord) {
		rec.Status = state.StatusProcessing
		rec.Attempts = attempt + 1
		rec.StartedAt = &startedAt
	})
}

func (s *MemoryRequestStore) MarkSuccess(ctx context.Context, id string) error {
	return s.update(id, func(rec *models.RequestRecord) {
		now := time.Now()
		rec.Status = state.StatusSucceeded
		rec.FinishedAt = &now
	})
}

func (s *MemoryRequestStore) MarkFailure(ctx context.Context, id string, errMsg string, attempts, maxAttempts int) error {
	return s.update(id, func(rec *models.RequestRecord) {
		rec.Attempts = attempts
		rec.LastError = &errMsg
		if attempts <= maxAttempts {
			rec.Status = state.StatusRetrying
			return
		}
		now := time.Now()
		rec.Status = state.StatusFailed
		rec.FinishedAt = &now
	})
}

func (s *MemoryRequestStore) MarkCleared(ctx context.Context, id string) error {
	return s.update(id, func(rec *models.RequestRecord) {
		now := time.Now()
		rec.Status = state.StatusCleared
		rec.FinishedAt = &now
	})
}

func (s *MemoryRequestStore) Fetch(ctx context.Context, page, pageSize int, statuses []state.Status) (*models.PaginationResult[models.RequestRecord], error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.RequestRecord
	// Newest first.
	for i := len(s.order) - 1; i >= 0; i-- {
		rec := s.records[s.order[i]]
		if rec == nil || !statusMatches(rec.Status, statuses) {
			continue
		}
		matched = append(matched, *rec)
	}

	totalItems := len(matched)
	totalPages := int(math.Ceil(float64(totalItems) / float64(pageSize)))

	start := (page - 1) * pageSize
	if start > totalItems {
		start = totalItems
	}
	end := start + pageSize
	if end > totalItems {
		end = totalItems
	}

	return &models.PaginationResult[models.RequestRecord]{
		Items:           matched[start:end],
		TotalItems:      totalItems,
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

func (s *MemoryRequestStore) CountGroupedByStatus(ctx context.Context) (map[state.Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[state.Status]int)
	for _, rec := range s.records {
		counts[rec.Status]++
	}
	return counts, nil
}

func (s *MemoryRequestStore) PruneFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64
	remaining := s.order[:0]
	for _, id := range s.order {
		rec := s.records[id]
		if rec != nil && rec.Status.Terminal() && rec.FinishedAt != nil && rec.FinishedAt.Before(cutoff) {
			delete(s.records, id)
			pruned++
			continue
		}
		remaining = append(remaining, id)
	}
	s.order = remaining
	return pruned, nil
}

func (s *MemoryRequestStore) Close() error {
	return nil
}

func (s *MemoryRequestStore) update(id string, apply func(*models.RequestRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("request %s not found", id)
	}
	apply(rec)
	return nil
}

func statusMatches(status state.Status, statuses []state.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
