package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"dispatchq/internal/models"
	"dispatchq/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	acquired bool
	err      error
	releases int
}

func (f *fakeLocker) TryAcquire(lockID int) (bool, error) {
	return f.acquired, f.err
}

func (f *fakeLocker) Release(lockID int) error {
	f.releases++
	return nil
}

type fakeStats struct{}

func (fakeStats) Len() int      { return 2 }
func (fakeStats) InFlight() int { return 1 }

func seedFinishedRequest(t *testing.T, s *store.MemoryRequestStore, id string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, models.RequestRecord{
		ID:         id,
		Payload:    json.RawMessage(`{}`),
		EnqueuedAt: time.Now(),
	}))
	require.NoError(t, s.MarkProcessing(ctx, id, 0, time.Now()))
	require.NoError(t, s.MarkSuccess(ctx, id))
}

func TestMaintenance_RunPrune(t *testing.T) {
	s := store.NewMemoryRequestStore()
	seedFinishedRequest(t, s, "done-1")
	seedFinishedRequest(t, s, "done-2")

	// Negative retention places the cutoff in the future, so everything
	// already finished is past it.
	m := New(s, nil, nil, -time.Minute, "@hourly")
	m.runPrune()

	counts, err := s.CountGroupedByStatus(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestMaintenance_PruneSkippedWhenLockHeld(t *testing.T) {
	s := store.NewMemoryRequestStore()
	seedFinishedRequest(t, s, "done-1")

	locker := &fakeLocker{acquired: false}
	m := New(s, locker, nil, -time.Minute, "@hourly")
	m.runPrune()

	counts, err := s.CountGroupedByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts["succeeded"])
	assert.Equal(t, 0, locker.releases)
}

func TestMaintenance_PruneReleasesLock(t *testing.T) {
	s := store.NewMemoryRequestStore()
	locker := &fakeLocker{acquired: true}

	m := New(s, locker, nil, -time.Minute, "@hourly")
	m.runPrune()

	assert.Equal(t, 1, locker.releases)
}

func TestMaintenance_PruneLockError(t *testing.T) {
	s := store.NewMemoryRequestStore()
	seedFinishedRequest(t, s, "done-1")

	locker := &fakeLocker{err: errors.New("connection refused")}
	m := New(s, locker, nil, -time.Minute, "@hourly")
	m.runPrune()

	counts, err := s.CountGroupedByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts["succeeded"])
}

func TestMaintenance_StartRejectsBadSchedule(t *testing.T) {
	m := New(store.NewMemoryRequestStore(), nil, nil, time.Hour, "not a cron expression")
	assert.Error(t, m.Start())
}

func TestMaintenance_StartAndStop(t *testing.T) {
	m := New(store.NewMemoryRequestStore(), nil, fakeStats{}, time.Hour, "@hourly")
	require.NoError(t, m.Start())
	m.Stop()
}
