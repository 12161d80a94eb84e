// Package maintenance runs the dispatcher's housekeeping on a cron
// schedule: pruning request history past its retention period and logging a
// periodic queue snapshot.
package maintenance

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"dispatchq/internal/lock"
	"dispatchq/internal/store"
)

const pruneTimeout = time.Minute

// QueueStats is the live view of a queue, satisfied by queue.Queue.
type QueueStats interface {
	Len() int
	InFlight() int
}

type Maintenance struct {
	store     store.RequestStore
	locker    lock.AdvisoryLocker // nil when no database is shared between instances
	stats     QueueStats
	retention time.Duration
	schedule  string

	cron *cron.Cron
}

func New(requestStore store.RequestStore, locker lock.AdvisoryLocker, stats QueueStats, retention time.Duration, schedule string) *Maintenance {
	return &Maintenance{
		store:     requestStore,
		locker:    locker,
		stats:     stats,
		retention: retention,
		schedule:  schedule,
	}
}

func (m *Maintenance) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(m.schedule, m.runPrune); err != nil {
		return err
	}
	if m.stats != nil {
		if _, err := c.AddFunc("@every 1m", m.logStats); err != nil {
			return err
		}
	}
	c.Start()
	m.cron = c
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (m *Maintenance) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
}

func (m *Maintenance) runPrune() {
	if m.locker != nil {
		acquired, err := m.locker.TryAcquire(lock.PruneLock)
		if err != nil {
			log.Printf("maintenance: prune lock error: %v", err)
			return
		}
		if !acquired {
			// Another instance is pruning.
			return
		}
		defer m.locker.Release(lock.PruneLock)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()

	cutoff := time.Now().Add(-m.retention)
	pruned, err := m.store.PruneFinishedBefore(ctx, cutoff)
	if err != nil {
		log.Printf("maintenance: prune failed: %v", err)
		return
	}
	if pruned > 0 {
		log.Printf("maintenance: pruned %d finished requests older than %s", pruned, m.retention)
	}
}

func (m *Maintenance) logStats() {
	log.Printf("queue stats: pending=%d in-flight=%d", m.stats.Len(), m.stats.InFlight())
}
