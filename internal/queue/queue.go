// Package queue implements a bounded asynchronous request queue: items are
// executed by an injected processing function with at most MaxConcurrent in
// flight, dispatches are rate limited per fixed window, and failures are
// retried with linear backoff up to a per-item ceiling. Priority ordering
// is descending, FIFO within a priority band.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ErrCleared settles every pending item rejected by Clear, so callers can
// tell a shut-down queue from a failed operation.
var ErrCleared = errors.New("queue cleared")

// ProcessFunc executes one item. It must be safe to call again with the same
// item after a failure, since retries re-dispatch the item in place. A nil
// error is success; any error is a failure that counts against the item's
// retry budget. ctx carries the per-item timeout when one is configured.
type ProcessFunc[P, R any] func(ctx context.Context, item *Item[P]) (R, error)

type pendingItem[P, R any] struct {
	item *Item[P]
	fut  *Future[R]
}

// Queue is a single independent instance; nothing is shared between
// instances. The zero value is not usable, construct with New.
type Queue[P, R any] struct {
	cfg     Config
	process ProcessFunc[P, R]

	mu             sync.Mutex
	pending        []*pendingItem[P, R]
	inFlight       int
	seq            uint64
	limiter        windowLimiter
	rateTimerArmed bool

	// slots is the authority on the concurrency cap: a dispatch holds one
	// permit from just before the process call until just after it.
	slots *semaphore.Weighted

	events chan Event[P]
}

// New builds a queue executing items with process. Zero fields of cfg fall
// back to defaults.
func New[P, R any](process ProcessFunc[P, R], cfg Config) *Queue[P, R] {
	cfg = cfg.withDefaults()
	return &Queue[P, R]{
		cfg:     cfg,
		process: process,
		slots:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		limiter: windowLimiter{limit: cfg.RateLimit, window: cfg.RateLimitWindow},
		events:  make(chan Event[P], eventBuffer),
	}
}

// Add inserts payload into the pending set and returns a future for its
// result. The future settles with the processing result, with the final
// error once retries are exhausted, or with ErrCleared.
func (q *Queue[P, R]) Add(payload P, opts ...AddOption) *Future[R] {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}
	maxRetries := q.cfg.MaxRetries
	if o.maxRetriesSet {
		maxRetries = o.maxRetries
	}

	id := uuid.NewString()
	fut := newFuture[R](id)

	q.mu.Lock()
	q.seq++
	it := &Item[P]{
		ID:         id,
		Priority:   o.priority,
		Payload:    payload,
		MaxRetries: maxRetries,
		EnqueuedAt: time.Now(),
		seq:        q.seq,
	}
	q.insertLocked(&pendingItem[P, R]{item: it, fut: fut})
	// Published under the lock so the queued event is on the channel before
	// any other goroutine can dispatch the item and publish its started
	// event. publish never blocks, so holding the lock here is safe.
	q.publish(Event[P]{
		Type:       EventQueued,
		ItemID:     it.ID,
		Priority:   it.Priority,
		Payload:    payload,
		MaxRetries: maxRetries,
		At:         it.EnqueuedAt,
	})
	q.mu.Unlock()

	q.dispatch()
	return fut
}

// Len returns the number of pending items, not counting in-flight ones or
// items sitting out a retry backoff.
func (q *Queue[P, R]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight returns the number of items currently being processed.
func (q *Queue[P, R]) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Clear rejects every pending item with ErrCleared and empties the pending
// set. In-flight items are untouched: their outcome, including re-entry
// through a retry backoff, is still applied afterwards.
func (q *Queue[P, R]) Clear() {
	q.mu.Lock()
	cleared := q.pending
	q.pending = nil
	q.mu.Unlock()

	var zero R
	for _, pi := range cleared {
		pi.fut.settle(zero, ErrCleared)
		q.publish(Event[P]{
			Type:     EventCleared,
			ItemID:   pi.item.ID,
			Priority: pi.item.Priority,
			Payload:  pi.item.Payload,
			Attempt:  pi.item.Retries,
			Err:      ErrCleared,
			At:       time.Now(),
		})
	}
}

// Events exposes the item lifecycle stream. Consume it promptly; overflow
// is dropped, never blocking dispatch.
func (q *Queue[P, R]) Events() <-chan Event[P] {
	return q.events
}

// insertLocked places pi by descending priority, ascending sequence within a
// band. New items carry the highest sequence so far and land at the back of
// their band; a requeued item keeps its original sequence and lands ahead of
// same-priority work enqueued after it.
func (q *Queue[P, R]) insertLocked(pi *pendingItem[P, R]) {
	i := sort.Search(len(q.pending), func(i int) bool {
		other := q.pending[i]
		if other.item.Priority != pi.item.Priority {
			return other.item.Priority < pi.item.Priority
		}
		return other.item.seq > pi.item.seq
	})
	q.pending = append(q.pending, nil)
	copy(q.pending[i+1:], q.pending[i:])
	q.pending[i] = pi
}

// dispatch drains the pending set into processing goroutines until the
// concurrency cap or the rate limit stops it. It runs after every enqueue,
// every completion, every backoff expiry and every rate-limit re-check.
func (q *Queue[P, R]) dispatch() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if len(q.pending) == 0 {
			return
		}
		if !q.slots.TryAcquire(1) {
			// Cap reached; the next completion re-triggers dispatch.
			return
		}
		if !q.limiter.allow(time.Now()) {
			q.slots.Release(1)
			q.armRateTimerLocked()
			return
		}
		pi := q.pending[0]
		q.pending = q.pending[1:]
		q.inFlight++
		go q.run(pi)
	}
}

func (q *Queue[P, R]) armRateTimerLocked() {
	if q.rateTimerArmed {
		return
	}
	q.rateTimerArmed = true
	time.AfterFunc(rateLimitRecheck, func() {
		q.mu.Lock()
		q.rateTimerArmed = false
		q.mu.Unlock()
		q.dispatch()
	})
}

func (q *Queue[P, R]) run(pi *pendingItem[P, R]) {
	it := pi.item

	q.publish(Event[P]{
		Type:       EventStarted,
		ItemID:     it.ID,
		Priority:   it.Priority,
		Payload:    it.Payload,
		Attempt:    it.Retries,
		MaxRetries: it.MaxRetries,
		At:         time.Now(),
	})

	res, err := q.invoke(it)

	q.mu.Lock()
	q.inFlight--
	q.mu.Unlock()
	q.slots.Release(1)

	switch {
	case err == nil:
		pi.fut.settle(res, nil)
		q.publish(Event[P]{
			Type:     EventSucceeded,
			ItemID:   it.ID,
			Priority: it.Priority,
			Payload:  it.Payload,
			Attempt:  it.Retries,
			At:       time.Now(),
		})
	case it.Retries < it.MaxRetries:
		it.Retries++
		q.publish(Event[P]{
			Type:       EventRetrying,
			ItemID:     it.ID,
			Priority:   it.Priority,
			Payload:    it.Payload,
			Attempt:    it.Retries,
			MaxRetries: it.MaxRetries,
			Err:        err,
			At:         time.Now(),
		})
		// Linear backoff scaled by attempt number. The freed slot is handed
		// to other work immediately; this item re-enters when the timer
		// fires.
		delay := q.cfg.RetryDelay * time.Duration(it.Retries)
		time.AfterFunc(delay, func() {
			q.requeue(pi)
		})
	default:
		var zero R
		pi.fut.settle(zero, err)
		q.publish(Event[P]{
			Type:       EventFailed,
			ItemID:     it.ID,
			Priority:   it.Priority,
			Payload:    it.Payload,
			Attempt:    it.Retries,
			MaxRetries: it.MaxRetries,
			Err:        err,
			At:         time.Now(),
		})
	}

	q.dispatch()
}

// invoke calls the processing function with panic containment; a panic is
// reported as an ordinary failure so the item's future still settles.
func (q *Queue[P, R]) invoke(it *Item[P]) (res R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("process panic: %v", r)
		}
	}()

	ctx := context.Background()
	if q.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.ProcessTimeout)
		defer cancel()
	}
	return q.process(ctx, it)
}

func (q *Queue[P, R]) requeue(pi *pendingItem[P, R]) {
	q.mu.Lock()
	q.insertLocked(pi)
	q.mu.Unlock()
	q.dispatch()
}

func (q *Queue[P, R]) publish(ev Event[P]) {
	select {
	case q.events <- ev:
	default:
	}
}
