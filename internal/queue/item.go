package queue

import (
	"context"
	"sync"
	"time"
)

// Item is one unit of queued work. The queue owns an item exclusively from
// Add until its future settles; retries re-dispatch the same item with its
// Retries count incremented, not a fresh copy.
type Item[P any] struct {
	ID         string
	Priority   int
	Payload    P
	Retries    int
	MaxRetries int
	EnqueuedAt time.Time

	// Enqueue sequence number. It is kept across retries so a retried item
	// keeps its place ahead of same-priority work enqueued after it.
	seq uint64
}

// Future is the caller's handle on a pending result. It settles exactly
// once: either with the processing result, the final error after the retry
// budget is exhausted, or ErrCleared.
type Future[R any] struct {
	itemID string
	once   sync.Once
	done   chan struct{}
	val    R
	err    error
}

func newFuture[R any](itemID string) *Future[R] {
	return &Future[R]{itemID: itemID, done: make(chan struct{})}
}

// ItemID returns the ID of the queued item this future belongs to, matching
// the ID under which the request is recorded.
func (f *Future[R]) ItemID() string {
	return f.itemID
}

func (f *Future[R]) settle(val R, err error) {
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the future settles or ctx is done. Waiting may be
// arbitrarily long: it is bounded only by retries, backoff and processing
// time.
func (f *Future[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	case <-f.done:
		return f.val, f.err
	}
}

// Done returns a channel closed when the future settles.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

type addOptions struct {
	priority      int
	maxRetries    int
	maxRetriesSet bool
}

// AddOption customizes a single Add call.
type AddOption func(*addOptions)

// WithPriority sets the item's priority. Higher values dequeue first;
// the default is 0.
func WithPriority(p int) AddOption {
	return func(o *addOptions) {
		o.priority = p
	}
}

// WithMaxRetries overrides the queue-level retry ceiling for one item.
// Zero means the item is never retried.
func WithMaxRetries(n int) AddOption {
	return func(o *addOptions) {
		if n < 0 {
			n = 0
		}
		o.maxRetries = n
		o.maxRetriesSet = true
	}
}
