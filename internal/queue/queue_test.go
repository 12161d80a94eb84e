package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitAll[R any](t *testing.T, futs []*Future[R], timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, f := range futs {
		select {
		case <-f.Done():
		case <-ctx.Done():
			t.Fatal("timed out waiting for futures to settle")
		}
	}
}

func TestQueue_ConcurrencyBound(t *testing.T) {
	var current, peak int64

	q := New(func(ctx context.Context, item *Item[int]) (int, error) {
		n := atomic.AddInt64(&current, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return item.Payload, nil
	}, Config{MaxConcurrent: 3, RateLimit: 1000, RateLimitWindow: time.Minute})

	var futs []*Future[int]
	for i := 0; i < 20; i++ {
		futs = append(futs, q.Add(i))
	}
	waitAll(t, futs, 5*time.Second)

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.InFlight())
}

// blockerQueue builds a queue with a single slot occupied by a gate item, so
// everything added afterwards stays pending until the gate opens.
func blockerQueue(t *testing.T, order *[]int, mu *sync.Mutex) (*Queue[int, int], chan struct{}, *Future[int]) {
	t.Helper()
	gate := make(chan struct{})
	q := New(func(ctx context.Context, item *Item[int]) (int, error) {
		if item.Payload == -1 {
			<-gate
			return -1, nil
		}
		mu.Lock()
		*order = append(*order, item.Payload)
		mu.Unlock()
		return item.Payload, nil
	}, Config{MaxConcurrent: 1, RateLimit: 1000, RateLimitWindow: time.Minute})

	blocker := q.Add(-1, WithPriority(1000))
	// Let the blocker occupy the slot before anything else is enqueued.
	require.Eventually(t, func() bool { return q.InFlight() == 1 }, time.Second, time.Millisecond)
	return q, gate, blocker
}

func TestQueue_PriorityOrdering(t *testing.T) {
	var mu sync.Mutex
	var order []int
	q, gate, blocker := blockerQueue(t, &order, &mu)

	futs := []*Future[int]{
		q.Add(1, WithPriority(1)),
		q.Add(5, WithPriority(5)),
		q.Add(3, WithPriority(3)),
	}
	close(gate)
	waitAll(t, append(futs, blocker), 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{5, 3, 1}, order)
}

func TestQueue_FIFOWithinPriority(t *testing.T) {
	var mu sync.Mutex
	var order []int
	q, gate, blocker := blockerQueue(t, &order, &mu)

	futs := []*Future[int]{
		q.Add(10),
		q.Add(20),
		q.Add(30),
	}
	close(gate)
	waitAll(t, append(futs, blocker), 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{10, 20, 30}, order)
}

func TestQueue_RetryBound(t *testing.T) {
	var attempts int64

	q := New(func(ctx context.Context, item *Item[string]) (string, error) {
		n := atomic.AddInt64(&attempts, 1)
		return "", fmt.Errorf("attempt %d failed", n)
	}, Config{MaxConcurrent: 2, RetryDelay: 10 * time.Millisecond, RateLimit: 1000, RateLimitWindow: time.Minute})

	fut := q.Add("always-fails", WithMaxRetries(2))
	_, err := fut.Wait(context.Background())

	require.Error(t, err)
	assert.EqualError(t, err, "attempt 3 failed")
	assert.Equal(t, int64(3), atomic.LoadInt64(&attempts))
}

func TestQueue_SuccessfulRetry(t *testing.T) {
	var attempts int64
	var processed *Item[string]

	q := New(func(ctx context.Context, item *Item[string]) (string, error) {
		processed = item
		if atomic.AddInt64(&attempts, 1) == 1 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}, Config{MaxConcurrent: 2, RetryDelay: 10 * time.Millisecond, RateLimit: 1000, RateLimitWindow: time.Minute})

	fut := q.Add("flaky", WithMaxRetries(3))
	res, err := fut.Wait(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, int64(2), atomic.LoadInt64(&attempts))
	assert.Equal(t, 1, processed.Retries)
}

func TestQueue_NoRetriesWhenZero(t *testing.T) {
	var attempts int64

	q := New(func(ctx context.Context, item *Item[string]) (string, error) {
		atomic.AddInt64(&attempts, 1)
		return "", errors.New("boom")
	}, Config{MaxConcurrent: 1, RetryDelay: 5 * time.Millisecond, RateLimit: 1000, RateLimitWindow: time.Minute})

	fut := q.Add("no-retry", WithMaxRetries(0))
	_, err := fut.Wait(context.Background())

	assert.EqualError(t, err, "boom")
	assert.Equal(t, int64(1), atomic.LoadInt64(&attempts))
}

func TestQueue_RateLimit(t *testing.T) {
	var mu sync.Mutex
	var dispatchedAt []time.Time

	q := New(func(ctx context.Context, item *Item[int]) (int, error) {
		mu.Lock()
		dispatchedAt = append(dispatchedAt, time.Now())
		mu.Unlock()
		return item.Payload, nil
	}, Config{MaxConcurrent: 10, RateLimit: 2, RateLimitWindow: 500 * time.Millisecond})

	start := time.Now()
	var futs []*Future[int]
	for i := 0; i < 5; i++ {
		futs = append(futs, q.Add(i))
	}

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	firstWindow := len(dispatchedAt)
	mu.Unlock()
	assert.Equal(t, 2, firstWindow, "only RateLimit dispatches in the first window")

	waitAll(t, futs, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, dispatchedAt, 5)
	// The remainder waited for the re-check timer, which fires after 1s.
	assert.GreaterOrEqual(t, dispatchedAt[2].Sub(start), 900*time.Millisecond)
}

func TestQueue_ClearRejectsPending(t *testing.T) {
	gate := make(chan struct{})

	q := New(func(ctx context.Context, item *Item[string]) (string, error) {
		<-gate
		return item.Payload, nil
	}, Config{MaxConcurrent: 1, RateLimit: 1000, RateLimitWindow: time.Minute})

	running := q.Add("running")
	require.Eventually(t, func() bool { return q.InFlight() == 1 }, time.Second, time.Millisecond)

	pending := []*Future[string]{
		q.Add("a"),
		q.Add("b"),
		q.Add("c"),
	}
	require.Equal(t, 3, q.Len())

	q.Clear()

	for _, f := range pending {
		_, err := f.Wait(context.Background())
		assert.ErrorIs(t, err, ErrCleared)
	}
	assert.Equal(t, 0, q.Len())

	// The in-flight item is unaffected by Clear.
	close(gate)
	res, err := running.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "running", res)
}

func TestQueue_RetryOutcomeAppliedAfterClear(t *testing.T) {
	var attempts int64

	q := New(func(ctx context.Context, item *Item[string]) (string, error) {
		if atomic.AddInt64(&attempts, 1) == 1 {
			return "", errors.New("transient")
		}
		return "recovered", nil
	}, Config{MaxConcurrent: 1, RetryDelay: 50 * time.Millisecond, RateLimit: 1000, RateLimitWindow: time.Minute})

	fut := q.Add("retried", WithMaxRetries(1))

	// Wait until the first attempt failed and the item sits in backoff,
	// then clear. The item is not pending, so Clear must not touch it.
	require.Eventually(t, func() bool { return atomic.LoadInt64(&attempts) == 1 }, time.Second, time.Millisecond)
	q.Clear()

	res, err := fut.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "recovered", res)
}

func TestQueue_RetriedItemPrecedesLaterSamePriority(t *testing.T) {
	var mu sync.Mutex
	var order []string
	var flakyAttempts int64
	gate := make(chan struct{})

	q := New(func(ctx context.Context, item *Item[string]) (string, error) {
		switch item.Payload {
		case "blocker":
			<-gate
			return item.Payload, nil
		case "flaky":
			if atomic.AddInt64(&flakyAttempts, 1) == 1 {
				return "", errors.New("transient")
			}
		}
		mu.Lock()
		order = append(order, item.Payload)
		mu.Unlock()
		return item.Payload, nil
	}, Config{MaxConcurrent: 1, RetryDelay: 10 * time.Millisecond, RateLimit: 1000, RateLimitWindow: time.Minute})

	flaky := q.Add("flaky", WithMaxRetries(1))

	// First attempt fails; while the item waits out its backoff, occupy the
	// slot and enqueue fresh same-priority work.
	require.Eventually(t, func() bool { return atomic.LoadInt64(&flakyAttempts) == 1 }, time.Second, time.Millisecond)
	blocker := q.Add("blocker", WithPriority(1))
	require.Eventually(t, func() bool { return q.InFlight() == 1 }, time.Second, time.Millisecond)
	fresh := q.Add("fresh")

	// Let the backoff expire so the retried item is back in the pending set.
	time.Sleep(50 * time.Millisecond)
	close(gate)

	waitAll(t, []*Future[string]{flaky, blocker, fresh}, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"flaky", "fresh"}, order)
}

func TestQueue_ProcessPanicBecomesFailure(t *testing.T) {
	q := New(func(ctx context.Context, item *Item[string]) (string, error) {
		panic("kaboom")
	}, Config{MaxConcurrent: 1, RetryDelay: 5 * time.Millisecond, RateLimit: 1000, RateLimitWindow: time.Minute})

	fut := q.Add("panics", WithMaxRetries(0))
	_, err := fut.Wait(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "process panic")
}

func TestQueue_ProcessTimeout(t *testing.T) {
	q := New(func(ctx context.Context, item *Item[string]) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	}, Config{
		MaxConcurrent:   1,
		RetryDelay:      5 * time.Millisecond,
		RateLimit:       1000,
		RateLimitWindow: time.Minute,
		ProcessTimeout:  30 * time.Millisecond,
	})

	fut := q.Add("slow", WithMaxRetries(0))
	_, err := fut.Wait(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_EventStream(t *testing.T) {
	q := New(func(ctx context.Context, item *Item[string]) (string, error) {
		return "done", nil
	}, Config{MaxConcurrent: 1, RateLimit: 1000, RateLimitWindow: time.Minute})

	fut := q.Add("observed")
	_, err := fut.Wait(context.Background())
	require.NoError(t, err)

	var types []EventType
	deadline := time.After(time.Second)
	for len(types) < 3 {
		select {
		case ev := <-q.Events():
			types = append(types, ev.Type)
		case <-deadline:
			t.Fatal("timed out collecting events")
		}
	}
	assert.Equal(t, []EventType{EventQueued, EventStarted, EventSucceeded}, types)
}

// Concurrent enqueues race against completions re-running dispatch; no
// matter how that interleaves, an item's queued event must reach the stream
// before its started event.
func TestQueue_EventOrderPerItem(t *testing.T) {
	q := New(func(ctx context.Context, item *Item[int]) (int, error) {
		return item.Payload, nil
	}, Config{MaxConcurrent: 4, RateLimit: 100000, RateLimitWindow: time.Minute})

	const n = 200
	futs := make([]*Future[int], n)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := g; i < n; i += 4 {
				futs[i] = q.Add(i)
			}
		}(g)
	}
	wg.Wait()
	waitAll(t, futs, 10*time.Second)

	events := make(map[string][]EventType)
	deadline := time.After(5 * time.Second)
	for collected := 0; collected < 3*n; collected++ {
		select {
		case ev := <-q.Events():
			events[ev.ItemID] = append(events[ev.ItemID], ev.Type)
		case <-deadline:
			t.Fatalf("timed out after %d events", collected)
		}
	}

	require.Len(t, events, n)
	for id, types := range events {
		assert.Equal(t, []EventType{EventQueued, EventStarted, EventSucceeded}, types,
			"event order for item %s", id)
	}
}

func TestFuture_SettlesExactlyOnce(t *testing.T) {
	fut := newFuture[string]("item-1")
	fut.settle("first", nil)
	fut.settle("", errors.New("second"))

	res, err := fut.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", res)
}

func TestFuture_WaitHonorsContext(t *testing.T) {
	fut := newFuture[string]("item-2")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := fut.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, DefaultMaxConcurrent, cfg.MaxConcurrent)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultRetryDelay, cfg.RetryDelay)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimit)
	assert.Equal(t, DefaultRateLimitWindow, cfg.RateLimitWindow)
	assert.Equal(t, time.Duration(0), cfg.ProcessTimeout)
}
