package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process ResponseCache with per-entry expiry and a
// background janitor that evicts stale entries.
type MemoryCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]memoryEntry

	cancel context.CancelFunc
	done   chan struct{}
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.janitor(ctx)
	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	return nil
}

func (c *MemoryCache) Close() error {
	c.cancel()
	<-c.done
	return nil
}

func (c *MemoryCache) janitor(ctx context.Context) {
	defer close(c.done)

	interval := c.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.evictExpired(time.Now())
		}
	}
}

func (c *MemoryCache) evictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
