package cache

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/walletauth/ports"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is an in-memory NonceCache intended for tests and single-instance runs.
// Expired entries are dropped lazily on access.
type MemoryCache struct {
	entries map[string]entry
	mu      sync.Mutex
	now     func() time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// WithClock overrides the time source used for expiry
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(key)
	if !ok {
		return "", ports.ErrCacheMiss
	}
	return e.value, nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) Take(ctx context.Context, key string, check func(value string) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(key)
	if !ok {
		return ports.ErrCacheMiss
	}
	if err := check(e.value); err != nil {
		return err
	}
	delete(c.entries, key)
	return nil
}

// lookup must be called with mu held
func (c *MemoryCache) lookup(key string) (entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return entry{}, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return entry{}, false
	}
	return e, true
}
