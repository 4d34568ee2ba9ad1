package cache

import (
	"context"
	"sync"
	"time"

	"github.com/feedcanon/backend/internal/domain"
)

// defaultSweepInterval is how often expired entries are purged
const defaultSweepInterval = 10 * time.Minute

// entry is a single cached payload with its expiry
type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryCache is a thread-safe in-process cache with TTL support
type MemoryCache struct {
	data  map[string]entry
	mutex sync.RWMutex
	stop  chan struct{}
	once  sync.Once
}

// NewMemoryCache creates a memory cache and starts its expiry sweeper
func NewMemoryCache() *MemoryCache {
	return newMemoryCache(defaultSweepInterval)
}

func newMemoryCache(sweepEvery time.Duration) *MemoryCache {
	c := &MemoryCache{
		data: make(map[string]entry),
		stop: make(chan struct{}),
	}
	go c.sweep(sweepEvery)
	return c
}

// Get returns a copy of the payload stored under key
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, ok := c.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, domain.ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a copy of value under key for ttl
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = entry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes key from the cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// Exists reports whether key holds an unexpired payload
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, ok := c.data[key]
	return ok && !e.expired(time.Now()), nil
}

// Size returns the number of stored entries, expired ones included
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Clear removes all entries
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]entry)
}

// Close stops the expiry sweeper
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *MemoryCache) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mutex.Lock()
			for key, e := range c.data {
				if e.expired(now) {
					delete(c.data, key)
				}
			}
			c.mutex.Unlock()
		}
	}
}
