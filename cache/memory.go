package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCacheClosed is returned by a MemoryCache after Close
var ErrCacheClosed = errors.New("cache closed")

// MemoryCache is an in-memory cache implementation
type MemoryCache struct {
	mu          sync.Mutex
	entries     map[string]time.Time
	maxSize     int
	cleanup     *time.Ticker
	stop        chan struct{}
	closeOnce   sync.Once
	closed      bool
	enableLRU   bool
	accessOrder []string // For LRU eviction
	now         func() time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(maxSize int, cleanupInterval time.Duration, enableLRU bool) *MemoryCache {
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}

	cache := &MemoryCache{
		entries:     make(map[string]time.Time),
		maxSize:     maxSize,
		cleanup:     time.NewTicker(cleanupInterval),
		stop:        make(chan struct{}),
		enableLRU:   enableLRU,
		accessOrder: make([]string, 0),
		now:         time.Now,
	}

	go cache.cleanupExpired()

	return cache
}

// IsProcessed checks if a delivery has been handled
func (c *MemoryCache) IsProcessed(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrCacheClosed
	}

	expiresAt, exists := c.entries[key]
	if !exists {
		return false, nil
	}

	if c.now().After(expiresAt) {
		delete(c.entries, key)
		if c.enableLRU {
			c.removeFromAccessOrder(key)
		}
		return false, nil
	}

	if c.enableLRU {
		c.updateAccessOrder(key)
	}

	return true, nil
}

// MarkProcessed marks a delivery as handled
func (c *MemoryCache) MarkProcessed(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOne()
	}

	c.entries[key] = c.now().Add(ttl)

	if c.enableLRU {
		c.updateAccessOrder(key)
	}

	return nil
}

// Len returns the number of tracked entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close closes the cache and releases resources
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		c.cleanup.Stop()
		close(c.stop)

		c.mu.Lock()
		c.entries = make(map[string]time.Time)
		c.accessOrder = nil
		c.closed = true
		c.mu.Unlock()
	})
	return nil
}

// evictOne drops the least recently used entry, or an expired one, or any one.
// Callers hold c.mu.
func (c *MemoryCache) evictOne() {
	if c.enableLRU {
		if len(c.accessOrder) > 0 {
			oldest := c.accessOrder[0]
			delete(c.entries, oldest)
			c.accessOrder = c.accessOrder[1:]
		}
		return
	}

	now := c.now()
	for key, expiresAt := range c.entries {
		if now.After(expiresAt) {
			delete(c.entries, key)
			return
		}
	}
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

// cleanupExpired periodically removes expired entries
func (c *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-c.cleanup.C:
			c.mu.Lock()
			now := c.now()
			for key, expiresAt := range c.entries {
				if now.After(expiresAt) {
					delete(c.entries, key)
					if c.enableLRU {
						c.removeFromAccessOrder(key)
					}
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

// updateAccessOrder updates the access order for LRU
func (c *MemoryCache) updateAccessOrder(key string) {
	c.removeFromAccessOrder(key)
	c.accessOrder = append(c.accessOrder, key)
}

// removeFromAccessOrder removes an entry from access order
func (c *MemoryCache) removeFromAccessOrder(key string) {
	for i, k := range c.accessOrder {
		if k == key {
			c.accessOrder = append(c.accessOrder[:i], c.accessOrder[i+1:]...)
			return
		}
	}
}
