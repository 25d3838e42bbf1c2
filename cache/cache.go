package cache

import (
	"sync"
	"time"
)

// cacheItem represents an item stored in the cache, including its expiration time.
type cacheItem[V any] struct {
	value     V
	expiresAt int64 // UnixNano timestamp, 0 means no expiration
}

func (item *cacheItem[V]) isExpired(now int64) bool {
	return item.expiresAt != 0 && now > item.expiresAt
}

// Cache is a thread-safe, generic cache with TTL support.
// Evicted values (deleted, replaced, expired or cleaned) are handed to the
// OnEvict callback, which lets callers wipe sensitive values in place.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	items      map[K]*cacheItem[V]
	defaultTTL time.Duration
	onEvict    func(key K, value V)
	now        func() time.Time

	janitorInterval time.Duration
	janitorOnce     sync.Once
	closeOnce       sync.Once
	stopJanitorCh   chan struct{}
}

// Option is a functional option type for Cache configuration.
type Option[K comparable, V any] func(*Cache[K, V])

// WithDefaultTTL sets the Time-To-Live used by Set. Zero means items never expire.
func WithDefaultTTL[K comparable, V any](ttl time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.defaultTTL = ttl
	}
}

// WithJanitorInterval sets the interval at which expired items are swept.
// The janitor only starts once an item with a TTL is stored.
func WithJanitorInterval[K comparable, V any](interval time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.janitorInterval = interval
	}
}

// WithOnEvict registers a callback invoked for every value leaving the cache.
func WithOnEvict[K comparable, V any](fn func(key K, value V)) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.onEvict = fn
	}
}

// withClock overrides the time source in tests.
func withClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.now = now
	}
}

// NewCache creates a new Cache instance with optional configurations.
func NewCache[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		items:         make(map[K]*cacheItem[V]),
		now:           time.Now,
		stopJanitorCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache[K, V]) startJanitor() {
	if c.janitorInterval <= 0 {
		return
	}
	c.janitorOnce.Do(func() {
		ticker := time.NewTicker(c.janitorInterval)
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					c.DeleteExpired()
				case <-c.stopJanitorCh:
					return
				}
			}
		}()
	})
}

// Set adds or updates an item with the default TTL.
func (c *Cache[K, V]) Set(k K, v V) {
	c.SetWithTTL(k, v, c.defaultTTL)
}

// SetWithTTL adds or updates an item with a specific TTL.
// A zero ttl never expires; a negative ttl removes the key.
func (c *Cache[K, V]) SetWithTTL(k K, v V, ttl time.Duration) {
	if ttl < 0 {
		c.Delete(k)
		return
	}

	var expiresAt int64
	if ttl > 0 {
		expiresAt = c.now().Add(ttl).UnixNano()
		c.startJanitor()
	}

	c.mu.Lock()
	old, replaced := c.items[k]
	c.items[k] = &cacheItem[V]{value: v, expiresAt: expiresAt}
	c.mu.Unlock()

	if replaced {
		c.evict(k, old.value)
	}
}

// Get retrieves an item from the cache.
// It returns the value and true if the item exists and has not expired.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	var zeroV V

	c.mu.Lock()
	item, ok := c.items[k]
	if !ok {
		c.mu.Unlock()
		return zeroV, false
	}
	if item.isExpired(c.now().UnixNano()) {
		delete(c.items, k)
		c.mu.Unlock()
		c.evict(k, item.value)
		return zeroV, false
	}
	c.mu.Unlock()
	return item.value, true
}

// Has reports whether an unexpired item exists for k.
func (c *Cache[K, V]) Has(k K) bool {
	_, ok := c.Get(k)
	return ok
}

// Delete removes an item from the cache.
func (c *Cache[K, V]) Delete(k K) {
	c.mu.Lock()
	item, ok := c.items[k]
	if ok {
		delete(c.items, k)
	}
	c.mu.Unlock()

	if ok {
		c.evict(k, item.value)
	}
}

// DeleteExpired removes every expired item.
func (c *Cache[K, V]) DeleteExpired() {
	now := c.now().UnixNano()
	expired := make(map[K]V)

	c.mu.Lock()
	for k, item := range c.items {
		if item.isExpired(now) {
			expired[k] = item.value
			delete(c.items, k)
		}
	}
	c.mu.Unlock()

	for k, v := range expired {
		c.evict(k, v)
	}
}

// Clean removes all items from the cache.
func (c *Cache[K, V]) Clean() {
	c.mu.Lock()
	old := c.items
	c.items = make(map[K]*cacheItem[V])
	c.mu.Unlock()

	for k, item := range old {
		c.evict(k, item.value)
	}
}

// Len returns the number of stored items, including expired ones not yet collected.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close stops the janitor goroutine and evicts every item.
func (c *Cache[K, V]) Close() {
	c.closeOnce.Do(func() {
		close(c.stopJanitorCh)
	})
	c.Clean()
}

func (c *Cache[K, V]) evict(k K, v V) {
	if c.onEvict != nil {
		c.onEvict(k, v)
	}
}
