package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"modelarena/internal/core"
)

// LRUCache is a thread-safe LRU cache with per-entry expiration.
type LRUCache struct {
	capacity int
	items    map[string]*list.Element
	order    *list.List
	mu       sync.Mutex
	onEvict  func(key string)
	ctx      context.Context
	cancel   context.CancelFunc
}

type entry struct {
	key        string
	value      any
	expiration int64
}

// Option configures an LRUCache.
type Option func(*LRUCache)

// WithCapacity bounds the number of live entries.
func WithCapacity(capacity int) Option {
	return func(c *LRUCache) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithEvictHook is called (outside the lock) when an entry is dropped for capacity.
func WithEvictHook(fn func(key string)) Option {
	return func(c *LRUCache) { c.onEvict = fn }
}

// NewCache creates a new LRU Cache and starts its cleanup worker.
func NewCache(opts ...Option) *LRUCache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &LRUCache{
		capacity: core.CacheDefaultCapacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.startCleanupWorker()
	return c
}

func (c *LRUCache) startCleanupWorker() {
	ticker := time.NewTicker(core.CacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.ctx.Done():
			return
		}
	}
}

// Stop terminates the cache cleanup worker goroutine.
func (c *LRUCache) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Set stores a value in the cache with the given TTL.
func (c *LRUCache) Set(key string, value any, duration time.Duration) {
	expiration := time.Now().Add(duration).UnixNano()

	c.mu.Lock()
	if el, exists := c.items[key]; exists {
		e := el.Value.(*entry)
		e.value = value
		e.expiration = expiration
		c.order.MoveToFront(el)
		c.mu.Unlock()
		return
	}

	c.items[key] = c.order.PushFront(&entry{key: key, value: value, expiration: expiration})

	var evicted string
	if len(c.items) > c.capacity {
		evicted = c.evictOldest()
	}
	c.mu.Unlock()

	if evicted != "" && c.onEvict != nil {
		c.onEvict(evicted)
	}
}

// Get retrieves a value from the cache, returning false if not found or expired.
func (c *LRUCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, found := c.items[key]
	if !found {
		return nil, false
	}

	e := el.Value.(*entry)
	if time.Now().UnixNano() > e.expiration {
		c.order.Remove(el)
		delete(c.items, key)
		return nil, false
	}

	c.order.MoveToFront(el)
	return e.value, true
}

// Delete removes a key if present.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, found := c.items[key]; found {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

// Len returns the number of stored entries, including ones not yet swept.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRUCache) evictOldest() string {
	el := c.order.Back()
	if el == nil {
		return ""
	}
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.items, e.key)
	return e.key
}

func (c *LRUCache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixNano()
	for key, el := range c.items {
		if now > el.Value.(*entry).expiration {
			c.order.Remove(el)
			delete(c.items, key)
		}
	}
}

// Clear clears all cache items
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// Close stops the cleanup worker and drops all entries.
func (c *LRUCache) Close() error {
	c.Stop()
	c.Clear()
	return nil
}

var _ core.Cache = (*LRUCache)(nil)
