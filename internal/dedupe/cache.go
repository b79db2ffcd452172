// ABOUTME: Thread-safe TTL cache that remembers which request ids were already handled
// ABOUTME: Lets the agent endpoint answer a retried request without persisting it twice

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry[V any] struct {
	key    string
	value  V
	seenAt time.Time
	elem   *list.Element
}

// Cache maps request ids to the result of handling them. Entries expire
// after ttl and the oldest entry is evicted once maxSize is reached.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done   chan struct{}
	closed bool
}

// Option customizes a Cache.
type Option func(*options)

type options struct {
	now           func() time.Time
	sweepInterval time.Duration
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSweepInterval sets how often expired entries are purged in the background.
// Zero disables the sweeper; expired entries are then only dropped lazily.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}

// New creates a cache. maxSize <= 0 means unbounded.
func New[V any](ttl time.Duration, maxSize int, opts ...Option) *Cache[V] {
	o := options{now: time.Now, sweepInterval: time.Minute}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[V]{
		entries: make(map[string]*entry[V]),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     o.now,
		done:    make(chan struct{}),
	}
	if o.sweepInterval > 0 {
		go c.sweepLoop(o.sweepInterval)
	}
	return c
}

// Get returns the value stored for key if it has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.liveLocked(key)
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Claim records key with value unless a live entry already exists. It
// returns the existing value and true for a duplicate, or value and false
// when the caller now owns key. The check and insert are atomic.
func (c *Cache[V]) Claim(key string, value V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.liveLocked(key); ok {
		return e.value, true
	}
	c.putLocked(key, value)
	return value, false
}

// Put stores value for key, refreshing its expiry.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, value)
}

// Forget removes key so a later Claim succeeds. Used when handling failed.
func (c *Cache[V]) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.removeLocked(e)
	}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) liveLocked(key string) (*entry[V], bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.seenAt) >= c.ttl {
		c.removeLocked(e)
		return nil, false
	}
	return e, true
}

func (c *Cache[V]) putLocked(key string, value V) {
	now := c.now()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.seenAt = now
		c.order.MoveToBack(e.elem)
		return
	}

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		if front := c.order.Front(); front != nil {
			c.removeLocked(front.Value.(*entry[V]))
		}
	}

	e := &entry[V]{key: key, value: value, seenAt: now}
	e.elem = c.order.PushBack(e)
	c.entries[key] = e
}

func (c *Cache[V]) removeLocked(e *entry[V]) {
	c.order.Remove(e.elem)
	delete(c.entries, e.key)
}

func (c *Cache[V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.done:
			return
		}
	}
}

// Sweep drops every expired entry. Entries are ordered by last write, so
// it stops at the first live one.
func (c *Cache[V]) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		e := front.Value.(*entry[V])
		if now.Sub(e.seenAt) < c.ttl {
			return
		}
		c.removeLocked(e)
	}
}

// Close stops the background sweeper. Safe to call more than once.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
