// Package cache holds the in-process caching and call-pacing primitives shared by the
// migration client: a TTL cache, a request throttle and an in-flight call memo.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds the number of live entries in a TTL cache.
const DefaultCapacity = 1024

// Entry is a cached value with its insertion time and time-to-live.
type Entry[V any] struct {
	Value      V
	InsertedAt time.Time
	TTL        time.Duration
}

// Expired reports whether the entry is stale at now.
func (e Entry[V]) Expired(now time.Time) bool {
	return now.Sub(e.InsertedAt) > e.TTL
}

// TTL is a key/value store with per-entry expiry. Expired entries are evicted lazily
// when they are read; there is no background sweep. Safe for concurrent use.
type TTL[V any] struct {
	entries *lru.Cache[string, Entry[V]]
	now     func() time.Time
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	capacity int
	now      func() time.Time
}

// WithCapacity sets the maximum number of entries kept before least-recently-used
// entries are dropped.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewTTL creates an empty TTL cache.
func NewTTL[V any](opts ...Option) *TTL[V] {
	o := options{capacity: DefaultCapacity, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.capacity <= 0 {
		o.capacity = DefaultCapacity
	}

	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, Entry[V]](o.capacity)
	return &TTL[V]{entries: entries, now: o.now}
}

// Set stores value under key for ttl.
func (c *TTL[V]) Set(key string, value V, ttl time.Duration) {
	c.entries.Add(key, Entry[V]{Value: value, InsertedAt: c.now(), TTL: ttl})
}

// Get returns the value for key. An expired entry is removed and reported absent.
func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V
	e, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	if e.Expired(c.now()) {
		c.entries.Remove(key)
		return zero, false
	}
	return e.Value, true
}

// Has reports whether a live entry exists for key.
func (c *TTL[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes key.
func (c *TTL[V]) Delete(key string) {
	c.entries.Remove(key)
}

// Clear removes every entry.
func (c *TTL[V]) Clear() {
	c.entries.Purge()
}

// Len returns the number of stored entries, including expired ones not yet read.
func (c *TTL[V]) Len() int {
	return c.entries.Len()
}
