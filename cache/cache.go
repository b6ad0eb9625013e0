package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kbukum/warden/observability"
)

// Expirable is a concurrency-safe LRU cache whose entries expire after a fixed TTL.
type Expirable[K comparable, V any] struct {
	name    string
	lru     *expirable.LRU[K, V]
	metrics *observability.Metrics
	onEvict func(K, V)
}

// Option configures an Expirable cache.
type Option[K comparable, V any] func(*Expirable[K, V])

// WithName labels the cache in metrics.
func WithName[K comparable, V any](name string) Option[K, V] {
	return func(c *Expirable[K, V]) { c.name = name }
}

// WithMetrics records hits and misses on m.
func WithMetrics[K comparable, V any](m *observability.Metrics) Option[K, V] {
	return func(c *Expirable[K, V]) { c.metrics = m }
}

// WithEvictCallback is called for every entry removed by capacity pressure,
// expiry, or Remove.
func WithEvictCallback[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *Expirable[K, V]) { c.onEvict = fn }
}

// New creates a cache holding at most maxCapacity entries, each visible for ttl.
// A non-positive maxCapacity or ttl falls back to the Config defaults.
//
// Every cache owns a background goroutine that purges expired entries and
// lives as long as the process. Build caches once at startup and share
// them; never create one per request.
func New[K comparable, V any](maxCapacity int, ttl time.Duration, opts ...Option[K, V]) *Expirable[K, V] {
	cfg := Config{MaxCapacity: maxCapacity, TTL: ttl}
	cfg.ApplyDefaults()

	c := &Expirable[K, V]{name: cfg.Name}
	for _, opt := range opts {
		opt(c)
	}

	var onEvict expirable.EvictCallback[K, V]
	if c.onEvict != nil {
		onEvict = c.onEvict
	}
	c.lru = expirable.NewLRU[K, V](cfg.MaxCapacity, onEvict, cfg.TTL)
	return c
}

// NewFromConfig creates a cache from cfg.
func NewFromConfig[K comparable, V any](cfg Config, opts ...Option[K, V]) *Expirable[K, V] {
	cfg.ApplyDefaults()
	opts = append([]Option[K, V]{WithName[K, V](cfg.Name)}, opts...)
	return New[K, V](cfg.MaxCapacity, cfg.TTL, opts...)
}

// Insert stores value under key, replacing any existing entry and restarting its TTL.
func (c *Expirable[K, V]) Insert(key K, value V) {
	c.lru.Add(key, value)
}

// Get returns the value for key if it is present and has not expired.
func (c *Expirable[K, V]) Get(key K) (V, bool) {
	v, ok := c.lru.Get(key)
	c.metrics.RecordCacheLookup(context.Background(), c.name, ok)
	return v, ok
}

// Remove deletes key. Removing an absent key is a no-op.
func (c *Expirable[K, V]) Remove(key K) {
	c.lru.Remove(key)
}

// Len returns the number of resident entries, including expired ones that
// have not been swept yet.
func (c *Expirable[K, V]) Len() int {
	return c.lru.Len()
}

// Purge removes every entry.
func (c *Expirable[K, V]) Purge() {
	c.lru.Purge()
}
