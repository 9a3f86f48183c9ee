// Package cache provides a generic in-memory key/value store with per-entry
// TTL and configurable eviction (LRU, FIFO or random).
//
// Expiry is lazy: an entry whose TTL has elapsed is purged when it is next
// read. Stores are safe for concurrent use.
//
//	store, err := cache.New[string](cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	store.Set("k", "v")
//	v, ok := store.Get("k")
package cache

import (
	"container/list"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

type entry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
	ttl        time.Duration
	hasTTL     bool
}

// Store is a generic cache keyed by string.
type Store[V any] struct {
	mu      sync.Mutex
	cfg     Config
	items   map[string]*list.Element
	order   *list.List // front is the next eviction candidate
	counts  counters
	now     func() time.Time
	intn    func(n int) int
	metrics *storeMetrics
	onEvict func(key string, value V)
}

// New creates a Store. The configuration is validated first.
func New[V any](cfg Config, opts ...Option[V]) (*Store[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options[V]{}
	for _, opt := range opts {
		opt(o)
	}

	s := &Store[V]{
		cfg:     cfg,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
		intn:    rand.IntN,
		onEvict: o.onEvict,
	}
	if o.now != nil {
		s.now = o.now
	}
	if o.rnd != nil {
		s.intn = o.rnd.IntN
	}
	if o.registerer != nil {
		m, err := newStoreMetrics(o.registerer, o.metricsName)
		if err != nil {
			return nil, fmt.Errorf("register cache metrics: %w", err)
		}
		s.metrics = m
	}
	return s, nil
}

// Get returns the value stored under key. A disabled store reports every
// key absent without counting a miss. An expired entry is purged and
// counted as a miss.
func (s *Store[V]) Get(key string) (V, bool) {
	var zero V

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		return zero, false
	}

	el, ok := s.items[key]
	if !ok {
		s.counts.misses++
		s.metrics.recordMiss()
		return zero, false
	}

	e := el.Value.(*entry[V])
	if s.expiredLocked(e) {
		s.removeLocked(el)
		s.counts.expirations++
		s.counts.misses++
		s.metrics.recordMiss()
		return zero, false
	}

	if s.cfg.EvictionPolicy == EvictLRU {
		s.order.MoveToBack(el)
	}
	s.counts.hits++
	s.metrics.recordHit()
	return e.value, true
}

// Set stores value under key with the store's default TTL.
func (s *Store[V]) Set(key string, value V) {
	s.set(key, value, 0, false)
}

// SetWithTTL stores value under key with a per-entry TTL. A zero ttl means
// the entry never expires.
func (s *Store[V]) SetWithTTL(key string, value V, ttl time.Duration) error {
	if ttl < 0 {
		return fmt.Errorf("%w: got %v", multitenant.ErrInvalidCacheTTL, ttl)
	}
	s.set(key, value, ttl, true)
	return nil
}

func (s *Store[V]) set(key string, value V, ttl time.Duration, hasTTL bool) {
	var evicted *entry[V]

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}

	if el, ok := s.items[key]; ok {
		// updating an existing key never evicts
		e := el.Value.(*entry[V])
		e.value = value
		e.insertedAt = s.now()
		e.ttl = ttl
		e.hasTTL = hasTTL
		if s.cfg.EvictionPolicy == EvictLRU {
			s.order.MoveToBack(el)
		}
	} else {
		if len(s.items) >= s.cfg.MaxSize {
			evicted = s.evictLocked()
		}
		e := &entry[V]{key: key, value: value, insertedAt: s.now(), ttl: ttl, hasTTL: hasTTL}
		s.items[key] = s.order.PushBack(e)
	}
	s.counts.sets++
	s.metrics.recordSet()
	s.metrics.updateSize(len(s.items))
	s.mu.Unlock()

	if evicted != nil && s.onEvict != nil {
		s.onEvict(evicted.key, evicted.value)
	}
}

// Has reports whether a live entry exists for key. It does not count as an
// access and does not affect LRU order; an expired entry is purged.
func (s *Store[V]) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		return false
	}
	el, ok := s.items[key]
	if !ok {
		return false
	}
	if s.expiredLocked(el.Value.(*entry[V])) {
		s.removeLocked(el)
		s.counts.expirations++
		return false
	}
	return true
}

// Delete removes key and reports whether it was present.
func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	s.removeLocked(el)
	s.counts.deletes++
	return true
}

// DeleteFunc removes every key for which match returns true and returns how
// many were removed.
func (s *Store[V]) DeleteFunc(match func(key string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		if match(el.Value.(*entry[V]).key) {
			s.removeLocked(el)
			s.counts.deletes++
			removed++
		}
		el = next
	}
	return removed
}

// Clear removes all entries. Cleared entries are not counted as evictions.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// Size returns the number of stored entries, including expired entries
// that have not been read since they expired.
func (s *Store[V]) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Keys returns the keys in eviction order: the first key is the next one a
// full LRU or FIFO store would evict.
func (s *Store[V]) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.items))
	for el := s.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[V]).key)
	}
	return keys
}

// Stats returns a snapshot of the store counters.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Hits:        s.counts.hits,
		Misses:      s.counts.misses,
		Sets:        s.counts.sets,
		Deletes:     s.counts.deletes,
		Evictions:   s.counts.evictions,
		Expirations: s.counts.expirations,
		Size:        len(s.items),
		MaxSize:     s.cfg.MaxSize,
		HitRate:     s.counts.hitRate(),
		Enabled:     s.cfg.Enabled,
	}
}

// ResetStats zeroes all counters.
func (s *Store[V]) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = counters{}
}

// Enabled reports whether the store is enabled.
func (s *Store[V]) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// SetEnabled turns the store on or off. Disabling drops every entry;
// re-enabling starts empty.
func (s *Store[V]) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !enabled {
		s.clearLocked()
	}
	s.cfg.Enabled = enabled
}

// Config returns the store configuration.
func (s *Store[V]) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Prune removes every expired entry and returns how many were removed.
// Stores never sweep on their own; Prune exists for scheduled maintenance.
func (s *Store[V]) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		if s.expiredLocked(el.Value.(*entry[V])) {
			s.removeLocked(el)
			s.counts.expirations++
			removed++
		}
		el = next
	}
	return removed
}

func (s *Store[V]) ttlOf(e *entry[V]) time.Duration {
	if e.hasTTL {
		return e.ttl
	}
	return s.cfg.TTL
}

func (s *Store[V]) expiredLocked(e *entry[V]) bool {
	ttl := s.ttlOf(e)
	if ttl == 0 {
		return false
	}
	return s.now().Sub(e.insertedAt) > ttl
}

func (s *Store[V]) removeLocked(el *list.Element) {
	e := el.Value.(*entry[V])
	s.order.Remove(el)
	delete(s.items, e.key)
	s.metrics.updateSize(len(s.items))
}

func (s *Store[V]) clearLocked() {
	s.items = make(map[string]*list.Element)
	s.order.Init()
	s.metrics.updateSize(0)
}

// evictLocked removes one entry according to the eviction policy.
func (s *Store[V]) evictLocked() *entry[V] {
	if s.order.Len() == 0 {
		return nil
	}

	victim := s.order.Front()
	if s.cfg.EvictionPolicy == EvictRandom {
		n := s.intn(s.order.Len())
		for i := 0; i < n; i++ {
			victim = victim.Next()
		}
	}

	e := victim.Value.(*entry[V])
	s.removeLocked(victim)
	s.counts.evictions++
	s.metrics.recordEviction()
	return e
}
