package cache

import (
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Store.
type Option[V any] func(*options[V])

type options[V any] struct {
	now         func() time.Time
	rnd         *rand.Rand
	registerer  prometheus.Registerer
	metricsName string
	onEvict     func(key string, value V)
}

// WithClock replaces the wall clock used for TTL checks.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(o *options[V]) {
		o.now = now
	}
}

// WithRand sets the random source used by the random eviction policy.
func WithRand[V any](r *rand.Rand) Option[V] {
	return func(o *options[V]) {
		o.rnd = r
	}
}

// WithMetrics exports store counters to Prometheus under the given store name.
func WithMetrics[V any](reg prometheus.Registerer, name string) Option[V] {
	return func(o *options[V]) {
		o.registerer = reg
		o.metricsName = name
	}
}

// WithEvictionCallback registers fn to be called after an entry is evicted
// for capacity. It is not called for expiry, Delete or Clear.
func WithEvictionCallback[V any](fn func(key string, value V)) Option[V] {
	return func(o *options[V]) {
		o.onEvict = fn
	}
}
