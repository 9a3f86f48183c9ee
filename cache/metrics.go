package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// storeMetrics mirrors store counters into Prometheus.
type storeMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	sets      prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

func newStoreMetrics(reg prometheus.Registerer, name string) (*storeMetrics, error) {
	labels := prometheus.Labels{"store": name}
	m := &storeMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "multitenant",
			Subsystem:   "cache",
			Name:        "hits_total",
			ConstLabels: labels,
			Help:        "Total number of cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "multitenant",
			Subsystem:   "cache",
			Name:        "misses_total",
			ConstLabels: labels,
			Help:        "Total number of cache misses",
		}),
		sets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "multitenant",
			Subsystem:   "cache",
			Name:        "sets_total",
			ConstLabels: labels,
			Help:        "Total number of cache set operations",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "multitenant",
			Subsystem:   "cache",
			Name:        "evictions_total",
			ConstLabels: labels,
			Help:        "Total number of cache evictions",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "multitenant",
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of entries in cache",
		}),
	}

	for _, c := range []prometheus.Collector{m.hits, m.misses, m.sets, m.evictions, m.size} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *storeMetrics) recordHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *storeMetrics) recordMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *storeMetrics) recordSet() {
	if m != nil {
		m.sets.Inc()
	}
}

func (m *storeMetrics) recordEviction() {
	if m != nil {
		m.evictions.Inc()
	}
}

func (m *storeMetrics) updateSize(n int) {
	if m != nil {
		m.size.Set(float64(n))
	}
}
