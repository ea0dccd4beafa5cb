// Package metrics provides response cache metrics for observability
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/lifer/internal/cache"
)

// CacheStatsSource reports a snapshot of cache counters.
type CacheStatsSource interface {
	Stats() cache.Stats
}

// CacheMetrics exports counters of registered caches at scrape time.
type CacheMetrics struct {
	mu      sync.RWMutex
	sources map[string]CacheStatsSource

	hitsDesc      *prometheus.Desc
	missesDesc    *prometheus.Desc
	evictionsDesc *prometheus.Desc
	expiredDesc   *prometheus.Desc
	entriesDesc   *prometheus.Desc
}

// NewCacheMetrics creates and registers new cache metrics
func NewCacheMetrics(registry prometheus.Registerer) (*CacheMetrics, error) {
	labels := []string{"cache"}
	m := &CacheMetrics{
		sources:       make(map[string]CacheStatsSource),
		hitsDesc:      prometheus.NewDesc("cache_hits_total", "Total number of cache hits", labels, nil),
		missesDesc:    prometheus.NewDesc("cache_misses_total", "Total number of cache misses", labels, nil),
		evictionsDesc: prometheus.NewDesc("cache_evictions_total", "Entries evicted to make room at capacity", labels, nil),
		expiredDesc:   prometheus.NewDesc("cache_expired_total", "Entries dropped because their TTL elapsed", labels, nil),
		entriesDesc:   prometheus.NewDesc("cache_entries", "Current number of cache entries", labels, nil),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Observe registers a cache under name. Registering the same name again replaces it.
func (m *CacheMetrics) Observe(name string, source CacheStatsSource) {
	if m == nil || source == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[name] = source
}

// Describe implements the prometheus.Collector interface
func (m *CacheMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.hitsDesc
	ch <- m.missesDesc
	ch <- m.evictionsDesc
	ch <- m.expiredDesc
	ch <- m.entriesDesc
}

// Collect implements the prometheus.Collector interface
func (m *CacheMetrics) Collect(ch chan<- prometheus.Metric) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, source := range m.sources {
		s := source.Stats()
		ch <- prometheus.MustNewConstMetric(m.hitsDesc, prometheus.CounterValue, float64(s.Hits), name)
		ch <- prometheus.MustNewConstMetric(m.missesDesc, prometheus.CounterValue, float64(s.Misses), name)
		ch <- prometheus.MustNewConstMetric(m.evictionsDesc, prometheus.CounterValue, float64(s.Evictions), name)
		ch <- prometheus.MustNewConstMetric(m.expiredDesc, prometheus.CounterValue, float64(s.Expired), name)
		ch <- prometheus.MustNewConstMetric(m.entriesDesc, prometheus.GaugeValue, float64(s.Entries), name)
	}
}
