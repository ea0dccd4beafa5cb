// Package observability bundles the Prometheus collectors used across the service
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/lifer/internal/observability/metrics"
)

// Metrics holds every collector registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	EBird      *metrics.EBirdMetrics
	Cache      *metrics.CacheMetrics
	Aggregator *metrics.AggregatorMetrics
	LifeList   *metrics.LifeListMetrics
	HTTP       *metrics.HTTPMetrics
}

// NewMetrics creates a registry and registers all collectors on it.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	m := &Metrics{registry: registry}
	var err error

	if m.EBird, err = metrics.NewEBirdMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create eBird metrics: %w", err)
	}
	if m.Cache, err = metrics.NewCacheMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create cache metrics: %w", err)
	}
	if m.Aggregator, err = metrics.NewAggregatorMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create aggregator metrics: %w", err)
	}
	if m.LifeList, err = metrics.NewLifeListMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create life-list metrics: %w", err)
	}
	if m.HTTP, err = metrics.NewHTTPMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	return m, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler serving the registry in exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
