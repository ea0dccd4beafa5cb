// Package metrics provides eBird API client metrics for observability
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EBirdMetrics contains Prometheus metrics for upstream API calls.
// All methods are safe to call on a nil receiver.
type EBirdMetrics struct {
	requestsTotal   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec
}

// NewEBirdMetrics creates and registers new eBird client metrics
func NewEBirdMetrics(registry prometheus.Registerer) (*EBirdMetrics, error) {
	m := &EBirdMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *EBirdMetrics) initMetrics() {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebird_api_requests_total",
			Help: "Total number of eBird API request attempts by outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	m.retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebird_api_retries_total",
			Help: "Total number of retried eBird API attempts",
		},
		[]string{"endpoint"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "ebird_api_request_duration_seconds",
			Help: "Duration of single eBird API attempts",
			// 10ms to ~20s covers fast cached upstream responses through per-attempt timeouts
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		},
		[]string{"endpoint"},
	)

	m.breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ebird_api_circuit_state",
			Help: "Upstream circuit breaker state per endpoint (0 closed, 1 half-open, 2 open)",
		},
		[]string{"endpoint"},
	)
}

// Describe implements the prometheus.Collector interface
func (m *EBirdMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestsTotal.Describe(ch)
	m.retriesTotal.Describe(ch)
	m.requestDuration.Describe(ch)
	m.breakerState.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *EBirdMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsTotal.Collect(ch)
	m.retriesTotal.Collect(ch)
	m.requestDuration.Collect(ch)
	m.breakerState.Collect(ch)
}

// RecordRequest records one attempt against endpoint.
func (m *EBirdMetrics) RecordRequest(endpoint, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRetry records that an attempt against endpoint is being retried.
func (m *EBirdMetrics) RecordRetry(endpoint string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(endpoint).Inc()
}

// SetBreakerState records the circuit breaker state for endpoint.
func (m *EBirdMetrics) SetBreakerState(endpoint string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(endpoint).Set(float64(state))
}
