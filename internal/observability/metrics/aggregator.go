// Package metrics provides observation aggregation metrics for observability
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AggregatorMetrics contains Prometheus metrics for observation aggregation.
// All methods are safe to call on a nil receiver.
type AggregatorMetrics struct {
	aggregationsTotal   *prometheus.CounterVec
	aggregationDuration prometheus.Histogram
	checklistsTotal     *prometheus.CounterVec
	scoredSpecies       prometheus.Histogram
	photoLookupsTotal   *prometheus.CounterVec
}

// NewAggregatorMetrics creates and registers new aggregator metrics
func NewAggregatorMetrics(registry prometheus.Registerer) (*AggregatorMetrics, error) {
	m := &AggregatorMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AggregatorMetrics) initMetrics() {
	m.aggregationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observation_aggregations_total",
			Help: "Total number of observation aggregations by status",
		},
		[]string{"status"},
	)

	m.aggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "observation_aggregation_duration_seconds",
			Help: "End-to-end duration of an aggregation including checklist fan-out",
			// 100ms to ~100s
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10),
		},
	)

	m.checklistsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observation_checklist_fetches_total",
			Help: "Checklist detail lookups by outcome (fetched, cached, failed)",
		},
		[]string{"outcome"},
	)

	m.scoredSpecies = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "observation_scored_species",
			Help:    "Number of distinct species returned by a scoring pass",
			Buckets: prometheus.ExponentialBuckets(1, BucketFactor2, BucketCount10),
		},
	)

	m.photoLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observation_photo_lookups_total",
			Help: "Checklist photo lookups by outcome (fetched, cached, failed)",
		},
		[]string{"outcome"},
	)
}

// Describe implements the prometheus.Collector interface
func (m *AggregatorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.aggregationsTotal.Describe(ch)
	m.aggregationDuration.Describe(ch)
	m.checklistsTotal.Describe(ch)
	m.scoredSpecies.Describe(ch)
	m.photoLookupsTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *AggregatorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.aggregationsTotal.Collect(ch)
	m.aggregationDuration.Collect(ch)
	m.checklistsTotal.Collect(ch)
	m.scoredSpecies.Collect(ch)
	m.photoLookupsTotal.Collect(ch)
}

// RecordAggregation records a finished aggregation.
func (m *AggregatorMetrics) RecordAggregation(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.aggregationsTotal.WithLabelValues(status).Inc()
	m.aggregationDuration.Observe(duration.Seconds())
}

// RecordChecklist records one checklist lookup outcome.
func (m *AggregatorMetrics) RecordChecklist(outcome string) {
	if m == nil {
		return
	}
	m.checklistsTotal.WithLabelValues(outcome).Inc()
}

// RecordScored records how many species a scoring pass produced.
func (m *AggregatorMetrics) RecordScored(species int) {
	if m == nil {
		return
	}
	m.scoredSpecies.Observe(float64(species))
}

// RecordPhotoLookup records one checklist photo lookup outcome.
func (m *AggregatorMetrics) RecordPhotoLookup(outcome string) {
	if m == nil {
		return
	}
	m.photoLookupsTotal.WithLabelValues(outcome).Inc()
}
