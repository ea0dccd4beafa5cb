// Package metrics provides life-list import metrics for observability
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LifeListMetrics contains Prometheus metrics for CSV import and merge.
// All methods are safe to call on a nil receiver.
type LifeListMetrics struct {
	parsesTotal   *prometheus.CounterVec
	rowsTotal     *prometheus.CounterVec
	parseDuration prometheus.Histogram
	mergesTotal   *prometheus.CounterVec
	mergeDuration *prometheus.HistogramVec
}

// NewLifeListMetrics creates and registers new life-list metrics
func NewLifeListMetrics(registry prometheus.Registerer) (*LifeListMetrics, error) {
	m := &LifeListMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *LifeListMetrics) initMetrics() {
	m.parsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifelist_parses_total",
			Help: "Total number of life-list file parses by detected format and status",
		},
		[]string{"format", "status"},
	)

	m.rowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifelist_rows_total",
			Help: "Life-list rows processed by result (accepted, skipped)",
		},
		[]string{"result"},
	)

	m.parseDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "lifelist_parse_duration_seconds",
			Help: "Time taken to parse one uploaded file",
			// 1ms to ~1s
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		},
	)

	m.mergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifelist_merges_total",
			Help: "Total number of life-list merges by import type and status",
		},
		[]string{"import_type", "status"},
	)

	m.mergeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lifelist_merge_duration_seconds",
			Help:    "Time taken to persist one import",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"import_type"},
	)
}

// Describe implements the prometheus.Collector interface
func (m *LifeListMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.parsesTotal.Describe(ch)
	m.rowsTotal.Describe(ch)
	m.parseDuration.Describe(ch)
	m.mergesTotal.Describe(ch)
	m.mergeDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *LifeListMetrics) Collect(ch chan<- prometheus.Metric) {
	m.parsesTotal.Collect(ch)
	m.rowsTotal.Collect(ch)
	m.parseDuration.Collect(ch)
	m.mergesTotal.Collect(ch)
	m.mergeDuration.Collect(ch)
}

// RecordParse records a parse attempt.
func (m *LifeListMetrics) RecordParse(format, status string, accepted, skipped int, duration time.Duration) {
	if m == nil {
		return
	}
	m.parsesTotal.WithLabelValues(format, status).Inc()
	m.rowsTotal.WithLabelValues("accepted").Add(float64(accepted))
	m.rowsTotal.WithLabelValues("skipped").Add(float64(skipped))
	m.parseDuration.Observe(duration.Seconds())
}

// RecordMerge records a persisted import.
func (m *LifeListMetrics) RecordMerge(importType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mergesTotal.WithLabelValues(importType, status).Inc()
	m.mergeDuration.WithLabelValues(importType).Observe(duration.Seconds())
}
