// Package metrics provides constants used across metric definitions.
package metrics

// Outcome label values shared by request-style metrics.
const (
	OutcomeSuccess      = "success"
	OutcomeClientError  = "client_error"
	OutcomeServerError  = "server_error"
	OutcomeTimeout      = "timeout"
	OutcomeSchemaError  = "schema_error"
	OutcomeNetworkError = "network_error"
	OutcomeCircuitOpen  = "circuit_open"
	OutcomeCanceled     = "canceled"
)

// Checklist fetch outcomes.
const (
	ChecklistFetched = "fetched"
	ChecklistCached  = "cached"
	ChecklistFailed  = "failed"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart100ms is the starting bucket for 100ms histograms (100ms to ~100s range).
	BucketStart100ms = 0.1

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// Circuit breaker state gauge values.
const (
	BreakerClosed   = 0
	BreakerHalfOpen = 1
	BreakerOpen     = 2
)
