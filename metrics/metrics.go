// Package metrics provides Prometheus collectors for translation attempts,
// backoff, translation memory lookups and batch runs.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "backtrans"
)

// LatencyBuckets defines histogram buckets for provider latency (in seconds).
var LatencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 3.0, 5.0, 10.0, 20.0, 30.0,
}

// BackoffBuckets defines histogram buckets for retry delays (in seconds).
var BackoffBuckets = []float64{
	0.1, 0.25, 0.5, 1.0, 2.0, 4.0, 8.0, 16.0, 30.0,
}

// =============================================================================
// Provider Metrics
// =============================================================================

var (
	// ProviderAttempts counts provider calls by outcome.
	ProviderAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Total number of translation attempts sent to a provider",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderLatency tracks the duration of a single provider call.
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Latency of a single provider call",
			Buckets:   LatencyBuckets,
		},
		[]string{"provider"},
	)

	// RetryBackoff tracks computed backoff delays.
	RetryBackoff = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retry_backoff_seconds",
			Help:      "Backoff delay slept before retrying a provider call",
			Buckets:   BackoffBuckets,
		},
		[]string{"provider"},
	)
)

// =============================================================================
// Translation Memory Metrics
// =============================================================================

var (
	// MemoryLookups counts translation memory lookups by result.
	MemoryLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_lookups_total",
			Help:      "Translation memory lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	// MemoryStoreFailures counts stores that failed and were skipped.
	MemoryStoreFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_store_failures_total",
			Help:      "Translation memory stores that failed",
		},
	)
)

// =============================================================================
// Batch Metrics
// =============================================================================

var (
	// BatchItems counts processed batch files by status.
	BatchItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Batch files processed by status (success, failure)",
		},
		[]string{"status"},
	)

	// BatchesCancelled counts batch runs stopped by cancellation.
	BatchesCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_cancelled_total",
			Help:      "Batch runs stopped by cancellation",
		},
	)
)

// =============================================================================
// Recording helpers
// =============================================================================

const maxLabelLen = 64

// RecordAttempt records the outcome and latency of one provider call.
func RecordAttempt(provider, outcome string, seconds float64) {
	p := sanitizeLabel(provider)
	ProviderAttempts.WithLabelValues(p, sanitizeLabel(outcome)).Inc()
	ProviderLatency.WithLabelValues(p).Observe(seconds)
}

// RecordBackoff records a backoff delay before a retry.
func RecordBackoff(provider string, seconds float64) {
	RetryBackoff.WithLabelValues(sanitizeLabel(provider)).Observe(seconds)
}

// RecordLookup records a translation memory lookup result.
func RecordLookup(result string) {
	MemoryLookups.WithLabelValues(sanitizeLabel(result)).Inc()
}

// RecordBatchItem records one processed batch file.
func RecordBatchItem(success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	BatchItems.WithLabelValues(status).Inc()
}

// sanitizeLabel keeps label values short and free of control characters.
func sanitizeLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	v = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, v)
	if len(v) > maxLabelLen {
		v = v[:maxLabelLen]
	}
	return v
}
