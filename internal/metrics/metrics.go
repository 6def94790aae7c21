// Package metrics declares the Prometheus collectors exported on /metrics.
//
// Collectors register with the default registry at init through promauto;
// callers record through the small helpers so label values stay within a
// fixed set.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchingPasses counts matching passes by result (ok, error, skipped).
	MatchingPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frcvideos_matching_passes_total",
		Help: "Auto-rename matching passes by result.",
	}, []string{"result"})

	// MatchingPassDuration observes how long a matching pass takes.
	MatchingPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "frcvideos_matching_pass_duration_seconds",
		Help:    "Duration of auto-rename matching passes.",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
	})

	// Classifications counts association outcomes by status.
	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frcvideos_association_classifications_total",
		Help: "Association classification results by status.",
	}, []string{"status"})

	// OrderingDowngrades counts STRONG associations downgraded to WEAK.
	OrderingDowngrades = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frcvideos_association_ordering_downgrades_total",
		Help: "Strong associations downgraded because of match ordering.",
	})

	// RenameJobs counts rename executions by result.
	RenameJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frcvideos_rename_jobs_total",
		Help: "Rename job executions by result.",
	}, []string{"result"})

	// JobsEnqueued counts AddJob calls by outcome (inserted, replaced, deduplicated).
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frcvideos_jobs_enqueued_total",
		Help: "Durable jobs enqueued by outcome.",
	}, []string{"task", "outcome"})

	// JobsProcessed counts job executions by task and result.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frcvideos_jobs_processed_total",
		Help: "Durable job executions by task and result.",
	}, []string{"task", "result"})

	// MatchListCache counts match list cache lookups by result (hit, miss).
	MatchListCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frcvideos_match_list_cache_total",
		Help: "Match list cache lookups by result.",
	}, []string{"result"})

	// HTTPRequests counts API requests.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frcvideos_http_requests_total",
		Help: "API requests by method, route and status.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes API request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "frcvideos_http_request_duration_seconds",
		Help:    "API request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)
