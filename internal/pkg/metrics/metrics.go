// Package metrics holds the Prometheus collectors for document reconciliation
// and session housekeeping. They register on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemoteFailures counts remote store calls that failed, by capability
	// (collection, submit, poll, list, delete, delete_all, query).
	RemoteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_remote_failures_total",
			Help: "Remote store calls that failed",
		},
		[]string{"capability"},
	)

	// IndexOutcomes counts finished index requests by final document state.
	IndexOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_index_outcomes_total",
			Help: "Index requests by final document state",
		},
		[]string{"state"},
	)

	PollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rag_poll_attempts",
			Help:    "Operation polls needed before an upload finished",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
	)

	BackfilledRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rag_backfilled_records_total",
			Help: "Ledger records that received a remote id from a listing",
		},
	)

	DegradedResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_degraded_responses_total",
			Help: "Responses served from the ledger because the remote store failed",
		},
		[]string{"operation"},
	)

	SweptSessions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rag_swept_sessions_total",
			Help: "Expired chat sessions removed by the sweeper",
		},
	)
)
