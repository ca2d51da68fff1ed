package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Allocation decisions partitioned by method and outcome
	allocationDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_allocation_decisions_total",
			Help: "Total number of lead allocation decisions",
		},
		[]string{"method", "outcome"},
	)

	// Decision latency in seconds partitioned by method
	allocationDecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_allocation_decision_duration_seconds",
			Help:    "Lead allocation decision latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Duplicate detections partitioned by type
	duplicateLeadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_duplicates_detected_total",
			Help: "Total number of duplicate leads detected",
		},
		[]string{"type"},
	)

	// Round-robin cursor compare-and-swap retries
	cursorRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lead_allocation_cursor_retries_total",
			Help: "Total number of round-robin cursor CAS retries",
		},
	)

	// Community reallocations partitioned by outcome
	communityReallocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_community_reallocations_total",
			Help: "Total number of community-based reallocations",
		},
		[]string{"outcome"},
	)
)

const (
	outcomeAssigned = "assigned"
	outcomeFailed   = "failed"

	outcomeReallocated = "reallocated"
	outcomeSkipped     = "skipped"
)
