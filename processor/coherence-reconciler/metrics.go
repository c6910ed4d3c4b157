package coherencereconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the reconciler. Registered once on the default
// registry; the HTTP exposition endpoint is owned by the service binary.
var (
	metricRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "diligence",
		Subsystem: "coherence_reconciler",
		Name:      "requests_total",
		Help:      "Reconciliation requests consumed, by outcome.",
	}, []string{"outcome"})

	metricAdjustmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "diligence",
		Subsystem: "coherence_reconciler",
		Name:      "adjustments_total",
		Help:      "Individual field adjustments applied across all requests.",
	})

	metricCoherenceScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "diligence",
		Subsystem: "coherence_reconciler",
		Name:      "coherence_score",
		Help:      "Pre-adjustment coherence score distribution.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	metricReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "diligence",
		Subsystem: "coherence_reconciler",
		Name:      "reconcile_duration_seconds",
		Help:      "Wall time of a single reconciliation pass.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Request outcome label values.
const (
	outcomeAdjusted = "adjusted"
	outcomeClean    = "clean"
	outcomeInvalid  = "invalid"
	outcomeError    = "error"
)
