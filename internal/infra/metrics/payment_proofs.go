package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		proofsSubmittedTotal,
		proofsResolvedTotal,
		proofResolveDuration,
		proofsByStatus,
	)
}

var (
	// result: ok|duplicate|invalid|rate_limited|error
	proofsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_proofs_submitted_total",
			Help: "Payment proof submissions by provider and result.",
		},
		[]string{"provider", "result"},
	)

	// action: verify|reject; result: ok|already_resolved|not_found|error
	proofsResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_proofs_resolved_total",
			Help: "Payment proof verify/reject calls by action and result.",
		},
		[]string{"action", "result"},
	)

	proofResolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_proof_resolve_duration_seconds",
			Help:    "Duration of the verify/reject transaction in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"action"},
	)

	proofsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payment_proofs_total",
			Help: "Current number of payment proofs by status.",
		},
		[]string{"status"},
	)
)

func IncProofSubmitted(provider, result string) {
	proofsSubmittedTotal.WithLabelValues(norm(provider), norm(result)).Inc()
}

func ObserveProofResolved(action, result string, took time.Duration) {
	proofsResolvedTotal.WithLabelValues(norm(action), norm(result)).Inc()
	proofResolveDuration.WithLabelValues(norm(action)).Observe(took.Seconds())
}

func SetProofsByStatus(counts map[string]int) {
	for _, s := range []string{"pending", "verified", "rejected"} {
		proofsByStatus.WithLabelValues(s).Set(float64(counts[s]))
	}
}
