package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		tenantsByStatus,
		tenantsExpiringSoon,
		subscriptionTransitionsTotal,
		accessDeniedTotal,
	)
}

// effectiveStatuses is the full label set so statuses that drop to zero are reset.
var effectiveStatuses = []string{"active", "pending", "expired", "declined", "suspended", "trial", "trial_expired"}

var (
	tenantsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coaching_tenants_total",
			Help: "Current number of tenants by effective subscription status.",
		},
		[]string{"status"},
	)

	tenantsExpiringSoon = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coaching_tenants_expiring_soon",
			Help: "Tenants whose paid window ends within the renewal warning period.",
		},
	)

	// from/to are stored subscription statuses.
	subscriptionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coaching_subscription_transitions_total",
			Help: "Stored subscription status transitions applied by the lifecycle engine.",
		},
		[]string{"from", "to"},
	)

	accessDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coaching_access_denied_total",
			Help: "Requests refused by the subscription guard, by effective status.",
		},
		[]string{"status"},
	)
)

// SetTenantsByStatus publishes a full snapshot; missing statuses are set to zero.
func SetTenantsByStatus(counts map[string]int, expiringSoon int) {
	for _, s := range effectiveStatuses {
		tenantsByStatus.WithLabelValues(s).Set(float64(counts[s]))
	}
	tenantsExpiringSoon.Set(float64(expiringSoon))
}

func IncSubscriptionTransition(from, to string) {
	subscriptionTransitionsTotal.WithLabelValues(norm(from), norm(to)).Inc()
}

func IncAccessDenied(status string) {
	accessDeniedTotal.WithLabelValues(norm(status)).Inc()
}
