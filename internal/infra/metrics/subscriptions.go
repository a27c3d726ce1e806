package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionEventsTotal,
		subscriptionsActive,
	)
}

var (
	subscriptionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_events_total",
			Help: "Subscription lifecycle events (activated/trial/cancelled/resumed).",
		},
		[]string{"event"},
	)

	subscriptionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_active",
			Help: "Current number of active subscriptions per service.",
		},
		[]string{"service"},
	)
)

func IncSubscriptionEvent(event string) {
	subscriptionEventsTotal.WithLabelValues(norm(event)).Inc()
}

func SetActiveSubscriptions(counts map[string]int) {
	for serviceID, n := range counts {
		subscriptionsActive.WithLabelValues(serviceID).Set(float64(n))
	}
}
