package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		paymentsRevenueDay,
		paymentsStalePending,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by gateway and status (pending/completed/failed/refunded).",
		},
		[]string{"gateway", "status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of completed payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	paymentsRevenueDay = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payments_revenue_day",
			Help: "Completed payment value since midnight, by charge currency.",
		},
		[]string{"currency"},
	)

	paymentsStalePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payments_stale_pending",
			Help: "Pending payments older than the reconciler cutoff at last sweep.",
		},
	)
)

func IncPayment(gateway, status string) {
	paymentsTotal.WithLabelValues(norm(gateway), norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount float64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(amount)
}

func SetDayRevenue(sums map[string]float64) {
	for currency, v := range sums {
		paymentsRevenueDay.WithLabelValues(norm(currency)).Set(v)
	}
}

func SetStalePending(n int) {
	paymentsStalePending.Set(float64(n))
}
