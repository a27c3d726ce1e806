package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"automation-subscription-platform/internal/domain/ports/repository"
	"automation-subscription-platform/internal/infra/metrics"
)

// PaymentReconciler periodically scans for stale pending payments and
// surfaces them through logs and a gauge. It never mutates payment state:
// a pending payment stays pending until a provider confirmation or an
// operator decides otherwise.
type PaymentReconciler struct {
	payments   repository.PaymentRepository
	subs       repository.SubscriptionRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to count as stale
	log        *zerolog.Logger
}

func NewPaymentReconciler(payments repository.PaymentRepository, subs repository.SubscriptionRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	return &PaymentReconciler{payments: payments, subs: subs, interval: interval, staleAfter: staleAfter, log: logger}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("payment-reconciler: list pending failed")
		return
	}
	metrics.SetStalePending(len(pending))
	for _, p := range pending {
		entry := w.log.Warn().
			Str("payment_id", p.ID).
			Str("gateway", string(p.Gateway)).
			Time("created_at", p.CreatedAt)
		if p.CorrelationID == "" {
			// Intent creation never finished; nothing a provider could confirm.
			entry.Msg("payment-reconciler: stale pending payment without correlation id")
			continue
		}
		entry.Str("correlation_id", p.CorrelationID).Msg("payment-reconciler: stale pending payment")
	}

	sums, err := w.payments.SumCompletedByPeriod(ctx, repository.NoTX, "day")
	if err != nil {
		w.log.Error().Err(err).Msg("payment-reconciler: sum completed failed")
		return
	}
	revenue := make(map[string]float64, len(sums))
	for currency, sum := range sums {
		f, _ := sum.Float64()
		revenue[currency] = f
	}
	metrics.SetDayRevenue(revenue)

	counts, err := w.subs.CountActiveByService(ctx, repository.NoTX)
	if err != nil {
		w.log.Error().Err(err).Msg("payment-reconciler: count active subscriptions failed")
		return
	}
	metrics.SetActiveSubscriptions(counts)
}
