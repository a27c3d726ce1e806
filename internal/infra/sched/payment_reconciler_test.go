//go:build !integration

package sched

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"automation-subscription-platform/internal/domain/model"
	"automation-subscription-platform/internal/domain/ports/repository"
)

type stubPaymentRepo struct {
	repository.PaymentRepository
	listed   []*model.Payment
	gotLimit int
}

func (s *stubPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	s.gotLimit = limit
	return s.listed, nil
}

func (s *stubPaymentRepo) SumCompletedByPeriod(ctx context.Context, tx repository.Tx, period string) (map[string]decimal.Decimal, error) {
	return map[string]decimal.Decimal{"PYG": decimal.NewFromInt(150000)}, nil
}

type stubSubscriptionRepo struct {
	repository.SubscriptionRepository
	counts map[string]int
}

func (s *stubSubscriptionRepo) CountActiveByService(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	return s.counts, nil
}

func TestPaymentReconciler_TickIsObservational(t *testing.T) {
	stale, _ := model.NewPayment("01J5STALE", "user-1", "svc-1", model.GatewayBancard, decimal.NewFromInt(150000), "PYG")
	stale.CreatedAt = time.Now().Add(-2 * time.Hour)

	payments := &stubPaymentRepo{listed: []*model.Payment{stale}}
	subs := &stubSubscriptionRepo{counts: map[string]int{"svc-1": 3}}
	logger := zerolog.Nop()
	w := NewPaymentReconciler(payments, subs, time.Minute, 30*time.Minute, &logger)

	w.tick(context.Background())

	if payments.gotLimit != 200 {
		t.Errorf("expected bounded sweep of 200, got %d", payments.gotLimit)
	}
	// The stub would panic through the embedded nil interface if the sweep
	// tried to write payment state.
	if stale.Status != model.PaymentStatusPending {
		t.Errorf("reconciler must not mutate payments, status became %s", stale.Status)
	}
}

func TestPaymentReconciler_Defaults(t *testing.T) {
	logger := zerolog.Nop()
	w := NewPaymentReconciler(&stubPaymentRepo{}, &stubSubscriptionRepo{}, 0, 0, &logger)
	if w.interval != 5*time.Minute || w.staleAfter != 30*time.Minute {
		t.Errorf("unexpected defaults: interval=%s staleAfter=%s", w.interval, w.staleAfter)
	}
}
