//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"automation-subscription-platform/internal/domain"
	"automation-subscription-platform/internal/domain/model"
)

func seedService(t *testing.T, ctx context.Context) *model.Service {
	t.Helper()
	svc := &model.Service{ID: "svc-ocr", Slug: "ocr-suite", Name: "OCR Suite", PricePYG: 150000, TrialDays: 7, Recurring: true, Active: true}
	_, err := testPool.Exec(ctx, `
		INSERT INTO services (id, slug, name, price_pyg, trial_days, recurring, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		svc.ID, svc.Slug, svc.Name, svc.PricePYG, svc.TrialDays, svc.Recurring, svc.Active)
	if err != nil {
		t.Fatalf("failed to seed service: %v", err)
	}
	return svc
}

func newTestPayment(userID, serviceID string) *model.Payment {
	p, _ := model.NewPayment(ulid.Make().String(), userID, serviceID, model.GatewayPagopar, decimal.NewFromInt(150000), "PYG")
	return p
}

func TestPaymentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewPaymentRepo(testPool)

	t.Run("should save and find a payment", func(t *testing.T) {
		cleanup(t)
		svc := seedService(t, ctx)

		p := newTestPayment("user-1", svc.ID)
		p.CorrelationID = "order-123"
		p.Meta = map[string]any{"channel": "web"}

		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatalf("Failed to save new payment: %v", err)
		}

		byID, err := repo.FindByID(ctx, nil, p.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if byID.CorrelationID != "order-123" || !byID.Amount.Equal(p.Amount) {
			t.Fatalf("did not find the correct payment by ID: %+v", byID)
		}
		if byID.Meta["channel"] != "web" {
			t.Error("meta was not round-tripped")
		}

		byCorr, err := repo.FindByCorrelationID(ctx, nil, "order-123")
		if err != nil {
			t.Fatalf("FindByCorrelationID failed: %v", err)
		}
		if byCorr.ID != p.ID {
			t.Fatal("did not find the correct payment by correlation id")
		}
	})

	t.Run("correlation ids are unique across payments", func(t *testing.T) {
		cleanup(t)
		svc := seedService(t, ctx)

		first := newTestPayment("user-1", svc.ID)
		second := newTestPayment("user-2", svc.ID)
		repo.Save(ctx, nil, first)
		repo.Save(ctx, nil, second)

		if err := repo.SetCorrelationID(ctx, nil, first.ID, "order-dup"); err != nil {
			t.Fatalf("first SetCorrelationID failed: %v", err)
		}
		if err := repo.SetCorrelationID(ctx, nil, second.ID, "order-dup"); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists for duplicate correlation id, got %v", err)
		}
	})

	t.Run("should update status only if pending", func(t *testing.T) {
		cleanup(t)
		svc := seedService(t, ctx)
		p := newTestPayment("user-1", svc.ID)
		repo.Save(ctx, nil, p)

		now := time.Now()
		updated, err := repo.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusCompleted, "", map[string]any{"ref": "abc"}, &now)
		if err != nil {
			t.Fatalf("First UpdateStatusIfPending failed: %v", err)
		}
		if !updated {
			t.Error("expected first update to succeed, but it returned false")
		}

		updatedAgain, err := repo.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusFailed, "late decline", nil, nil)
		if err != nil {
			t.Fatalf("Second UpdateStatusIfPending failed: %v", err)
		}
		if updatedAgain {
			t.Error("expected second update to be a no-op, but it returned true")
		}

		final, _ := repo.FindByID(ctx, nil, p.ID)
		if final.Status != model.PaymentStatusCompleted {
			t.Errorf("expected final status 'completed', got '%s'", final.Status)
		}
		if final.CompletedAt == nil {
			t.Error("completed_at was not stamped")
		}
		if final.Meta["ref"] != "abc" {
			t.Error("confirmation metadata was not merged")
		}
	})

	t.Run("should link a subscription", func(t *testing.T) {
		cleanup(t)
		svc := seedService(t, ctx)
		p := newTestPayment("user-1", svc.ID)
		repo.Save(ctx, nil, p)

		if err := repo.SetSubscriptionID(ctx, nil, p.ID, "sub-1"); err != nil {
			t.Fatalf("SetSubscriptionID failed: %v", err)
		}
		found, _ := repo.FindByID(ctx, nil, p.ID)
		if found.SubscriptionID == nil || *found.SubscriptionID != "sub-1" {
			t.Error("subscription link was not persisted")
		}
	})

	t.Run("should list pending payments older than a cutoff", func(t *testing.T) {
		cleanup(t)
		svc := seedService(t, ctx)

		old := newTestPayment("user-1", svc.ID)
		old.CreatedAt = time.Now().Add(-2 * time.Hour)
		recent := newTestPayment("user-1", svc.ID)
		recent.CreatedAt = time.Now().Add(-5 * time.Minute)
		settled := newTestPayment("user-1", svc.ID)
		settled.CreatedAt = time.Now().Add(-2 * time.Hour)
		settled.Status = model.PaymentStatusCompleted

		repo.Save(ctx, nil, old)
		repo.Save(ctx, nil, recent)
		repo.Save(ctx, nil, settled)

		cutoff := time.Now().Add(-1 * time.Hour)
		results, err := repo.ListPendingOlderThan(ctx, nil, cutoff, 10)
		if err != nil {
			t.Fatalf("ListPendingOlderThan failed: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("expected to find 1 stale pending payment, but got %d", len(results))
		}
		if results[0].ID != old.ID {
			t.Error("found the wrong pending payment")
		}
	})

	t.Run("should sum completed payments per currency for the day", func(t *testing.T) {
		cleanup(t)
		svc := seedService(t, ctx)

		pyg := newTestPayment("user-1", svc.ID)
		repo.Save(ctx, nil, pyg)
		usd, _ := model.NewPayment(ulid.Make().String(), "user-2", svc.ID, model.GatewayStripe, decimal.RequireFromString("20.55"), "USD")
		repo.Save(ctx, nil, usd)
		pending := newTestPayment("user-3", svc.ID)
		repo.Save(ctx, nil, pending)

		now := time.Now()
		repo.UpdateStatusIfPending(ctx, nil, pyg.ID, model.PaymentStatusCompleted, "", nil, &now)
		repo.UpdateStatusIfPending(ctx, nil, usd.ID, model.PaymentStatusCompleted, "", nil, &now)

		sums, err := repo.SumCompletedByPeriod(ctx, nil, "day")
		if err != nil {
			t.Fatalf("SumCompletedByPeriod failed: %v", err)
		}
		if !sums["PYG"].Equal(decimal.NewFromInt(150000)) {
			t.Errorf("expected 150000 PYG, got %s", sums["PYG"])
		}
		if !sums["USD"].Equal(decimal.RequireFromString("20.55")) {
			t.Errorf("expected 20.55 USD, got %s", sums["USD"])
		}
		if _, ok := sums["EUR"]; ok {
			t.Error("unexpected currency bucket")
		}
	})
}
