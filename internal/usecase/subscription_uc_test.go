//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"automation-subscription-platform/internal/domain"
	"automation-subscription-platform/internal/domain/model"
	"automation-subscription-platform/internal/usecase"
)

var testService = &model.Service{
	ID:        "svc-1",
	Slug:      "ocr-suite",
	Name:      "OCR Suite",
	PricePYG:  150000,
	TrialDays: 7,
	Recurring: true,
	Active:    true,
}

func newManager(subs *memSubscriptionRepo, services *memServiceRepo) usecase.SubscriptionManager {
	return usecase.NewSubscriptionManager(subs, services, memTxManager{}, newTestLogger())
}

func completedPayment(id, userID, serviceID string) *model.Payment {
	return &model.Payment{
		ID:        id,
		UserID:    userID,
		ServiceID: serviceID,
		Gateway:   model.GatewayPagopar,
		Status:    model.PaymentStatusCompleted,
	}
}

func TestSubscriptionManager_ActivateOrExtend(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active subscription for a recurring service", func(t *testing.T) {
		subs := newMemSubscriptionRepo()
		mgr := newManager(subs, newMemServiceRepo(testService))

		before := time.Now()
		s, err := mgr.ActivateOrExtend(ctx, completedPayment("pay-1", "user-1", "svc-1"))
		if err != nil {
			t.Fatalf("ActivateOrExtend: %v", err)
		}
		if s.Status != model.SubscriptionStatusActive {
			t.Errorf("expected active, got %s", s.Status)
		}
		if s.TrialEndAt != nil {
			t.Error("paid activation must not grant a trial window")
		}
		if s.NextBillingAt == nil || !s.NextBillingAt.After(before) {
			t.Errorf("expected next billing in the future, got %v", s.NextBillingAt)
		}
		if s.PaymentID == nil || *s.PaymentID != "pay-1" {
			t.Error("expected originating payment to be recorded")
		}
	})

	t.Run("one-time services get no next billing", func(t *testing.T) {
		oneTime := &model.Service{ID: "svc-2", Slug: "leads-pack", Name: "Leads Pack", PricePYG: 90000, Active: true}
		subs := newMemSubscriptionRepo()
		mgr := newManager(subs, newMemServiceRepo(oneTime))

		s, err := mgr.ActivateOrExtend(ctx, completedPayment("pay-1", "user-1", "svc-2"))
		if err != nil {
			t.Fatalf("ActivateOrExtend: %v", err)
		}
		if s.NextBillingAt != nil {
			t.Errorf("expected nil next billing for one-time service, got %v", s.NextBillingAt)
		}
	})

	t.Run("is a no-op when an active subscription exists", func(t *testing.T) {
		subs := newMemSubscriptionRepo()
		mgr := newManager(subs, newMemServiceRepo(testService))

		first, err := mgr.ActivateOrExtend(ctx, completedPayment("pay-1", "user-1", "svc-1"))
		if err != nil {
			t.Fatalf("first ActivateOrExtend: %v", err)
		}
		second, err := mgr.ActivateOrExtend(ctx, completedPayment("pay-2", "user-1", "svc-1"))
		if err != nil {
			t.Fatalf("second ActivateOrExtend: %v", err)
		}
		if second.ID != first.ID {
			t.Error("expected the existing subscription to be returned unchanged")
		}
		if subs.countActive() != 1 {
			t.Errorf("expected exactly one active subscription, got %d", subs.countActive())
		}
	})

	t.Run("does not reset a trial window", func(t *testing.T) {
		subs := newMemSubscriptionRepo()
		mgr := newManager(subs, newMemServiceRepo(testService))

		trial, err := mgr.StartTrial(ctx, "user-1", "ocr-suite")
		if err != nil {
			t.Fatalf("StartTrial: %v", err)
		}
		after, err := mgr.ActivateOrExtend(ctx, completedPayment("pay-1", "user-1", "svc-1"))
		if err != nil {
			t.Fatalf("ActivateOrExtend: %v", err)
		}
		if after.ID != trial.ID {
			t.Error("paid completion must return the existing trial record")
		}
		if after.TrialEndAt == nil || !after.TrialEndAt.Equal(*trial.TrialEndAt) {
			t.Error("trial window must not be reset or extended by a paid completion")
		}
	})

	t.Run("concurrent confirmations never yield two active rows", func(t *testing.T) {
		subs := newMemSubscriptionRepo()
		mgr := newManager(subs, newMemServiceRepo(testService))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, _ = mgr.ActivateOrExtend(ctx, completedPayment("pay-race", "user-1", "svc-1"))
			}(i)
		}
		wg.Wait()

		if subs.countActive() != 1 {
			t.Errorf("expected one active subscription after racing confirmations, got %d", subs.countActive())
		}
	})

	t.Run("rejects payments that are not completed", func(t *testing.T) {
		mgr := newManager(newMemSubscriptionRepo(), newMemServiceRepo(testService))
		p := completedPayment("pay-1", "user-1", "svc-1")
		p.Status = model.PaymentStatusPending

		if _, err := mgr.ActivateOrExtend(ctx, p); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestSubscriptionManager_StartTrial(t *testing.T) {
	ctx := context.Background()

	t.Run("grants the catalog trial", func(t *testing.T) {
		mgr := newManager(newMemSubscriptionRepo(), newMemServiceRepo(testService))

		s, err := mgr.StartTrial(ctx, "user-1", "ocr-suite")
		if err != nil {
			t.Fatalf("StartTrial: %v", err)
		}
		if s.PaymentID != nil {
			t.Error("trial subscriptions carry no payment")
		}
		if s.TrialEndAt == nil || s.TrialEndAt.Before(s.StartAt) {
			t.Errorf("trial end must be at or after start, got %v", s.TrialEndAt)
		}
		if s.NextBillingAt == nil || !s.NextBillingAt.Equal(*s.TrialEndAt) {
			t.Error("first billing boundary must coincide with trial end")
		}
	})

	t.Run("rejects services without a trial", func(t *testing.T) {
		noTrial := &model.Service{ID: "svc-3", Slug: "scraper", Name: "Scraper", PricePYG: 100000, Active: true}
		mgr := newManager(newMemSubscriptionRepo(), newMemServiceRepo(noTrial))

		if _, err := mgr.StartTrial(ctx, "user-1", "scraper"); !errors.Is(err, domain.ErrTrialNotAvailable) {
			t.Errorf("expected ErrTrialNotAvailable, got %v", err)
		}
	})

	t.Run("rejects a second trial while active", func(t *testing.T) {
		mgr := newManager(newMemSubscriptionRepo(), newMemServiceRepo(testService))
		if _, err := mgr.StartTrial(ctx, "user-1", "ocr-suite"); err != nil {
			t.Fatalf("first StartTrial: %v", err)
		}
		if _, err := mgr.StartTrial(ctx, "user-1", "ocr-suite"); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("rejects inactive services", func(t *testing.T) {
		retired := &model.Service{ID: "svc-4", Slug: "retired", Name: "Retired", PricePYG: 1, TrialDays: 7}
		mgr := newManager(newMemSubscriptionRepo(), newMemServiceRepo(retired))

		if _, err := mgr.StartTrial(ctx, "user-1", "retired"); !errors.Is(err, domain.ErrServiceInactive) {
			t.Errorf("expected ErrServiceInactive, got %v", err)
		}
	})
}

func TestSubscriptionManager_CancelResume(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (usecase.SubscriptionManager, *model.Subscription) {
		t.Helper()
		mgr := newManager(newMemSubscriptionRepo(), newMemServiceRepo(testService))
		s, err := mgr.ActivateOrExtend(ctx, completedPayment("pay-1", "user-1", "svc-1"))
		if err != nil {
			t.Fatalf("ActivateOrExtend: %v", err)
		}
		return mgr, s
	}

	t.Run("cancel then resume round-trip", func(t *testing.T) {
		mgr, s := setup(t)

		cancelled, err := mgr.Cancel(ctx, s.ID, "user-1")
		if err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if cancelled.Status != model.SubscriptionStatusCancelled || cancelled.EndAt == nil {
			t.Errorf("unexpected cancelled state: %+v", cancelled)
		}

		before := time.Now()
		resumed, err := mgr.Resume(ctx, s.ID, "user-1")
		if err != nil {
			t.Fatalf("Resume: %v", err)
		}
		if resumed.Status != model.SubscriptionStatusActive {
			t.Errorf("expected active after resume, got %s", resumed.Status)
		}
		if resumed.EndAt != nil {
			t.Error("resume must clear the end timestamp")
		}
		if resumed.NextBillingAt == nil || !resumed.NextBillingAt.After(before) {
			t.Errorf("expected next billing strictly after now, got %v", resumed.NextBillingAt)
		}
	})

	t.Run("cancel by a different user fails with NotOwner", func(t *testing.T) {
		mgr, s := setup(t)

		if _, err := mgr.Cancel(ctx, s.ID, "intruder"); !errors.Is(err, domain.ErrNotOwner) {
			t.Errorf("expected ErrNotOwner, got %v", err)
		}
		got, err := mgr.ListByUser(ctx, "user-1")
		if err != nil || len(got) != 1 {
			t.Fatalf("ListByUser: %v (%d)", err, len(got))
		}
		if got[0].Status != model.SubscriptionStatusActive {
			t.Error("foreign cancel attempt must leave the subscription unchanged")
		}
	})

	t.Run("double cancel fails with AlreadyCancelled", func(t *testing.T) {
		mgr, s := setup(t)
		if _, err := mgr.Cancel(ctx, s.ID, "user-1"); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if _, err := mgr.Cancel(ctx, s.ID, "user-1"); !errors.Is(err, domain.ErrAlreadyCancelled) {
			t.Errorf("expected ErrAlreadyCancelled, got %v", err)
		}
	})

	t.Run("resume of an active subscription fails with NotCancelled", func(t *testing.T) {
		mgr, s := setup(t)
		if _, err := mgr.Resume(ctx, s.ID, "user-1"); !errors.Is(err, domain.ErrNotCancelled) {
			t.Errorf("expected ErrNotCancelled, got %v", err)
		}
	})
}
