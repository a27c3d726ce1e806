package model

import (
	"time"

	"automation-subscription-platform/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a user's entitlement window for one service.
// At most one active subscription may exist per (user, service) pair.
type Subscription struct {
	ID            string // UUID
	UserID        string
	ServiceID     string
	PaymentID     *string // nil for trial-only sign-ups
	Status        SubscriptionStatus
	StartAt       time.Time
	TrialEndAt    *time.Time // nil unless granted via the trial path
	NextBillingAt *time.Time // nil for one-time services
	EndAt         *time.Time // set on cancellation, cleared on resume
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewSubscription creates an active paid subscription starting now.
// Trials are never granted here; see NewTrialSubscription.
func NewSubscription(id, userID string, svc *Service, paymentID *string) (*Subscription, error) {
	if id == "" || userID == "" || svc.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	s := &Subscription{
		ID:        id,
		UserID:    userID,
		ServiceID: svc.ID,
		PaymentID: paymentID,
		Status:    SubscriptionStatusActive,
		StartAt:   now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if svc.Recurring {
		nb := now.AddDate(0, 1, 0)
		s.NextBillingAt = &nb
	}
	return s, nil
}

// NewTrialSubscription creates an active trial with no originating payment.
// The trial window doubles as the first billing boundary.
func NewTrialSubscription(id, userID string, svc *Service) (*Subscription, error) {
	if id == "" || userID == "" || svc.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if svc.TrialDays <= 0 {
		return nil, domain.ErrTrialNotAvailable
	}
	now := time.Now()
	trialEnd := now.AddDate(0, 0, svc.TrialDays)
	return &Subscription{
		ID:            id,
		UserID:        userID,
		ServiceID:     svc.ID,
		Status:        SubscriptionStatusActive,
		StartAt:       now,
		TrialEndAt:    &trialEnd,
		NextBillingAt: &trialEnd,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Cancel marks the subscription cancelled and stamps its end.
func (s *Subscription) Cancel() error {
	if s.Status != SubscriptionStatusActive {
		return domain.ErrAlreadyCancelled
	}
	now := time.Now()
	s.Status = SubscriptionStatusCancelled
	s.EndAt = &now
	s.UpdatedAt = now
	return nil
}

// Resume reactivates a cancelled subscription, clears its end and
// recomputes the next billing boundary from now.
func (s *Subscription) Resume() error {
	if s.Status != SubscriptionStatusCancelled {
		return domain.ErrNotCancelled
	}
	now := time.Now()
	nb := now.AddDate(0, 1, 0)
	s.Status = SubscriptionStatusActive
	s.EndAt = nil
	s.NextBillingAt = &nb
	s.UpdatedAt = now
	return nil
}
