package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"automation-subscription-platform/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByCorrelationID(ctx context.Context, tx Tx, correlationID string) (*model.Payment, error)
	// SetCorrelationID attaches the gateway-assigned id to a pending payment.
	// The column carries a unique constraint.
	SetCorrelationID(ctx context.Context, tx Tx, id, correlationID string) error
	// UpdateStatusIfPending atomically transitions a pending payment and
	// reports whether the row actually changed. This is the idempotency
	// backstop for duplicate confirmations.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, reason string, meta map[string]any, completedAt *time.Time) (bool, error)
	// UpdateStatus performs an unconditional status write; callers guard
	// transitions themselves (refund path).
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus) error
	SetSubscriptionID(ctx context.Context, tx Tx, id, subscriptionID string) error
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
	// SumCompletedByPeriod totals completed payments since the start of the
	// given DATE_TRUNC period ("day", "month"), keyed by charge currency.
	SumCompletedByPeriod(ctx context.Context, tx Tx, period string) (map[string]decimal.Decimal, error)
}
