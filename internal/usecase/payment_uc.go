package usecase

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"automation-subscription-platform/internal/domain"
	"automation-subscription-platform/internal/domain/model"
	"automation-subscription-platform/internal/domain/ports/repository"
)

// PaymentLedger owns the Payment entity: it is the single source of truth for
// "did money move". Status transitions go through here and nowhere else.
type PaymentLedger interface {
	// CreatePending validates and persists a new pending payment.
	CreatePending(ctx context.Context, userID, serviceID string, gw model.Gateway, amount decimal.Decimal, currency string) (*model.Payment, error)
	// AttachIntent stores the gateway correlation id once the adapter
	// returned it. The unique constraint on the column makes duplicate
	// confirmations resolvable to exactly one payment.
	AttachIntent(ctx context.Context, paymentID, correlationID string) error
	// MarkCompleted transitions pending->completed. Idempotent: a payment
	// that is already completed is returned unchanged with transitioned
	// false, so callers never re-fire provisioning.
	MarkCompleted(ctx context.Context, tx repository.Tx, correlationID string, meta map[string]any) (p *model.Payment, transitioned bool, err error)
	// MarkFailed transitions pending->failed. A payment already in a
	// terminal state is a logged no-op.
	MarkFailed(ctx context.Context, correlationID, reason string) (*model.Payment, error)
	// FailInitiation marks a payment failed by internal id, for intents the
	// provider declined before a correlation id existed.
	FailInitiation(ctx context.Context, paymentID, reason string) error
	// Refund transitions completed->refunded. It does not cancel the
	// associated subscription; that is a separate explicit action.
	Refund(ctx context.Context, paymentID string) (*model.Payment, error)
	LinkSubscription(ctx context.Context, tx repository.Tx, paymentID, subscriptionID string) error
	GetByID(ctx context.Context, paymentID string) (*model.Payment, error)
}

var _ PaymentLedger = (*paymentLedger)(nil)

type paymentLedger struct {
	payments repository.PaymentRepository
	log      *zerolog.Logger
}

func NewPaymentLedger(payments repository.PaymentRepository, logger *zerolog.Logger) *paymentLedger {
	return &paymentLedger{payments: payments, log: logger}
}

func (l *paymentLedger) CreatePending(ctx context.Context, userID, serviceID string, gw model.Gateway, amount decimal.Decimal, currency string) (*model.Payment, error) {
	p, err := model.NewPayment(ulid.MustNew(ulid.Now(), rand.Reader).String(), userID, serviceID, gw, amount, currency)
	if err != nil {
		return nil, err
	}
	if err := l.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	l.log.Debug().Str("payment_id", p.ID).Str("gateway", string(gw)).
		Str("amount", amount.String()).Str("currency", currency).Msg("pending payment created")
	return p, nil
}

func (l *paymentLedger) AttachIntent(ctx context.Context, paymentID, correlationID string) error {
	if correlationID == "" {
		return domain.ErrInvalidArgument
	}
	return l.payments.SetCorrelationID(ctx, repository.NoTX, paymentID, correlationID)
}

func (l *paymentLedger) MarkCompleted(ctx context.Context, tx repository.Tx, correlationID string, meta map[string]any) (*model.Payment, bool, error) {
	p, err := l.payments.FindByCorrelationID(ctx, tx, correlationID)
	if err != nil {
		l.log.Error().Str("correlation_id", correlationID).
			Msg("confirmation for unknown correlation id rejected")
		return nil, false, domain.ErrUnknownCorrelationID
	}

	if p.Status == model.PaymentStatusCompleted {
		return p, false, nil
	}
	if !p.Status.CanTransition(model.PaymentStatusCompleted) {
		return p, false, domain.ErrInvalidTransition
	}

	now := time.Now()
	ok, err := l.payments.UpdateStatusIfPending(ctx, tx, p.ID, model.PaymentStatusCompleted, "", meta, &now)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		// Lost a race with a concurrent confirmation; re-read the winner.
		p, err = l.payments.FindByCorrelationID(ctx, tx, correlationID)
		if err != nil {
			return nil, false, domain.ErrUnknownCorrelationID
		}
		if p.Status == model.PaymentStatusCompleted {
			return p, false, nil
		}
		return p, false, domain.ErrInvalidTransition
	}

	p.Status = model.PaymentStatusCompleted
	p.Meta = meta
	p.CompletedAt = &now
	p.UpdatedAt = now
	l.log.Info().Str("payment_id", p.ID).Str("correlation_id", correlationID).Msg("payment completed")
	return p, true, nil
}

func (l *paymentLedger) MarkFailed(ctx context.Context, correlationID, reason string) (*model.Payment, error) {
	p, err := l.payments.FindByCorrelationID(ctx, repository.NoTX, correlationID)
	if err != nil {
		l.log.Error().Str("correlation_id", correlationID).
			Msg("failure callback for unknown correlation id rejected")
		return nil, domain.ErrUnknownCorrelationID
	}

	if p.Status.Terminal() {
		l.log.Warn().Str("payment_id", p.ID).Str("status", string(p.Status)).
			Msg("failure callback on terminal payment ignored")
		return p, nil
	}

	ok, err := l.payments.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PaymentStatusFailed, reason, nil, nil)
	if err != nil {
		return nil, err
	}
	if ok {
		p.Status = model.PaymentStatusFailed
		p.FailReason = reason
		p.UpdatedAt = time.Now()
		l.log.Info().Str("payment_id", p.ID).Str("reason", reason).Msg("payment failed")
	}
	return p, nil
}

func (l *paymentLedger) FailInitiation(ctx context.Context, paymentID, reason string) error {
	ok, err := l.payments.UpdateStatusIfPending(ctx, repository.NoTX, paymentID, model.PaymentStatusFailed, reason, nil, nil)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidTransition
	}
	l.log.Info().Str("payment_id", paymentID).Str("reason", reason).Msg("payment intent abandoned")
	return nil
}

func (l *paymentLedger) Refund(ctx context.Context, paymentID string) (*model.Payment, error) {
	p, err := l.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransition(model.PaymentStatusRefunded) {
		return nil, domain.ErrInvalidTransition
	}
	if err := l.payments.UpdateStatus(ctx, repository.NoTX, p.ID, model.PaymentStatusRefunded); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatusRefunded
	p.UpdatedAt = time.Now()
	l.log.Info().Str("payment_id", p.ID).Msg("payment refunded")
	return p, nil
}

func (l *paymentLedger) LinkSubscription(ctx context.Context, tx repository.Tx, paymentID, subscriptionID string) error {
	return l.payments.SetSubscriptionID(ctx, tx, paymentID, subscriptionID)
}

func (l *paymentLedger) GetByID(ctx context.Context, paymentID string) (*model.Payment, error) {
	return l.payments.FindByID(ctx, repository.NoTX, paymentID)
}
