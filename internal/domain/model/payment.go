package model

import (
	"time"

	"github.com/shopspring/decimal"

	"automation-subscription-platform/internal/domain"
)

// Gateway identifies a payment provider.
type Gateway string

const (
	GatewayStripe  Gateway = "stripe"  // international card processor
	GatewayPagopar Gateway = "pagopar" // local gateway A
	GatewayBancard Gateway = "bancard" // local gateway B
	GatewayCrypto  Gateway = "crypto"  // direct wallet transfer
)

// KnownGateway reports whether g is one of the supported providers.
func KnownGateway(g Gateway) bool {
	switch g {
	case GatewayStripe, GatewayPagopar, GatewayBancard, GatewayCrypto:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // intent created; awaiting provider confirmation
	PaymentStatusCompleted PaymentStatus = "completed" // provider confirmed settlement
	PaymentStatusFailed    PaymentStatus = "failed"    // declined or verification failed
	PaymentStatusRefunded  PaymentStatus = "refunded"  // explicit administrative refund
)

// CanTransition reports whether moving to next is a legal edge. The only
// legal edges are pending->completed, pending->failed and completed->refunded.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusCompleted || next == PaymentStatusFailed
	case PaymentStatusCompleted:
		return next == PaymentStatusRefunded
	}
	return false
}

// Terminal reports whether no further confirmation may change the status.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// Payment records one attempted transfer of value through a gateway.
type Payment struct {
	ID            string // ULID
	UserID        string
	ServiceID     string
	Gateway       Gateway
	Amount        decimal.Decimal // charged amount in Currency, exact
	Currency      string          // fiat code or crypto symbol
	CorrelationID string          // gateway-assigned id; unique once attached
	Status        PaymentStatus
	FailReason    string
	Meta          map[string]any // opaque provider payload, preserved verbatim (JSONB)
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
	// Set once the completed payment produced or matched a subscription.
	SubscriptionID *string
}

// NewPayment validates and constructs a pending payment.
func NewPayment(id, userID, serviceID string, gw Gateway, amount decimal.Decimal, currency string) (*Payment, error) {
	if id == "" || userID == "" || serviceID == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !KnownGateway(gw) {
		return nil, domain.ErrInvalidGateway
	}
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	now := time.Now()
	return &Payment{
		ID:        id,
		UserID:    userID,
		ServiceID: serviceID,
		Gateway:   gw,
		Amount:    amount,
		Currency:  currency,
		Status:    PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
