package adapter

import (
	"context"

	"github.com/shopspring/decimal"

	"automation-subscription-platform/internal/domain/model"
)

// Intent carries everything a provider needs to open a payment.
type Intent struct {
	PaymentID   string
	UserID      string
	ServiceID   string
	Amount      decimal.Decimal
	Currency    string
	Description string
	CallbackURL string
}

// IntentResult is what the caller is handed back after CreateIntent.
// Redirect gateways fill RedirectURL; the crypto gateway returns wallet
// instructions instead.
type IntentResult struct {
	CorrelationID string
	RedirectURL   string
	WalletAddress string
	Instructions  string
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// SettlementResult is the provider-agnostic shape of an asynchronous
// confirmation. Metadata preserves the raw provider payload verbatim.
type SettlementResult struct {
	CorrelationID string
	Outcome       Outcome
	Reason        string
	Metadata      map[string]any
}

// Gateway is the hex port for payment providers. Implementations translate
// protocol quirks into the common shapes above and never mutate Payment or
// Subscription state themselves.
type Gateway interface {
	Name() model.Gateway
	// CreateIntent opens a payment with the provider. Transient transport
	// failures are reported as domain.ErrProviderTransient (wrapped), a
	// definitive refusal as domain.ErrProviderDeclined.
	CreateIntent(ctx context.Context, intent Intent) (*IntentResult, error)
	// ConfirmCallback parses one raw asynchronous confirmation payload.
	ConfirmCallback(ctx context.Context, payload []byte) (*SettlementResult, error)
}
