package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"automation-subscription-platform/internal/config"
	"automation-subscription-platform/internal/domain"
	"automation-subscription-platform/internal/domain/model"
	"automation-subscription-platform/internal/domain/ports/adapter"
)

// StripeGateway settles card payments through Stripe Checkout sessions.
type StripeGateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	// Stripe exposes test mode through the key, not the host.
	return &StripeGateway{
		secretKey: cfg.SecretKey,
		baseURL:   "https://api.stripe.com",
		client:    newHTTPClient(),
	}
}

func (g *StripeGateway) Name() model.Gateway { return model.GatewayStripe }

// minorUnits renders the amount the way Stripe expects: integer cents for
// two-decimal currencies, whole units for zero-decimal ones.
func minorUnits(amount decimal.Decimal, currency string) int64 {
	if currency == "PYG" {
		return amount.IntPart()
	}
	return amount.Shift(2).IntPart()
}

type stripeSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Err *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *StripeGateway) CreateIntent(ctx context.Context, intent adapter.Intent) (*adapter.IntentResult, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(intent.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(minorUnits(intent.Amount, intent.Currency), 10))
	form.Set("line_items[0][price_data][product_data][name]", intent.Description)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", intent.CallbackURL)
	form.Set("metadata[payment_id]", intent.PaymentID)
	form.Set("metadata[user_id]", intent.UserID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, transient(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transient(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	var session stripeSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}
	if session.Err != nil {
		return nil, fmt.Errorf("stripe error: %s: %w", session.Err.Message, domain.ErrProviderDeclined)
	}

	return &adapter.IntentResult{
		CorrelationID: session.ID,
		RedirectURL:   session.URL,
	}, nil
}

type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string `json:"id"`
			PaymentStatus string `json:"payment_status"`
		} `json:"object"`
	} `json:"data"`
}

// ConfirmCallback maps a Checkout webhook event onto a settlement result.
func (g *StripeGateway) ConfirmCallback(ctx context.Context, payload []byte) (*adapter.SettlementResult, error) {
	var ev stripeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("malformed stripe event: %w", domain.ErrInvalidArgument)
	}
	if ev.Data.Object.ID == "" {
		return nil, domain.ErrInvalidArgument
	}

	// The raw event is kept for audit and replay alongside the digest.
	meta := map[string]any{
		"stripe_event": ev.Type,
		"raw":          string(payload),
	}

	switch ev.Type {
	case "checkout.session.completed":
		if ev.Data.Object.PaymentStatus != "paid" {
			// Delayed payment methods complete the session before the charge
			// settles; the async event decides.
			return nil, fmt.Errorf("session completed but unpaid: %w", domain.ErrInvalidArgument)
		}
		return &adapter.SettlementResult{
			CorrelationID: ev.Data.Object.ID,
			Outcome:       adapter.OutcomeSuccess,
			Metadata:      meta,
		}, nil
	case "checkout.session.async_payment_succeeded":
		return &adapter.SettlementResult{
			CorrelationID: ev.Data.Object.ID,
			Outcome:       adapter.OutcomeSuccess,
			Metadata:      meta,
		}, nil
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		return &adapter.SettlementResult{
			CorrelationID: ev.Data.Object.ID,
			Outcome:       adapter.OutcomeFailure,
			Reason:        ev.Type,
			Metadata:      meta,
		}, nil
	default:
		return nil, fmt.Errorf("unhandled stripe event %q: %w", ev.Type, domain.ErrInvalidArgument)
	}
}
