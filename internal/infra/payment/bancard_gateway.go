package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"automation-subscription-platform/internal/config"
	"automation-subscription-platform/internal/domain"
	"automation-subscription-platform/internal/domain/model"
	"automation-subscription-platform/internal/domain/ports/adapter"
)

// BancardGateway drives the vPOS single-buy flow. Unlike the other
// providers, confirmation arrives as a GET redirect; ConfirmCallback
// receives the raw query string.
type BancardGateway struct {
	publicKey  string
	privateKey string
	baseURL    string
	client     *http.Client
}

func NewBancardGateway(cfg config.BancardConfig) *BancardGateway {
	baseURL := "https://vpos.infonet.com.py"
	if cfg.Sandbox {
		baseURL = "https://vpos.infonet.com.py:8888"
	}
	return &BancardGateway{
		publicKey:  cfg.PublicKey,
		privateKey: cfg.PrivateKey,
		baseURL:    baseURL,
		client:     newHTTPClient(),
	}
}

func (g *BancardGateway) Name() model.Gateway { return model.GatewayBancard }

type bancardBuyResponse struct {
	Status    string `json:"status"`
	ProcessID string `json:"process_id"`
	Messages  []struct {
		Key string `json:"key"`
		Dsc string `json:"dsc"`
	} `json:"messages"`
}

func (g *BancardGateway) CreateIntent(ctx context.Context, intent adapter.Intent) (*adapter.IntentResult, error) {
	amount := intent.Amount.StringFixed(2)
	body := map[string]any{
		"public_key": g.publicKey,
		"operation": map[string]any{
			"token":           hmacToken(g.privateKey, intent.PaymentID, amount, intent.Currency),
			"shop_process_id": intent.PaymentID,
			"amount":          amount,
			"currency":        intent.Currency,
			"description":     intent.Description,
			"return_url":      intent.CallbackURL,
		},
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/vpos/api/0.3/single_buy", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, transient(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transient(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	var buy bancardBuyResponse
	if err := json.Unmarshal(raw, &buy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
	}
	if buy.Status != "success" || buy.ProcessID == "" {
		msg := buy.Status
		if len(buy.Messages) > 0 {
			msg = buy.Messages[0].Dsc
		}
		return nil, fmt.Errorf("bancard rejected buy: %s: %w", msg, domain.ErrProviderDeclined)
	}

	return &adapter.IntentResult{
		CorrelationID: buy.ProcessID,
		RedirectURL:   g.baseURL + "/payment/single_buy?process_id=" + buy.ProcessID,
	}, nil
}

// ConfirmCallback parses the redirect query string:
// process_id=..&status=payment_success&token=..
func (g *BancardGateway) ConfirmCallback(ctx context.Context, payload []byte) (*adapter.SettlementResult, error) {
	values, err := url.ParseQuery(string(payload))
	if err != nil {
		return nil, fmt.Errorf("malformed bancard callback: %w", domain.ErrInvalidArgument)
	}

	processID := values.Get("process_id")
	status := values.Get("status")
	if processID == "" || status == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !validToken(g.privateKey, values.Get("token"), processID, status) {
		return nil, fmt.Errorf("bancard callback token mismatch: %w", domain.ErrInvalidArgument)
	}

	res := &adapter.SettlementResult{
		CorrelationID: processID,
		// The full query string is kept for audit and replay.
		Metadata: map[string]any{
			"status": status,
			"raw":    string(payload),
		},
	}
	if response := values.Get("response_description"); response != "" {
		res.Metadata["response_description"] = response
	}
	if status == "payment_success" {
		res.Outcome = adapter.OutcomeSuccess
	} else {
		res.Outcome = adapter.OutcomeFailure
		res.Reason = status
	}
	return res, nil
}
