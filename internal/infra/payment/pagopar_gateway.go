package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"automation-subscription-platform/internal/config"
	"automation-subscription-platform/internal/domain"
	"automation-subscription-platform/internal/domain/model"
	"automation-subscription-platform/internal/domain/ports/adapter"
)

// PagoparGateway talks to the Pagopar order API. Orders are created in PYG
// and confirmed by a signed POST callback.
type PagoparGateway struct {
	publicKey  string
	privateKey string
	baseURL    string
	client     *http.Client
}

func NewPagoparGateway(cfg config.PagoparConfig) *PagoparGateway {
	baseURL := "https://api.pagopar.com/api/2.0"
	if cfg.Sandbox {
		baseURL = "https://api-sandbox.pagopar.com/api/2.0"
	}
	return &PagoparGateway{
		publicKey:  cfg.PublicKey,
		privateKey: cfg.PrivateKey,
		baseURL:    baseURL,
		client:     newHTTPClient(),
	}
}

func (g *PagoparGateway) Name() model.Gateway { return model.GatewayPagopar }

type pagoparOrderResponse struct {
	Respuesta bool `json:"respuesta"`
	Resultado []struct {
		Hash string `json:"data"`
		URL  string `json:"url"`
	} `json:"resultado"`
	Mensaje string `json:"mensaje"`
}

func (g *PagoparGateway) CreateIntent(ctx context.Context, intent adapter.Intent) (*adapter.IntentResult, error) {
	monto := intent.Amount.String()
	body := map[string]any{
		"comercio":      g.publicKey,
		"token":         hmacToken(g.privateKey, g.publicKey, monto, intent.PaymentID),
		"monto_total":   monto,
		"moneda":        intent.Currency,
		"descripcion":   intent.Description,
		"id_pedido":     intent.PaymentID,
		"url_retorno":   intent.CallbackURL,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/comercios/iniciar-transaccion", bytes.NewBuffer(jsonData))
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

	var order pagoparOrderResponse
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
	}
	if !order.Respuesta || len(order.Resultado) == 0 {
		return nil, fmt.Errorf("pagopar rejected order: %s: %w", order.Mensaje, domain.ErrProviderDeclined)
	}

	return &adapter.IntentResult{
		CorrelationID: order.Resultado[0].Hash,
		RedirectURL:   order.Resultado[0].URL,
	}, nil
}

type pagoparCallback struct {
	HashPedido string `json:"hash_pedido"`
	Respuesta  string `json:"respuesta"` // pago_exitoso | pago_fallido
	Token      string `json:"token"`
}

func (g *PagoparGateway) ConfirmCallback(ctx context.Context, payload []byte) (*adapter.SettlementResult, error) {
	var cb pagoparCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("malformed pagopar callback: %w", domain.ErrInvalidArgument)
	}
	if cb.HashPedido == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !validToken(g.privateKey, cb.Token, cb.HashPedido, cb.Respuesta) {
		return nil, fmt.Errorf("pagopar callback token mismatch: %w", domain.ErrInvalidArgument)
	}

	res := &adapter.SettlementResult{
		CorrelationID: cb.HashPedido,
		// The full callback body is kept for audit and replay; fields like
		// monto or forma_pago vary by payment method and are never dropped.
		Metadata: map[string]any{
			"respuesta": cb.Respuesta,
			"raw":       string(payload),
		},
	}
	if cb.Respuesta == "pago_exitoso" {
		res.Outcome = adapter.OutcomeSuccess
	} else {
		res.Outcome = adapter.OutcomeFailure
		res.Reason = cb.Respuesta
	}
	return res, nil
}
