package payment

import (
	"net/http"
	"time"

	"automation-subscription-platform/internal/config"
	"automation-subscription-platform/internal/domain/model"
	"automation-subscription-platform/internal/domain/ports/adapter"
)

// Providers never get more than this per call; retries are the caller's job.
const httpTimeout = 5 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// BuildGateways wires every configured provider adapter. The settlement use
// case routes by model.Gateway name.
func BuildGateways(cfg config.PaymentConfig) map[model.Gateway]adapter.Gateway {
	return map[model.Gateway]adapter.Gateway{
		model.GatewayStripe:  NewStripeGateway(cfg.Stripe),
		model.GatewayPagopar: NewPagoparGateway(cfg.Pagopar),
		model.GatewayBancard: NewBancardGateway(cfg.Bancard),
		model.GatewayCrypto:  NewCryptoGateway(cfg.Crypto),
	}
}
