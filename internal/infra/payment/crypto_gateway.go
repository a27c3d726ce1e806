package payment

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"

	"automation-subscription-platform/internal/config"
	"automation-subscription-platform/internal/domain"
	"automation-subscription-platform/internal/domain/model"
	"automation-subscription-platform/internal/domain/ports/adapter"
)

// CryptoGateway handles direct wallet transfers. There is no provider API:
// the intent is a set of transfer instructions and the confirmation is a
// user-submitted transaction reference. The reference is recorded on trust
// and flagged for out-of-band reconciliation.
type CryptoGateway struct {
	walletAddress string
	network       string
}

func NewCryptoGateway(cfg config.CryptoConfig) *CryptoGateway {
	return &CryptoGateway{
		walletAddress: cfg.WalletAddress,
		network:       cfg.Network,
	}
}

func (g *CryptoGateway) Name() model.Gateway { return model.GatewayCrypto }

func (g *CryptoGateway) CreateIntent(ctx context.Context, intent adapter.Intent) (*adapter.IntentResult, error) {
	if g.walletAddress == "" {
		return nil, fmt.Errorf("no wallet configured: %w", domain.ErrProviderDeclined)
	}
	return &adapter.IntentResult{
		CorrelationID: "cr-" + ulid.MustNew(ulid.Now(), rand.Reader).String(),
		WalletAddress: g.walletAddress,
		Instructions: fmt.Sprintf("Send exactly %s %s (%s) to %s, then submit the transaction id for verification.",
			intent.Amount.String(), intent.Currency, g.network, g.walletAddress),
	}, nil
}

type cryptoProof struct {
	CorrelationID string `json:"correlation_id"`
	TxReference   string `json:"tx_reference"`
}

func (g *CryptoGateway) ConfirmCallback(ctx context.Context, payload []byte) (*adapter.SettlementResult, error) {
	var proof cryptoProof
	if err := json.Unmarshal(payload, &proof); err != nil {
		return nil, fmt.Errorf("malformed crypto proof: %w", domain.ErrInvalidArgument)
	}
	if proof.CorrelationID == "" || proof.TxReference == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &adapter.SettlementResult{
		CorrelationID: proof.CorrelationID,
		Outcome:       adapter.OutcomeSuccess,
		Metadata: map[string]any{
			"tx_reference":         proof.TxReference,
			"network":              g.network,
			"needs_reconciliation": true,
		},
	}, nil
}
