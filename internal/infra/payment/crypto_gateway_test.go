//go:build !integration

package payment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"

	"automation-subscription-platform/internal/config"
	"automation-subscription-platform/internal/domain"
	"automation-subscription-platform/internal/domain/ports/adapter"
)

func TestCryptoGateway_CreateIntent(t *testing.T) {
	g := NewCryptoGateway(config.CryptoConfig{WalletAddress: "TXYZwallet", Network: "TRC20"})

	res, err := g.CreateIntent(context.Background(), testIntent("USDT", "15"))
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if res.WalletAddress != "TXYZwallet" {
		t.Errorf("expected wallet address, got %q", res.WalletAddress)
	}
	if res.RedirectURL != "" {
		t.Error("crypto intents have no redirect")
	}
	if !strings.Contains(res.Instructions, "15 USDT") || !strings.Contains(res.Instructions, "TRC20") {
		t.Errorf("instructions missing amount or network: %q", res.Instructions)
	}
	if !strings.HasPrefix(res.CorrelationID, "cr-") {
		t.Errorf("expected cr- prefixed correlation id, got %q", res.CorrelationID)
	}
	if _, err := ulid.Parse(strings.TrimPrefix(res.CorrelationID, "cr-")); err != nil {
		t.Errorf("correlation id suffix is not a ULID: %v", err)
	}

	again, _ := g.CreateIntent(context.Background(), testIntent("USDT", "15"))
	if again.CorrelationID == res.CorrelationID {
		t.Error("correlation ids must be unique per intent")
	}
}

func TestCryptoGateway_CreateIntentUnconfigured(t *testing.T) {
	g := NewCryptoGateway(config.CryptoConfig{})
	if _, err := g.CreateIntent(context.Background(), testIntent("USDT", "15")); !errors.Is(err, domain.ErrProviderDeclined) {
		t.Errorf("expected ErrProviderDeclined without a wallet, got %v", err)
	}
}

func TestCryptoGateway_ConfirmCallback(t *testing.T) {
	g := NewCryptoGateway(config.CryptoConfig{WalletAddress: "TXYZwallet", Network: "TRC20"})

	t.Run("proof settles and is flagged for reconciliation", func(t *testing.T) {
		res, err := g.ConfirmCallback(context.Background(), []byte(`{"correlation_id":"cr-1","tx_reference":"0xdeadbeef"}`))
		if err != nil {
			t.Fatalf("ConfirmCallback: %v", err)
		}
		if res.Outcome != adapter.OutcomeSuccess || res.CorrelationID != "cr-1" {
			t.Errorf("unexpected result: %+v", res)
		}
		if res.Metadata["tx_reference"] != "0xdeadbeef" {
			t.Error("transaction reference must be preserved")
		}
		if res.Metadata["needs_reconciliation"] != true {
			t.Error("manual proofs must be flagged for reconciliation")
		}
	})

	t.Run("missing reference is rejected", func(t *testing.T) {
		if _, err := g.ConfirmCallback(context.Background(), []byte(`{"correlation_id":"cr-1"}`)); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
