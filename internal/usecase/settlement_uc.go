package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"automation-subscription-platform/internal/domain"
	"automation-subscription-platform/internal/domain/model"
	"automation-subscription-platform/internal/domain/ports/adapter"
	"automation-subscription-platform/internal/domain/ports/repository"
	"automation-subscription-platform/internal/infra/logging"
)

const (
	intentAttempts    = 3
	intentBackoffBase = 250 * time.Millisecond
	settleLockTTL     = 30 * time.Second
)

// Locker serializes settlement per correlation id. Satisfied by the redis
// locker; tests plug an in-memory one.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// SettlementUseCase is the facade over converter, adapters, ledger and
// subscription manager. It is the only caller that drives a payment through
// its lifecycle.
type SettlementUseCase interface {
	// Initiate opens a payment with the chosen gateway and returns the
	// redirect URL or crypto instructions, plus the pending payment record.
	Initiate(ctx context.Context, userID, serviceSlug string, gw model.Gateway, currency string) (*adapter.IntentResult, *model.Payment, error)
	// Resume consumes one raw asynchronous provider confirmation. Safe to
	// invoke any number of times with the same payload.
	Resume(ctx context.Context, gw model.Gateway, payload []byte) (*model.Payment, error)
	// VerifyCrypto feeds a user-submitted transaction reference into the
	// crypto adapter's confirmation path. The reference is recorded as-is
	// and flagged for reconciliation, not treated as on-chain proof.
	VerifyCrypto(ctx context.Context, userID, paymentID, txReference string) (*model.Payment, error)
}

var _ SettlementUseCase = (*settlementUC)(nil)

type settlementUC struct {
	services  repository.ServiceRepository
	converter *RateConverter
	ledger    PaymentLedger
	subs      SubscriptionManager
	gateways  map[model.Gateway]adapter.Gateway
	locker    Locker
	cbBaseURL string
	log       *zerolog.Logger
}

func NewSettlementUseCase(
	services repository.ServiceRepository,
	converter *RateConverter,
	ledger PaymentLedger,
	subs SubscriptionManager,
	gateways map[model.Gateway]adapter.Gateway,
	locker Locker,
	callbackBaseURL string,
	logger *zerolog.Logger,
) *settlementUC {
	return &settlementUC{
		services:  services,
		converter: converter,
		ledger:    ledger,
		subs:      subs,
		gateways:  gateways,
		locker:    locker,
		cbBaseURL: callbackBaseURL,
		log:       logger,
	}
}

func (u *settlementUC) gateway(gw model.Gateway) (adapter.Gateway, error) {
	impl, ok := u.gateways[gw]
	if !ok {
		return nil, domain.ErrInvalidGateway
	}
	return impl, nil
}

func (u *settlementUC) Initiate(ctx context.Context, userID, serviceSlug string, gw model.Gateway, currency string) (*adapter.IntentResult, *model.Payment, error) {
	defer logging.TraceDuration(u.log, "Settlement.Initiate")()

	impl, err := u.gateway(gw)
	if err != nil {
		return nil, nil, err
	}

	svc, err := u.services.FindBySlug(ctx, repository.NoTX, serviceSlug)
	if err != nil {
		return nil, nil, err
	}
	if !svc.Active {
		return nil, nil, domain.ErrServiceInactive
	}

	// All validation happens before any state or external call.
	amount, err := u.converter.Convert(decimal.NewFromInt(svc.PricePYG), gw, currency)
	if err != nil {
		return nil, nil, err
	}

	p, err := u.ledger.CreatePending(ctx, userID, svc.ID, gw, amount, currency)
	if err != nil {
		return nil, nil, err
	}

	intent := adapter.Intent{
		PaymentID:   p.ID,
		UserID:      userID,
		ServiceID:   svc.ID,
		Amount:      amount,
		Currency:    currency,
		Description: fmt.Sprintf("%s subscription", svc.Name),
		CallbackURL: u.cbBaseURL + "/" + string(gw),
	}

	res, err := u.createIntentWithRetry(ctx, impl, intent)
	if err != nil {
		if errors.Is(err, domain.ErrProviderDeclined) {
			if ferr := u.ledger.FailInitiation(ctx, p.ID, err.Error()); ferr != nil {
				u.log.Error().Err(ferr).Str("payment_id", p.ID).Msg("failed to mark declined intent")
			}
			return nil, p, err
		}
		// Transient exhaustion: the payment stays pending so a later manual
		// confirmation can still land.
		return nil, p, err
	}

	if err := u.ledger.AttachIntent(ctx, p.ID, res.CorrelationID); err != nil {
		return nil, p, err
	}
	p.CorrelationID = res.CorrelationID
	u.log.Info().Str("payment_id", p.ID).Str("gateway", string(gw)).
		Str("correlation_id", res.CorrelationID).Msg("payment intent created")
	return res, p, nil
}

func (u *settlementUC) createIntentWithRetry(ctx context.Context, impl adapter.Gateway, intent adapter.Intent) (*adapter.IntentResult, error) {
	backoff := intentBackoffBase
	var lastErr error
	for attempt := 1; attempt <= intentAttempts; attempt++ {
		res, err := impl.CreateIntent(ctx, intent)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrProviderTransient) {
			return nil, err
		}
		u.log.Warn().Err(err).Int("attempt", attempt).
			Str("payment_id", intent.PaymentID).Msg("provider intent attempt failed")
		if attempt == intentAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (u *settlementUC) Resume(ctx context.Context, gw model.Gateway, payload []byte) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "Settlement.Resume")()

	impl, err := u.gateway(gw)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithGateway(ctx, string(gw))

	// The provider round-trip happens before any lock is taken.
	sr, err := impl.ConfirmCallback(ctx, payload)
	if err != nil {
		return nil, err
	}

	token, err := u.locker.TryLock(ctx, "settle:"+sr.CorrelationID, settleLockTTL)
	if err != nil {
		return nil, domain.ErrLockNotAcquired
	}
	defer func() {
		if uerr := u.locker.Unlock(context.WithoutCancel(ctx), "settle:"+sr.CorrelationID, token); uerr != nil {
			u.log.Warn().Err(uerr).Str("correlation_id", sr.CorrelationID).Msg("settlement unlock failed")
		}
	}()

	if sr.Outcome == adapter.OutcomeFailure {
		return u.ledger.MarkFailed(ctx, sr.CorrelationID, sr.Reason)
	}

	p, transitioned, err := u.ledger.MarkCompleted(ctx, repository.NoTX, sr.CorrelationID, sr.Metadata)
	if err != nil {
		return nil, err
	}
	if !transitioned && p.SubscriptionID != nil {
		// Duplicate delivery; everything below already happened once.
		return p, nil
	}
	// Either a fresh completion, or a duplicate whose provisioning step did
	// not finish last time. ActivateOrExtend is a no-op when the
	// subscription already exists, so re-driving it here is safe.

	ctx = logging.WithPaymentID(ctx, p.ID)
	log := logging.With(ctx, u.log)

	sub, err := u.subs.ActivateOrExtend(ctx, p)
	if err != nil {
		// The payment is completed; provisioning is retried by the next
		// delivery of the same confirmation or by an operator.
		log.Error().Err(err).Msg("provisioning after settlement failed")
		return p, err
	}
	if err := u.ledger.LinkSubscription(ctx, repository.NoTX, p.ID, sub.ID); err != nil {
		log.Error().Err(err).Str("subscription_id", sub.ID).
			Msg("failed to link payment to subscription")
	}
	p.SubscriptionID = &sub.ID
	return p, nil
}

func (u *settlementUC) VerifyCrypto(ctx context.Context, userID, paymentID, txReference string) (*model.Payment, error) {
	if txReference == "" {
		return nil, domain.ErrInvalidArgument
	}
	p, err := u.ledger.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, domain.ErrNotOwner
	}
	if p.Gateway != model.GatewayCrypto {
		return nil, domain.ErrInvalidGateway
	}

	payload, err := json.Marshal(map[string]string{
		"correlation_id": p.CorrelationID,
		"tx_reference":   txReference,
	})
	if err != nil {
		return nil, err
	}
	return u.Resume(ctx, model.GatewayCrypto, payload)
}
