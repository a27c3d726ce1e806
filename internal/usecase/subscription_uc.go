package usecase

import (
	"context"
	"errors"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"automation-subscription-platform/internal/domain"
	"automation-subscription-platform/internal/domain/model"
	"automation-subscription-platform/internal/domain/ports/repository"
)

// SubscriptionManager owns the Subscription entity and enforces the single
// active subscription per (user, service) invariant.
type SubscriptionManager interface {
	// ActivateOrExtend reacts to a completed payment. When an active
	// subscription already exists for the pair it is returned unchanged, so
	// idempotent payment confirmations never double-provision and a trial
	// window is never reset by a paid completion.
	ActivateOrExtend(ctx context.Context, p *model.Payment) (*model.Subscription, error)
	// StartTrial grants the catalog trial with no payment attached.
	StartTrial(ctx context.Context, userID, serviceSlug string) (*model.Subscription, error)
	Cancel(ctx context.Context, subscriptionID, requestingUserID string) (*model.Subscription, error)
	Resume(ctx context.Context, subscriptionID, requestingUserID string) (*model.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error)
}

var _ SubscriptionManager = (*subscriptionManager)(nil)

type subscriptionManager struct {
	subs     repository.SubscriptionRepository
	services repository.ServiceRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewSubscriptionManager(
	subs repository.SubscriptionRepository,
	services repository.ServiceRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *subscriptionManager {
	return &subscriptionManager{subs: subs, services: services, tm: tm, log: logger}
}

func pairLockKey(userID, serviceID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(userID))
	h.Write([]byte{'|'})
	h.Write([]byte(serviceID))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

// lockPair takes a per-(user,service) advisory lock when the tx handle is a
// real pgx transaction. In-memory test transactions skip it; the repository's
// uniqueness guard still holds the invariant there.
func lockPair(ctx context.Context, tx repository.Tx, userID, serviceID string) error {
	px, ok := tx.(pgx.Tx)
	if !ok {
		return nil
	}
	_, err := px.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", pairLockKey(userID, serviceID))
	return err
}

func (m *subscriptionManager) ActivateOrExtend(ctx context.Context, p *model.Payment) (*model.Subscription, error) {
	if p == nil || p.Status != model.PaymentStatusCompleted {
		return nil, domain.ErrInvalidArgument
	}
	svc, err := m.services.FindByID(ctx, repository.NoTX, p.ServiceID)
	if err != nil {
		return nil, err
	}

	var out *model.Subscription
	err = m.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := lockPair(ctx, tx, p.UserID, p.ServiceID); err != nil {
			return err
		}

		existing, err := m.subs.FindActiveByUserAndService(ctx, tx, p.UserID, p.ServiceID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		s, err := model.NewSubscription(uuid.NewString(), p.UserID, svc, &p.ID)
		if err != nil {
			return err
		}
		if err := m.subs.Save(ctx, tx, s); err != nil {
			// A concurrent creation slipped past; the partial unique index
			// on (user_id, service_id, active) decides the winner.
			if errors.Is(err, domain.ErrAlreadyExists) {
				existing, ferr := m.subs.FindActiveByUserAndService(ctx, tx, p.UserID, p.ServiceID)
				if ferr != nil {
					return err
				}
				out = existing
				return nil
			}
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.PaymentID != nil && *out.PaymentID == p.ID {
		m.log.Info().Str("subscription_id", out.ID).Str("user_id", p.UserID).
			Str("service_id", p.ServiceID).Msg("subscription activated")
	}
	return out, nil
}

func (m *subscriptionManager) StartTrial(ctx context.Context, userID, serviceSlug string) (*model.Subscription, error) {
	if userID == "" || serviceSlug == "" {
		return nil, domain.ErrInvalidArgument
	}
	svc, err := m.services.FindBySlug(ctx, repository.NoTX, serviceSlug)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, domain.ErrServiceInactive
	}
	if svc.TrialDays <= 0 {
		return nil, domain.ErrTrialNotAvailable
	}

	var out *model.Subscription
	err = m.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := lockPair(ctx, tx, userID, svc.ID); err != nil {
			return err
		}
		if _, err := m.subs.FindActiveByUserAndService(ctx, tx, userID, svc.ID); err == nil {
			return domain.ErrAlreadyExists
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		s, err := model.NewTrialSubscription(uuid.NewString(), userID, svc)
		if err != nil {
			return err
		}
		if err := m.subs.Save(ctx, tx, s); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info().Str("subscription_id", out.ID).Str("user_id", userID).
		Int("trial_days", svc.TrialDays).Msg("trial started")
	return out, nil
}

func (m *subscriptionManager) Cancel(ctx context.Context, subscriptionID, requestingUserID string) (*model.Subscription, error) {
	s, err := m.subs.FindByID(ctx, repository.NoTX, subscriptionID)
	if err != nil {
		return nil, err
	}
	if s.UserID != requestingUserID {
		return nil, domain.ErrNotOwner
	}
	if err := s.Cancel(); err != nil {
		return nil, err
	}
	if err := m.subs.Save(ctx, repository.NoTX, s); err != nil {
		return nil, err
	}
	m.log.Info().Str("subscription_id", s.ID).Msg("subscription cancelled")
	return s, nil
}

func (m *subscriptionManager) Resume(ctx context.Context, subscriptionID, requestingUserID string) (*model.Subscription, error) {
	s, err := m.subs.FindByID(ctx, repository.NoTX, subscriptionID)
	if err != nil {
		return nil, err
	}
	if s.UserID != requestingUserID {
		return nil, domain.ErrNotOwner
	}
	if err := s.Resume(); err != nil {
		return nil, err
	}
	if err := m.subs.Save(ctx, repository.NoTX, s); err != nil {
		return nil, err
	}
	m.log.Info().Str("subscription_id", s.ID).Msg("subscription resumed")
	return s, nil
}

func (m *subscriptionManager) ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	return m.subs.ListByUser(ctx, repository.NoTX, userID)
}
