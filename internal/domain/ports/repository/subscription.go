package repository

import (
	"context"

	"automation-subscription-platform/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	// FindActiveByUserAndService returns domain.ErrNotFound when no active
	// subscription exists for the pair.
	FindActiveByUserAndService(ctx context.Context, tx Tx, userID, serviceID string) (*model.Subscription, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)
	CountActiveByService(ctx context.Context, tx Tx) (map[string]int, error)
}
