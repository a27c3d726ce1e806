package repository

import (
	"context"

	"automation-subscription-platform/internal/domain/model"
)

// ServiceRepository is a read-only view of the service catalog. Catalog
// management lives outside the settlement engine.
type ServiceRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Service, error)
	FindBySlug(ctx context.Context, tx Tx, slug string) (*model.Service, error)
	List(ctx context.Context, tx Tx) ([]*model.Service, error)
}
