package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"automation-subscription-platform/internal/domain"
	"automation-subscription-platform/internal/domain/model"
	"automation-subscription-platform/internal/domain/ports/repository"
)

var _ repository.ServiceRepository = (*serviceRepo)(nil)

// serviceRepo reads the service catalog. Rows are written by cmd/seed, not
// by the engine.
type serviceRepo struct{ pool *pgxpool.Pool }

func NewServiceRepo(pool *pgxpool.Pool) *serviceRepo {
	return &serviceRepo{pool: pool}
}

const serviceColumns = `id, slug, name, price_pyg, trial_days, recurring, active`

func scanService(row interface{ Scan(dest ...any) error }) (*model.Service, error) {
	s := &model.Service{}
	if err := row.Scan(&s.ID, &s.Slug, &s.Name, &s.PricePYG, &s.TrialDays, &s.Recurring, &s.Active); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *serviceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Service, error) {
	const q = `SELECT ` + serviceColumns + ` FROM services WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanService(row)
}

func (r *serviceRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Service, error) {
	const q = `SELECT ` + serviceColumns + ` FROM services WHERE slug=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, slug)
	if err != nil {
		return nil, err
	}
	return scanService(row)
}

func (r *serviceRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Service, error) {
	const q = `SELECT ` + serviceColumns + ` FROM services ORDER BY slug;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
