package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"automation-subscription-platform/internal/domain"
	"automation-subscription-platform/internal/domain/model"
	"automation-subscription-platform/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, service_id, gateway, amount, currency, COALESCE(correlation_id,''), status, fail_reason, meta, created_at, updated_at, completed_at, subscription_id`

func scanPayment(row interface{ Scan(dest ...any) error }) (*model.Payment, error) {
	p := &model.Payment{}
	var gw, status string
	if err := row.Scan(&p.ID, &p.UserID, &p.ServiceID, &gw, &p.Amount, &p.Currency, &p.CorrelationID, &status, &p.FailReason, &p.Meta, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt, &p.SubscriptionID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Gateway = model.Gateway(gw)
	p.Status = model.PaymentStatus(status)
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, user_id, service_id, gateway, amount, currency, correlation_id, status, fail_reason, meta, created_at, updated_at, completed_at, subscription_id
) VALUES (
  $1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,$9,COALESCE($10,'{}'::jsonb),$11,$12,$13,$14
) ON CONFLICT (id) DO UPDATE SET
  gateway=$4, amount=$5, currency=$6, correlation_id=NULLIF($7,''), status=$8, fail_reason=$9, meta=COALESCE($10,'{}'::jsonb), updated_at=$12, completed_at=$13, subscription_id=$14;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.ServiceID, string(p.Gateway), p.Amount, p.Currency, p.CorrelationID, string(p.Status), p.FailReason, p.Meta, p.CreatedAt, p.UpdatedAt, p.CompletedAt, p.SubscriptionID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			if isUniqueViolation(err) {
				return domain.ErrAlreadyExists
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByCorrelationID(ctx context.Context, tx repository.Tx, correlationID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE correlation_id=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, correlationID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) SetCorrelationID(ctx context.Context, tx repository.Tx, id, correlationID string) error {
	const q = `UPDATE payments SET correlation_id=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, correlationID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			// The unique constraint on correlation_id catches a second payment
			// claiming the same gateway order.
			if isUniqueViolation(err) {
				return domain.ErrAlreadyExists
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

// UpdateStatusIfPending transitions the row only while it is still pending
// and reports whether anything changed. Provider metadata is merged, never
// replaced, so earlier confirmation payloads survive.
func (r *paymentRepo) UpdateStatusIfPending(
	ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, reason string, meta map[string]any, completedAt *time.Time,
) (bool, error) {
	const q = `
UPDATE payments
   SET status = $2,
       fail_reason = CASE WHEN $3 <> '' THEN $3 ELSE fail_reason END,
       meta = COALESCE(meta,'{}'::jsonb) || COALESCE($4,'{}'::jsonb),
       completed_at = COALESCE($5, completed_at),
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), reason, meta, completedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return false, err
		default:
			return false, domain.ErrOperationFailed
		}
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus) error {
	const q = `UPDATE payments SET status=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, string(status))
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *paymentRepo) SetSubscriptionID(ctx context.Context, tx repository.Tx, id, subscriptionID string) error {
	const q = `UPDATE payments SET subscription_id=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, subscriptionID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *paymentRepo) SumCompletedByPeriod(ctx context.Context, tx repository.Tx, period string) (map[string]decimal.Decimal, error) {
	const q = `SELECT currency, SUM(amount) FROM payments WHERE status='completed' AND completed_at >= DATE_TRUNC($1, NOW()) GROUP BY currency;`
	rows, err := queryRows(ctx, r.pool, tx, q, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := map[string]decimal.Decimal{}
	for rows.Next() {
		var currency string
		var sum decimal.Decimal
		if err := rows.Scan(&currency, &sum); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		sums[currency] = sum
	}
	return sums, nil
}
