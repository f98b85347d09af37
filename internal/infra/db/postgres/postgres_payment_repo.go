package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"payment-token-service/internal/domain"
	"payment-token-service/internal/domain/model"
	"payment-token-service/internal/domain/ports/repository"
	"payment-token-service/internal/infra/metrics"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `payment_id, status, token, expires_at, email, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.PaymentRecord, error) {
	p := &model.PaymentRecord{}
	if err := row.Scan(&p.PaymentID, &p.Status, &p.Token, &p.ExpiresAt, &p.Email, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

// Save upserts the ledger row. The token latch is owned by SetTokenIfAbsent,
// and never appears in the UPDATE list.
func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	const q = `
INSERT INTO payments (payment_id, status, email, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (payment_id) DO UPDATE SET
  status = EXCLUDED.status,
  email = COALESCE(EXCLUDED.email, payments.email),
  updated_at = EXCLUDED.updated_at;`

	if _, err := execSQL(ctx, r.pool, tx, q, p.PaymentID, p.Status, p.Email, p.CreatedAt, p.UpdatedAt); err != nil {
		return mapExecErr(err)
	}
	return nil
}

func (r *paymentRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.PaymentRecord, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id=$1`
	if isTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) SetTokenIfAbsent(ctx context.Context, tx repository.Tx, paymentID, token string, expiresAt time.Time) (bool, error) {
	const q = `
UPDATE payments
   SET token = $2,
       expires_at = $3,
       updated_at = NOW()
 WHERE payment_id = $1
   AND token IS NULL;`

	cmd, err := execSQL(ctx, r.pool, tx, q, paymentID, token, expiresAt)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

// Ping checks connectivity and samples pool stats for the readiness probe.
func (r *paymentRepo) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return err
	}
	st := r.pool.Stat()
	metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns(), st.MaxConns())
	return nil
}
