package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"payment-token-service/internal/domain"
	"payment-token-service/internal/domain/model"
	"payment-token-service/internal/domain/ports/repository"
)

var _ repository.TokenRepository = (*tokenRepo)(nil)

type tokenRepo struct{ pool *pgxpool.Pool }

func NewTokenRepo(pool *pgxpool.Pool) *tokenRepo {
	return &tokenRepo{pool: pool}
}

const tokenColumns = `token, payment_id, expires_at, tiktok_username, used, created_at, activated_at`

func scanToken(row pgx.Row) (*model.AccessToken, error) {
	t := &model.AccessToken{}
	if err := row.Scan(&t.Token, &t.PaymentID, &t.ExpiresAt, &t.TikTokUsername, &t.Used, &t.CreatedAt, &t.ActivatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}

// Insert relies on the unique indexes on token and payment_id; either conflict
// turns the insert into a no-op.
func (r *tokenRepo) Insert(ctx context.Context, tx repository.Tx, t *model.AccessToken) (bool, error) {
	const q = `
INSERT INTO tokens (token, payment_id, expires_at, tiktok_username, used, created_at)
VALUES ($1, $2, $3, NULL, FALSE, $4)
ON CONFLICT DO NOTHING;`

	cmd, err := execSQL(ctx, r.pool, tx, q, t.Token, t.PaymentID, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *tokenRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.AccessToken, error) {
	q := `SELECT ` + tokenColumns + ` FROM tokens WHERE token=$1`
	if isTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, token)
	if err != nil {
		return nil, err
	}
	return scanToken(row)
}

func (r *tokenRepo) FindLatestByPayment(ctx context.Context, tx repository.Tx, paymentID string) (*model.AccessToken, error) {
	const q = `SELECT ` + tokenColumns + ` FROM tokens WHERE payment_id=$1 ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	return scanToken(row)
}

func (r *tokenRepo) BindIdentity(ctx context.Context, tx repository.Tx, t *model.AccessToken) (bool, error) {
	if t.TikTokUsername == nil {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE tokens
   SET tiktok_username = $2,
       used = TRUE,
       activated_at = $3
 WHERE token = $1
   AND tiktok_username IS NULL;`

	cmd, err := execSQL(ctx, r.pool, tx, q, t.Token, *t.TikTokUsername, t.ActivatedAt)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *tokenRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AccessToken, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + tokenColumns + ` FROM tokens ORDER BY created_at DESC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	out := make([]*model.AccessToken, 0, limit)
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
