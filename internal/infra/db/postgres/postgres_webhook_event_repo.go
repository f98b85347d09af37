package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"payment-token-service/internal/domain"
	"payment-token-service/internal/domain/model"
	"payment-token-service/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type webhookEventRepo struct{ pool *pgxpool.Pool }

func NewWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

func (r *webhookEventRepo) Save(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	const q = `
INSERT INTO webhook_events (id, payment_id, status, email, payload, received_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5::jsonb, $6);`

	payload := string(e.Payload)
	if payload == "" {
		payload = "{}"
	}
	if _, err := execSQL(ctx, r.pool, tx, q, e.ID, e.PaymentID, e.Status, e.Email, payload, e.ReceivedAt); err != nil {
		return mapExecErr(err)
	}
	return nil
}

func (r *webhookEventRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string, limit int) ([]*model.WebhookEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, payment_id, status, COALESCE(email, ''), payload::text, received_at
  FROM webhook_events
 WHERE payment_id = $1
 ORDER BY received_at DESC, id DESC
 LIMIT $2;`

	rows, err := queryRows(ctx, r.pool, tx, q, paymentID, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.WebhookEvent
	for rows.Next() {
		e := new(model.WebhookEvent)
		var payload string
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.Status, &e.Email, &payload, &e.ReceivedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		e.Payload = []byte(payload)
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
