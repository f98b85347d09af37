package repository

import (
	"context"
	"time"

	"payment-token-service/internal/domain/model"
)

// -----------------------------
// Payment ledger
// -----------------------------

type PaymentRepository interface {
	// FindByPaymentID returns domain.ErrNotFound when no record exists.
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.PaymentRecord, error)
	// Save upserts status, email and updated_at. It never touches the token latch.
	Save(ctx context.Context, tx Tx, p *model.PaymentRecord) error
	// SetTokenIfAbsent latches token/expiresAt only when no token is set yet.
	// It reports whether this call performed the latch.
	SetTokenIfAbsent(ctx context.Context, tx Tx, paymentID, token string, expiresAt time.Time) (bool, error)
	Ping(ctx context.Context) error
}

// -----------------------------
// Webhook event log
// -----------------------------

type WebhookEventRepository interface {
	Save(ctx context.Context, tx Tx, e *model.WebhookEvent) error
	ListByPayment(ctx context.Context, tx Tx, paymentID string, limit int) ([]*model.WebhookEvent, error)
}
