package repository

import (
	"context"

	"payment-token-service/internal/domain/model"
)

// TokenRepository is the port for issued access tokens.
type TokenRepository interface {
	// Insert stores a new token. A conflict on token or payment_id is not an
	// error: it returns false and leaves the existing row untouched.
	Insert(ctx context.Context, tx Tx, t *model.AccessToken) (bool, error)
	// FindByToken expects the canonical (upper-case) token.
	FindByToken(ctx context.Context, tx Tx, token string) (*model.AccessToken, error)
	// FindLatestByPayment returns the newest token for a payment.
	FindLatestByPayment(ctx context.Context, tx Tx, paymentID string) (*model.AccessToken, error)
	// BindIdentity sets tiktok_username and used only when it is still unset.
	BindIdentity(ctx context.Context, tx Tx, t *model.AccessToken) (bool, error)
	// ListRecent is used by the debug listing.
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*model.AccessToken, error)
}
