// File: internal/usecase/token_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"payment-token-service/internal/domain"
	"payment-token-service/internal/domain/model"
	"payment-token-service/internal/domain/ports/repository"
	"payment-token-service/internal/infra/metrics"
)

// Compile-time check
var _ TokenUseCase = (*tokenUC)(nil)

// maxIssueAttempts bounds regeneration after a token string collision.
const maxIssueAttempts = 3

type TokenUseCase interface {
	// IssueOnce returns the token for paymentID, generating it on first call.
	// created is false when a token already existed.
	IssueOnce(ctx context.Context, tx repository.Tx, paymentID string) (tok *model.AccessToken, created bool, err error)
	// FindByPayment returns the latest token issued for paymentID.
	FindByPayment(ctx context.Context, paymentID string) (*model.AccessToken, error)
	// Activate binds token to identity on first use.
	// On ErrExpired the token is still returned so callers can report expiresAt.
	Activate(ctx context.Context, token, identity string) (*model.AccessToken, error)
	// Check reports the stored state of a token. Same ErrExpired contract as Activate.
	Check(ctx context.Context, token string) (*model.AccessToken, error)
	ListRecent(ctx context.Context, limit int) ([]*model.AccessToken, error)
}

type tokenUC struct {
	tokens repository.TokenRepository
	log    *zerolog.Logger
	opts   options
}

func NewTokenUseCase(tokens repository.TokenRepository, logger *zerolog.Logger, opts ...Option) *tokenUC {
	return &tokenUC{
		tokens: tokens,
		log:    logger,
		opts:   buildOptions(opts),
	}
}

func (u *tokenUC) IssueOnce(ctx context.Context, tx repository.Tx, paymentID string) (*model.AccessToken, bool, error) {
	if paymentID == "" {
		return nil, false, domain.ErrInvalidArgument
	}
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		raw, err := generateToken()
		if err != nil {
			return nil, false, fmt.Errorf("generate token: %w", err)
		}
		tok := model.NewAccessToken(raw, paymentID, u.opts.now(), u.opts.tokenTTL)

		inserted, err := u.tokens.Insert(ctx, tx, tok)
		if err != nil {
			return nil, false, fmt.Errorf("insert token: %w", err)
		}
		if inserted {
			metrics.IncTokenIssued()
			u.log.Info().Str("payment_id", paymentID).Time("expires_at", tok.ExpiresAt).Msg("token issued")
			return tok, true, nil
		}

		// Either this payment already has a token or the string collided.
		existing, err := u.tokens.FindLatestByPayment(ctx, tx, paymentID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, false, fmt.Errorf("load token for %s: %w", paymentID, err)
		}
		u.log.Warn().Str("payment_id", paymentID).Int("attempt", attempt).Msg("token collision, regenerating")
	}
	return nil, false, fmt.Errorf("issue token for %s after %d attempts: %w", paymentID, maxIssueAttempts, domain.ErrOperationFailed)
}

func (u *tokenUC) FindByPayment(ctx context.Context, paymentID string) (*model.AccessToken, error) {
	if paymentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.tokens.FindLatestByPayment(ctx, nil, paymentID)
}

func (u *tokenUC) Activate(ctx context.Context, token, identity string) (tok *model.AccessToken, err error) {
	defer func() { metrics.IncTokenOp("activate", opResult(err)) }()

	token = model.CanonicalToken(token)
	identity = model.NormalizeIdentity(identity)
	if token == "" || identity == "" {
		return nil, fmt.Errorf("token and tiktokUsername are required: %w", domain.ErrInvalidArgument)
	}

	tok, err = u.tokens.FindByToken(ctx, nil, token)
	if err != nil {
		return nil, err
	}
	now := u.opts.now()
	if tok.IsExpired(now) {
		return tok, domain.ErrExpired
	}
	if tok.IsBound() {
		return u.compareBinding(tok, identity)
	}

	tok.Bind(identity, now)
	bound, err := u.tokens.BindIdentity(ctx, nil, tok)
	if err != nil {
		return nil, fmt.Errorf("bind token: %w", err)
	}
	if bound {
		u.log.Info().Str("payment_id", tok.PaymentID).Msg("token activated")
		return tok, nil
	}

	// Lost the race; whoever won decides the outcome.
	current, err := u.tokens.FindByToken(ctx, nil, token)
	if err != nil {
		return nil, err
	}
	return u.compareBinding(current, identity)
}

func (u *tokenUC) compareBinding(tok *model.AccessToken, identity string) (*model.AccessToken, error) {
	if tok.BoundTo(identity) {
		return tok, nil
	}
	u.log.Warn().Str("payment_id", tok.PaymentID).Msg("token already bound to another identity")
	return nil, domain.ErrIdentityConflict
}

func (u *tokenUC) Check(ctx context.Context, token string) (tok *model.AccessToken, err error) {
	defer func() { metrics.IncTokenOp("check", opResult(err)) }()

	token = model.CanonicalToken(token)
	if token == "" {
		return nil, fmt.Errorf("token is required: %w", domain.ErrInvalidArgument)
	}
	tok, err = u.tokens.FindByToken(ctx, nil, token)
	if err != nil {
		return nil, err
	}
	if tok.IsExpired(u.opts.now()) {
		return tok, domain.ErrExpired
	}
	return tok, nil
}

func (u *tokenUC) ListRecent(ctx context.Context, limit int) ([]*model.AccessToken, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return u.tokens.ListRecent(ctx, nil, limit)
}

func opResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrIdentityConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid"
	}
	return "error"
}
