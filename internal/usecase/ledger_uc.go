// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"payment-token-service/internal/domain"
	"payment-token-service/internal/domain/model"
	"payment-token-service/internal/domain/ports/repository"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

// LedgerUseCase tracks the latest known status of each external payment.
type LedgerUseCase interface {
	// UpsertStatus creates or refreshes the record for paymentID and returns it.
	// The caller decides on issuance via rec.NeedsToken().
	UpsertStatus(ctx context.Context, tx repository.Tx, paymentID, status, email string) (*model.PaymentRecord, error)
	// AttachToken latches token onto the record. If another writer already
	// latched one, the stored record is returned unchanged.
	AttachToken(ctx context.Context, tx repository.Tx, paymentID string, tok *model.AccessToken) (*model.PaymentRecord, bool, error)
	LookupByPaymentID(ctx context.Context, paymentID string) (*model.PaymentRecord, error)
	RecentEvents(ctx context.Context, paymentID string, limit int) ([]*model.WebhookEvent, error)
}

type ledgerUC struct {
	payments repository.PaymentRepository
	events   repository.WebhookEventRepository
	opts     options
}

func NewLedgerUseCase(payments repository.PaymentRepository, events repository.WebhookEventRepository, opts ...Option) *ledgerUC {
	return &ledgerUC{payments: payments, events: events, opts: buildOptions(opts)}
}

func (u *ledgerUC) UpsertStatus(ctx context.Context, tx repository.Tx, paymentID, status, email string) (*model.PaymentRecord, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, fmt.Errorf("payment_id is required: %w", domain.ErrInvalidArgument)
	}
	now := u.opts.now()

	rec, err := u.payments.FindByPaymentID(ctx, tx, paymentID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		rec, err = model.NewPaymentRecord(paymentID, now)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("load payment %s: %w", paymentID, err)
	}

	rec.ApplyEvent(status, email, now)
	if err := u.payments.Save(ctx, tx, rec); err != nil {
		return nil, fmt.Errorf("save payment %s: %w", paymentID, err)
	}
	return rec, nil
}

func (u *ledgerUC) AttachToken(ctx context.Context, tx repository.Tx, paymentID string, tok *model.AccessToken) (*model.PaymentRecord, bool, error) {
	latched, err := u.payments.SetTokenIfAbsent(ctx, tx, paymentID, tok.Token, tok.ExpiresAt)
	if err != nil {
		return nil, false, fmt.Errorf("latch token for %s: %w", paymentID, err)
	}
	rec, err := u.payments.FindByPaymentID(ctx, tx, paymentID)
	if err != nil {
		return nil, false, fmt.Errorf("reload payment %s: %w", paymentID, err)
	}
	return rec, latched, nil
}

func (u *ledgerUC) LookupByPaymentID(ctx context.Context, paymentID string) (*model.PaymentRecord, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.payments.FindByPaymentID(ctx, nil, paymentID)
}

func (u *ledgerUC) RecentEvents(ctx context.Context, paymentID string, limit int) ([]*model.WebhookEvent, error) {
	return u.events.ListByPayment(ctx, nil, strings.TrimSpace(paymentID), limit)
}
