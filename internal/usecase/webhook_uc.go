// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"payment-token-service/internal/domain"
	"payment-token-service/internal/domain/model"
	"payment-token-service/internal/domain/ports/repository"
	"payment-token-service/internal/infra/logging"
	"payment-token-service/internal/infra/metrics"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

type WebhookUseCase interface {
	// Ingest records one processor notification and issues the payment's
	// token on its first paid status. Redelivery is safe.
	Ingest(ctx context.Context, in WebhookInput) (*IngestResult, error)
}

type IngestResult struct {
	Record *model.PaymentRecord
	Token  *model.AccessToken
	// Issued is true only for the delivery that created the token.
	Issued bool
}

type webhookUC struct {
	ledger LedgerUseCase
	tokens TokenUseCase
	events repository.WebhookEventRepository
	tm     repository.TransactionManager
	log    *zerolog.Logger
	opts   options
}

func NewWebhookUseCase(
	ledger LedgerUseCase,
	tokens TokenUseCase,
	events repository.WebhookEventRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
	opts ...Option,
) *webhookUC {
	return &webhookUC{
		ledger: ledger,
		tokens: tokens,
		events: events,
		tm:     tm,
		log:    logger,
		opts:   buildOptions(opts),
	}
}

func (u *webhookUC) Ingest(ctx context.Context, in WebhookInput) (*IngestResult, error) {
	defer logging.TraceDuration(u.log, "WebhookUC.Ingest")()

	status := model.NormalizeStatus(in.Status)
	metrics.IncWebhookEvent(status)

	rec, err := model.NewPaymentRecord(in.PaymentID, u.opts.now())
	if err != nil {
		return nil, fmt.Errorf("payment_id is required: %w", domain.ErrInvalidArgument)
	}
	paymentID := rec.PaymentID
	log := logging.With(logging.WithPaymentID(ctx, paymentID), u.log)

	res := &IngestResult{}
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		rec, err := u.ledger.UpsertStatus(ctx, tx, paymentID, status, in.Email)
		if err != nil {
			return err
		}
		if err := u.events.Save(ctx, tx, u.newEvent(paymentID, status, in)); err != nil {
			return fmt.Errorf("save webhook event: %w", err)
		}
		res.Record = rec
		if !rec.NeedsToken() {
			return nil
		}

		tok, created, err := u.tokens.IssueOnce(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		rec, _, err = u.ledger.AttachToken(ctx, tx, paymentID, tok)
		if err != nil {
			return err
		}
		res.Record, res.Token, res.Issued = rec, tok, created
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("status", status).Msg("webhook ingest failed")
		return nil, err
	}
	if res.Token == nil && res.Record.HasToken() {
		if res.Token, err = u.tokens.FindByPayment(ctx, paymentID); err != nil {
			return nil, fmt.Errorf("load issued token: %w", err)
		}
	}

	log.Info().
		Str("status", res.Record.Status).
		Bool("token_issued", res.Issued).
		Msg("webhook processed")
	return res, nil
}

func (u *webhookUC) newEvent(paymentID, status string, in WebhookInput) *model.WebhookEvent {
	now := u.opts.now()
	payload := in.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return &model.WebhookEvent{
		ID:         ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		PaymentID:  paymentID,
		Status:     status,
		Email:      in.Email,
		Payload:    payload,
		ReceivedAt: now,
	}
}
