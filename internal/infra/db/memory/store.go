// Package memory is a process-local storage backend. It gives the same
// uniqueness and compare-and-swap guarantees as the Postgres schema, but
// state is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"payment-token-service/internal/domain"
	"payment-token-service/internal/domain/model"
	"payment-token-service/internal/domain/ports/repository"
)

type Store struct {
	txMu sync.Mutex // serializes WithTx callbacks

	mu        sync.RWMutex
	payments  map[string]*model.PaymentRecord
	tokens    map[string]*model.AccessToken
	byPayment map[string]string
	events    []*model.WebhookEvent
}

func NewStore() *Store {
	return &Store{
		payments:  make(map[string]*model.PaymentRecord),
		tokens:    make(map[string]*model.AccessToken),
		byPayment: make(map[string]string),
	}
}

// -----------------------------
// Transactions
// -----------------------------

type memTx struct{}

var _ repository.TransactionManager = (*TxManager)(nil)

// TxManager serializes transactional callbacks. Writes are applied
// immediately and are not rolled back if fn fails.
type TxManager struct{ s *Store }

func NewTxManager(s *Store) *TxManager { return &TxManager{s: s} }

func (m *TxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, memTx{})
}

// -----------------------------
// Payments
// -----------------------------

var _ repository.PaymentRepository = (*PaymentRepo)(nil)

type PaymentRepo struct{ s *Store }

func NewPaymentRepo(s *Store) *PaymentRepo { return &PaymentRepo{s: s} }

func clonePayment(p *model.PaymentRecord) *model.PaymentRecord {
	cp := *p
	if p.Token != nil {
		v := *p.Token
		cp.Token = &v
	}
	if p.ExpiresAt != nil {
		v := *p.ExpiresAt
		cp.ExpiresAt = &v
	}
	if p.Email != nil {
		v := *p.Email
		cp.Email = &v
	}
	return &cp
}

func (r *PaymentRepo) FindByPaymentID(_ context.Context, _ repository.Tx, paymentID string) (*model.PaymentRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.payments[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(p), nil
}

func (r *PaymentRepo) Save(_ context.Context, _ repository.Tx, p *model.PaymentRecord) error {
	if p.PaymentID == "" {
		return domain.ErrInvalidArgument
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.payments[p.PaymentID]
	if !ok {
		cp := clonePayment(p)
		cp.Token, cp.ExpiresAt = nil, nil
		r.s.payments[p.PaymentID] = cp
		return nil
	}
	existing.Status = p.Status
	if p.Email != nil {
		v := *p.Email
		existing.Email = &v
	}
	existing.UpdatedAt = p.UpdatedAt
	return nil
}

func (r *PaymentRepo) SetTokenIfAbsent(_ context.Context, _ repository.Tx, paymentID, token string, expiresAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[paymentID]
	if !ok || p.Token != nil {
		return false, nil
	}
	p.Token = &token
	p.ExpiresAt = &expiresAt
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *PaymentRepo) Ping(context.Context) error { return nil }

// -----------------------------
// Tokens
// -----------------------------

var _ repository.TokenRepository = (*TokenRepo)(nil)

type TokenRepo struct{ s *Store }

func NewTokenRepo(s *Store) *TokenRepo { return &TokenRepo{s: s} }

func cloneToken(t *model.AccessToken) *model.AccessToken {
	cp := *t
	if t.TikTokUsername != nil {
		v := *t.TikTokUsername
		cp.TikTokUsername = &v
	}
	if t.ActivatedAt != nil {
		v := *t.ActivatedAt
		cp.ActivatedAt = &v
	}
	return &cp
}

func (r *TokenRepo) Insert(_ context.Context, _ repository.Tx, t *model.AccessToken) (bool, error) {
	if t.Token == "" || t.PaymentID == "" {
		return false, domain.ErrInvalidArgument
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, dup := r.s.tokens[t.Token]; dup {
		return false, nil
	}
	if _, dup := r.s.byPayment[t.PaymentID]; dup {
		return false, nil
	}
	cp := cloneToken(t)
	cp.TikTokUsername, cp.Used, cp.ActivatedAt = nil, false, nil
	r.s.tokens[t.Token] = cp
	r.s.byPayment[t.PaymentID] = t.Token
	return true, nil
}

func (r *TokenRepo) FindByToken(_ context.Context, _ repository.Tx, token string) (*model.AccessToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tokens[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneToken(t), nil
}

func (r *TokenRepo) FindLatestByPayment(_ context.Context, _ repository.Tx, paymentID string) (*model.AccessToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tok, ok := r.s.byPayment[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneToken(r.s.tokens[tok]), nil
}

func (r *TokenRepo) BindIdentity(_ context.Context, _ repository.Tx, t *model.AccessToken) (bool, error) {
	if t.TikTokUsername == nil {
		return false, domain.ErrInvalidArgument
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tokens[t.Token]
	if !ok {
		return false, domain.ErrNotFound
	}
	if stored.TikTokUsername != nil {
		return false, nil
	}
	name := *t.TikTokUsername
	stored.TikTokUsername = &name
	stored.Used = true
	if t.ActivatedAt != nil {
		at := *t.ActivatedAt
		stored.ActivatedAt = &at
	}
	return true, nil
}

func (r *TokenRepo) ListRecent(_ context.Context, _ repository.Tx, limit int) ([]*model.AccessToken, error) {
	if limit <= 0 {
		limit = 50
	}
	r.s.mu.RLock()
	out := make([]*model.AccessToken, 0, len(r.s.tokens))
	for _, t := range r.s.tokens {
		out = append(out, cloneToken(t))
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// -----------------------------
// Webhook events
// -----------------------------

var _ repository.WebhookEventRepository = (*WebhookEventRepo)(nil)

type WebhookEventRepo struct{ s *Store }

func NewWebhookEventRepo(s *Store) *WebhookEventRepo { return &WebhookEventRepo{s: s} }

func (r *WebhookEventRepo) Save(_ context.Context, _ repository.Tx, e *model.WebhookEvent) error {
	cp := *e
	cp.Payload = append([]byte(nil), e.Payload...)
	r.s.mu.Lock()
	r.s.events = append(r.s.events, &cp)
	r.s.mu.Unlock()
	return nil
}

func (r *WebhookEventRepo) ListByPayment(_ context.Context, _ repository.Tx, paymentID string, limit int) ([]*model.WebhookEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*model.WebhookEvent
	for i := len(r.s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if e := r.s.events[i]; e.PaymentID == paymentID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
