//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"payment-token-service/internal/domain/model"
	"payment-token-service/internal/domain/ports/repository"
	"payment-token-service/internal/infra/db/memory"
	"payment-token-service/internal/usecase"
)

// -----------------------------
// Utilities
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// fixedClock is a settable clock shared by the use cases under test.
type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time          { return c.t }
func (c *fixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fixedClock {
	return &fixedClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

// =============================
// Repositories
// =============================

// MockTokenRepo delegates to an in-memory repo unless a Func hook is set.
type MockTokenRepo struct {
	inner repository.TokenRepository

	InsertFunc              func(ctx context.Context, tx repository.Tx, t *model.AccessToken) (bool, error)
	FindByTokenFunc         func(ctx context.Context, tx repository.Tx, token string) (*model.AccessToken, error)
	FindLatestByPaymentFunc func(ctx context.Context, tx repository.Tx, paymentID string) (*model.AccessToken, error)
	BindIdentityFunc        func(ctx context.Context, tx repository.Tx, t *model.AccessToken) (bool, error)
}

var _ repository.TokenRepository = (*MockTokenRepo)(nil)

func NewMockTokenRepo(s *memory.Store) *MockTokenRepo {
	return &MockTokenRepo{inner: memory.NewTokenRepo(s)}
}

func (m *MockTokenRepo) Insert(ctx context.Context, tx repository.Tx, t *model.AccessToken) (bool, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, tx, t)
	}
	return m.inner.Insert(ctx, tx, t)
}

func (m *MockTokenRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.AccessToken, error) {
	if m.FindByTokenFunc != nil {
		return m.FindByTokenFunc(ctx, tx, token)
	}
	return m.inner.FindByToken(ctx, tx, token)
}

func (m *MockTokenRepo) FindLatestByPayment(ctx context.Context, tx repository.Tx, paymentID string) (*model.AccessToken, error) {
	if m.FindLatestByPaymentFunc != nil {
		return m.FindLatestByPaymentFunc(ctx, tx, paymentID)
	}
	return m.inner.FindLatestByPayment(ctx, tx, paymentID)
}

func (m *MockTokenRepo) BindIdentity(ctx context.Context, tx repository.Tx, t *model.AccessToken) (bool, error) {
	if m.BindIdentityFunc != nil {
		return m.BindIdentityFunc(ctx, tx, t)
	}
	return m.inner.BindIdentity(ctx, tx, t)
}

func (m *MockTokenRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AccessToken, error) {
	return m.inner.ListRecent(ctx, tx, limit)
}

// MockEventRepo records saved events and can be told to fail.
type MockEventRepo struct {
	inner    repository.WebhookEventRepository
	SaveFunc func(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error
}

var _ repository.WebhookEventRepository = (*MockEventRepo)(nil)

func (m *MockEventRepo) Save(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, e)
	}
	return m.inner.Save(ctx, tx, e)
}

func (m *MockEventRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string, limit int) ([]*model.WebhookEvent, error) {
	return m.inner.ListByPayment(ctx, tx, paymentID, limit)
}

// ---- Transaction manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Wiring
// =============================

type testDeps struct {
	store    *memory.Store
	clock    *fixedClock
	payments repository.PaymentRepository
	tokens   *MockTokenRepo
	events   *MockEventRepo
	tm       repository.TransactionManager

	ledger  usecase.LedgerUseCase
	tokenUC usecase.TokenUseCase
	webhook usecase.WebhookUseCase
}

// newTestDeps wires the real use cases over the memory backend.
func newTestDeps() *testDeps {
	s := memory.NewStore()
	d := &testDeps{
		store:    s,
		clock:    newClock(),
		payments: memory.NewPaymentRepo(s),
		tokens:   NewMockTokenRepo(s),
		events:   &MockEventRepo{inner: memory.NewWebhookEventRepo(s)},
		tm:       memory.NewTxManager(s),
	}
	d.rewire()
	return d
}

// rewire rebuilds the use cases, e.g. after swapping tm.
func (d *testDeps) rewire() {
	logger := newTestLogger()
	opts := []usecase.Option{usecase.WithClock(d.clock.Now)}
	d.ledger = usecase.NewLedgerUseCase(d.payments, d.events, opts...)
	d.tokenUC = usecase.NewTokenUseCase(d.tokens, logger, opts...)
	d.webhook = usecase.NewWebhookUseCase(d.ledger, d.tokenUC, d.events, d.tm, logger, opts...)
}

func (d *testDeps) ingest(t interface{ Fatalf(string, ...any) }, id, status string) *usecase.IngestResult {
	res, err := d.webhook.Ingest(context.Background(), usecase.WebhookInput{PaymentID: id, Status: status})
	if err != nil {
		t.Fatalf("ingest %s/%s: %v", id, status, err)
	}
	return res
}
