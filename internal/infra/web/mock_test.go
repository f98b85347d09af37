//go:build !integration

package web

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"payment-token-service/internal/config"
	"payment-token-service/internal/infra/db/memory"
	"payment-token-service/internal/usecase"
)

const testAdminSecret = "test-admin-jwt-secret-please-change"

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// mockPinger reports Err from Ping.
type mockPinger struct{ Err error }

func (m mockPinger) Ping(context.Context) error { return m.Err }

var errStorageDown = errors.New("storage down")

type testEnv struct {
	now    time.Time
	store  *memory.Store
	server *Server
	tokens usecase.TokenUseCase
}

func (e *testEnv) clock() time.Time { return e.now }

// newTestEnv wires a Server over the memory backend with a settable clock.
func newTestEnv(adminSecret string, checks ...HealthCheck) *testEnv {
	env := &testEnv{
		now:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		store: memory.NewStore(),
	}
	logger := newTestLogger()
	opts := []usecase.Option{usecase.WithClock(env.clock)}

	events := memory.NewWebhookEventRepo(env.store)
	ledger := usecase.NewLedgerUseCase(memory.NewPaymentRepo(env.store), events, opts...)
	tokens := usecase.NewTokenUseCase(memory.NewTokenRepo(env.store), logger, opts...)
	webhook := usecase.NewWebhookUseCase(ledger, tokens, events, memory.NewTxManager(env.store), logger, opts...)

	cfg := config.HTTPConfig{
		RequestTimeout: 5 * time.Second,
		MaxBodyBytes:   1 << 10,
		CORSOrigins:    []string{"*"},
	}
	env.tokens = tokens
	env.server = NewServer(webhook, tokens, ledger, NewAdminAuth(adminSecret), cfg, false, logger, checks...)
	return env
}
