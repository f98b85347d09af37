// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"payment-token-service/internal/config"
	"payment-token-service/internal/domain/ports/repository"
	"payment-token-service/internal/infra/db/memory"
	pg "payment-token-service/internal/infra/db/postgres"
	"payment-token-service/internal/infra/logging"
	"payment-token-service/internal/infra/metrics"
	red "payment-token-service/internal/infra/redis"
	"payment-token-service/internal/infra/web"
	"payment-token-service/internal/usecase"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

// storage bundles the repositories of the selected backend.
type storage struct {
	payments repository.PaymentRepository
	tokens   repository.TokenRepository
	events   repository.WebhookEventRepository
	tm       repository.TransactionManager
	checks   []web.HealthCheck
	close    func()
}

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted fields)")
	mintAdmin := flag.Duration("mint-admin-token", 0, "print an admin JWT valid for the given duration and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	admin := web.NewAdminAuth(cfg.Admin.JWTSecret)
	if *mintAdmin > 0 {
		tok, err := admin.Mint("operator", *mintAdmin)
		if err != nil {
			logger.Fatal().Err(err).Msg("mint admin token")
		}
		fmt.Println(tok)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Storage.Driver)

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("storage")
	}
	defer store.close()

	// ---- Use cases ----
	opts := []usecase.Option{usecase.WithTokenTTL(cfg.Token.TTL)}
	ledgerUC := usecase.NewLedgerUseCase(store.payments, store.events, opts...)
	tokenUC := usecase.NewTokenUseCase(store.tokens, logger, opts...)
	webhookUC := usecase.NewWebhookUseCase(ledgerUC, tokenUC, store.events, store.tm, logger, opts...)

	// ---- HTTP ----
	srv := web.NewServer(webhookUC, tokenUC, ledgerUC, admin, cfg.HTTP, cfg.Runtime.Dev, logger, store.checks...)
	httpServer := srv.HTTPServer(fmt.Sprintf(":%d", cfg.HTTP.Port))

	errc := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("storage", cfg.Storage.Driver).
			Bool("admin_debug", admin.Enabled()).
			Str("version", version).
			Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		logger.Error().Err(err).Msg("http server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("bye")
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*storage, error) {
	var st *storage

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		payments := pg.NewPaymentRepo(pool)
		st = &storage{
			payments: payments,
			tokens:   pg.NewTokenRepo(pool),
			events:   pg.NewWebhookEventRepo(pool),
			tm:       pg.NewTxManager(pool),
			checks:   []web.HealthCheck{{Name: "postgres", Pinger: payments}},
			close:    pool.Close,
		}
	default:
		logger.Warn().Msg("using in-memory storage; state is lost on restart")
		s := memory.NewStore()
		payments := memory.NewPaymentRepo(s)
		st = &storage{
			payments: payments,
			tokens:   memory.NewTokenRepo(s),
			events:   memory.NewWebhookEventRepo(s),
			tm:       memory.NewTxManager(s),
			checks:   []web.HealthCheck{{Name: "memory", Pinger: payments}},
			close:    func() {},
		}
	}

	// ---- Redis (optional) ----
	if cfg.Redis.URL == "" {
		return st, nil
	}
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		st.close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	st.tokens = pg.NewTokenRepoCacheDecorator(st.tokens, redisClient, cfg.Redis.TTL, logger)
	st.checks = append(st.checks, web.HealthCheck{Name: "redis", Pinger: redisClient})
	closeStore := st.close
	st.close = func() {
		_ = redisClient.Close()
		closeStore()
	}
	logger.Info().Dur("ttl", cfg.Redis.TTL).Msg("redis token cache enabled")
	return st, nil
}
