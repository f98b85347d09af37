package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"payment-token-service/internal/config"
	"payment-token-service/internal/infra/metrics"
	"payment-token-service/internal/usecase"
)

// Pinger is anything the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck names one dependency of the readiness probe.
type HealthCheck struct {
	Name   string
	Pinger Pinger
}

type Server struct {
	webhook usecase.WebhookUseCase
	tokens  usecase.TokenUseCase
	ledger  usecase.LedgerUseCase
	checks  []HealthCheck
	admin   *AdminAuth
	cfg     config.HTTPConfig
	dev     bool
	log     *zerolog.Logger
}

func NewServer(
	webhook usecase.WebhookUseCase,
	tokens usecase.TokenUseCase,
	ledger usecase.LedgerUseCase,
	admin *AdminAuth,
	cfg config.HTTPConfig,
	dev bool,
	logger *zerolog.Logger,
	checks ...HealthCheck,
) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Server{
		webhook: webhook,
		tokens:  tokens,
		ledger:  ledger,
		checks:  checks,
		admin:   admin,
		cfg:     cfg,
		dev:     dev,
		log:     logger,
	}
}

// Router builds the full HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		cors.New(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", traceHeader},
			ExposedHeaders: []string{traceHeader},
			MaxAge:         600,
		}).Handler,
		Timeout(s.cfg.RequestTimeout),
		MaxBody(s.cfg.MaxBodyBytes),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
	})

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/webhook/nowpayments", s.handleWebhook)
	r.Get("/token-by-payment/{paymentId}", s.handleTokenByPayment)
	r.Post("/activate", s.handleActivate)
	r.Post("/check", s.handleCheck)

	r.Route("/debug", func(r chi.Router) {
		r.With(s.admin.Guard("tokens")).Get("/tokens", s.handleDebugTokens)
		r.With(s.admin.Guard("payments")).Get("/payments/{paymentId}", s.handleDebugPayment)
	})

	return r
}

// HTTPServer wraps Router with the listener settings from config.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.RequestTimeout,
		WriteTimeout:      s.cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
