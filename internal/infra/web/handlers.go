package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"payment-token-service/internal/domain"
	"payment-token-service/internal/domain/model"
	"payment-token-service/internal/infra/logging"
	"payment-token-service/internal/usecase"
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"ok": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if err := c.Pinger.Ping(r.Context()); err != nil {
			l := logging.With(r.Context(), s.log)
			l.Warn().Err(err).Str("check", c.Name).Msg("readiness check failed")
			results[c.Name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[c.Name] = "up"
	}
	writeJSON(w, status, envelope{"ok": status == http.StatusOK, "checks": results})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, s.log, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("could not read body"))
		return
	}

	in, err := usecase.ParseWebhookPayload(body)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if in.PaymentID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("payment_id is required"))
		return
	}

	ctx := logging.WithPaymentID(r.Context(), in.PaymentID)
	l := logging.With(ctx, s.log)
	l.Debug().
		Str("status", in.Status).
		Str("email", logging.Redact(in.Email, s.dev)).
		Msg("webhook received")

	if _, err := s.webhook.Ingest(ctx, in); err != nil {
		writeError(w, r.WithContext(ctx), s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"ok": true})
}

func (s *Server) handleTokenByPayment(w http.ResponseWriter, r *http.Request) {
	tok, err := s.tokens.FindByPayment(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidArgument) {
			writeJSON(w, http.StatusNotFound, envelope{"ok": false})
			return
		}
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"ok":        true,
		"token":     tok.Token,
		"expiresAt": tok.ExpiresAt,
		"used":      tok.Used,
	})
}

type activateRequest struct {
	Token          string `json:"token"`
	TikTokUsername string `json:"tiktokUsername"`
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	tok, err := s.tokens.Activate(r.Context(), req.Token, req.TikTokUsername)
	if err != nil {
		s.writeTokenError(w, r, tok, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"ok": true, "expiresAt": tok.ExpiresAt})
}

type checkRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	tok, err := s.tokens.Check(r.Context(), req.Token)
	if err != nil {
		s.writeTokenError(w, r, tok, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"ok":             true,
		"expiresAt":      tok.ExpiresAt,
		"tiktokUsername": tok.TikTokUsername,
	})
}

// writeTokenError reports expiry as a normal 200 answer with ok=false.
func (s *Server) writeTokenError(w http.ResponseWriter, r *http.Request, tok *model.AccessToken, err error) {
	if errors.Is(err, domain.ErrExpired) && tok != nil {
		writeJSON(w, http.StatusOK, envelope{"ok": false, "error": "Expired", "expiresAt": tok.ExpiresAt})
		return
	}
	writeError(w, r, s.log, err)
}

// ---- debug ----

type paymentView struct {
	PaymentID string     `json:"payment_id"`
	Status    string     `json:"status"`
	Token     *string    `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Email     *string    `json:"email,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type eventView struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	ReceivedAt time.Time `json:"received_at"`
}

func (s *Server) handleDebugTokens(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.tokens.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if items == nil {
		items = []*model.AccessToken{}
	}
	writeJSON(w, http.StatusOK, envelope{"ok": true, "items": items})
}

func (s *Server) handleDebugPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "paymentId")
	rec, err := s.ledger.LookupByPaymentID(r.Context(), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	events, err := s.ledger.RecentEvents(r.Context(), rec.PaymentID, 20)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventView{ID: e.ID, Status: e.Status, ReceivedAt: e.ReceivedAt})
	}
	writeJSON(w, http.StatusOK, envelope{
		"ok": true,
		"payment": paymentView{
			PaymentID: rec.PaymentID,
			Status:    rec.Status,
			Token:     rec.Token,
			ExpiresAt: rec.ExpiresAt,
			Email:     rec.Email,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		},
		"events": views,
	})
}
