package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"payment-token-service/internal/domain"
	"payment-token-service/internal/infra/logging"
)

type envelope map[string]any

func errorBody(msg string) envelope { return envelope{"ok": false, "error": msg} }

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto the public status codes.
// Expired is not handled here: callers answer it with a 200 body.
func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, domain.ErrIdentityConflict):
		writeJSON(w, http.StatusForbidden, errorBody("token already bound to another identity"))
	default:
		l := logging.With(r.Context(), logger)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		body := errorBody("internal error")
		if tid := logging.TraceIDFrom(r.Context()); tid != "" {
			body["traceId"] = tid
		}
		writeJSON(w, http.StatusInternalServerError, body)
	}
}

// decodeJSON reads a JSON object body into dst. An empty body leaves dst zero.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("read request body: %w", err)
		}
		return fmt.Errorf("invalid request body: %w", domain.ErrInvalidArgument)
	}
	return nil
}
