package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"payment-token-service/internal/domain"
)

// Ordered aliases; the first non-empty key wins.
var (
	paymentIDKeys = []string{"payment_id", "id", "paymentId"}
	statusKeys    = []string{"payment_status", "status", "paymentStatus"}
	emailKeys     = []string{"email", "buyer_email"}
)

// WebhookInput is a processor notification reduced to the fields we act on.
type WebhookInput struct {
	PaymentID string
	Status    string
	Email     string
	Payload   []byte
}

// ParseWebhookPayload extracts the known fields from a JSON object body.
// A missing payment id is left for Ingest to reject.
// NUL characters are dropped everywhere and Payload is the re-encoded
// object, so it is always valid UTF-8 JSON that Postgres accepts.
func ParseWebhookPayload(body []byte) (WebhookInput, error) {
	in := WebhookInput{Payload: []byte("{}")}
	if len(bytes.TrimSpace(body)) == 0 {
		return in, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return in, fmt.Errorf("decode webhook body: %v: %w", err, domain.ErrInvalidArgument)
	}
	if _, err := dec.Token(); err != io.EOF {
		return in, fmt.Errorf("decode webhook body: trailing data after object: %w", domain.ErrInvalidArgument)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	fields = stripNUL(fields).(map[string]any)
	payload, err := json.Marshal(fields)
	if err != nil {
		return in, fmt.Errorf("encode webhook body: %v: %w", err, domain.ErrInvalidArgument)
	}
	in.Payload = payload

	in.PaymentID = firstString(fields, paymentIDKeys)
	in.Status = firstString(fields, statusKeys)
	in.Email = firstString(fields, emailKeys)
	return in, nil
}

func firstString(fields map[string]any, keys []string) string {
	for _, k := range keys {
		if s := scalarString(fields[k]); s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	}
	return ""
}

// stripNUL drops U+0000 from every key and string value; jsonb rejects it.
func stripNUL(v any) any {
	switch t := v.(type) {
	case string:
		return strings.ReplaceAll(t, "\x00", "")
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[strings.ReplaceAll(k, "\x00", "")] = stripNUL(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = stripNUL(t[i])
		}
		return t
	}
	return v
}
