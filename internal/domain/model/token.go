package model

import (
	"strings"
	"time"
)

// DefaultTokenTTL is how long an issued token stays usable.
const DefaultTokenTTL = 30 * 24 * time.Hour

// AccessToken is a bearer credential issued for exactly one paid payment.
type AccessToken struct {
	Token          string     `json:"token"`
	PaymentID      string     `json:"payment_id"`
	ExpiresAt      time.Time  `json:"expires_at"`
	TikTokUsername *string    `json:"tiktok_username,omitempty"`
	Used           bool       `json:"used"`
	CreatedAt      time.Time  `json:"created_at"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty"`
}

// NewAccessToken builds an unbound token for paymentID.
func NewAccessToken(token, paymentID string, now time.Time, ttl time.Duration) *AccessToken {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AccessToken{
		Token:     CanonicalToken(token),
		PaymentID: paymentID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// CanonicalToken is the stored form of a token: trimmed, upper-case.
func CanonicalToken(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeIdentity trims a caller-supplied identity.
func NormalizeIdentity(s string) string {
	return strings.TrimSpace(s)
}

// IsExpired reports whether now is strictly past ExpiresAt.
func (t *AccessToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t *AccessToken) IsBound() bool {
	return t.TikTokUsername != nil && *t.TikTokUsername != ""
}

// BoundTo compares identities case-insensitively.
func (t *AccessToken) BoundTo(identity string) bool {
	return t.IsBound() && strings.EqualFold(*t.TikTokUsername, NormalizeIdentity(identity))
}

// Bind sets the identity on an unbound token.
func (t *AccessToken) Bind(identity string, now time.Time) {
	id := NormalizeIdentity(identity)
	t.TikTokUsername = &id
	t.Used = true
	t.ActivatedAt = &now
}
