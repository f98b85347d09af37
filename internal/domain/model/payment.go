package model

import (
	"strings"
	"time"

	"payment-token-service/internal/domain"
)

// Well-known NOWPayments statuses. Status is free-form; only the paid ones matter.
const (
	PaymentStatusUnknown   = "unknown"
	PaymentStatusWaiting   = "waiting"
	PaymentStatusConfirmed = "confirmed"
	PaymentStatusFinished  = "finished"
)

// PaymentRecord is the ledger entry for one external payment reference.
// Token and ExpiresAt are latched together on the first paid transition
// and never change afterwards.
type PaymentRecord struct {
	PaymentID string
	Status    string
	Token     *string
	ExpiresAt *time.Time
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPaymentRecord returns a record in the "unknown" state.
func NewPaymentRecord(paymentID string, now time.Time) (*PaymentRecord, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &PaymentRecord{
		PaymentID: paymentID,
		Status:    PaymentStatusUnknown,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NormalizeStatus trims and lower-cases a processor status.
func NormalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsPaidStatus reports whether a normalized status means the payment is complete.
// NOWPayments uses both names for its terminal success state.
func IsPaidStatus(status string) bool {
	switch NormalizeStatus(status) {
	case PaymentStatusConfirmed, PaymentStatusFinished:
		return true
	}
	return false
}

// ApplyEvent merges an inbound status/email into the record.
// An empty status never erases a known one; an empty email is ignored.
func (p *PaymentRecord) ApplyEvent(status, email string, now time.Time) {
	if s := NormalizeStatus(status); s != "" {
		p.Status = s
	}
	if e := strings.TrimSpace(email); e != "" {
		p.Email = &e
	}
	p.UpdatedAt = now
}

func (p *PaymentRecord) IsPaid() bool   { return IsPaidStatus(p.Status) }
func (p *PaymentRecord) HasToken() bool { return p.Token != nil && *p.Token != "" }

// NeedsToken is true exactly when the paid latch should fire.
func (p *PaymentRecord) NeedsToken() bool { return p.IsPaid() && !p.HasToken() }

// WebhookEvent is one raw delivery from the payment processor, kept for audit.
type WebhookEvent struct {
	ID         string
	PaymentID  string
	Status     string
	Email      string
	Payload    []byte
	ReceivedAt time.Time
}
