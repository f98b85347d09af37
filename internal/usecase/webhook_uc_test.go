//go:build !integration

package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"payment-token-service/internal/domain"
	"payment-token-service/internal/domain/model"
	"payment-token-service/internal/domain/ports/repository"
	"payment-token-service/internal/usecase"
)

func TestWebhookUseCase_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("waiting then finished then finished again", func(t *testing.T) {
		d := newTestDeps()

		res := d.ingest(t, "P1", "waiting")
		if res.Token != nil || res.Issued {
			t.Fatalf("expected no token for waiting, got %+v", res.Token)
		}
		if res.Record.Status != "waiting" || res.Record.HasToken() {
			t.Fatalf("unexpected record %+v", res.Record)
		}

		res = d.ingest(t, "P1", "finished")
		if !res.Issued || res.Token == nil {
			t.Fatal("expected a token on the first paid status")
		}
		first := res.Token.Token
		if !tokenPattern.MatchString(first) {
			t.Errorf("token %q has wrong format", first)
		}
		if res.Record.Token == nil || *res.Record.Token != first {
			t.Errorf("ledger latch %v does not match issued token %q", res.Record.Token, first)
		}
		if want := d.clock.Now().Add(model.DefaultTokenTTL); !res.Token.ExpiresAt.Equal(want) {
			t.Errorf("expected expiry %s, got %s", want, res.Token.ExpiresAt)
		}

		res = d.ingest(t, "P1", "finished")
		if res.Issued {
			t.Error("redelivery must not issue again")
		}
		if res.Token == nil || res.Token.Token != first {
			t.Errorf("expected same token %q, got %+v", first, res.Token)
		}

		recent, _ := d.tokens.ListRecent(ctx, nil, 10)
		if len(recent) != 1 {
			t.Errorf("expected exactly one stored token, got %d", len(recent))
		}
	})

	t.Run("confirmed counts as paid", func(t *testing.T) {
		d := newTestDeps()
		res := d.ingest(t, "P2", " Confirmed ")
		if !res.Issued {
			t.Fatal("expected issuance on confirmed")
		}
		if res.Record.Status != "confirmed" {
			t.Errorf("expected normalized status, got %q", res.Record.Status)
		}
	})

	t.Run("later non-paid status keeps the token", func(t *testing.T) {
		d := newTestDeps()
		issued := d.ingest(t, "P3", "finished").Token.Token

		res := d.ingest(t, "P3", "refunded")
		if res.Record.Status != "refunded" {
			t.Errorf("expected status refunded, got %q", res.Record.Status)
		}
		if res.Record.Token == nil || *res.Record.Token != issued {
			t.Errorf("token was revoked or changed: %v", res.Record.Token)
		}
		tok, err := d.tokenUC.FindByPayment(ctx, "P3")
		if err != nil || tok.Token != issued {
			t.Errorf("token store lost the token: %v %v", tok, err)
		}
	})

	t.Run("empty status keeps the previous one", func(t *testing.T) {
		d := newTestDeps()
		d.ingest(t, "P4", "waiting")
		res := d.ingest(t, "P4", "")
		if res.Record.Status != "waiting" {
			t.Errorf("expected waiting to survive, got %q", res.Record.Status)
		}
	})

	t.Run("first event without status starts unknown", func(t *testing.T) {
		d := newTestDeps()
		res := d.ingest(t, "P5", "")
		if res.Record.Status != model.PaymentStatusUnknown {
			t.Errorf("expected unknown, got %q", res.Record.Status)
		}
	})

	t.Run("email is kept when later events omit it", func(t *testing.T) {
		d := newTestDeps()
		_, _ = d.webhook.Ingest(ctx, usecase.WebhookInput{PaymentID: "P6", Status: "waiting", Email: "buyer@example.com"})
		res := d.ingest(t, "P6", "finished")
		if res.Record.Email == nil || *res.Record.Email != "buyer@example.com" {
			t.Errorf("expected email to survive, got %v", res.Record.Email)
		}
	})

	t.Run("empty payment id is rejected", func(t *testing.T) {
		d := newTestDeps()
		_, err := d.webhook.Ingest(ctx, usecase.WebhookInput{PaymentID: "  ", Status: "finished"})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
		if _, err := d.ledger.LookupByPaymentID(ctx, "  "); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected lookup of blank id to be rejected, got %v", err)
		}
	})

	t.Run("every delivery is recorded", func(t *testing.T) {
		d := newTestDeps()
		body := []byte(`{"payment_id":"P7","payment_status":"waiting"}`)
		_, err := d.webhook.Ingest(ctx, usecase.WebhookInput{PaymentID: "P7", Status: "waiting", Payload: body})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		d.ingest(t, "P7", "finished")

		events, err := d.ledger.RecentEvents(ctx, "P7", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if events[0].Status != "finished" || events[1].Status != "waiting" {
			t.Errorf("expected newest first, got %q then %q", events[0].Status, events[1].Status)
		}
		if !bytes.Equal(events[1].Payload, body) {
			t.Errorf("raw payload not kept: %s", events[1].Payload)
		}
		if len(events[0].ID) != 26 {
			t.Errorf("expected a ULID event id, got %q", events[0].ID)
		}
	})

	t.Run("storage failure aborts and issues nothing", func(t *testing.T) {
		d := newTestDeps()
		boom := errors.New("disk full")
		d.events.SaveFunc = func(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
			return boom
		}
		_, err := d.webhook.Ingest(ctx, usecase.WebhookInput{PaymentID: "P8", Status: "finished"})
		if !errors.Is(err, boom) {
			t.Fatalf("expected wrapped storage error, got %v", err)
		}
		if _, err := d.tokenUC.FindByPayment(ctx, "P8"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected no token, got %v", err)
		}
	})

	t.Run("concurrent duplicate paid webhooks issue one token", func(t *testing.T) {
		d := newTestDeps()
		const n = 20

		var wg sync.WaitGroup
		tokens := make([]string, n)
		issued := make([]bool, n)
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := d.webhook.Ingest(ctx, usecase.WebhookInput{PaymentID: "DUP", Status: "finished"})
				if err != nil {
					errs[i] = err
					return
				}
				tokens[i], issued[i] = res.Token.Token, res.Issued
			}(i)
		}
		wg.Wait()

		created := 0
		for i := 0; i < n; i++ {
			if errs[i] != nil {
				t.Fatalf("delivery %d failed: %v", i, errs[i])
			}
			if tokens[i] != tokens[0] {
				t.Errorf("delivery %d saw token %q, want %q", i, tokens[i], tokens[0])
			}
			if issued[i] {
				created++
			}
		}
		if created != 1 {
			t.Errorf("expected exactly one issuing delivery, got %d", created)
		}
	})

	t.Run("concurrent insert without tx serialization still converges", func(t *testing.T) {
		d := newTestDeps()
		d.tm = &MockTxManager{}
		d.rewire()

		var wg sync.WaitGroup
		got := make(chan string, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if res, err := d.webhook.Ingest(ctx, usecase.WebhookInput{PaymentID: "RACE", Status: "finished"}); err == nil {
					got <- res.Token.Token
				}
			}()
		}
		wg.Wait()
		close(got)

		stored, err := d.tokenUC.FindByPayment(ctx, "RACE")
		if err != nil {
			t.Fatalf("expected a stored token: %v", err)
		}
		rec, _ := d.ledger.LookupByPaymentID(ctx, "RACE")
		if rec.Token == nil || *rec.Token != stored.Token {
			t.Errorf("ledger latch %v disagrees with token store %q", rec.Token, stored.Token)
		}
		for tok := range got {
			if tok != stored.Token {
				t.Errorf("a delivery returned %q, store holds %q", tok, stored.Token)
			}
		}
	})
}
