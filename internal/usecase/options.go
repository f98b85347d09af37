package usecase

import (
	"time"

	"payment-token-service/internal/domain/model"
)

// Option tunes the clock and token lifetime of a use case.
type Option func(*options)

type options struct {
	now      func() time.Time
	tokenTTL time.Duration
}

func defaultOptions() options {
	return options{now: time.Now, tokenTTL: model.DefaultTokenTTL}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithClock replaces time.Now; tests use it to pin expiry boundaries.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.tokenTTL = ttl
		}
	}
}
