package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"payment-token-service/internal/domain/model"
	"payment-token-service/internal/domain/ports/repository"
	"payment-token-service/internal/infra/metrics"
	red "payment-token-service/internal/infra/redis"
)

var _ repository.TokenRepository = (*tokenRepoCacheDecorator)(nil)

// tokenRepoCacheDecorator serves FindByToken from Redis for the hot /check path.
// Reads inside a transaction always go to the inner repository.
// Only bound tokens are cached: a bound row never changes again, so a fill
// racing with BindIdentity can never put a stale copy back.
type tokenRepoCacheDecorator struct {
	inner repository.TokenRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewTokenRepoCacheDecorator(inner repository.TokenRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.TokenRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &tokenRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: logger}
}

func tokenCacheKey(token string) string { return fmt.Sprintf("token:%s", token) }

func (d *tokenRepoCacheDecorator) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.AccessToken, error) {
	if tx != nil {
		return d.inner.FindByToken(ctx, tx, token)
	}
	key := tokenCacheKey(token)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var t model.AccessToken
		if json.Unmarshal([]byte(val), &t) == nil {
			metrics.IncCacheRequest("token", "hit")
			return &t, nil
		}
	} else if !red.IsMiss(err) {
		metrics.IncCacheRequest("token", "error")
		d.log.Warn().Err(err).Msg("token cache get failed")
	}

	metrics.IncCacheRequest("token", "miss")
	t, err := d.inner.FindByToken(ctx, tx, token)
	if err != nil {
		return nil, err
	}
	if t.IsBound() {
		d.store(ctx, t)
	}
	return t, nil
}

func (d *tokenRepoCacheDecorator) store(ctx context.Context, t *model.AccessToken) {
	b, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, tokenCacheKey(t.Token), b, d.ttl); err != nil {
		d.log.Warn().Err(err).Msg("token cache set failed")
	}
}

// BindIdentity is the only mutation of a stored token, so it owns invalidation.
func (d *tokenRepoCacheDecorator) BindIdentity(ctx context.Context, tx repository.Tx, t *model.AccessToken) (bool, error) {
	ok, err := d.inner.BindIdentity(ctx, tx, t)
	if delErr := d.cache.Del(ctx, tokenCacheKey(t.Token)); delErr != nil {
		d.log.Warn().Err(delErr).Msg("token cache invalidate failed")
	}
	return ok, err
}

func (d *tokenRepoCacheDecorator) Insert(ctx context.Context, tx repository.Tx, t *model.AccessToken) (bool, error) {
	return d.inner.Insert(ctx, tx, t)
}

func (d *tokenRepoCacheDecorator) FindLatestByPayment(ctx context.Context, tx repository.Tx, paymentID string) (*model.AccessToken, error) {
	return d.inner.FindLatestByPayment(ctx, tx, paymentID)
}

func (d *tokenRepoCacheDecorator) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AccessToken, error) {
	return d.inner.ListRecent(ctx, tx, limit)
}
