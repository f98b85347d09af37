//go:build !integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"payment-token-service/internal/domain/model"
	"payment-token-service/internal/domain/ports/repository"
	red "payment-token-service/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerTokenRepo mocks the database repository that the token decorator wraps.
type mockInnerTokenRepo struct {
	InsertFunc              func(ctx context.Context, tx repository.Tx, t *model.AccessToken) (bool, error)
	FindByTokenFunc         func(ctx context.Context, tx repository.Tx, token string) (*model.AccessToken, error)
	FindLatestByPaymentFunc func(ctx context.Context, tx repository.Tx, paymentID string) (*model.AccessToken, error)
	BindIdentityFunc        func(ctx context.Context, tx repository.Tx, t *model.AccessToken) (bool, error)
	ListRecentFunc          func(ctx context.Context, tx repository.Tx, limit int) ([]*model.AccessToken, error)
}

func (m *mockInnerTokenRepo) Insert(ctx context.Context, tx repository.Tx, t *model.AccessToken) (bool, error) {
	return m.InsertFunc(ctx, tx, t)
}
func (m *mockInnerTokenRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.AccessToken, error) {
	return m.FindByTokenFunc(ctx, tx, token)
}
func (m *mockInnerTokenRepo) FindLatestByPayment(ctx context.Context, tx repository.Tx, paymentID string) (*model.AccessToken, error) {
	return m.FindLatestByPaymentFunc(ctx, tx, paymentID)
}
func (m *mockInnerTokenRepo) BindIdentity(ctx context.Context, tx repository.Tx, t *model.AccessToken) (bool, error) {
	return m.BindIdentityFunc(ctx, tx, t)
}
func (m *mockInnerTokenRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AccessToken, error) {
	return m.ListRecentFunc(ctx, tx, limit)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc   func(ctx context.Context, key string) (string, error)
	SetFunc   func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc   func(ctx context.Context, keys ...string) error
	PingFunc  func(ctx context.Context) error
	CloseFunc func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", red.ErrCacheMiss
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Close() error                   { return m.CloseFunc() }

// mapRedisClient is an in-process stand-in that keeps values in a map.
type mapRedisClient struct {
	mu   sync.Mutex
	data map[string]string
	hits int
}

var _ red.RedisClient = (*mapRedisClient)(nil)

func newMapRedisClient() *mapRedisClient { return &mapRedisClient{data: map[string]string{}} }

func (m *mapRedisClient) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", red.ErrCacheMiss
	}
	m.hits++
	return v, nil
}
func (m *mapRedisClient) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	return nil
}
func (m *mapRedisClient) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}
func (m *mapRedisClient) Ping(context.Context) error { return nil }
func (m *mapRedisClient) Close() error               { return nil }
