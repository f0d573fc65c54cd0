//go:build !integration

package postgres

import (
	"context"
	"time"

	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/repository"
	red "ai-image-billing/internal/infra/redis"

	"github.com/rs/zerolog"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerConfigRepo mocks the database repository that the config decorator wraps.
type mockInnerConfigRepo struct {
	LatestFunc  func(ctx context.Context, tx repository.Tx) (*model.PaymentConfig, error)
	AppendFunc  func(ctx context.Context, tx repository.Tx, c *model.PaymentConfig) error
	HistoryFunc func(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentConfig, error)
}

func (m *mockInnerConfigRepo) Latest(ctx context.Context, tx repository.Tx) (*model.PaymentConfig, error) {
	return m.LatestFunc(ctx, tx)
}
func (m *mockInnerConfigRepo) Append(ctx context.Context, tx repository.Tx, c *model.PaymentConfig) error {
	return m.AppendFunc(ctx, tx, c)
}
func (m *mockInnerConfigRepo) History(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentConfig, error) {
	return m.HistoryFunc(ctx, tx, limit)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNXFunc  func(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return m.SetNXFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
