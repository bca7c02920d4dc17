//go:build !integration

package postgres

import (
	"context"
	"time"

	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/repository"
	red "dvsafe-service/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerSettingsRepo mocks the database repository that the settings decorator wraps.
type mockInnerSettingsRepo struct {
	GetFunc          func(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error)
	LookupFunc       func(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error)
	GetForUpdateFunc func(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error)
	SaveFunc         func(ctx context.Context, tx repository.Tx, s *model.SafetySettings) error
}

func (m *mockInnerSettingsRepo) Get(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error) {
	return m.GetFunc(ctx, tx, userID)
}
func (m *mockInnerSettingsRepo) Lookup(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error) {
	return m.LookupFunc(ctx, tx, userID)
}
func (m *mockInnerSettingsRepo) GetForUpdate(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error) {
	return m.GetForUpdateFunc(ctx, tx, userID)
}
func (m *mockInnerSettingsRepo) Save(ctx context.Context, tx repository.Tx, s *model.SafetySettings) error {
	return m.SaveFunc(ctx, tx, s)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
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
