package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/repository"
	"dvsafe-service/internal/infra/metrics"
	red "dvsafe-service/internal/infra/redis"
)

// maxSettingsCacheTTL bounds how long a racing reader can re-populate a stale copy.
const maxSettingsCacheTTL = 5 * time.Minute

var (
	_ repository.SafetySettingsRepository = (*settingsRepoCacheDecorator)(nil)
	_ repository.SettingsCache            = (*settingsRepoCacheDecorator)(nil)
)

// settingsRepoCacheDecorator caches non-transactional reads only. Anything
// inside a transaction (and every GetForUpdate) goes straight to the database.
type settingsRepoCacheDecorator struct {
	inner  repository.SafetySettingsRepository
	cache  red.RedisClient
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewSettingsRepoCacheDecorator(inner repository.SafetySettingsRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) *settingsRepoCacheDecorator {
	if ttl <= 0 || ttl > maxSettingsCacheTTL {
		ttl = maxSettingsCacheTTL
	}
	l := logger.With().Str("component", "settings_cache").Logger()
	return &settingsRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, logger: &l}
}

func settingsKey(userID string) string { return "settings:" + userID }

func (d *settingsRepoCacheDecorator) Get(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error) {
	if tx != nil {
		metrics.IncCacheRequest("settings", "bypass")
		return d.inner.Get(ctx, tx, userID)
	}
	key := settingsKey(userID)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var s model.SafetySettings
		if json.Unmarshal([]byte(val), &s) == nil {
			metrics.IncCacheRequest("settings", "hit")
			return &s, nil
		}
		_ = d.cache.Del(ctx, key)
	} else if !errors.Is(err, red.Nil) {
		d.logger.Warn().Err(err).Msg("settings cache read failed")
	}

	metrics.IncCacheRequest("settings", "miss")
	s, err := d.inner.Get(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(s); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return s, nil
}

// Lookup serves hits but never populates the cache: a miss may be a user
// that does not exist, and lookups of arbitrary ids must not fill Redis.
func (d *settingsRepoCacheDecorator) Lookup(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error) {
	if tx != nil {
		metrics.IncCacheRequest("settings", "bypass")
		return d.inner.Lookup(ctx, tx, userID)
	}
	if val, err := d.cache.Get(ctx, settingsKey(userID)); err == nil {
		var s model.SafetySettings
		if json.Unmarshal([]byte(val), &s) == nil {
			metrics.IncCacheRequest("settings", "hit")
			return &s, nil
		}
	} else if !errors.Is(err, red.Nil) {
		d.logger.Warn().Err(err).Msg("settings cache read failed")
	}
	metrics.IncCacheRequest("settings", "miss")
	return d.inner.Lookup(ctx, tx, userID)
}

func (d *settingsRepoCacheDecorator) GetForUpdate(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error) {
	return d.inner.GetForUpdate(ctx, tx, userID)
}

// Save drops the cached copy now and again once the surrounding tx commits,
// so a read racing the write cannot leave the old row behind.
func (d *settingsRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, s *model.SafetySettings) error {
	if err := d.Invalidate(ctx, s.UserID); err != nil {
		d.logger.Warn().Err(err).Msg("settings cache invalidation failed")
	}
	if err := d.inner.Save(ctx, tx, s); err != nil {
		return err
	}
	userID := s.UserID
	afterCommit(tx, func() {
		if err := d.Invalidate(context.WithoutCancel(ctx), userID); err != nil {
			d.logger.Warn().Err(err).Msg("settings cache invalidation failed")
		}
	})
	return nil
}

func (d *settingsRepoCacheDecorator) Invalidate(ctx context.Context, userID string) error {
	return d.cache.Del(ctx, settingsKey(userID))
}
