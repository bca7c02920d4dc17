package repository

import (
	"context"

	"dvsafe-service/internal/domain/model"
)

// SafetySettingsRepository persists one settings record per user.
type SafetySettingsRepository interface {
	// Get returns the stored record, inserting defaults first when none exists.
	// Materialization is idempotent: concurrent callers observe the same row.
	Get(ctx context.Context, tx Tx, userID string) (*model.SafetySettings, error)
	// Lookup reads the record without creating one. A user with no record
	// gets unsaved defaults, so probing arbitrary ids writes nothing.
	Lookup(ctx context.Context, tx Tx, userID string) (*model.SafetySettings, error)
	// GetForUpdate is Get plus a per-user write lock held until tx ends.
	GetForUpdate(ctx context.Context, tx Tx, userID string) (*model.SafetySettings, error)
	Save(ctx context.Context, tx Tx, s *model.SafetySettings) error
}

// SettingsCache drops server-side cached copies of a user's settings.
type SettingsCache interface {
	Invalidate(ctx context.Context, userID string) error
}
