package usecase

import (
	"context"
	"strings"
	"time"

	"dvsafe-service/internal/domain"
	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/repository"
	"dvsafe-service/internal/infra/logging"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ SettingsUseCase = (*settingsUC)(nil)

// SettingsUseCase is the per-user safety configuration store.
type SettingsUseCase interface {
	Get(ctx context.Context, userID string) (*model.SafetySettings, error)
	Update(ctx context.Context, userID string, patch model.SettingsPatch) (*model.SafetySettings, error)
	EnableSafeMode(ctx context.Context, userID string) (*model.SafetySettings, error)
	Reset(ctx context.Context, userID string) (*model.SafetySettings, error)
}

// writeTxOpts is used by every read-modify-write on a settings row.
var writeTxOpts = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

type settingsUC struct {
	settings repository.SafetySettingsRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
	now      func() time.Time
}

func NewSettingsUseCase(settings repository.SafetySettingsRepository, tm repository.TransactionManager, logger *zerolog.Logger) *settingsUC {
	return &settingsUC{
		settings: settings,
		tm:       tm,
		log:      logging.Component(logger, "settings_uc"),
		now:      time.Now,
	}
}

// SetClock replaces the time source; tests only.
func (u *settingsUC) SetClock(now func() time.Time) { u.now = now }

func (u *settingsUC) Get(ctx context.Context, userID string) (*model.SafetySettings, error) {
	defer logging.TraceDuration(u.log, "SettingsUC.Get")()
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	return u.settings.Get(ctx, repository.NoTX, userID)
}

func (u *settingsUC) Update(ctx context.Context, userID string, patch model.SettingsPatch) (*model.SafetySettings, error) {
	defer logging.TraceDuration(u.log, "SettingsUC.Update")()
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	// Validate the whole patch up front so a rejected update writes nothing.
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return u.Get(ctx, userID)
	}
	return u.mutate(ctx, userID, func(s *model.SafetySettings) error {
		patch.Apply(s)
		return nil
	})
}

func (u *settingsUC) EnableSafeMode(ctx context.Context, userID string) (*model.SafetySettings, error) {
	defer logging.TraceDuration(u.log, "SettingsUC.EnableSafeMode")()
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	s, err := u.mutate(ctx, userID, func(s *model.SafetySettings) error {
		s.EnableSafeMode()
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.With(ctx, u.log).Info().Msg("safe mode enabled")
	return s, nil
}

func (u *settingsUC) Reset(ctx context.Context, userID string) (*model.SafetySettings, error) {
	defer logging.TraceDuration(u.log, "SettingsUC.Reset")()
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	return u.mutate(ctx, userID, func(s *model.SafetySettings) error {
		s.ResetToDefaults()
		return nil
	})
}

// mutate is the single read-modify-write path for a user's settings. The row
// lock taken by GetForUpdate serializes writers for the same user only.
func (u *settingsUC) mutate(ctx context.Context, userID string, fn func(s *model.SafetySettings) error) (*model.SafetySettings, error) {
	return mutateSettings(ctx, u.tm, u.settings, userID, u.now, fn)
}

func mutateSettings(ctx context.Context, tm repository.TransactionManager, repo repository.SafetySettingsRepository, userID string, now func() time.Time, fn func(s *model.SafetySettings) error) (*model.SafetySettings, error) {
	var out *model.SafetySettings
	err := tm.WithTx(ctx, writeTxOpts, func(ctx context.Context, tx repository.Tx) error {
		s, err := repo.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		s.UpdatedAt = now().UTC()
		if err := repo.Save(ctx, tx, s); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func requireUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.NewValidationError("userId", "must not be empty")
	}
	return nil
}
