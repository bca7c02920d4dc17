package usecase

import (
	"context"
	"time"

	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/repository"
	"dvsafe-service/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ VisibilityUseCase = (*visibilityUC)(nil)

// VisibilityUseCase decides who may observe a user.
type VisibilityUseCase interface {
	// IsVisible reports whether viewerUserID may see targetUserID. An empty
	// viewer is an anonymous or search context.
	IsVisible(ctx context.Context, targetUserID, viewerUserID string) (bool, error)
	BlockUser(ctx context.Context, userID, blockedUserID string) (bool, error)
}

type visibilityUC struct {
	settings repository.SafetySettingsRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
	now      func() time.Time
}

func NewVisibilityUseCase(settings repository.SafetySettingsRepository, tm repository.TransactionManager, logger *zerolog.Logger) *visibilityUC {
	return &visibilityUC{
		settings: settings,
		tm:       tm,
		log:      logging.Component(logger, "visibility_uc"),
		now:      time.Now,
	}
}

// IsVisible fails closed: any storage error yields false alongside the error.
// It only reads, so probing unknown ids creates no records.
func (u *visibilityUC) IsVisible(ctx context.Context, targetUserID, viewerUserID string) (bool, error) {
	if err := requireUserID(targetUserID); err != nil {
		return false, err
	}
	if viewerUserID == targetUserID {
		return true, nil
	}
	s, err := u.settings.Lookup(ctx, repository.NoTX, targetUserID)
	if err != nil {
		logging.With(ctx, u.log).Error().Err(err).Msg("visibility check failed closed")
		return false, err
	}
	return visibleTo(s, viewerUserID), nil
}

// visibleTo applies the rules in order; the first match wins. A block is
// checked before safe mode so that it can never be weaker than it. Safe mode
// has no allow-list, so it hides the user from every other viewer.
func visibleTo(s *model.SafetySettings, viewerUserID string) bool {
	switch {
	case viewerUserID == "":
		return !s.HideFromSearch && !s.IsSafeMode
	case viewerUserID == s.UserID:
		return true
	case s.IsBlocked(viewerUserID):
		return false
	case s.IsSafeMode:
		return false
	default:
		return true
	}
}

func (u *visibilityUC) BlockUser(ctx context.Context, userID, blockedUserID string) (bool, error) {
	defer logging.TraceDuration(u.log, "VisibilityUC.BlockUser")()
	if err := requireUserID(userID); err != nil {
		return false, err
	}
	changed := false
	_, err := mutateSettings(ctx, u.tm, u.settings, userID, u.now, func(s *model.SafetySettings) error {
		var err error
		changed, err = s.Block(blockedUserID)
		return err
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}
