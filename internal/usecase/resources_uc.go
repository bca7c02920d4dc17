package usecase

import (
	"context"

	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/repository"
	"dvsafe-service/internal/infra/logging"

	"github.com/rs/zerolog"
)

// SessionCookies are the cookies the client drops when clearing traces.
var SessionCookies = []string{"dvsafe_session", "dvsafe_user"}

// ResourceDirectory resolves support hotlines for a region.
type ResourceDirectory interface {
	For(region string) []model.SupportResource
}

// ResourcesUseCase serves the help screen and the "clear traces" action.
type ResourcesUseCase struct {
	dir   ResourceDirectory
	cache repository.SettingsCache // optional
	log   *zerolog.Logger
}

func NewResourcesUseCase(dir ResourceDirectory, cache repository.SettingsCache, logger *zerolog.Logger) *ResourcesUseCase {
	return &ResourcesUseCase{dir: dir, cache: cache, log: logging.Component(logger, "resources_uc")}
}

func (u *ResourcesUseCase) Resources(region string) []model.SupportResource {
	return u.dir.For(region)
}

// ClearTraces drops server-side cached copies of the user's settings and tells
// the client what to wipe locally. A cache failure is logged; the client
// instructions are still returned.
func (u *ResourcesUseCase) ClearTraces(ctx context.Context, userID string) (model.ClientInstructions, error) {
	if err := requireUserID(userID); err != nil {
		return model.ClientInstructions{}, err
	}
	if u.cache != nil {
		if err := u.cache.Invalidate(ctx, userID); err != nil {
			logging.With(ctx, u.log).Warn().Err(err).Msg("failed to drop cached settings")
		}
	}
	return model.ClientInstructions{
		ClearLocalStorage:   true,
		ClearSessionStorage: true,
		ClearCookies:        append([]string{}, SessionCookies...),
		ReplaceHistory:      true,
	}, nil
}
