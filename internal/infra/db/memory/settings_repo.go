package memory

import (
	"context"

	"dvsafe-service/internal/domain"
	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/repository"
)

var _ repository.SafetySettingsRepository = (*SettingsRepo)(nil)

type SettingsRepo struct {
	store *Store
}

func NewSettingsRepo(store *Store) *SettingsRepo {
	return &SettingsRepo{store: store}
}

func (r *SettingsRepo) Get(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error) {
	if _, err := asTx(r.store, tx); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.settings[userID]
	if !ok {
		s = model.NewDefaultSafetySettings(userID)
		r.store.settings[userID] = s
	}
	return s.Clone(), nil
}

func (r *SettingsRepo) Lookup(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error) {
	if _, err := asTx(r.store, tx); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if s, ok := r.store.settings[userID]; ok {
		return s.Clone(), nil
	}
	return model.NewDefaultSafetySettings(userID), nil
}

func (r *SettingsRepo) GetForUpdate(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error) {
	t, err := asTx(r.store, tx)
	if err != nil {
		return nil, err
	}
	if t != nil {
		if err := t.lockUser(ctx, userID); err != nil {
			return nil, err
		}
	}
	return r.Get(ctx, tx, userID)
}

func (r *SettingsRepo) Save(ctx context.Context, tx repository.Tx, s *model.SafetySettings) error {
	if _, err := asTx(r.store, tx); err != nil {
		return err
	}
	if s == nil || s.UserID == "" {
		return domain.ErrInvalidArgument
	}
	r.store.mu.Lock()
	r.store.settings[s.UserID] = s.Clone()
	r.store.mu.Unlock()
	return nil
}
