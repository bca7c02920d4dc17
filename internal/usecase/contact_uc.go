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
var _ ContactUseCase = (*contactUC)(nil)

// ContactUseCase manages emergency contacts. There is deliberately no update:
// a contact is removed and re-added to change it.
type ContactUseCase interface {
	Add(ctx context.Context, userID string, in model.ContactInput) (*model.EmergencyContact, error)
	Remove(ctx context.Context, userID, contactID string) (bool, error)
	List(ctx context.Context, userID string) ([]model.EmergencyContact, error)
}

type contactUC struct {
	settings repository.SafetySettingsRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
	now      func() time.Time
}

func NewContactUseCase(settings repository.SafetySettingsRepository, tm repository.TransactionManager, logger *zerolog.Logger) *contactUC {
	return &contactUC{
		settings: settings,
		tm:       tm,
		log:      logging.Component(logger, "contact_uc"),
		now:      time.Now,
	}
}

func (u *contactUC) Add(ctx context.Context, userID string, in model.ContactInput) (*model.EmergencyContact, error) {
	defer logging.TraceDuration(u.log, "ContactUC.Add")()
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	contact, err := model.NewEmergencyContact(in)
	if err != nil {
		return nil, err
	}
	_, err = mutateSettings(ctx, u.tm, u.settings, userID, u.now, func(s *model.SafetySettings) error {
		return s.AddContact(*contact)
	})
	if err != nil {
		logging.With(ctx, u.log).Debug().Err(err).Msg("contact not added")
		return nil, err
	}
	logging.With(ctx, u.log).Info().
		Str("contact_id", contact.ID).
		Bool("notify_on_panic", contact.NotifyOnPanic).
		Msg("emergency contact added")
	return contact, nil
}

func (u *contactUC) Remove(ctx context.Context, userID, contactID string) (bool, error) {
	defer logging.TraceDuration(u.log, "ContactUC.Remove")()
	if err := requireUserID(userID); err != nil {
		return false, err
	}
	removed := false
	_, err := mutateSettings(ctx, u.tm, u.settings, userID, u.now, func(s *model.SafetySettings) error {
		removed = s.RemoveContact(contactID)
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (u *contactUC) List(ctx context.Context, userID string) ([]model.EmergencyContact, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	s, err := u.settings.Get(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	return s.EmergencyContacts, nil
}
