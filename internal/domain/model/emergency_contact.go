package model

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"dvsafe-service/internal/domain"

	"github.com/google/uuid"
)

// MaxEmergencyContacts caps a user's contact list.
const MaxEmergencyContacts = 10

const (
	maxContactNameLen     = 100
	maxRelationshipLen    = 50
	minPhoneLen           = 5
	maxPhoneLen           = 20
	minPhoneDigits        = 5
	maxContactEmailLength = 254
)

// EmergencyContact is immutable once created; changing details means remove + add.
type EmergencyContact struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email,omitempty"`
	Relationship  string `json:"relationship"`
	NotifyOnPanic bool   `json:"notifyOnPanic"`
}

// ContactInput is the caller-supplied part of a contact.
type ContactInput struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email,omitempty"`
	Relationship  string `json:"relationship"`
	NotifyOnPanic *bool  `json:"notifyOnPanic,omitempty"`
}

// NewEmergencyContact validates in and assigns a fresh id.
func NewEmergencyContact(in ContactInput) (*EmergencyContact, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > maxContactNameLen {
		return nil, domain.NewValidationError("name", "must be 1-100 characters")
	}
	phone := strings.TrimSpace(in.Phone)
	if err := validatePhone(phone); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		if len(email) > maxContactEmailLength {
			return nil, domain.NewValidationError("email", "too long")
		}
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email {
			return nil, domain.NewValidationError("email", "must be a plain email address")
		}
	}
	rel := strings.TrimSpace(in.Relationship)
	if rel == "" || utf8.RuneCountInString(rel) > maxRelationshipLen {
		return nil, domain.NewValidationError("relationship", "must be 1-50 characters")
	}
	notify := true
	if in.NotifyOnPanic != nil {
		notify = *in.NotifyOnPanic
	}
	return &EmergencyContact{
		ID:            uuid.NewString(),
		Name:          name,
		Phone:         phone,
		Email:         email,
		Relationship:  rel,
		NotifyOnPanic: notify,
	}, nil
}

// validatePhone is a loose check: digits plus common separators.
func validatePhone(phone string) error {
	if len(phone) < minPhoneLen || len(phone) > maxPhoneLen {
		return domain.NewValidationError("phone", "must be 5-20 characters")
	}
	digits := 0
	for _, r := range phone {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == ' ' || r == '+' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return domain.NewValidationError("phone", "contains unsupported characters")
		}
	}
	if digits < minPhoneDigits {
		return domain.NewValidationError("phone", "must contain at least 5 digits")
	}
	return nil
}
