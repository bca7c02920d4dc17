package model

import (
	"net/url"
	"strings"
	"time"

	"dvsafe-service/internal/domain"
)

// DefaultSafeExitURL is where the escape hatch lands when the user never set one.
const DefaultSafeExitURL = "https://www.google.com"

const maxSafeExitURLLen = 2048

// SafetySettings is the per-user safety configuration. One record per user,
// created lazily and never deleted (only reset).
type SafetySettings struct {
	UserID            string             `json:"userId"`
	IsSafeMode        bool               `json:"isSafeMode"`
	HideFromSearch    bool               `json:"hideFromSearch"`
	AllowMessages     bool               `json:"allowMessages"`
	SafeExitEnabled   bool               `json:"safeExitEnabled"`
	SafeExitURL       string             `json:"safeExitUrl"`
	HiddenChatIDs     []string           `json:"hiddenChatIds"`
	BlockedUserIDs    []string           `json:"blockedUserIds"`
	EmergencyContacts []EmergencyContact `json:"emergencyContacts"`
	PanicButton       bool               `json:"panicButtonEnabled"`
	ActivityLog       bool               `json:"activityLogEnabled"`
	DisguisedAppIcon  bool               `json:"disguisedAppIcon"`
	NotificationsSafe bool               `json:"notificationsSafe"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// NewDefaultSafetySettings materializes the default record for a user.
func NewDefaultSafetySettings(userID string) *SafetySettings {
	now := time.Now().UTC()
	return &SafetySettings{
		UserID:            userID,
		AllowMessages:     true,
		SafeExitURL:       DefaultSafeExitURL,
		HiddenChatIDs:     []string{},
		BlockedUserIDs:    []string{},
		EmergencyContacts: []EmergencyContact{},
		ActivityLog:       true,
		NotificationsSafe: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Clone returns a deep copy so callers never share slices with a store.
func (s *SafetySettings) Clone() *SafetySettings {
	if s == nil {
		return nil
	}
	cp := *s
	cp.HiddenChatIDs = append([]string{}, s.HiddenChatIDs...)
	cp.BlockedUserIDs = append([]string{}, s.BlockedUserIDs...)
	cp.EmergencyContacts = append([]EmergencyContact{}, s.EmergencyContacts...)
	return &cp
}

func (s *SafetySettings) IsBlocked(userID string) bool {
	return containsString(s.BlockedUserIDs, userID)
}

// Block adds userID to the block list. Reports whether the list changed.
func (s *SafetySettings) Block(userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, domain.NewValidationError("blockedUserId", "must not be empty")
	}
	if userID == s.UserID {
		return false, domain.NewValidationError("blockedUserId", "cannot block yourself")
	}
	if s.IsBlocked(userID) {
		return false, nil
	}
	s.BlockedUserIDs = append(s.BlockedUserIDs, userID)
	return true, nil
}

// SetChatHidden keeps HiddenChatIDs in sync with a chat's visibility.
func (s *SafetySettings) SetChatHidden(chatID string, hidden bool) bool {
	has := containsString(s.HiddenChatIDs, chatID)
	switch {
	case hidden && !has:
		s.HiddenChatIDs = append(s.HiddenChatIDs, chatID)
		return true
	case !hidden && has:
		s.HiddenChatIDs = removeString(s.HiddenChatIDs, chatID)
		return true
	}
	return false
}

// AddContact appends c, enforcing the cap and id uniqueness.
func (s *SafetySettings) AddContact(c EmergencyContact) error {
	if len(s.EmergencyContacts) >= MaxEmergencyContacts {
		return domain.ErrLimitExceeded
	}
	for _, existing := range s.EmergencyContacts {
		if existing.ID == c.ID {
			return domain.ErrAlreadyExists
		}
	}
	s.EmergencyContacts = append(s.EmergencyContacts, c)
	return nil
}

func (s *SafetySettings) RemoveContact(id string) bool {
	for i, c := range s.EmergencyContacts {
		if c.ID == id {
			s.EmergencyContacts = append(s.EmergencyContacts[:i], s.EmergencyContacts[i+1:]...)
			return true
		}
	}
	return false
}

// PanicContacts returns the contacts that opted in to panic alerts, in list order.
func (s *SafetySettings) PanicContacts() []EmergencyContact {
	out := make([]EmergencyContact, 0, len(s.EmergencyContacts))
	for _, c := range s.EmergencyContacts {
		if c.NotifyOnPanic {
			out = append(out, c)
		}
	}
	return out
}

// EnableSafeMode flips every flag of the safe-mode posture at once.
func (s *SafetySettings) EnableSafeMode() {
	s.IsSafeMode = true
	s.HideFromSearch = true
	s.NotificationsSafe = true
	s.PanicButton = true
}

// ResetToDefaults restores every toggle. Contacts, blocks and hidden chats are
// user-curated safety data and survive a reset.
func (s *SafetySettings) ResetToDefaults() {
	d := NewDefaultSafetySettings(s.UserID)
	d.HiddenChatIDs = s.HiddenChatIDs
	d.BlockedUserIDs = s.BlockedUserIDs
	d.EmergencyContacts = s.EmergencyContacts
	d.CreatedAt = s.CreatedAt
	*s = *d
}

// SettingsPatch carries a partial update; nil fields are left untouched.
type SettingsPatch struct {
	IsSafeMode        *bool   `json:"isSafeMode,omitempty"`
	HideFromSearch    *bool   `json:"hideFromSearch,omitempty"`
	AllowMessages     *bool   `json:"allowMessages,omitempty"`
	SafeExitEnabled   *bool   `json:"safeExitEnabled,omitempty"`
	SafeExitURL       *string `json:"safeExitUrl,omitempty"`
	PanicButton       *bool   `json:"panicButtonEnabled,omitempty"`
	ActivityLog       *bool   `json:"activityLogEnabled,omitempty"`
	DisguisedAppIcon  *bool   `json:"disguisedAppIcon,omitempty"`
	NotificationsSafe *bool   `json:"notificationsSafe,omitempty"`
}

// Validate checks every present field. It must run before Apply so that a
// rejected patch writes nothing.
func (p SettingsPatch) Validate() error {
	if p.SafeExitURL != nil {
		if err := ValidateSafeExitURL(*p.SafeExitURL); err != nil {
			return err
		}
	}
	return nil
}

// Apply copies the present fields onto s. Callers validate first.
func (p SettingsPatch) Apply(s *SafetySettings) {
	setBool(&s.IsSafeMode, p.IsSafeMode)
	setBool(&s.HideFromSearch, p.HideFromSearch)
	setBool(&s.AllowMessages, p.AllowMessages)
	setBool(&s.SafeExitEnabled, p.SafeExitEnabled)
	setBool(&s.PanicButton, p.PanicButton)
	setBool(&s.ActivityLog, p.ActivityLog)
	setBool(&s.DisguisedAppIcon, p.DisguisedAppIcon)
	setBool(&s.NotificationsSafe, p.NotificationsSafe)
	if p.SafeExitURL != nil {
		s.SafeExitURL = strings.TrimSpace(*p.SafeExitURL)
	}
}

func (p SettingsPatch) IsEmpty() bool {
	return p == SettingsPatch{}
}

// ValidateSafeExitURL accepts absolute http(s) URLs only.
func ValidateSafeExitURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxSafeExitURLLen {
		return domain.NewValidationError("safeExitUrl", "must be a non-empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return domain.NewValidationError("safeExitUrl", "must be an absolute http(s) URL")
	}
	return nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
