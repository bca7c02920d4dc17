package model

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"dvsafe-service/internal/domain"
)

const (
	// DefaultDisguisedName is what ambient UI shows when the user picked nothing.
	DefaultDisguisedName = "Shopping List"

	// MaxMessageTTL bounds any auto-delete window.
	MaxMessageTTL = 7 * 24 * time.Hour

	maxChatNameLen       = 100
	maxMessageContentLen = 5000
	minPinLen            = 4
	maxPinLen            = 10
)

// MessageState is derived from AutoDeleteAt and the current time; it is never stored.
type MessageState int

const (
	MessageActive MessageState = iota
	MessageExpired
)

// SafeMessage is one chat message. Content holds ciphertext while at rest and
// plaintext only in views handed to an authorized reader.
type SafeMessage struct {
	ID           string     `json:"id"`
	ChatID       string     `json:"chatId"`
	SenderID     string     `json:"senderId"`
	Content      string     `json:"content"`
	IsEncrypted  bool       `json:"isEncrypted"`
	AutoDeleteAt *time.Time `json:"autoDeleteAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// StateAt derives the message state; an expired message is absent to every reader.
func (m *SafeMessage) StateAt(now time.Time) MessageState {
	if m.AutoDeleteAt != nil && !now.Before(*m.AutoDeleteAt) {
		return MessageExpired
	}
	return MessageActive
}

// SafeChat is a disguised, optionally PIN-gated conversation.
type SafeChat struct {
	ID             string        `json:"id"`
	UserID         string        `json:"userId"`
	Name           string        `json:"name"`
	DisguisedName  string        `json:"disguisedName"`
	Participants   []string      `json:"participants"`
	IsHidden       bool          `json:"isHidden"`
	AccessPinHash  string        `json:"-"`
	DefaultTTL     time.Duration `json:"-"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
	CreatedAt      time.Time     `json:"createdAt"`
	Messages       []SafeMessage `json:"messages"`
}

func (c *SafeChat) HasPin() bool { return c.AccessPinHash != "" }

func (c *SafeChat) IsParticipant(userID string) bool {
	return containsString(c.Participants, userID)
}

// ActiveMessages drops everything expired at now. It never mutates c.
func (c *SafeChat) ActiveMessages(now time.Time) []SafeMessage {
	out := make([]SafeMessage, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.StateAt(now) == MessageActive {
			out = append(out, m)
		}
	}
	return out
}

// ChatOptions are the user-provided knobs for a new chat.
type ChatOptions struct {
	Name            string   `json:"name"`
	DisguisedName   string   `json:"disguisedName,omitempty"`
	Participants    []string `json:"participants,omitempty"`
	AccessPin       string   `json:"accessPin,omitempty"`
	AutoDeleteHours float64  `json:"autoDeleteHours,omitempty"`
	Hidden          *bool    `json:"isHidden,omitempty"`
}

// Validate checks the options that do not depend on storage.
func (o ChatOptions) Validate() error {
	name := strings.TrimSpace(o.Name)
	if name == "" || utf8.RuneCountInString(name) > maxChatNameLen {
		return domain.NewValidationError("name", "must be 1-100 characters")
	}
	if utf8.RuneCountInString(o.DisguisedName) > maxChatNameLen {
		return domain.NewValidationError("disguisedName", "must be at most 100 characters")
	}
	if o.AccessPin != "" {
		if err := ValidatePin(o.AccessPin); err != nil {
			return err
		}
	}
	if o.AutoDeleteHours < 0 || math.IsNaN(o.AutoDeleteHours) || math.IsInf(o.AutoDeleteHours, 0) {
		return domain.NewValidationError("autoDeleteHours", "must be positive")
	}
	for _, p := range o.Participants {
		if strings.TrimSpace(p) == "" {
			return domain.NewValidationError("participants", "must not contain empty ids")
		}
	}
	return nil
}

// ValidatePin only checks shape; the value itself is never echoed back.
func ValidatePin(pin string) error {
	if n := utf8.RuneCountInString(pin); n < minPinLen || n > maxPinLen {
		return domain.NewValidationError("accessPin", "must be 4-10 characters")
	}
	return nil
}

// ValidateMessageContent bounds plaintext length before encryption.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" || utf8.RuneCountInString(content) > maxMessageContentLen {
		return domain.NewValidationError("content", "must be 1-5000 characters")
	}
	return nil
}

// ClampTTL bounds an auto-delete window. Non-positive input is rejected.
func ClampTTL(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, domain.NewValidationError("autoDeleteMinutes", "must be positive")
	}
	if d > MaxMessageTTL {
		return MaxMessageTTL, nil
	}
	return d, nil
}

// MinutesToDuration converts a fractional minute count (e.g. 0.5) to a duration.
func MinutesToDuration(minutes float64) (time.Duration, error) {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes <= 0 {
		return 0, domain.NewValidationError("autoDeleteMinutes", "must be positive")
	}
	if minutes > MaxMessageTTL.Minutes() {
		return MaxMessageTTL, nil
	}
	return time.Duration(minutes * float64(time.Minute)), nil
}
