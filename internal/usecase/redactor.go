package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"dvsafe-service/internal/domain/model"
)

// NotificationRedactor rewrites outbound notification previews for users who
// asked for safe notifications. It does no I/O.
type NotificationRedactor struct {
	candidates []model.Notification
}

// NewNotificationRedactor takes the neutral wordings in preference order.
func NewNotificationRedactor(candidates []model.Notification) *NotificationRedactor {
	return &NotificationRedactor{candidates: append([]model.Notification{}, candidates...)}
}

// Redact returns the originals untouched when notificationsSafe is off.
// Otherwise it returns the first neutral wording that repeats neither original
// nor any significant word of them, so the same input always yields the same
// output. When every candidate collides the result is blank.
func (r *NotificationRedactor) Redact(settings *model.SafetySettings, title, message string) model.Notification {
	if settings == nil || !settings.NotificationsSafe {
		return model.Notification{Title: title, Message: message}
	}
	for _, c := range r.candidates {
		if leaks(c, title) || leaks(c, message) {
			continue
		}
		return c
	}
	return model.Notification{}
}

// minLeakWordLen is the shortest original word that counts as revealing.
const minLeakWordLen = 4

// leaks reports whether the candidate repeats the original text or any
// significant word of it.
func leaks(c model.Notification, original string) bool {
	o := strings.ToLower(strings.TrimSpace(original))
	if o == "" {
		return false
	}
	text := strings.ToLower(c.Title + "\n" + c.Message)
	if strings.Contains(text, o) {
		return true
	}
	words := strings.FieldsFunc(o, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
	for _, w := range words {
		if utf8.RuneCountInString(w) >= minLeakWordLen && strings.Contains(text, w) {
			return true
		}
	}
	return false
}
