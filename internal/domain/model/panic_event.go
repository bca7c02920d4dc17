package model

import "time"

// PanicEvent is what a delivery gateway is told about. Never persisted beyond
// the audit timestamp.
type PanicEvent struct {
	UserID      string
	TriggeredAt time.Time
}

// PanicResult is returned to the user who pressed the button.
type PanicResult struct {
	Success            bool      `json:"success"`
	NotifiedContactIDs []string  `json:"notifiedContactIds"`
	Timestamp          time.Time `json:"timestamp"`
}

// Notification is an outbound push/email preview.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// SupportResource is a hotline entry shown on the help screen.
type SupportResource struct {
	Name        string `json:"name" yaml:"name"`
	Phone       string `json:"phone" yaml:"phone"`
	Website     string `json:"website" yaml:"website"`
	Description string `json:"description" yaml:"description"`
	Available   string `json:"available" yaml:"available"`
}

// ClientInstructions tell the app which local traces to wipe.
type ClientInstructions struct {
	ClearLocalStorage   bool     `json:"clearLocalStorage"`
	ClearSessionStorage bool     `json:"clearSessionStorage"`
	ClearCookies        []string `json:"clearCookies"`
	ReplaceHistory      bool     `json:"replaceHistory"`
}
