package adapter

import (
	"context"

	"dvsafe-service/internal/domain/model"
)

// DeliveryGateway sends a panic alert to one emergency contact.
// delivered reports gateway acceptance, not that the contact read it.
type DeliveryGateway interface {
	Notify(ctx context.Context, contact model.EmergencyContact, event model.PanicEvent) (delivered bool, err error)
}

// PinThrottle limits PIN guesses per user and scope (a chat id, or the chat
// listing). Acquire spends one attempt before the PIN is checked and reports
// false once the window's budget is gone, so concurrent guesses cannot share
// a stale count. Release clears the budget after a correct PIN.
type PinThrottle interface {
	Acquire(ctx context.Context, userID, scope string) (bool, error)
	Release(ctx context.Context, userID, scope string) error
}
