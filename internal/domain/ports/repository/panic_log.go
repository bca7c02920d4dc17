package repository

import (
	"context"
	"time"
)

// PanicLogRepository keeps the audit timestamp of every panic trigger.
type PanicLogRepository interface {
	Record(ctx context.Context, tx Tx, userID string, at time.Time, notified int) error
	CountSince(ctx context.Context, tx Tx, userID string, since time.Time) (int, error)
}
