package repository

import (
	"context"
	"time"

	"dvsafe-service/internal/domain/model"
)

// SafeChatRepository stores chats and their (encrypted) messages.
// Messages are returned as stored: expiry filtering is the caller's job.
type SafeChatRepository interface {
	Create(ctx context.Context, tx Tx, chat *model.SafeChat) error
	FindByID(ctx context.Context, tx Tx, chatID string) (*model.SafeChat, error)
	ListByParticipant(ctx context.Context, tx Tx, userID string) ([]*model.SafeChat, error)
	AppendMessage(ctx context.Context, tx Tx, msg *model.SafeMessage) error
	SetHidden(ctx context.Context, tx Tx, chatID string, hidden bool) error
	// DeleteExpiredMessages physically removes messages whose auto-delete time is <= now.
	DeleteExpiredMessages(ctx context.Context, now time.Time) (int64, error)
}
