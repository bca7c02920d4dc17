package memory

import (
	"context"
	"sort"
	"time"

	"dvsafe-service/internal/domain"
	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/repository"
)

var _ repository.SafeChatRepository = (*SafeChatRepo)(nil)

type SafeChatRepo struct {
	store *Store
}

func NewSafeChatRepo(store *Store) *SafeChatRepo {
	return &SafeChatRepo{store: store}
}

func cloneChat(c *model.SafeChat) *model.SafeChat {
	cp := *c
	cp.Participants = append([]string{}, c.Participants...)
	cp.Messages = append([]model.SafeMessage{}, c.Messages...)
	return &cp
}

func (r *SafeChatRepo) Create(ctx context.Context, tx repository.Tx, chat *model.SafeChat) error {
	if _, err := asTx(r.store, tx); err != nil {
		return err
	}
	if chat == nil || chat.ID == "" {
		return domain.ErrInvalidArgument
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.chats[chat.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.store.chats[chat.ID] = cloneChat(chat)
	return nil
}

func (r *SafeChatRepo) FindByID(ctx context.Context, tx repository.Tx, chatID string) (*model.SafeChat, error) {
	if _, err := asTx(r.store, tx); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.chats[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneChat(c), nil
}

// ListByParticipant returns the user's chats, most recently active first.
func (r *SafeChatRepo) ListByParticipant(ctx context.Context, tx repository.Tx, userID string) ([]*model.SafeChat, error) {
	if _, err := asTx(r.store, tx); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	out := make([]*model.SafeChat, 0)
	for _, c := range r.store.chats {
		if c.IsParticipant(userID) {
			out = append(out, cloneChat(c))
		}
	}
	r.store.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

func (r *SafeChatRepo) AppendMessage(ctx context.Context, tx repository.Tx, msg *model.SafeMessage) error {
	if _, err := asTx(r.store, tx); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.chats[msg.ChatID]
	if !ok {
		return domain.ErrNotFound
	}
	c.Messages = append(c.Messages, *msg)
	if msg.CreatedAt.After(c.LastActivityAt) {
		c.LastActivityAt = msg.CreatedAt
	}
	return nil
}

func (r *SafeChatRepo) SetHidden(ctx context.Context, tx repository.Tx, chatID string, hidden bool) error {
	if _, err := asTx(r.store, tx); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.chats[chatID]
	if !ok {
		return domain.ErrNotFound
	}
	c.IsHidden = hidden
	return nil
}

func (r *SafeChatRepo) DeleteExpiredMessages(ctx context.Context, now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for _, c := range r.store.chats {
		kept := c.Messages[:0]
		for _, m := range c.Messages {
			if m.StateAt(now) == model.MessageExpired {
				n++
				continue
			}
			kept = append(kept, m)
		}
		c.Messages = kept
	}
	return n, nil
}
