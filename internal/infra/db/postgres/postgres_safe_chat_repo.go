package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"dvsafe-service/internal/domain"
	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/repository"
)

var _ repository.SafeChatRepository = (*PostgresSafeChatRepo)(nil)

type PostgresSafeChatRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSafeChatRepo(pool *pgxpool.Pool) *PostgresSafeChatRepo {
	return &PostgresSafeChatRepo{pool: pool}
}

// SQLSTATE codes the repo maps to domain errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const chatColumns = `id, user_id, name, disguised_name, participants, is_hidden, access_pin_hash, default_ttl_ms, last_activity_at, created_at`

func (r *PostgresSafeChatRepo) Create(ctx context.Context, tx repository.Tx, c *model.SafeChat) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO safe_chats (` + chatColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`
	_, err = exec.Exec(ctx, q, c.ID, c.UserID, c.Name, c.DisguisedName, nonNil(c.Participants),
		c.IsHidden, c.AccessPinHash, c.DefaultTTL.Milliseconds(), c.LastActivityAt, c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

func (r *PostgresSafeChatRepo) FindByID(ctx context.Context, tx repository.Tx, chatID string) (*model.SafeChat, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	c, err := scanChat(exec.QueryRow(ctx, `SELECT `+chatColumns+` FROM safe_chats WHERE id=$1`, chatID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select chat: %w", err)
	}
	byChat := map[string]*model.SafeChat{c.ID: c}
	if err := loadMessages(ctx, exec, byChat); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresSafeChatRepo) ListByParticipant(ctx context.Context, tx repository.Tx, userID string) ([]*model.SafeChat, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + chatColumns + ` FROM safe_chats WHERE $1 = ANY(participants) ORDER BY last_activity_at DESC, id`
	rows, err := exec.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	out := []*model.SafeChat{}
	byChat := map[string]*model.SafeChat{}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		byChat[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if len(byChat) == 0 {
		return out, nil
	}
	if err := loadMessages(ctx, exec, byChat); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendMessage bumps last activity and inserts msg. ErrNotFound for an unknown chat.
func (r *PostgresSafeChatRepo) AppendMessage(ctx context.Context, tx repository.Tx, m *model.SafeMessage) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := exec.Exec(ctx,
		`UPDATE safe_chats SET last_activity_at=GREATEST(last_activity_at, $2) WHERE id=$1`,
		m.ChatID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	const q = `
INSERT INTO safe_messages (id, chat_id, sender_id, content, is_encrypted, auto_delete_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err = exec.Exec(ctx, q, m.ID, m.ChatID, m.SenderID, m.Content, m.IsEncrypted, m.AutoDeleteAt, m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return domain.ErrNotFound
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *PostgresSafeChatRepo) SetHidden(ctx context.Context, tx repository.Tx, chatID string, hidden bool) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := exec.Exec(ctx, `UPDATE safe_chats SET is_hidden=$2 WHERE id=$1`, chatID, hidden)
	if err != nil {
		return fmt.Errorf("set hidden: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresSafeChatRepo) DeleteExpiredMessages(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM safe_messages WHERE auto_delete_at IS NOT NULL AND auto_delete_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanChat(row pgx.Row) (*model.SafeChat, error) {
	var (
		c     model.SafeChat
		ttlMs int64
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.DisguisedName, &c.Participants, &c.IsHidden,
		&c.AccessPinHash, &ttlMs, &c.LastActivityAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.DefaultTTL = time.Duration(ttlMs) * time.Millisecond
	c.Participants = nonNil(c.Participants)
	c.Messages = []model.SafeMessage{}
	return &c, nil
}

// loadMessages fills Messages of every chat in byChat, oldest first.
func loadMessages(ctx context.Context, exec executor, byChat map[string]*model.SafeChat) error {
	ids := make([]string, 0, len(byChat))
	for id := range byChat {
		ids = append(ids, id)
	}
	const q = `
SELECT id, chat_id, sender_id, content, is_encrypted, auto_delete_at, created_at
  FROM safe_messages WHERE chat_id = ANY($1) ORDER BY created_at, id`
	rows, err := exec.Query(ctx, q, ids)
	if err != nil {
		return fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m model.SafeMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.IsEncrypted, &m.AutoDeleteAt, &m.CreatedAt); err != nil {
			return err
		}
		if c, ok := byChat[m.ChatID]; ok {
			c.Messages = append(c.Messages, m)
		}
	}
	return rows.Err()
}
