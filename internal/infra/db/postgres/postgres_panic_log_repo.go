package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"dvsafe-service/internal/domain/ports/repository"
)

var _ repository.PanicLogRepository = (*PostgresPanicLogRepo)(nil)

// PostgresPanicLogRepo only keeps who pressed the button and when.
type PostgresPanicLogRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPanicLogRepo(pool *pgxpool.Pool) *PostgresPanicLogRepo {
	return &PostgresPanicLogRepo{pool: pool}
}

func (r *PostgresPanicLogRepo) Record(ctx context.Context, tx repository.Tx, userID string, at time.Time, notified int) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = exec.Exec(ctx,
		`INSERT INTO panic_alerts (user_id, triggered_at, notified_count) VALUES ($1,$2,$3)`,
		userID, at, notified)
	if err != nil {
		return fmt.Errorf("record panic: %w", err)
	}
	return nil
}

func (r *PostgresPanicLogRepo) CountSince(ctx context.Context, tx repository.Tx, userID string, since time.Time) (int, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	err = exec.QueryRow(ctx,
		`SELECT COUNT(*) FROM panic_alerts WHERE user_id=$1 AND triggered_at >= $2`,
		userID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count panics: %w", err)
	}
	return n, nil
}
