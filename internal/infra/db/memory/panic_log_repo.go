package memory

import (
	"context"
	"time"

	"dvsafe-service/internal/domain/ports/repository"
)

var _ repository.PanicLogRepository = (*PanicLogRepo)(nil)

type PanicLogRepo struct {
	store *Store
}

func NewPanicLogRepo(store *Store) *PanicLogRepo {
	return &PanicLogRepo{store: store}
}

func (r *PanicLogRepo) Record(ctx context.Context, tx repository.Tx, userID string, at time.Time, notified int) error {
	if _, err := asTx(r.store, tx); err != nil {
		return err
	}
	r.store.mu.Lock()
	r.store.panics[userID] = append(r.store.panics[userID], at)
	r.store.mu.Unlock()
	return nil
}

func (r *PanicLogRepo) CountSince(ctx context.Context, tx repository.Tx, userID string, since time.Time) (int, error) {
	if _, err := asTx(r.store, tx); err != nil {
		return 0, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n := 0
	for _, at := range r.store.panics[userID] {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}
