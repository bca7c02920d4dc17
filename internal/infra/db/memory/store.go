// Package memory is the process-local storage backend used by the dev driver
// and by unit tests. It honours the same per-user locking contract as the
// Postgres repositories.
package memory

import (
	"context"
	"sync"
	"time"

	"dvsafe-service/internal/domain"
	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
)

var _ repository.TransactionManager = (*TxManager)(nil)

// Store holds every record. Repositories created from the same Store share data.
type Store struct {
	mu       sync.Mutex
	settings map[string]*model.SafetySettings
	chats    map[string]*model.SafeChat
	panics   map[string][]time.Time

	locksMu   sync.Mutex
	userLocks map[string]chan struct{}
}

func NewStore() *Store {
	return &Store{
		settings:  make(map[string]*model.SafetySettings),
		chats:     make(map[string]*model.SafeChat),
		panics:    make(map[string][]time.Time),
		userLocks: make(map[string]chan struct{}),
	}
}

func (s *Store) userLock(userID string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = make(chan struct{}, 1)
		s.userLocks[userID] = l
	}
	return l
}

// Tx tracks the per-user locks taken by GetForUpdate. Writes are applied
// immediately; there is no rollback, so callers save last.
type Tx struct {
	store *Store
	held  map[string]chan struct{}
}

// lockUser blocks until the user's lock is free or ctx ends. Re-entrant per Tx.
func (t *Tx) lockUser(ctx context.Context, userID string) error {
	if _, ok := t.held[userID]; ok {
		return nil
	}
	l := t.store.userLock(userID)
	select {
	case l <- struct{}{}:
		t.held[userID] = l
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tx) release() {
	for id, l := range t.held {
		<-l
		delete(t.held, id)
	}
}

type TxManager struct {
	store *Store
}

func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// WithTx runs fn with a fresh Tx and releases its locks when fn returns.
func (m *TxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx := &Tx{store: m.store, held: make(map[string]chan struct{})}
	defer tx.release()
	return fn(ctx, tx)
}

// asTx accepts nil (no transaction) or a *Tx from this store.
func asTx(store *Store, tx repository.Tx) (*Tx, error) {
	switch v := tx.(type) {
	case nil:
		return nil, nil
	case *Tx:
		if v.store != store {
			return nil, domain.ErrInvalidExecContext
		}
		return v, nil
	default:
		return nil, domain.ErrInvalidExecContext
	}
}
