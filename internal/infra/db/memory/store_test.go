//go:build !integration

package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dvsafe-service/internal/domain"
	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
)

func TestSettingsRepo_Get(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewSettingsRepo(store)

	t.Run("should materialize defaults once", func(t *testing.T) {
		first, err := repo.Get(ctx, repository.NoTX, "u1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, _ := repo.Get(ctx, repository.NoTX, "u1")
		if !first.CreatedAt.Equal(second.CreatedAt) {
			t.Errorf("expected identical records, got %v and %v", first.CreatedAt, second.CreatedAt)
		}
		if first.SafeExitURL != model.DefaultSafeExitURL {
			t.Errorf("unexpected default url %q", first.SafeExitURL)
		}
	})

	t.Run("should return copies", func(t *testing.T) {
		s, _ := repo.Get(ctx, nil, "u2")
		s.BlockedUserIDs = append(s.BlockedUserIDs, "x")
		again, _ := repo.Get(ctx, nil, "u2")
		if len(again.BlockedUserIDs) != 0 {
			t.Error("mutating a returned record must not touch the store")
		}
	})

	t.Run("Lookup should read defaults without storing them", func(t *testing.T) {
		s, err := repo.Lookup(ctx, nil, "ghost")
		if err != nil || s.UserID != "ghost" || !s.AllowMessages {
			t.Fatalf("expected unsaved defaults, got %+v %v", s, err)
		}
		store.mu.Lock()
		_, stored := store.settings["ghost"]
		store.mu.Unlock()
		if stored {
			t.Error("lookup must not materialize a record")
		}

		_, _ = repo.Get(ctx, nil, "u3")
		saved, _ := repo.Get(ctx, nil, "u3")
		saved.IsSafeMode = true
		_ = repo.Save(ctx, nil, saved)
		if got, _ := repo.Lookup(ctx, nil, "u3"); !got.IsSafeMode {
			t.Error("lookup must return the stored record when there is one")
		}
	})

	t.Run("should reject foreign transaction handles", func(t *testing.T) {
		_, err := repo.Get(ctx, "not-a-tx", "u1")
		if !errors.Is(err, domain.ErrInvalidExecContext) {
			t.Errorf("expected ErrInvalidExecContext, got %v", err)
		}
	})
}

func TestTxManager_SerializesPerUser(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tm := NewTxManager(store)
	repo := NewSettingsRepo(store)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
				s, err := repo.GetForUpdate(ctx, tx, "u1")
				if err != nil {
					return err
				}
				c := model.EmergencyContact{ID: string(rune('a' + i)), Name: "n", Phone: "12345", Relationship: "r"}
				if err := s.AddContact(c); err != nil && !errors.Is(err, domain.ErrLimitExceeded) {
					return err
				}
				time.Sleep(time.Millisecond)
				return repo.Save(ctx, tx, s)
			})
			if err != nil {
				t.Errorf("tx failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	s, _ := repo.Get(ctx, nil, "u1")
	if len(s.EmergencyContacts) != model.MaxEmergencyContacts {
		t.Errorf("expected no lost updates and cap of %d, got %d", model.MaxEmergencyContacts, len(s.EmergencyContacts))
	}
}

func TestTxManager_DifferentUsersDoNotWait(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tm := NewTxManager(store)
	repo := NewSettingsRepo(store)

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if _, err := repo.GetForUpdate(ctx, tx, "u1"); err != nil {
				return err
			}
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding

	timeout, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	err := tm.WithTx(timeout, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		_, err := repo.GetForUpdate(ctx, tx, "u2")
		return err
	})
	if err != nil {
		t.Errorf("other user should not be blocked, got %v", err)
	}

	blocked, cancel2 := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel2()
	err = tm.WithTx(blocked, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		_, err := repo.GetForUpdate(ctx, tx, "u1")
		return err
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("same user should wait for the lock, got %v", err)
	}
	close(done)
}

func TestSafeChatRepo(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewSafeChatRepo(store)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	chat := &model.SafeChat{ID: "c1", UserID: "u1", Name: "n", Participants: []string{"u1", "u2"}, CreatedAt: now, LastActivityAt: now}
	if err := repo.Create(ctx, nil, chat); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, nil, chat); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected duplicate create to fail, got %v", err)
	}

	past := now.Add(-time.Second)
	future := now.Add(time.Hour)
	_ = repo.AppendMessage(ctx, nil, &model.SafeMessage{ID: "m1", ChatID: "c1", AutoDeleteAt: &past, CreatedAt: now})
	_ = repo.AppendMessage(ctx, nil, &model.SafeMessage{ID: "m2", ChatID: "c1", AutoDeleteAt: &future, CreatedAt: now.Add(time.Minute)})
	if err := repo.AppendMessage(ctx, nil, &model.SafeMessage{ID: "m3", ChatID: "missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found for unknown chat, got %v", err)
	}

	got, _ := repo.FindByID(ctx, nil, "c1")
	if len(got.Messages) != 2 || !got.LastActivityAt.Equal(now.Add(time.Minute)) {
		t.Errorf("unexpected chat state: %d messages, last activity %v", len(got.Messages), got.LastActivityAt)
	}

	list, _ := repo.ListByParticipant(ctx, nil, "u2")
	if len(list) != 1 {
		t.Errorf("expected participant to see the chat, got %d", len(list))
	}

	n, err := repo.DeleteExpiredMessages(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("expected one message swept, got %d %v", n, err)
	}
	got, _ = repo.FindByID(ctx, nil, "c1")
	if len(got.Messages) != 1 || got.Messages[0].ID != "m2" {
		t.Errorf("expected only m2 to remain, got %+v", got.Messages)
	}

	if err := repo.SetHidden(ctx, nil, "c1", true); err != nil {
		t.Fatalf("set hidden: %v", err)
	}
	got, _ = repo.FindByID(ctx, nil, "c1")
	if !got.IsHidden {
		t.Error("expected chat to be hidden")
	}
}

func TestPanicLogRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewPanicLogRepo(NewStore())
	now := time.Now()
	_ = repo.Record(ctx, nil, "u1", now.Add(-2*time.Hour), 1)
	_ = repo.Record(ctx, nil, "u1", now, 0)

	n, err := repo.CountSince(ctx, nil, "u1", now.Add(-time.Hour))
	if err != nil || n != 1 {
		t.Errorf("expected 1 recent trigger, got %d %v", n, err)
	}
}
