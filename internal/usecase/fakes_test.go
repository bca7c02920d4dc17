//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/adapter"
	"dvsafe-service/internal/domain/ports/repository"
	"dvsafe-service/internal/infra/db/memory"
	"dvsafe-service/internal/infra/logging"
	"dvsafe-service/internal/infra/security"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newTestLogger() *zerolog.Logger { return logging.Nop() }

// fakeClock is a settable time source shared by the use cases under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// testEnv bundles the in-memory backend and real crypto primitives.
type testEnv struct {
	store    *memory.Store
	tm       *memory.TxManager
	settings *memory.SettingsRepo
	chats    *memory.SafeChatRepo
	panics   *memory.PanicLogRepo
	enc      *security.EncryptionService
	pins     *security.BcryptPinHasher
	clock    *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	enc, err := security.NewEncryptionService(testKey)
	if err != nil {
		t.Fatalf("encryption service: %v", err)
	}
	return &testEnv{
		store:    store,
		tm:       memory.NewTxManager(store),
		settings: memory.NewSettingsRepo(store),
		chats:    memory.NewSafeChatRepo(store),
		panics:   memory.NewPanicLogRepo(store),
		enc:      enc,
		pins:     security.NewBcryptPinHasher(bcrypt.MinCost),
		clock:    newFakeClock(),
	}
}

// failingSettingsRepo lets tests simulate storage outages.
type failingSettingsRepo struct {
	repository.SafetySettingsRepository
	getErr    error
	lookupErr error
}

func (f *failingSettingsRepo) Lookup(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.SafetySettingsRepository.Lookup(ctx, tx, userID)
}

func (f *failingSettingsRepo) Get(ctx context.Context, tx repository.Tx, userID string) (*model.SafetySettings, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.SafetySettingsRepository.Get(ctx, tx, userID)
}

var errStorageDown = errors.New("storage down")

// fakeGateway delivers according to per-contact behaviour keyed by contact name.
type fakeGateway struct {
	mu     sync.Mutex
	calls  []string
	behave map[string]func(ctx context.Context) (bool, error)
}

var _ adapter.DeliveryGateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{behave: map[string]func(ctx context.Context) (bool, error){}}
}

func (g *fakeGateway) Notify(ctx context.Context, c model.EmergencyContact, _ model.PanicEvent) (bool, error) {
	g.mu.Lock()
	g.calls = append(g.calls, c.Name)
	fn := g.behave[c.Name]
	g.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return true, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// memThrottle counts attempts per user and scope without expiry.
type memThrottle struct {
	mu       sync.Mutex
	limit    int
	attempts map[string]int
	err      error
}

var _ adapter.PinThrottle = (*memThrottle)(nil)

func newMemThrottle(limit int) *memThrottle {
	return &memThrottle{limit: limit, attempts: map[string]int{}}
}

func (m *memThrottle) Acquire(ctx context.Context, userID, scope string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	m.attempts[userID+":"+scope]++
	return m.attempts[userID+":"+scope] <= m.limit, nil
}

func (m *memThrottle) Release(ctx context.Context, userID, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, userID+":"+scope)
	return nil
}

func contactInput(name string) model.ContactInput {
	return model.ContactInput{Name: name, Phone: "+61 400 000 000", Relationship: "friend"}
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func durPtr(d time.Duration) *time.Duration { return &d }
