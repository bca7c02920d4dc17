package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"dvsafe-service/internal/domain"
	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/adapter"
	"dvsafe-service/internal/domain/ports/repository"
	"dvsafe-service/internal/infra/logging"
	"dvsafe-service/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ SafeChatUseCase = (*safeChatUC)(nil)

// SafeChatUseCase manages disguised, optionally PIN-gated chats.
//
// Access, SendMessage and SetHidden return (nil, nil) whenever the caller may
// not see the chat, whatever the reason. All three require the chat's PIN when
// one is set. Only storage failures are errors.
type SafeChatUseCase interface {
	Create(ctx context.Context, userID string, opts model.ChatOptions) (*model.SafeChat, error)
	List(ctx context.Context, userID, pin string) ([]*model.SafeChat, error)
	Access(ctx context.Context, userID, chatID, pin string) (*model.SafeChat, error)
	SendMessage(ctx context.Context, userID, chatID, content, pin string, autoDelete *time.Duration) (*model.SafeMessage, error)
	SetHidden(ctx context.Context, userID, chatID string, hidden bool, pin string) (*model.SafeChat, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// listPinScope is the throttle scope for PIN guesses made through List.
// Chat ids are UUIDs, so it cannot collide with a chat scope.
const listPinScope = "list"

// accessDecision is the internal reason behind a grant or a denial.
type accessDecision int

const (
	accessGranted accessDecision = iota
	accessMissing
	accessNotParticipant
	accessBadPin
	accessThrottled
	accessBlocked
	accessNotOwner
)

func (d accessDecision) String() string {
	switch d {
	case accessGranted:
		return "granted"
	case accessMissing:
		return "missing"
	case accessNotParticipant:
		return "not_participant"
	case accessBadPin:
		return "bad_pin"
	case accessThrottled:
		return "throttled"
	case accessBlocked:
		return "blocked"
	case accessNotOwner:
		return "not_owner"
	default:
		return "unknown"
	}
}

type safeChatUC struct {
	chats    repository.SafeChatRepository
	settings repository.SafetySettingsRepository
	tm       repository.TransactionManager
	enc      adapter.Encryptor
	pins     adapter.PinHasher
	throttle adapter.PinThrottle // optional
	log      *zerolog.Logger
	now      func() time.Time
}

// NewSafeChatUseCase wires the chat engine. throttle may be nil, in which case
// PIN guesses are not rate limited.
func NewSafeChatUseCase(
	chats repository.SafeChatRepository,
	settings repository.SafetySettingsRepository,
	tm repository.TransactionManager,
	enc adapter.Encryptor,
	pins adapter.PinHasher,
	throttle adapter.PinThrottle,
	logger *zerolog.Logger,
) *safeChatUC {
	return &safeChatUC{
		chats:    chats,
		settings: settings,
		tm:       tm,
		enc:      enc,
		pins:     pins,
		throttle: throttle,
		log:      logging.Component(logger, "safe_chat_uc"),
		now:      time.Now,
	}
}

// SetClock replaces the time source; tests only.
func (u *safeChatUC) SetClock(now func() time.Time) { u.now = now }

func (u *safeChatUC) Create(ctx context.Context, userID string, opts model.ChatOptions) (*model.SafeChat, error) {
	defer logging.TraceDuration(u.log, "SafeChatUC.Create")()
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	now := u.now().UTC()
	chat := &model.SafeChat{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           strings.TrimSpace(opts.Name),
		DisguisedName:  strings.TrimSpace(opts.DisguisedName),
		Participants:   participantsWithOwner(userID, opts.Participants),
		IsHidden:       true,
		LastActivityAt: now,
		CreatedAt:      now,
		Messages:       []model.SafeMessage{},
	}
	if chat.DisguisedName == "" {
		chat.DisguisedName = model.DefaultDisguisedName
	}
	if opts.Hidden != nil {
		chat.IsHidden = *opts.Hidden
	}
	if opts.AutoDeleteHours > 0 {
		ttl, err := model.ClampTTL(time.Duration(opts.AutoDeleteHours * float64(time.Hour)))
		if err != nil {
			return nil, err
		}
		chat.DefaultTTL = ttl
	}
	if opts.AccessPin != "" {
		hash, err := u.pins.Hash(opts.AccessPin)
		if err != nil {
			return nil, err
		}
		chat.AccessPinHash = hash
	}

	err := u.tm.WithTx(ctx, writeTxOpts, func(ctx context.Context, tx repository.Tx) error {
		if err := u.chats.Create(ctx, tx, chat); err != nil {
			return err
		}
		if !chat.IsHidden {
			return nil
		}
		s, err := u.settings.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		s.SetChatHidden(chat.ID, true)
		s.UpdatedAt = now
		return u.settings.Save(ctx, tx, s)
	})
	if err != nil {
		return nil, err
	}

	logging.With(ctx, u.log).Info().
		Str("chat_id", chat.ID).
		Bool("hidden", chat.IsHidden).
		Bool("pin", chat.HasPin()).
		Int("participants", len(chat.Participants)).
		Msg("safe chat created")
	return chat, nil
}

func participantsWithOwner(owner string, in []string) []string {
	out := []string{owner}
	seen := map[string]bool{owner: true}
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// List never fails on a PIN: a chat the PIN does not unlock is just omitted.
// One PIN is expected to open only some of the owner's chats, so a listing
// spends a single attempt from its own budget, refunded when the PIN opens
// at least one chat.
func (u *safeChatUC) List(ctx context.Context, userID, pin string) ([]*model.SafeChat, error) {
	defer logging.TraceDuration(u.log, "SafeChatUC.List")()
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	chats, err := u.chats.ListByParticipant(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}

	tryPin := pin != "" && hasPinChat(chats) && u.acquire(ctx, userID, listPinScope)
	opened := false
	now := u.now()
	out := make([]*model.SafeChat, 0, len(chats))
	for _, c := range chats {
		unlocked := !c.HasPin()
		if !unlocked && tryPin && u.pins.Verify(c.AccessPinHash, pin) {
			unlocked, opened = true, true
		}
		if c.IsHidden && (c.UserID != userID || !unlocked) {
			continue
		}
		v := u.view(ctx, c, now)
		if !unlocked {
			// Visible but PIN-gated: the listing shows the chat, not its messages.
			v.Messages = []model.SafeMessage{}
		}
		out = append(out, v)
	}
	if opened {
		u.release(ctx, userID, listPinScope)
	}
	return out, nil
}

func hasPinChat(chats []*model.SafeChat) bool {
	for _, c := range chats {
		if c.HasPin() {
			return true
		}
	}
	return false
}

// acquire spends one PIN attempt. A throttle outage denies.
func (u *safeChatUC) acquire(ctx context.Context, userID, scope string) bool {
	if u.throttle == nil {
		return true
	}
	ok, err := u.throttle.Acquire(ctx, userID, scope)
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Msg("pin throttle unavailable, denying")
		return false
	}
	return ok
}

func (u *safeChatUC) release(ctx context.Context, userID, scope string) {
	if u.throttle == nil {
		return
	}
	if err := u.throttle.Release(ctx, userID, scope); err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Msg("failed to clear pin attempts")
	}
}

func (u *safeChatUC) Access(ctx context.Context, userID, chatID, pin string) (*model.SafeChat, error) {
	defer logging.TraceDuration(u.log, "SafeChatUC.Access")()
	chat, err := u.authorize(ctx, "access", userID, chatID, pin)
	if err != nil || chat == nil {
		return nil, err
	}
	return u.view(ctx, chat, u.now()), nil
}

func (u *safeChatUC) SendMessage(ctx context.Context, userID, chatID, content, pin string, autoDelete *time.Duration) (*model.SafeMessage, error) {
	defer logging.TraceDuration(u.log, "SafeChatUC.SendMessage")()
	if err := model.ValidateMessageContent(content); err != nil {
		return nil, err
	}
	var ttl time.Duration
	if autoDelete != nil {
		var err error
		if ttl, err = model.ClampTTL(*autoDelete); err != nil {
			return nil, err
		}
	}

	chat, err := u.authorize(ctx, "send", userID, chatID, pin)
	if err != nil || chat == nil {
		return nil, err
	}
	if ttl == 0 {
		ttl = chat.DefaultTTL
	}

	ciphertext, err := u.enc.Encrypt(content, chat.ID)
	if err != nil {
		return nil, err
	}
	now := u.now().UTC()
	msg := &model.SafeMessage{
		ID:          ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		ChatID:      chat.ID,
		SenderID:    userID,
		Content:     ciphertext,
		IsEncrypted: true,
		CreatedAt:   now,
	}
	if ttl > 0 {
		at := now.Add(ttl)
		msg.AutoDeleteAt = &at
	}
	if err := u.chats.AppendMessage(ctx, repository.NoTX, msg); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	metrics.IncChatMessage(msg.AutoDeleteAt != nil)

	out := *msg
	out.Content = content
	return &out, nil
}

// SetHidden flips a chat between hidden and visible. Owner only.
func (u *safeChatUC) SetHidden(ctx context.Context, userID, chatID string, hidden bool, pin string) (*model.SafeChat, error) {
	defer logging.TraceDuration(u.log, "SafeChatUC.SetHidden")()
	chat, err := u.authorize(ctx, "set_hidden", userID, chatID, pin)
	if err != nil || chat == nil {
		return nil, err
	}
	if chat.UserID != userID {
		u.record(ctx, "set_hidden", chatID, accessNotOwner)
		return nil, nil
	}

	err = u.tm.WithTx(ctx, writeTxOpts, func(ctx context.Context, tx repository.Tx) error {
		if err := u.chats.SetHidden(ctx, tx, chat.ID, hidden); err != nil {
			return err
		}
		s, err := u.settings.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if s.SetChatHidden(chat.ID, hidden) {
			s.UpdatedAt = u.now().UTC()
			return u.settings.Save(ctx, tx, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	chat.IsHidden = hidden
	return u.view(ctx, chat, u.now()), nil
}

func (u *safeChatUC) PurgeExpired(ctx context.Context) (int64, error) {
	return u.chats.DeleteExpiredMessages(ctx, u.now())
}

// authorize loads the chat and decides access. Every denial returns (nil, nil);
// the reason is only logged and counted.
func (u *safeChatUC) authorize(ctx context.Context, op, userID, chatID, pin string) (*model.SafeChat, error) {
	chat, decision, err := u.decide(ctx, userID, chatID, pin)
	if err != nil {
		logging.With(ctx, u.log).Error().Err(err).Str("op", op).Msg("chat lookup failed")
		return nil, err
	}
	u.record(ctx, op, chatID, decision)
	if decision != accessGranted {
		return nil, nil
	}
	return chat, nil
}

func (u *safeChatUC) decide(ctx context.Context, userID, chatID, pin string) (*model.SafeChat, accessDecision, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(chatID) == "" {
		return nil, accessMissing, nil
	}
	chat, err := u.chats.FindByID(ctx, repository.NoTX, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, accessMissing, nil
	}
	if err != nil {
		return nil, accessMissing, err
	}
	if !chat.IsParticipant(userID) {
		return nil, accessNotParticipant, nil
	}
	if chat.UserID != userID {
		owner, err := u.settings.Lookup(ctx, repository.NoTX, chat.UserID)
		if err != nil {
			return nil, accessBlocked, err
		}
		if owner.IsBlocked(userID) {
			return nil, accessBlocked, nil
		}
	}
	if chat.HasPin() {
		if pin == "" {
			return nil, accessBadPin, nil
		}
		// The attempt is spent before bcrypt runs.
		if !u.acquire(ctx, userID, chat.ID) {
			return nil, accessThrottled, nil
		}
		if !u.pins.Verify(chat.AccessPinHash, pin) {
			return nil, accessBadPin, nil
		}
		u.release(ctx, userID, chat.ID)
	}
	return chat, accessGranted, nil
}

func (u *safeChatUC) record(ctx context.Context, op, chatID string, d accessDecision) {
	metrics.IncChatAccess(op, d.String())
	if d != accessGranted {
		logging.With(ctx, u.log).Debug().Str("op", op).Str("chat_id", chatID).Str("reason", d.String()).Msg("chat access denied")
	}
}

// view is what a reader may see: expired messages dropped, content decrypted.
// A message that fails to decrypt is dropped rather than returned as ciphertext.
func (u *safeChatUC) view(ctx context.Context, c *model.SafeChat, now time.Time) *model.SafeChat {
	out := *c
	out.Participants = append([]string{}, c.Participants...)
	active := c.ActiveMessages(now)
	out.Messages = make([]model.SafeMessage, 0, len(active))
	for _, m := range active {
		if m.IsEncrypted {
			plain, err := u.enc.Decrypt(m.Content, m.ChatID)
			if err != nil {
				logging.With(ctx, u.log).Error().Err(err).Str("message_id", m.ID).Msg("dropping undecryptable message")
				continue
			}
			m.Content = plain
		}
		out.Messages = append(out.Messages, m)
	}
	return &out
}
