package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/domain/ports/adapter"
	"dvsafe-service/internal/domain/ports/repository"
	"dvsafe-service/internal/infra/logging"
	"dvsafe-service/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ PanicUseCase = (*panicUC)(nil)

// DefaultContactTimeout caps a single contact delivery.
const DefaultContactTimeout = 5 * time.Second

// PanicUseCase broadcasts an emergency alert to a user's contacts.
type PanicUseCase interface {
	// Trigger never returns an error: partial or failed delivery is reported
	// through the result and metrics only.
	Trigger(ctx context.Context, userID string) model.PanicResult
}

type panicUC struct {
	settings repository.SafetySettingsRepository
	panics   repository.PanicLogRepository
	gateway  adapter.DeliveryGateway
	timeout  time.Duration
	log      *zerolog.Logger
	now      func() time.Time
}

func NewPanicUseCase(
	settings repository.SafetySettingsRepository,
	panics repository.PanicLogRepository,
	gateway adapter.DeliveryGateway,
	contactTimeout time.Duration,
	logger *zerolog.Logger,
) *panicUC {
	if contactTimeout <= 0 {
		contactTimeout = DefaultContactTimeout
	}
	return &panicUC{
		settings: settings,
		panics:   panics,
		gateway:  gateway,
		timeout:  contactTimeout,
		log:      logging.Component(logger, "panic_uc"),
		now:      time.Now,
	}
}

// SetClock replaces the time source; tests only.
func (u *panicUC) SetClock(now func() time.Time) { u.now = now }

func (u *panicUC) Trigger(ctx context.Context, userID string) model.PanicResult {
	defer logging.TraceDuration(u.log, "PanicUC.Trigger")()
	triggeredAt := u.now().UTC()
	res := model.PanicResult{NotifiedContactIDs: []string{}, Timestamp: triggeredAt}

	// A dropped client connection must not abandon the alerts.
	ctx = context.WithoutCancel(ctx)
	log := logging.With(ctx, u.log)

	if err := requireUserID(userID); err != nil {
		log.Error().Err(err).Msg("panic triggered without a user")
		metrics.IncPanicTrigger("invalid")
		return res
	}

	s, err := u.settings.Get(ctx, repository.NoTX, userID)
	if err != nil {
		log.Error().Err(err).Msg("panic: could not load emergency contacts")
		metrics.IncPanicTrigger("settings_error")
		u.audit(ctx, userID, triggeredAt, 0)
		return res
	}
	if !s.PanicButton {
		// The alert still goes out; the flag only controls whether the app shows the button.
		log.Warn().Msg("panic triggered while panic button is disabled")
	}

	contacts := s.PanicContacts()
	if len(contacts) == 0 {
		res.Success = true
		metrics.IncPanicTrigger("no_contacts")
		u.audit(ctx, userID, triggeredAt, 0)
		log.Info().Msg("panic triggered with no eligible contacts")
		return res
	}

	event := model.PanicEvent{UserID: userID, TriggeredAt: triggeredAt}
	res.NotifiedContactIDs = u.fanOut(ctx, contacts, event)
	res.Success = len(res.NotifiedContactIDs) > 0

	if res.Success {
		metrics.IncPanicTrigger("delivered")
	} else {
		metrics.IncPanicTrigger("undelivered")
	}
	u.audit(ctx, userID, triggeredAt, len(res.NotifiedContactIDs))
	log.Info().
		Int("eligible", len(contacts)).
		Int("notified", len(res.NotifiedContactIDs)).
		Msg("panic dispatched")
	return res
}

type deliveryOutcome struct {
	contactID string
	delivered bool
}

// fanOut notifies every contact concurrently and returns the delivered ids in
// contact-list order.
func (u *panicUC) fanOut(ctx context.Context, contacts []model.EmergencyContact, event model.PanicEvent) []string {
	results := make(chan deliveryOutcome, len(contacts))
	var wg sync.WaitGroup
	for _, c := range contacts {
		wg.Add(1)
		go func(c model.EmergencyContact) {
			defer wg.Done()
			results <- deliveryOutcome{contactID: c.ID, delivered: u.notifyOne(ctx, c, event)}
		}(c)
	}
	wg.Wait()
	close(results)

	delivered := make(map[string]bool, len(contacts))
	for r := range results {
		if r.delivered {
			delivered[r.contactID] = true
		}
	}
	out := make([]string, 0, len(delivered))
	for _, c := range contacts {
		if delivered[c.ID] {
			out = append(out, c.ID)
		}
	}
	return out
}

type gatewayReply struct {
	ok  bool
	err error
}

// notifyOne returns within the contact timeout even when the gateway ignores
// its context; a late reply lands in the buffered channel and is dropped.
func (u *panicUC) notifyOne(ctx context.Context, c model.EmergencyContact, event model.PanicEvent) bool {
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	done := make(chan gatewayReply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- gatewayReply{err: fmt.Errorf("gateway panicked: %v", r)}
			}
		}()
		ok, err := u.gateway.Notify(cctx, c, event)
		done <- gatewayReply{ok: ok, err: err}
	}()

	var status string
	select {
	case r := <-done:
		switch {
		case r.err != nil:
			status = "error"
			logging.With(ctx, u.log).Warn().Err(r.err).Str("contact_id", c.ID).Msg("panic delivery failed")
		case !r.ok:
			status = "rejected"
		default:
			status = "delivered"
		}
	case <-cctx.Done():
		status = "timeout"
		logging.With(ctx, u.log).Warn().Str("contact_id", c.ID).Dur("timeout", u.timeout).Msg("panic delivery timed out")
	}
	metrics.ObservePanicDelivery(status, time.Since(start).Seconds())
	return status == "delivered"
}

func (u *panicUC) audit(ctx context.Context, userID string, at time.Time, notified int) {
	if u.panics == nil {
		return
	}
	if err := u.panics.Record(ctx, repository.NoTX, userID, at, notified); err != nil {
		logging.With(ctx, u.log).Error().Err(err).Msg("failed to record panic audit entry")
	}
}
