package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"dvsafe-service/internal/infra/metrics"
	red "dvsafe-service/internal/infra/redis"
)

const sweepLockKey = "lock:message_sweep"

// ExpiredMessagePurger physically deletes messages past their auto-delete time.
type ExpiredMessagePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// MessageSweepWorker periodically removes expired safe-chat messages. Reads
// already hide them; the sweep only reclaims storage. With a locker, at most
// one replica sweeps per tick.
type MessageSweepWorker struct {
	interval time.Duration
	lockTTL  time.Duration
	purger   ExpiredMessagePurger
	locker   red.Locker
	log      *zerolog.Logger
}

// NewMessageSweepWorker accepts a nil locker for single-instance deployments.
func NewMessageSweepWorker(interval, lockTTL time.Duration, purger ExpiredMessagePurger, locker red.Locker, logger *zerolog.Logger) *MessageSweepWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if lockTTL <= 0 {
		lockTTL = interval / 2
	}
	compLog := logger.With().Str("component", "MessageSweepWorker").Logger()
	return &MessageSweepWorker{
		interval: interval,
		lockTTL:  lockTTL,
		purger:   purger,
		locker:   locker,
		log:      &compLog,
	}
}

func (w *MessageSweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting message sweep worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping message sweep worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

// sweepOnce returns the number of deleted messages, or -1 when the round was skipped.
func (w *MessageSweepWorker) sweepOnce(ctx context.Context) int64 {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, sweepLockKey, w.lockTTL)
		if err != nil {
			if !errors.Is(err, red.ErrLockHeld) {
				w.log.Warn().Err(err).Msg("sweep lock unavailable")
			}
			metrics.IncSweepRun("skipped")
			return -1
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), sweepLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("sweep unlock failed")
			}
		}()
	}

	n, err := w.purger.PurgeExpired(ctx)
	if err != nil {
		metrics.IncSweepRun("failed")
		w.log.Error().Err(err).Msg("message sweep failed")
		return 0
	}
	metrics.IncSweepRun("ok")
	metrics.AddMessagesSwept(n)
	if n > 0 {
		w.log.Info().Int64("count", n).Msg("expired messages swept")
	}
	return n
}
