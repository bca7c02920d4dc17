package redis

import (
	"context"
	"fmt"
	"time"

	"dvsafe-service/internal/domain/ports/adapter"
)

type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one hit against key and reports whether it is within limit.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

var _ adapter.PinThrottle = (*PinThrottle)(nil)

// PinThrottle caps PIN attempts per user and scope within a window. The
// counter is incremented before the PIN is verified; only a correct PIN
// clears it.
type PinThrottle struct {
	limiter *RateLimiter
	limit   int
	window  time.Duration
}

func NewPinThrottle(limiter *RateLimiter, limit int, window time.Duration) *PinThrottle {
	return &PinThrottle{limiter: limiter, limit: limit, window: window}
}

// Acquire reserves one attempt. INCR is atomic, so N parallel callers see N
// distinct counts and at most limit of them get through.
func (p *PinThrottle) Acquire(ctx context.Context, userID, scope string) (bool, error) {
	return p.limiter.Allow(ctx, PinAttemptKey(userID, scope), p.limit, p.window)
}

func (p *PinThrottle) Release(ctx context.Context, userID, scope string) error {
	return p.limiter.client.Del(ctx, PinAttemptKey(userID, scope))
}

func PinAttemptKey(userID, scope string) string {
	return fmt.Sprintf("pin_attempts:%s:%s", userID, scope)
}
