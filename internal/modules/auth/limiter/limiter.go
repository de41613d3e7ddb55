package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/contactly/core/internal/pkg/apperror"
	"github.com/contactly/core/internal/pkg/cache"
)

// Two independent gates for OTP traffic, composed at the use-case layer:
// a fixed-window request counter and an escalating resend cooldown. The
// window is fixed, not sliding — bursts straddling a boundary are
// under-counted, which is tolerated.
const (
	RateWindow = time.Minute
	RateMax    = 15

	CooldownBase = time.Minute
	HourlyWindow = time.Hour
	HourlyMax    = 5
)

func rateKey(userID string) string     { return fmt.Sprintf("otp:limit:%s", userID) }
func cooldownKey(userID string) string { return fmt.Sprintf("otp:resendCooldown:%s", userID) }
func countKey(userID string) string    { return fmt.Sprintf("otp:resendCooldown:%s:count", userID) }

type Limiter struct {
	store cache.Store
}

func New(store cache.Store) *Limiter {
	return &Limiter{store: store}
}

// CheckRequestRate counts a request against the fixed window. The first
// request opens the window; the counter resets only by TTL expiry.
func (l *Limiter) CheckRequestRate(ctx context.Context, userID string) error {
	count, err := l.store.Incr(ctx, rateKey(userID))
	if err != nil {
		return err
	}
	if count == 1 {
		if err := l.store.Expire(ctx, rateKey(userID), RateWindow); err != nil {
			return err
		}
	}
	if count > RateMax {
		return apperror.ErrRateLimited
	}
	return nil
}

// CheckResendCooldown gates OTP resends. A live cooldown key rejects outright.
// Otherwise the hourly counter is advanced (its TTL is set once, on first use,
// and never refreshed) and the next cooldown is armed at count x base window,
// so each resend within the hour waits longer than the last. Past the hourly
// cap every resend is rejected regardless of cooldown state.
func (l *Limiter) CheckResendCooldown(ctx context.Context, userID string) error {
	gated, err := l.store.Exists(ctx, cooldownKey(userID))
	if err != nil {
		return err
	}
	if gated {
		return apperror.ErrRateLimited
	}

	count, err := l.store.Incr(ctx, countKey(userID))
	if err != nil {
		return err
	}
	if count == 1 {
		if err := l.store.Expire(ctx, countKey(userID), HourlyWindow); err != nil {
			return err
		}
	}
	if count > HourlyMax {
		return apperror.ErrRateLimited
	}

	return l.store.Set(ctx, cooldownKey(userID), "1", time.Duration(count)*CooldownBase)
}

// Clear removes all limiter state for a user, called after successful
// verification so the next flow starts fresh.
func (l *Limiter) Clear(ctx context.Context, userID string) error {
	return l.store.Del(ctx, rateKey(userID), cooldownKey(userID), countKey(userID))
}
