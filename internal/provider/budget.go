package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrDailyLimitReached is returned when a provider's daily quota is spent.
	ErrDailyLimitReached = errors.New("daily call limit reached")
	// ErrBudgetExhausted is returned when the token bucket cannot admit a call
	// before the caller's deadline.
	ErrBudgetExhausted = errors.New("rate budget exhausted")
)

// Budget controls call rate and daily usage for one provider. It uses a
// token bucket for per-second limiting and a rolling 24-hour window for the
// daily quota.
type Budget struct {
	limiter  *rate.Limiter
	daily    atomic.Int64
	maxDaily int64
	resetAt  time.Time
	mu       sync.Mutex
	nowFunc  func() time.Time
}

// BudgetOption configures a Budget.
type BudgetOption func(*Budget)

// WithBudgetNowFunc overrides the time function for testing.
func WithBudgetNowFunc(f func() time.Time) BudgetOption {
	return func(b *Budget) {
		b.nowFunc = f
	}
}

// NewBudget creates a budget with the given per-second rate, burst size and
// daily limit. A maxDaily of zero disables the daily quota.
func NewBudget(perSecond float64, burst int, maxDaily int64, opts ...BudgetOption) *Budget {
	b := &Budget{
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		maxDaily: maxDaily,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.resetAt = b.nowFunc().Add(24 * time.Hour)
	return b
}

// Acquire reserves one call. It blocks for a token until ctx is done and
// never lets the daily counter exceed maxDaily.
func (b *Budget) Acquire(ctx context.Context) error {
	b.checkDailyReset()

	if b.maxDaily > 0 {
		for {
			cur := b.daily.Load()
			if cur >= b.maxDaily {
				return fmt.Errorf("%w (%d/%d)", ErrDailyLimitReached, cur, b.maxDaily)
			}
			if b.daily.CompareAndSwap(cur, cur+1) {
				break
			}
		}
	} else {
		b.daily.Add(1)
	}

	if err := b.limiter.Wait(ctx); err != nil {
		b.daily.Add(-1)
		return fmt.Errorf("%w: %w", ErrBudgetExhausted, err)
	}
	return nil
}

// DailyCount returns the calls admitted in the current window.
func (b *Budget) DailyCount() int64 {
	return b.daily.Load()
}

// Remaining returns the calls left in the current window, or -1 when the
// daily quota is disabled.
func (b *Budget) Remaining() int64 {
	if b.maxDaily <= 0 {
		return -1
	}
	return max(b.maxDaily-b.daily.Load(), 0)
}

// ResetAt returns when the daily counter next resets.
func (b *Budget) ResetAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resetAt
}

func (b *Budget) checkDailyReset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.nowFunc()
	if now.After(b.resetAt) {
		b.daily.Store(0)
		b.resetAt = now.Add(24 * time.Hour)
	}
}
