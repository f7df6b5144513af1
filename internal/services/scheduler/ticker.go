package scheduler

import (
	"context"
	"time"

	"chime/internal/platform/logger"
)

// TickFunc handles one wall second. The ticker calls it exactly once per
// second, including seconds missed while the process stalled
type TickFunc func(ctx context.Context, at time.Time)

// Ticker drives a TickFunc on one-second boundaries with catch-up.
// A GC pause or noisy neighbor that swallows seconds results in a burst of
// back-to-back calls, never a skipped second
type Ticker struct {
	log *logger.Logger
	fn  TickFunc

	// seams for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewTicker builds a ticker around fn
func NewTicker(log *logger.Logger, fn TickFunc) *Ticker {
	return &Ticker{
		log:   log,
		fn:    fn,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Run ticks until ctx is canceled
func (t *Ticker) Run(ctx context.Context) error {
	last := t.now().UTC().Truncate(time.Second)
	t.log.Info().Time("start", last).Msg("tick loop running")

	for {
		next := last.Add(time.Second)
		if d := next.Sub(t.now().UTC()); d > 0 {
			if !t.sleep(ctx, d) {
				return ctx.Err()
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		now := t.now().UTC().Truncate(time.Second)
		if behind := now.Sub(last) - time.Second; behind > 5*time.Second {
			t.log.Warn().Dur("behind", behind).Msg("tick loop catching up")
		}

		// one call per second from last+1 through now, in order
		for sec := last.Add(time.Second); !sec.After(now); sec = sec.Add(time.Second) {
			t.fn(ctx, sec)
			last = sec
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
