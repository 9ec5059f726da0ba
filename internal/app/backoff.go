package app

import (
	"context"
	"math/rand"
	"time"
)

// Default retry delays for queue items.
const (
	DefaultBaseDelay = 1 * time.Second
	DefaultMaxDelay  = 30 * time.Second
)

// RetryDelay returns base * 2^retryCount, capped at max. A non-positive
// max means no cap.
func RetryDelay(base, max time.Duration, retryCount int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < retryCount; i++ {
		d *= 2
		if max > 0 && d >= max {
			return max
		}
		if d <= 0 {
			// overflow
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

// sleepCtx sleeps for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoff implements exponential backoff with jitter. The prober uses it to
// slow down while the remote stays unreachable.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// newBackoff creates a new backoff with the given initial and max durations.
func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Next returns the current jittered delay and doubles the base for next time.
func (b *backoff) Next() time.Duration {
	// Add jitter: ±20%
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	d := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset resets the backoff to the initial duration.
func (b *backoff) Reset() {
	b.current = b.initial
}

// Current returns the current backoff duration.
func (b *backoff) Current() time.Duration {
	return b.current
}
