package search

import (
	"context"
	"math"
	"time"
)

// backoffFor computes the exponential delay before the next phase after a
// rate-limit response: initial * 2^attempt, capped.
func backoffFor(initial, max time.Duration, attempt int) time.Duration {
	d := float64(initial) * math.Pow(2, float64(attempt))
	if d > float64(max) {
		return max
	}
	return time.Duration(d)
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
