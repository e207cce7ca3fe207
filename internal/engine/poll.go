package engine

import (
	"context"
	"time"
)

// rounds is how many polling rounds fit in duration, truncated.
func rounds(duration, interval time.Duration) int {
	if interval <= 0 || duration <= 0 {
		return 0
	}
	return int(duration / interval)
}

// step is one polling round. done stops the loop with verdict.
type step func(ctx context.Context) (verdict, done bool)

// poll runs fn up to n times with interval between rounds but not after the
// last one. done is false when the budget ran out without a verdict; err is
// set only when ctx ended while sleeping.
func poll(ctx context.Context, interval time.Duration, n int, fn step) (verdict, done bool, err error) {
	for round := 0; round < n; round++ {
		if v, d := fn(ctx); d {
			return v, true, nil
		}
		if round == n-1 {
			break
		}
		if err := sleep(ctx, interval); err != nil {
			return false, false, err
		}
	}
	return false, false, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
