package services

import (
	"context"
	"time"
)

// Sleeper waits for d or until ctx is done. Retry loops take one so tests can
// skip real delays.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
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
