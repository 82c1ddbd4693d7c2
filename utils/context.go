package utils

import (
	"context"
	"time"
)

// ContextSleep waits for d, returning nil if ctx is done first.
func ContextSleep(ctx context.Context, d time.Duration) *time.Time {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil
	case t := <-timer.C:
		return &t
	}
}
