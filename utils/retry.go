package utils

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/omni/points-indexer/logging"
)

var ErrRetriesExhausted = errors.New("retries exhausted")

type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Jitter spreads every delay over [1-Jitter/2, 1+Jitter/2] of its value.
	Jitter float64
}

// Backoff returns the delay before the given attempt (starting from 1):
// BaseDelay doubled on every failed attempt, jittered and capped by MaxDelay.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	delay := c.BaseDelay
	for i := 1; i < attempt && (c.MaxDelay <= 0 || delay < c.MaxDelay); i++ {
		delay *= 2
	}
	if c.Jitter > 0 {
		delay = time.Duration(float64(delay) * (1 - c.Jitter/2 + rand.Float64()*c.Jitter))
	}
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

// Retry calls fn until it succeeds, the attempts are exhausted or ctx is done.
// Exhaustion wraps both ErrRetriesExhausted and the last error.
func Retry(ctx context.Context, cfg RetryConfig, logger logging.Logger, operation string, fn func(ctx context.Context) error) error {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s interrupted: %w", operation, ctx.Err())
		}
		if attempt == attempts {
			break
		}
		delay := cfg.Backoff(attempt)
		logger.WithError(err).WithFields(logrus.Fields{
			"operation": operation,
			"attempt":   attempt,
			"attempts":  attempts,
			"retry_in":  delay,
		}).Warn("operation failed, retrying")
		if ContextSleep(ctx, delay) == nil {
			return fmt.Errorf("%s interrupted: %w", operation, ctx.Err())
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, errors.Join(ErrRetriesExhausted, err))
}
