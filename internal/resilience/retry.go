// Package resilience retries outbound calls, such as alert webhooks, with
// capped exponential backoff.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls how often and how patiently a call is retried.
type Policy struct {
	// Attempts is the total number of tries. Values below 1 mean a single try.
	Attempts int
	// Backoff is the delay before the first retry; it doubles per retry.
	Backoff time.Duration
	// MaxBackoff caps the delay. Zero means no cap.
	MaxBackoff time.Duration
	// Jitter randomizes each delay by up to this fraction in either direction.
	Jitter float64
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out or ctx ends. It returns the last error.
func Retry(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := range attempts {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || !Retryable(err) || attempt == attempts-1 {
			return err
		}

		delay := p.delay(attempt)
		zap.L().Warn("resilience: retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.Backoff) * math.Pow(2, float64(attempt))
	if p.MaxBackoff > 0 {
		d = math.Min(d, float64(p.MaxBackoff))
	}
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(math.Max(d, 0))
}
