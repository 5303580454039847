// Package retry runs operations with bounded exponential backoff.
package retry

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// Config bounds a retry loop. MaxRetries counts retries after the first
// attempt, so MaxRetries = 1 means at most two attempts.
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig returns three retries starting at 200ms, doubling, capped at 5s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// Delay returns the wait before retry number n (zero-based).
func (c Config) Delay(n int) time.Duration {
	multiple := c.BackoffMultiple
	if multiple < 1 {
		multiple = 1
	}
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(multiple, float64(n)))
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Retryable reports whether err warrants another attempt.
type Retryable func(err error) bool

// Always retries every non-nil error.
func Always(err error) bool { return err != nil }

// Options configures Do. Logger and Name are optional.
type Options struct {
	Config    Config
	Retryable Retryable
	Logger    *slog.Logger
	Name      string
}

// Do calls fn until it succeeds, returns a non-retryable error, or the retry
// budget is spent. The last error is returned on exhaustion. Waits between
// attempts observe ctx.
func Do[T any](ctx context.Context, opts Options, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	check := opts.Retryable
	if check == nil {
		check = Always
	}

	var lastErr error
	for attempt := 0; attempt <= opts.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := opts.Config.Delay(attempt - 1)
			if opts.Logger != nil {
				opts.Logger.Warn("retrying",
					"operation", opts.Name,
					"attempt", attempt+1,
					"max_attempts", opts.Config.MaxRetries+1,
					"delay", delay,
					"error", lastErr,
				)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !check(err) {
			return zero, err
		}
	}

	return zero, lastErr
}
