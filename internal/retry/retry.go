// Package retry implements the generic attempt/retry harness (spec
// §4.6 C10), used by gitstore for push-conflict recovery and available
// to any other caller needing bounded retries with a fixed delay.
//
// Grounded on the teacher's backoff loop (internal/cron/retry.go), but
// generalized: the body decides retryability by returning the Retry
// sentinel, rather than the harness retrying on every error.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// retrySentinel is returned by a Body to request another attempt.
var retrySentinel = errors.New("retry: another attempt requested")

// Retry is the sentinel error a Body returns to ask for another
// attempt. The harness treats any other error as final.
func Retry() error { return retrySentinel }

// IsRetry reports whether err is the Retry sentinel.
func IsRetry(err error) bool { return errors.Is(err, retrySentinel) }

// Body performs one attempt. Return (value, nil) on success, (zero,
// Retry()) to ask for another attempt, or (zero, err) to fail for good.
type Body[T any] func(attempt int) (T, error)

// Options configures the harness.
type Options struct {
	// MaxAttempts bounds the number of calls to Body (default 5).
	MaxAttempts int
	// Delay is the constant pause between attempts (default 0).
	Delay time.Duration
	// Limiter, if non-nil, additionally paces attempts via a token
	// bucket (e.g. to avoid hammering a remote git host).
	Limiter *rate.Limiter
	// Name identifies the operation in log records.
	Name string
}

// DefaultOptions returns the harness defaults used by gitstore: up to 5
// attempts, no delay between them (spec §4.4).
func DefaultOptions(name string) Options {
	return Options{MaxAttempts: 5, Delay: 0, Name: name}
}

// WithRetry runs body up to opts.MaxAttempts times, retrying only while
// body asks to via Retry(). Each attempt/outcome produces one
// structured log record; final failure logs at error level (spec §4.4,
// §7).
func WithRetry[T any](ctx context.Context, opts Options, body Body[T]) (T, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	var zero T
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return zero, err
			}
		}

		value, err := body(attempt)
		if err == nil {
			if attempt > 1 {
				slog.Info("retry succeeded after previous failures", "name", opts.Name, "attempt", attempt, "maxAttempts", maxAttempts)
			}
			return value, nil
		}

		if !IsRetry(err) {
			slog.Error("retry: non-retriable failure", "name", opts.Name, "attempt", attempt, "maxAttempts", maxAttempts, "errorMessage", err.Error())
			return zero, err
		}

		lastErr = err
		slog.Warn("retry: attempt failed, will retry", "name", opts.Name, "attempt", attempt, "maxAttempts", maxAttempts)

		if attempt < maxAttempts && opts.Delay > 0 {
			select {
			case <-time.After(opts.Delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}

	slog.Error("retry: exhausted all attempts", "name", opts.Name, "maxAttempts", maxAttempts)
	return zero, lastErr
}
