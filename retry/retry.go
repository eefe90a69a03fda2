// Package retry provides a generic retry helper with back-off and jitter.
// The repository uses it around every remote attempt; the lookup client
// uses it around gRPC invocations.
package retry

import (
	"context"
	"slices"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Config controls the retry behaviour of [Do].
type Config struct {
	// MaxAttempts is the maximum number of times fn is called (including the
	// first attempt). Values ≤ 1 mean no retries.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Subsequent retries use
	// exponential back-off: BaseDelay * 2^attempt. Setting MaxDelay equal to
	// BaseDelay gives a fixed interval.
	BaseDelay time.Duration

	// MaxDelay caps the computed back-off delay.
	MaxDelay time.Duration

	// Jitter adds randomness to the delay. A value of 0.2 means ±20 % of
	// the computed delay. Zero disables jitter.
	Jitter float64

	// Retryable decides whether an error is worth another attempt. When nil,
	// an error is retried only if it carries a gRPC status code listed in
	// RetryCodes.
	Retryable func(error) bool

	// RetryCodes lists the gRPC status codes that are considered retryable
	// when Retryable is nil.
	RetryCodes []codes.Code

	// OnRetry, if set, is called before waiting for the next attempt.
	// attempt is 1 for the first retry.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Fixed returns a Config that retries up to retries times, waiting delay
// between attempts.
func Fixed(retries int, delay time.Duration, retryable func(error) bool) Config {
	return Config{
		MaxAttempts: retries + 1,
		BaseDelay:   delay,
		MaxDelay:    delay,
		Retryable:   retryable,
	}
}

func (c Config) retryable(err error) bool {
	if c.Retryable != nil {
		return c.Retryable(err)
	}
	st, ok := status.FromError(err)
	return ok && slices.Contains(c.RetryCodes, st.Code())
}

// Do calls fn up to cfg.MaxAttempts times, retrying while the error is
// retryable. Between attempts a back-off delay (with optional jitter) is
// applied.
//
// The context is checked during every wait; if ctx is done the function
// returns immediately with the context error.
func Do[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(cfg.MaxAttempts, 1)

	for i := range attempts {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		// Last attempt, or not worth another one.
		if i == attempts-1 || !cfg.retryable(err) {
			return zero, err
		}

		delay := backoff(cfg, i)
		if cfg.OnRetry != nil {
			cfg.OnRetry(i+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	// Unreachable, but keeps the compiler happy.
	return zero, nil
}
