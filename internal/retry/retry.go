// Package retry provides a bounded exponential-backoff retry wrapper for any
// fallible operation. The same primitive serves connector invocations and
// watcher reconnects; the latter enable jitter to avoid thundering-herd.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy defines how retries are handled.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         bool
	// RetryIf gates whether a given failure is retryable. Nil treats all
	// errors as retryable.
	RetryIf func(error) bool
}

// DefaultPolicy returns the standard policy: 3 attempts, 1s/2s/4s backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}
}

// RetryableError wraps an error to indicate it should be retried, optionally
// carrying a server-provided retry delay.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%v (retry after %v)", e.Err, e.RetryAfter)
	}
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError wraps err as retryable.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// NewRetryableErrorWithDelay wraps err as retryable with an explicit delay.
func NewRetryableErrorWithDelay(err error, delay time.Duration) error {
	return &RetryableError{Err: err, RetryAfter: delay}
}

// IsRetryable checks if an error is explicitly marked retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable *RetryableError
	return errors.As(err, &retryable)
}

// Do executes fn with exponential backoff retry logic. On exhaustion the last
// error is returned wrapped with the attempt count; the cause is preserved
// for errors.Is/As.
func Do(ctx context.Context, policy Policy, fn func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	retryIf := policy.RetryIf
	if retryIf == nil {
		retryIf = func(error) bool { return true }
	}

	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !retryIf(err) {
			return err
		}

		// Don't sleep after the last attempt
		if attempt == attempts-1 {
			break
		}

		backoff := calculateBackoff(policy, attempt)

		// Honor a RetryAfter hint when present
		var retryErr *RetryableError
		if errors.As(err, &retryErr) && retryErr.RetryAfter > 0 {
			backoff = retryErr.RetryAfter
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

// DoValue executes fn with retry logic and returns its result.
func DoValue[T any](ctx context.Context, policy Policy, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, policy, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}

// calculateBackoff computes the backoff duration for a given attempt.
func calculateBackoff(policy Policy, attempt int) time.Duration {
	backoff := float64(policy.InitialBackoff) * math.Pow(policy.BackoffFactor, float64(attempt))

	if policy.MaxBackoff > 0 && backoff > float64(policy.MaxBackoff) {
		backoff = float64(policy.MaxBackoff)
	}

	duration := time.Duration(backoff)

	// 0-25% additive jitter
	if policy.Jitter {
		duration += time.Duration(rand.Float64() * 0.25 * float64(duration))
	}

	return duration
}
