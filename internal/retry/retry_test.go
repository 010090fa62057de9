package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestDo_FirstTrySuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_Exhaustion(t *testing.T) {
	cause := errors.New("persistent error")
	attempts := 0

	err := Do(context.Background(), fastPolicy(3), func() error {
		attempts++
		return cause
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", attempts)
	}
	if !errors.Is(err, cause) {
		t.Errorf("last error not preserved: %v", err)
	}
}

func TestDo_DefaultRetriesAllErrors(t *testing.T) {
	attempts := 0
	_ = Do(context.Background(), fastPolicy(3), func() error {
		attempts++
		return errors.New("unmarked error")
	})
	if attempts != 3 {
		t.Errorf("nil RetryIf should retry all errors, got %d attempts", attempts)
	}
}

func TestDo_RetryIfGate(t *testing.T) {
	policy := fastPolicy(3)
	policy.RetryIf = IsRetryable

	attempts := 0
	cause := errors.New("fatal")
	err := Do(context.Background(), policy, func() error {
		attempts++
		return cause
	})

	if attempts != 1 {
		t.Errorf("non-retryable error should stop immediately, got %d attempts", attempts)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error should be returned verbatim, got %v", err)
	}
}

func TestDo_RetryableWrapperWithGate(t *testing.T) {
	policy := fastPolicy(3)
	policy.RetryIf = IsRetryable

	attempts := 0
	err := Do(context.Background(), policy, func() error {
		attempts++
		if attempts < 2 {
			return NewRetryableError(errors.New("transient"))
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	policy := Policy{
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		BackoffFactor:  2.0,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	attempts := 0
	err := Do(ctx, policy, func() error {
		attempts++
		return errors.New("keep trying")
	})

	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if attempts > 2 {
		t.Errorf("cancellation should stop retries early, got %d attempts", attempts)
	}
}

func TestDoValue(t *testing.T) {
	attempts := 0
	got, err := DoValue(context.Background(), fastPolicy(3), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("not yet")
		}
		return "result", nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != "result" {
		t.Errorf("got %q", got)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryAfterHint(t *testing.T) {
	policy := fastPolicy(2)

	start := time.Now()
	attempts := 0
	_ = Do(context.Background(), policy, func() error {
		attempts++
		return NewRetryableErrorWithDelay(errors.New("rate limited"), 30*time.Millisecond)
	})

	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("RetryAfter hint not honored, only waited %v", elapsed)
	}
}

func TestCalculateBackoff_Growth(t *testing.T) {
	policy := Policy{
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}

	if got := calculateBackoff(policy, 0); got != 1*time.Second {
		t.Errorf("attempt 0: got %v", got)
	}
	if got := calculateBackoff(policy, 1); got != 2*time.Second {
		t.Errorf("attempt 1: got %v", got)
	}
	if got := calculateBackoff(policy, 2); got != 4*time.Second {
		t.Errorf("attempt 2: got %v", got)
	}
	if got := calculateBackoff(policy, 10); got != 30*time.Second {
		t.Errorf("cap not applied: got %v", got)
	}
}

func TestCalculateBackoff_JitterBounds(t *testing.T) {
	policy := Policy{
		InitialBackoff: 100 * time.Millisecond,
		BackoffFactor:  2.0,
		Jitter:         true,
	}

	for i := 0; i < 50; i++ {
		got := calculateBackoff(policy, 0)
		if got < 100*time.Millisecond || got > 125*time.Millisecond {
			t.Fatalf("jitter out of 0-25%% bounds: %v", got)
		}
	}
}
