package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func retryable(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	return ErrorClassification{Retryable: true, RecordFailure: true}
}

func permanent(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	return ErrorClassification{Retryable: false, RecordFailure: true}
}

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2.0,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	executor := NewExecutor(fastConfig())

	calls := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, retryable)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestExecuteReturnsLastErrorAfterExhaustion(t *testing.T) {
	executor := NewExecutor(fastConfig())

	calls := 0
	lastErr := errors.New("still failing")
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return lastErr
	}, retryable)

	if !errors.Is(err, lastErr) {
		t.Fatalf("expected last error returned, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected max attempts 3, got %d", calls)
	}
}

func TestExecuteDoesNotRetryPermanentErrors(t *testing.T) {
	executor := NewExecutor(fastConfig())

	calls := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("bad request")
	}, permanent)

	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("permanent error must not retry, got %d attempts", calls)
	}
}

func TestExecuteStopsOnContextCancellation(t *testing.T) {
	executor := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: 500 * time.Millisecond,
		RetryMaxBackoff:     time.Second,
		RetryMultiplier:     2.0,
		BreakerEnabled:      false,
	})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := executor.Execute(ctx, "op", func(context.Context) error {
		calls++
		return errors.New("transient")
	}, retryable)

	if err == nil {
		t.Fatalf("expected error after cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected one attempt before cancellation, got %d", calls)
	}
	if time.Since(start) > 400*time.Millisecond {
		t.Fatalf("cancellation must interrupt backoff wait")
	}
}

func TestBreakerOpensAfterFailureRatio(t *testing.T) {
	executor := NewExecutor(Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      4,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})

	for i := 0; i < 4; i++ {
		_ = executor.Execute(context.Background(), "flaky", func(context.Context) error {
			return errors.New("boom")
		}, retryable)
	}

	err := executor.Execute(context.Background(), "flaky", func(context.Context) error {
		t.Fatalf("open breaker must short-circuit the call")
		return nil
	}, retryable)

	if !IsCircuitOpen(err) {
		t.Fatalf("expected open breaker error, got %v", err)
	}
}

func TestConfigNormalizeFillsUnsetFields(t *testing.T) {
	got := Config{}.normalize()
	def := DefaultConfig()

	if got.RetryMaxAttempts != def.RetryMaxAttempts || got.RetryInitialBackoff != def.RetryInitialBackoff {
		t.Fatalf("zero config must take retry defaults, got %+v", got)
	}
	if got.BreakerMinRequests != def.BreakerMinRequests || got.BreakerFailureRatio != def.BreakerFailureRatio {
		t.Fatalf("zero config must take breaker defaults, got %+v", got)
	}

	clipped := Config{RetryInitialBackoff: time.Second, RetryMaxBackoff: 100 * time.Millisecond}.normalize()
	if clipped.RetryMaxBackoff != clipped.RetryInitialBackoff {
		t.Fatalf("max backoff must not undercut initial backoff, got %+v", clipped)
	}
}

func TestBreakersAreScopedPerOperation(t *testing.T) {
	executor := NewExecutor(Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})

	for i := 0; i < 3; i++ {
		_ = executor.Execute(context.Background(), "broken", func(context.Context) error {
			return errors.New("boom")
		}, retryable)
	}

	err := executor.Execute(context.Background(), "healthy", func(context.Context) error {
		return nil
	}, retryable)
	if err != nil {
		t.Fatalf("unrelated operation must stay closed: %v", err)
	}
}
