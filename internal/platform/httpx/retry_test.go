package httpx

import (
	"context"
	"errors"
	"testing"
	"time"
)

type statusErr struct {
	code       int
	retryAfter time.Duration
}

func (e *statusErr) Error() string                 { return "status error" }
func (e *statusErr) HTTPStatusCode() int           { return e.code }
func (e *statusErr) RetryAfterHint() time.Duration { return e.retryAfter }

func TestRetryPolicyRetriesThenSucceeds(t *testing.T) {
	var sleeps []time.Duration
	p := RetryPolicy{
		MaxAttempts: 4,
		BaseBackoff: 100 * time.Millisecond,
	}.WithSleep(func(d time.Duration) { sleeps = append(sleeps, d) })

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &statusErr{code: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(sleeps) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(sleeps))
	}
}

func TestRetryPolicyStopsOnPermanentError(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 4, BaseBackoff: time.Millisecond}.
		WithSleep(func(time.Duration) {})

	calls := 0
	permanent := &statusErr{code: 401}
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("err = %v, want the permanent error", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetryPolicyExhaustsAttempts(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond}.
		WithSleep(func(time.Duration) {})

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &statusErr{code: 500}
	})
	if err == nil {
		t.Fatal("want last error after exhaustion")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryPolicyHonorsRetryAfterHint(t *testing.T) {
	var sleeps []time.Duration
	p := RetryPolicy{
		MaxAttempts: 2,
		BaseBackoff: 10 * time.Millisecond,
		MaxBackoff:  time.Minute,
	}.WithSleep(func(d time.Duration) { sleeps = append(sleeps, d) })

	calls := 0
	_ = p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &statusErr{code: 429, retryAfter: 5 * time.Second}
		}
		return nil
	})
	if len(sleeps) != 1 {
		t.Fatalf("sleeps = %d, want 1", len(sleeps))
	}
	if sleeps[0] < 5*time.Second {
		t.Fatalf("sleep = %v, want at least the Retry-After hint", sleeps[0])
	}
}

func TestRetryPolicyRespectsCanceledContext(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond}.
		WithSleep(func(time.Duration) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
}
