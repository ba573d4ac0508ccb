package httpx

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy is the shared backoff schedule for remote calls that may fail
// transiently (embedding, chat completion, vector index). MaxAttempts counts
// the first attempt: MaxAttempts=1 means no retries.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Retryable   func(error) bool

	// sleep is swappable so tests do not wait out real backoff.
	sleep func(time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  10 * time.Second,
		Retryable:   IsRetryableError,
	}
}

// WithSleep returns a copy of the policy using fn instead of time.Sleep.
func (p RetryPolicy) WithSleep(fn func(time.Duration)) RetryPolicy {
	p.sleep = fn
	return p
}

// Do runs fn until it succeeds, fails permanently, or attempts are exhausted.
// The last error is returned as-is so callers can classify it. Backoff sleeps
// are cut short when ctx is done.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryableError
	}
	backoff := p.BaseBackoff
	if backoff <= 0 {
		backoff = 1 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == attempts {
			return lastErr
		}

		sleepFor := JitterSleep(backoff)
		var hinter RetryAfterHinter
		if errors.As(lastErr, &hinter) {
			if hint := hinter.RetryAfterHint(); hint > sleepFor {
				sleepFor = hint
			}
		}
		if p.MaxBackoff > 0 && sleepFor > p.MaxBackoff {
			sleepFor = p.MaxBackoff
		}
		if p.sleep != nil {
			p.sleep(sleepFor)
		} else if !sleepCtx(ctx, sleepFor) {
			return ctx.Err()
		}
		backoff *= 2
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
