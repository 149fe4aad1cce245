package repository

import (
	"context"
	"errors"
	"time"

	"github.com/neighborfix/maintenance-service/pkg/util/errorutil"
)

// RetryPolicy bounds how often a conflicting unit of work is rerun.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// OnRetry is invoked before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error)
	// OnExhausted is invoked once when the budget is spent.
	OnExhausted func(attempts int, err error)
}

// DefaultRetryPolicy mirrors the service defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 8,
		BaseDelay:   25 * time.Millisecond,
		MaxDelay:    800 * time.Millisecond,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Retry runs attempt until it succeeds, fails with an error other than
// ErrWriteConflict, or the policy is exhausted. Exhaustion yields a
// TransientConflict domain error.
func Retry(ctx context.Context, policy RetryPolicy, attempt func(ctx context.Context) error) error {
	policy = policy.normalized()
	delay := policy.BaseDelay

	var lastErr error
	for i := 1; i <= policy.MaxAttempts; i++ {
		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrWriteConflict) {
			return lastErr
		}
		if i == policy.MaxAttempts {
			break
		}
		if policy.OnRetry != nil {
			policy.OnRetry(i, lastErr)
		}
		if err := sleepWithContext(ctx, delay); err != nil {
			return err
		}
		delay *= 2
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	if policy.OnExhausted != nil {
		policy.OnExhausted(policy.MaxAttempts, lastErr)
	}
	return errorutil.NewTransientConflict(policy.MaxAttempts, lastErr)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
