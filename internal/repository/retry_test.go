package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/neighborfix/maintenance-service/pkg/util/errorutil"
)

func TestRetry(t *testing.T) {
	t.Run("succeeds after conflicts", func(t *testing.T) {
		var retries []int
		policy := RetryPolicy{MaxAttempts: 5, OnRetry: func(attempt int, _ error) { retries = append(retries, attempt) }}
		calls := 0
		err := Retry(context.Background(), policy, func(context.Context) error {
			calls++
			if calls < 3 {
				return fmt.Errorf("%w: serialization failure", ErrWriteConflict)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 || len(retries) != 2 {
			t.Fatalf("expected 3 calls and 2 retries, got %d and %v", calls, retries)
		}
	})

	t.Run("domain errors are not retried", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), RetryPolicy{MaxAttempts: 5}, func(context.Context) error {
			calls++
			return errorutil.NewInsufficientFunds("short", nil)
		})
		if !errors.Is(err, errorutil.ErrInsufficientFunds) {
			t.Fatalf("expected insufficient funds, got %v", err)
		}
		if calls != 1 {
			t.Fatalf("expected a single call, got %d", calls)
		}
	})

	t.Run("exhaustion yields transient conflict", func(t *testing.T) {
		exhausted := 0
		policy := RetryPolicy{MaxAttempts: 3, OnExhausted: func(int, error) { exhausted++ }}
		err := Retry(context.Background(), policy, func(context.Context) error {
			return ErrWriteConflict
		})
		if !errors.Is(err, errorutil.ErrTransientConflict) {
			t.Fatalf("expected transient conflict, got %v", err)
		}
		if !errors.Is(err, ErrWriteConflict) {
			t.Fatalf("expected cause to be preserved, got %v", err)
		}
		if exhausted != 1 {
			t.Fatalf("expected exhaustion hook once, got %d", exhausted)
		}
	})

	t.Run("context cancellation stops backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Second}
		err := Retry(ctx, policy, func(context.Context) error { return ErrWriteConflict })
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestMapPgErrorPassesThroughPlainErrors(t *testing.T) {
	plain := errors.New("boom")
	if got := mapPgError(plain); got != plain {
		t.Fatalf("expected plain error unchanged, got %v", got)
	}
	if mapPgError(nil) != nil {
		t.Fatal("expected nil")
	}
}
