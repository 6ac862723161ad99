package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryPolicyStopsOnSuccess(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestRetryPolicyExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	boom := errors.New("still down")

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls)
}

func TestRetryPolicyHonoursPredicate(t *testing.T) {
	permanent := errors.New("rejected")
	policy := RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		Retryable:      func(err error) bool { return !errors.Is(err, permanent) },
	}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, calls)
}

func TestRetryPolicyStopsOnCancelledContext(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, InitialBackoff: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := policy.Do(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.LessOrEqual(t, calls, 2)
}

func TestDefaultRetryPolicyShape(t *testing.T) {
	policy := DefaultRetryPolicy(nil)
	require.Equal(t, 3, policy.MaxAttempts)
	require.Equal(t, time.Second, policy.InitialBackoff)
}
