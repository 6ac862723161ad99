package shared

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds retries of a remote call classified as transient.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	// Retryable reports whether the error warrants another attempt.
	// A nil predicate retries every error.
	Retryable func(error) bool
}

// DefaultRetryPolicy mirrors the bounded login retry used against the
// hosted store: three attempts, exponential backoff starting at one second.
func DefaultRetryPolicy(retryable func(error) bool) RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Second, Retryable: retryable}
}

// Do runs op until it succeeds, the attempts are exhausted, the error is not
// retryable, or the context is cancelled. The backoff doubles between attempts.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := p.InitialBackoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
