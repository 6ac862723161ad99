package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filmledger/filmledger/internal/shared"
)

// PostgreSQL retryable-transaction SQLSTATEs.
const (
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
)

// IsRetryableTxError reports whether the transaction failed in a way that a
// clean re-run can resolve: a serialization failure or a deadlock abort under
// repeatable read.
func IsRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlstateSerializationFailure || pgErr.Code == sqlstateDeadlockDetected
}

var txRetry = shared.RetryPolicy{
	MaxAttempts:    3,
	InitialBackoff: 10 * time.Millisecond,
	Retryable:      IsRetryableTxError,
}

// WithTx runs fn inside a repeatable-read transaction. Serialization failures
// and deadlock aborts are re-run from the top with a short backoff, so fn must
// be safe to execute more than once.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return txRetry.Do(ctx, func(ctx context.Context) error {
		return runTx(ctx, pool, fn)
	})
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db: commit tx: %w", err)
	}

	return nil
}
