package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableTxError(t *testing.T) {
	require.True(t, IsRetryableTxError(&pgconn.PgError{Code: "40001"}))
	require.True(t, IsRetryableTxError(&pgconn.PgError{Code: "40P01"}))
	require.True(t, IsRetryableTxError(fmt.Errorf("db: commit tx: %w", &pgconn.PgError{Code: "40001"})))

	require.False(t, IsRetryableTxError(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsRetryableTxError(errors.New("connection refused")))
	require.False(t, IsRetryableTxError(nil))
}
