package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func serializationFailure() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
}

func TestWithRetryRecoversFromSerializationFailure(t *testing.T) {
	calls := 0
	err := withRetry(func() error {
		calls++
		if calls < 3 {
			return serializationFailure()
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := withRetry(func() error {
		calls++
		return serializationFailure()
	})
	require.Error(t, err)
	require.Equal(t, maxTxAttempts, calls)
	require.True(t, retryable(err))
}

func TestWithRetryDoesNotRetryBusinessErrors(t *testing.T) {
	sentinel := errors.New("period locked")
	calls := 0
	err := withRetry(func() error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, calls)
}

func TestRetryableMatchesWrappedDeadlock(t *testing.T) {
	wrapped := fmt.Errorf("append item 1: %w", &pgconn.PgError{Code: "40P01"})
	require.True(t, retryable(wrapped))
	require.False(t, retryable(&pgconn.PgError{Code: "23505"}))
	require.False(t, retryable(errors.New("plain")))
}
