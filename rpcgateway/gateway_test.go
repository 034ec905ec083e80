package rpcgateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/poolsync/errs"
)

func TestRoleString(t *testing.T) {
	require.Equal(t, "archive", Archive.String())
	require.Equal(t, "full", Full.String())
}

func TestRetryRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	got, err := retry(context.Background(), "test_op", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errs.Transient("test_op", errors.New("timeout"))
		}
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, got)
	require.Equal(t, 3, calls)
}

func TestRetryDoesNotRetryBadRequest(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), "test_op", func(ctx context.Context) (int, error) {
		calls++
		return 0, errs.BadRequest("test_op", errors.New("execution reverted"))
	})
	require.Error(t, err)
	require.True(t, errs.IsBadRequest(err))
	require.Equal(t, 1, calls)
}

func TestRetryExhaustsOnPersistentTransient(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), "test_op", func(ctx context.Context) (int, error) {
		calls++
		return 0, errs.Transient("test_op", errors.New("rate limited"))
	})
	require.Error(t, err)
	require.True(t, errs.IsTransient(err))
	require.Equal(t, retryMaxTries, calls)
}

func TestEndpointForRejectsArchiveWhenUnconfigured(t *testing.T) {
	g := &Gateway{full: &endpoint{}}
	_, err := g.endpointFor(Archive)
	require.Error(t, err)
	require.True(t, errs.IsInvalidConfig(err))
}
