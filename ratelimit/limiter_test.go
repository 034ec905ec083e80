package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterSpacesCalls(t *testing.T) {
	l := New(20 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, 15*time.Millisecond)
}

func TestLimiterDisabledWhenNonPositive(t *testing.T) {
	l := New(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterRespectsContextCancellation(t *testing.T) {
	l := New(time.Hour)
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))

	cctx, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	defer cancel()
	err := l.Acquire(cctx)
	require.Error(t, err)
}
