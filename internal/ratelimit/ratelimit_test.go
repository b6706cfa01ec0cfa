package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireAllowsUpToMax(t *testing.T) {
	l := New(3, time.Minute)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
}

func TestAcquireBlocksOverMax(t *testing.T) {
	l := New(2, 50*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Acquire(context.Background()))

	err := l.Acquire(ctx)
	require.Error(t, err)
}

func TestAcquireUnblocksAfterWindow(t *testing.T) {
	l := New(1, 20*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))

	ctx2, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Acquire(ctx2))
}
