package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenLimiter_WaitWithinBudget(t *testing.T) {
	l := NewTokenLimiter(100)

	require.NoError(t, l.Wait(context.Background(), 40))
	require.NoError(t, l.Wait(context.Background(), 60))
	assert.Equal(t, 0, l.GetRemaining())
}

func TestTokenLimiter_BlocksWhenExhausted(t *testing.T) {
	l := NewTokenLimiter(10)
	require.NoError(t, l.Wait(context.Background(), 10))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenLimiter_WindowReset(t *testing.T) {
	l := NewTokenLimiter(10)
	current := time.Now()
	l.now = func() time.Time { return current }
	l.windowStarted = current

	require.NoError(t, l.Wait(context.Background(), 10))
	assert.Equal(t, 0, l.GetRemaining())

	current = current.Add(61 * time.Second)
	assert.Equal(t, 10, l.GetRemaining())
	require.NoError(t, l.Wait(context.Background(), 5))
}
