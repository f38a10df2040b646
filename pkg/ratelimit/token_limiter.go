package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenLimiter enforces a token budget per rolling minute. Unlike a request
// limiter, each call consumes a variable number of tokens.
type TokenLimiter struct {
	mu            sync.Mutex
	maxPerMinute  int
	consumed      int
	windowStarted time.Time
	now           func() time.Time
}

// NewTokenLimiter creates a limiter allowing maxPerMinute tokens per minute.
func NewTokenLimiter(maxPerMinute int) *TokenLimiter {
	return &TokenLimiter{
		maxPerMinute:  maxPerMinute,
		windowStarted: time.Now(),
		now:           time.Now,
	}
}

// GetRemaining returns the tokens still available in the current window.
func (l *TokenLimiter) GetRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfExpired()
	return l.maxPerMinute - l.consumed
}

// Wait blocks until n tokens are available or the context is cancelled.
func (l *TokenLimiter) Wait(ctx context.Context, n int) error {
	for {
		l.mu.Lock()
		l.resetIfExpired()
		if l.consumed+n <= l.maxPerMinute {
			l.consumed += n
			l.mu.Unlock()
			return nil
		}
		wait := time.Minute - l.now().Sub(l.windowStarted)
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *TokenLimiter) resetIfExpired() {
	if l.now().Sub(l.windowStarted) >= time.Minute {
		l.consumed = 0
		l.windowStarted = l.now()
	}
}
