package worker

import (
	"context"
	"testing"
	"time"
)

// allowed reports whether key has a token available right now
func allowed(l *Limiter, key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	return l.Wait(ctx, key) == nil
}

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}

	l3 := NewLimiter(0, 1)
	if l3.defaultRate != 1 {
		t.Errorf("expected default rate 1 for zero input, got %v", l3.defaultRate)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "bluesky"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// Different key has its own bucket
	if err := limiter.Wait(ctx, "twitter"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	allowed(limiter, "twitter") // drain the only token

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, "twitter"); err == nil {
		t.Error("expected wait to fail once the context deadline cannot be met")
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "twitter"); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	if allowed(limiter, "twitter") {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}

	// Other sources are unaffected
	if !allowed(limiter, "bluesky") {
		t.Errorf("expected allow for other key")
	}
}

func TestLimiter_SetRate(t *testing.T) {
	limiter := NewLimiter(10, 10)

	limiter.SetRate("Twitter", 0.1, 1)

	if !allowed(limiter, "twitter") {
		t.Errorf("first request should pass")
	}
	if allowed(limiter, "TWITTER") {
		t.Errorf("second request should fail (keys are case-insensitive)")
	}
	if !allowed(limiter, "bluesky") {
		t.Errorf("other key should pass")
	}
}
