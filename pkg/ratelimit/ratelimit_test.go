package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_NoBlockWhenZeroRPS(t *testing.T) {
	limiter := NewLimiter(0, 0.5)

	start := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("limiter with 0 RPS should not block")
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(10, 0) // 100ms interval
	defer limiter.Stop()

	ctx := context.Background()

	// The first tick arrives one interval after creation
	_ = limiter.Wait(ctx)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	duration := time.Since(start)
	if duration < 50*time.Millisecond || duration > 150*time.Millisecond {
		t.Errorf("expected wait around 100ms, took %v", duration)
	}
}

func TestLimiter_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(1, 0)
	defer limiter.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatalf("expected context canceled error")
	}
}

func TestLimiter_Jitter(t *testing.T) {
	limiter := NewLimiter(10, 0.5) // 100ms +/- 50ms
	defer limiter.Stop()

	ctx := context.Background()
	_ = limiter.Wait(ctx)

	start := time.Now()
	_ = limiter.Wait(ctx)

	duration := time.Since(start)
	if duration < 50*time.Millisecond || duration > 300*time.Millisecond {
		t.Errorf("expected jittered wait to be roughly between 100ms and 150ms, took %v", duration)
	}
}

func TestLimiter_Pause(t *testing.T) {
	limiter := NewLimiter(0, 0)

	limiter.Pause(time.Now().Add(80 * time.Millisecond))
	// an earlier deadline does not shorten the pause
	limiter.Pause(time.Now().Add(10 * time.Millisecond))

	start := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := time.Since(start); d < 60*time.Millisecond {
		t.Errorf("expected Wait to honor pause, returned after %v", d)
	}

	// once the pause has passed, Wait is immediate again
	start = time.Now()
	_ = limiter.Wait(context.Background())
	if d := time.Since(start); d > 20*time.Millisecond {
		t.Errorf("expected no wait after pause expired, took %v", d)
	}
}

func TestLimiter_PauseRespectsContext(t *testing.T) {
	limiter := NewLimiter(0, 0)
	limiter.Pause(time.Now().Add(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("expected deadline error while paused")
	}
}

func TestPerMinute(t *testing.T) {
	if got := PerMinute(60); got != 1 {
		t.Errorf("PerMinute(60) = %v, want 1", got)
	}
}
