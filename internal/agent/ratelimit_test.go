package agent

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 2, time.Minute)
	if !rl.Allow("u1") || !rl.Allow("u1") {
		t.Fatal("expected the first two requests to pass")
	}
	if rl.Allow("u1") {
		t.Fatal("expected the third request to be limited")
	}
	if !rl.Allow("u2") {
		t.Fatal("limits must be per key")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 1, 20*time.Millisecond)
	if !rl.Allow("u1") {
		t.Fatal("expected first request to pass")
	}
	if rl.Allow("u1") {
		t.Fatal("expected second request to be limited")
	}
	time.Sleep(30 * time.Millisecond)
	if !rl.Allow("u1") {
		t.Fatal("expected request to pass after the window")
	}
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 5, 10*time.Millisecond)
	rl.Allow("u1")
	rl.Allow("u2")

	deadline := time.Now().Add(time.Second)
	for rl.keys() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected idle keys to be evicted, %d remain", rl.keys())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
