package security

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestRateLimiter_AllowWithinLimit(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{CommandsPerMin: 5})

	for i := range 5 {
		if err := rl.Allow(KindCommand, "42"); err != nil {
			t.Fatalf("Allow(%d) returned error: %v", i, err)
		}
	}

	if err := rl.Allow(KindCommand, "42"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{CommandsPerMin: 1})

	if err := rl.Allow(KindCommand, "1"); err != nil {
		t.Fatal(err)
	}
	if err := rl.Allow(KindCommand, "2"); err != nil {
		t.Fatalf("second user should not share the first user's window: %v", err)
	}
	if err := rl.Allow(KindAuth, "1"); err != nil {
		t.Fatalf("auth kind should not share the command window: %v", err)
	}
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{CommandsPerMin: 2})
	rl.now = func() time.Time { return now }

	_ = rl.Allow(KindCommand, "u")
	_ = rl.Allow(KindCommand, "u")

	if err := rl.Allow(KindCommand, "u"); !errors.Is(err, ErrRateLimited) {
		t.Fatal("expected rate limit")
	}

	now = now.Add(61 * time.Second)

	if err := rl.Allow(KindCommand, "u"); err != nil {
		t.Fatalf("expected allow after window, got %v", err)
	}
}

func TestRateLimiter_UnknownKindAndNil(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{})
	if err := rl.Allow("unknown_kind", "x"); err != nil {
		t.Fatalf("expected nil for unknown kind, got %v", err)
	}

	var nilLimiter *RateLimiter
	if err := nilLimiter.Allow(KindCommand, "x"); err != nil {
		t.Fatalf("nil limiter should allow, got %v", err)
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{})
	if got := rl.limits[KindCommand].max; got != 30 {
		t.Errorf("command limit = %d, want 30", got)
	}
	if got := rl.limits[KindAuth].max; got != 20 {
		t.Errorf("auth limit = %d, want 20", got)
	}
}

func TestRateLimiter_SweepDropsIdleWindows(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{})
	rl.now = func() time.Time { return now }

	for i := range 200 {
		_ = rl.Allow(KindCommand, strconv.Itoa(i))
	}
	now = now.Add(2 * time.Minute)
	for range 56 {
		_ = rl.Allow(KindCommand, "active")
	}

	if got := rl.Len(); got != 1 {
		t.Errorf("Len() = %d after sweep, want 1", got)
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{CommandsPerMin: 1000})

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rl.Allow(KindCommand, strconv.Itoa(i%10))
		}()
	}
	wg.Wait()
}
