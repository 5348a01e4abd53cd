package role

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, clock *fakeClock, fetch FetchFunc) *AdminCache {
	t.Helper()
	c, err := NewAdminCache(CacheConfig{TTL: 10 * time.Minute, Logger: discardLogger(), Now: clock.Now}, fetch)
	if err != nil {
		t.Fatalf("NewAdminCache() error: %v", err)
	}
	return c
}

func TestNewAdminCache_RequiresFetch(t *testing.T) {
	t.Parallel()

	if _, err := NewAdminCache(CacheConfig{}, nil); !errors.Is(err, ErrNoFetcher) {
		t.Fatalf("error = %v, want ErrNoFetcher", err)
	}
}

func TestAdminCache_ConcurrentMissFetchesOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	clock := &fakeClock{now: time.Unix(0, 0)}
	cache := newTestCache(t, clock, func(context.Context, int64) ([]int64, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []int64{1, 2}, nil
	})

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := cache.IsAdmin(context.Background(), -100, 2)
			if err != nil {
				t.Errorf("IsAdmin() error: %v", err)
			}
			results[i] = ok
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	for i, ok := range results {
		if !ok {
			t.Errorf("results[%d] = false, want true", i)
		}
	}
}

func TestAdminCache_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	clock := &fakeClock{now: time.Unix(0, 0)}
	cache := newTestCache(t, clock, func(context.Context, int64) ([]int64, error) {
		calls.Add(1)
		return []int64{1}, nil
	})
	ctx := context.Background()

	if _, err := cache.Admins(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(9 * time.Minute)
	if _, err := cache.Admins(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls before TTL = %d, want 1", got)
	}

	clock.Advance(time.Minute)
	if _, err := cache.Admins(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls after TTL = %d, want 2", got)
	}
}

func TestAdminCache_FailureLeavesEntryUnset(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	clock := &fakeClock{now: time.Unix(0, 0)}
	cache := newTestCache(t, clock, func(context.Context, int64) ([]int64, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("network down")
		}
		return []int64{5}, nil
	})
	ctx := context.Background()

	ok, err := cache.IsAdmin(ctx, 9, 5)
	if err == nil || ok {
		t.Fatalf("IsAdmin() = %v, %v; want false and error", ok, err)
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d after failure, want 0", cache.Len())
	}

	ok, err = cache.IsAdmin(ctx, 9, 5)
	if err != nil || !ok {
		t.Fatalf("second IsAdmin() = %v, %v; want true", ok, err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestAdminCache_PruneAndInvalidate(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(0, 0)}
	cache := newTestCache(t, clock, func(context.Context, int64) ([]int64, error) {
		return nil, nil
	})
	ctx := context.Background()

	_, _ = cache.Admins(ctx, 1)
	clock.Advance(5 * time.Minute)
	_, _ = cache.Admins(ctx, 2)
	clock.Advance(6 * time.Minute)

	if n := cache.Prune(); n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}

	cache.Invalidate(2)
	if cache.Len() != 0 {
		t.Errorf("Len() after Invalidate = %d, want 0", cache.Len())
	}
}
