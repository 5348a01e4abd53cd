package role

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"

	"github.com/flemzord/gatekeep/internal/metrics"
)

const (
	// DefaultAdminTTL is how long a chat's administrator list stays fresh.
	DefaultAdminTTL = 10 * time.Minute
	// DefaultAdminCacheSize bounds how many chats are remembered.
	DefaultAdminCacheSize = 512
)

// ErrNoFetcher is returned by NewAdminCache when no fetch function is given.
var ErrNoFetcher = errors.New("role: admin cache requires a fetch function")

// FetchFunc returns the ids of all administrators of a chat.
type FetchFunc func(ctx context.Context, chatID int64) ([]int64, error)

// CacheConfig configures an AdminCache.
type CacheConfig struct {
	TTL    time.Duration
	Size   int
	Logger *slog.Logger
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

type cacheEntry struct {
	admins    map[int64]struct{}
	expiresAt time.Time
}

// AdminCache memoizes administrator lists per chat.
//
// A single mutex guards the whole cache and is held across the refresh
// call, so concurrent lookups for a missing chat issue exactly one fetch.
// Lookups for other chats wait for that fetch to finish.
type AdminCache struct {
	mu     sync.Mutex
	lru    *simplelru.LRU
	ttl    time.Duration
	fetch  FetchFunc
	now    func() time.Time
	logger *slog.Logger
}

// NewAdminCache creates an AdminCache backed by fetch.
func NewAdminCache(cfg CacheConfig, fetch FetchFunc) (*AdminCache, error) {
	if fetch == nil {
		return nil, ErrNoFetcher
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultAdminTTL
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultAdminCacheSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	lru, err := simplelru.NewLRU(cfg.Size, nil)
	if err != nil {
		return nil, fmt.Errorf("role: create admin cache: %w", err)
	}
	return &AdminCache{
		lru:    lru,
		ttl:    cfg.TTL,
		fetch:  fetch,
		now:    cfg.Now,
		logger: cfg.Logger,
	}, nil
}

// Admins returns the administrator set of chatID, refreshing it when absent
// or expired. The returned map must not be modified.
//
// On fetch failure the cache is left without an entry for the chat and the
// error is returned; the next call tries again.
func (c *AdminCache) Admins(ctx context.Context, chatID int64) (map[int64]struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if v, ok := c.lru.Get(chatID); ok {
		e := v.(cacheEntry)
		if now.Before(e.expiresAt) {
			return e.admins, nil
		}
		c.lru.Remove(chatID)
	}

	ids, err := c.fetch(ctx, chatID)
	if err != nil {
		metrics.AdminCacheFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("role: fetch admins of %d: %w", chatID, err)
	}
	metrics.AdminCacheFetches.WithLabelValues("ok").Inc()

	admins := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		admins[id] = struct{}{}
	}
	// Overwrites whatever is stored: the fetched list is authoritative.
	c.lru.Add(chatID, cacheEntry{admins: admins, expiresAt: now.Add(c.ttl)})
	c.logger.Debug("role: admin list refreshed", "chat_id", chatID, "admins", len(admins))
	return admins, nil
}

// IsAdmin reports whether userID is in the administrator set of chatID.
func (c *AdminCache) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	admins, err := c.Admins(ctx, chatID)
	if err != nil {
		return false, err
	}
	_, ok := admins[userID]
	return ok, nil
}

// Invalidate drops the cached list of chatID.
func (c *AdminCache) Invalidate(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(chatID)
}

// Prune removes expired entries and returns how many were dropped.
func (c *AdminCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, k := range c.lru.Keys() {
		v, ok := c.lru.Peek(k)
		if !ok {
			continue
		}
		if !now.Before(v.(cacheEntry).expiresAt) {
			c.lru.Remove(k)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached chats, fresh or not.
func (c *AdminCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
