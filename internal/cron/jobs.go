package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StaleExpirer expires waitlist entries older than a cutoff through the
// normal expiry path and reports how many it handled.
type StaleExpirer interface {
	ExpireStale(ctx context.Context, olderThan time.Duration) int
}

// WaitlistReaperJob expires verification challenges whose one-shot timer
// was lost. Entries younger than MaxAge are left to their own timers.
type WaitlistReaperJob struct {
	Expirer      StaleExpirer
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "* * * * *"
}

// Compile-time interface check.
var _ Job = (*WaitlistReaperJob)(nil)

// Name implements Job.
func (j *WaitlistReaperJob) Name() string { return "waitlist_reaper" }

// Schedule implements Job.
func (j *WaitlistReaperJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "* * * * *"
}

// Run expires entries older than MaxAge.
func (j *WaitlistReaperJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: waitlist reaper cancelled: %w", ctx.Err())
	}
	if n := j.Expirer.ExpireStale(ctx, j.MaxAge); n > 0 {
		j.Logger.Warn("cron: expired stale verification challenges", "count", n)
	}
	return nil
}

// Pruner drops expired cache entries.
type Pruner interface {
	Prune() int
}

// AdminCachePruneJob evicts expired administrator lists so chats the bot
// no longer hears from do not hold memory until LRU eviction.
type AdminCachePruneJob struct {
	Cache        Pruner
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/10 * * * *"
}

// Compile-time interface check.
var _ Job = (*AdminCachePruneJob)(nil)

// Name implements Job.
func (j *AdminCachePruneJob) Name() string { return "admin_cache_prune" }

// Schedule implements Job.
func (j *AdminCachePruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/10 * * * *"
}

// Run prunes the cache.
func (j *AdminCachePruneJob) Run(_ context.Context) error {
	if n := j.Cache.Prune(); n > 0 {
		j.Logger.Debug("cron: pruned admin cache", "count", n)
	}
	return nil
}
