package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Rate limit kinds.
const (
	// KindCommand throttles bot commands per sending user.
	KindCommand = "command"
	// KindAuth throttles gateway authentication attempts per remote address.
	KindAuth = "auth"
)

// RateLimitConfig holds configurable rate limits.
type RateLimitConfig struct {
	CommandsPerMin int `yaml:"commands_per_min"`
	AuthPerMin     int `yaml:"auth_per_min"`
}

func rateLimitConfigDefaults() RateLimitConfig {
	return RateLimitConfig{
		CommandsPerMin: 30,
		AuthPerMin:     20,
	}
}

// RateLimiter implements sliding window rate limiting keyed by kind and
// caller (user id, remote address). Each window tracks timestamps of
// recent events.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]limit
	windows map[windowKey]*window
	now     func() time.Time
	sweeps  int
}

type limit struct {
	span time.Duration
	max  int
}

type windowKey struct {
	kind string
	key  string
}

type window struct {
	events []time.Time
}

// NewRateLimiter creates a rate limiter with the given config.
// Zero-value fields in cfg are replaced with defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := rateLimitConfigDefaults()
	if cfg.CommandsPerMin <= 0 {
		cfg.CommandsPerMin = defaults.CommandsPerMin
	}
	if cfg.AuthPerMin <= 0 {
		cfg.AuthPerMin = defaults.AuthPerMin
	}

	return &RateLimiter{
		now: time.Now,
		limits: map[string]limit{
			KindCommand: {span: time.Minute, max: cfg.CommandsPerMin},
			KindAuth:    {span: time.Minute, max: cfg.AuthPerMin},
		},
		windows: make(map[windowKey]*window),
	}
}

// Allow records an event of the given kind for key.
// Returns nil if allowed, ErrRateLimited if the limit is exceeded.
// Unknown kinds are never limited. A nil limiter allows everything.
func (rl *RateLimiter) Allow(kind, key string) error {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.limits[kind]
	if !ok {
		return nil
	}

	now := rl.now()
	rl.maybeSweep(now)

	wk := windowKey{kind: kind, key: key}
	w, ok := rl.windows[wk]
	if !ok {
		w = &window{}
		rl.windows[wk] = w
	}
	w.evict(now.Add(-lim.span))

	if len(w.events) >= lim.max {
		return ErrRateLimited
	}
	w.events = append(w.events, now)
	return nil
}

// Len returns the number of tracked (kind, key) windows.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// maybeSweep drops idle windows every 256 calls so one-off callers do
// not accumulate. Caller must hold rl.mu.
func (rl *RateLimiter) maybeSweep(now time.Time) {
	rl.sweeps++
	if rl.sweeps%256 != 0 {
		return
	}
	for wk, w := range rl.windows {
		w.evict(now.Add(-rl.limits[wk.kind].span))
		if len(w.events) == 0 {
			delete(rl.windows, wk)
		}
	}
}

// evict removes events before cutoff. Events are chronologically ordered.
func (w *window) evict(cutoff time.Time) {
	i := 0
	for i < len(w.events) && w.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.events = w.events[i:]
	}
}
