package antispam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
	"golang.org/x/sync/singleflight"
)

const (
	defaultLookupTimeout = 5 * time.Second
	defaultResultTTL     = 10 * time.Minute
	resultCacheSize      = 4096
	maxBanBodyBytes      = 64 << 10
)

// ErrUnauthorized is returned when the ban list rejects the token.
var ErrUnauthorized = errors.New("antispam: spamwatch token rejected")

// Ban is a SpamWatch ban record.
type Ban struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
	Date   int64  `json:"date"`
	Admin  int    `json:"admin"`
}

// SpamWatchConfig configures a SpamWatch client.
type SpamWatchConfig struct {
	BaseURL string
	Token   string
	// ResultTTL is how long a lookup result is reused. Defaults to 10m.
	ResultTTL time.Duration
	HTTP      *http.Client
	Now       func() time.Time
}

// SpamWatch looks users up in a SpamWatch-compatible ban list.
// Concurrent lookups of the same user share one request and results are
// remembered for ResultTTL.
type SpamWatch struct {
	baseURL string
	token   string
	http    *http.Client
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group

	mu    sync.Mutex
	cache *simplelru.LRU
}

type cachedResult struct {
	ban     *Ban
	expires time.Time
}

// NewSpamWatch creates a SpamWatch client.
func NewSpamWatch(cfg SpamWatchConfig) (*SpamWatch, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("antispam: spamwatch base url is required")
	}
	lru, err := simplelru.NewLRU(resultCacheSize, nil)
	if err != nil {
		return nil, fmt.Errorf("antispam: result cache: %w", err)
	}
	sw := &SpamWatch{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    cfg.HTTP,
		ttl:     cfg.ResultTTL,
		now:     cfg.Now,
		cache:   lru,
	}
	if sw.http == nil {
		sw.http = &http.Client{Timeout: defaultLookupTimeout}
	}
	if sw.ttl <= 0 {
		sw.ttl = defaultResultTTL
	}
	if sw.now == nil {
		sw.now = time.Now
	}
	return sw, nil
}

// Lookup returns the ban of userID, or nil when the user is not listed.
func (s *SpamWatch) Lookup(ctx context.Context, userID int64) (*Ban, error) {
	if ban, ok := s.cached(userID); ok {
		return ban, nil
	}

	key := strconv.FormatInt(userID, 10)
	v, err, _ := s.group.Do(key, func() (any, error) {
		ban, err := s.fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		s.store(userID, ban)
		return ban, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Ban), nil
}

func (s *SpamWatch) cached(userID int64) (*Ban, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(userID)
	if !ok {
		return nil, false
	}
	res := v.(cachedResult)
	if !s.now().Before(res.expires) {
		s.cache.Remove(userID)
		return nil, false
	}
	return res.ban, true
}

func (s *SpamWatch) store(userID int64, ban *Ban) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(userID, cachedResult{ban: ban, expires: s.now().Add(s.ttl)})
}

func (s *SpamWatch) fetch(ctx context.Context, key string) (*Ban, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/banlist/"+key, nil)
	if err != nil {
		return nil, fmt.Errorf("antispam: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("antispam: spamwatch request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var ban Ban
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBanBodyBytes)).Decode(&ban); err != nil {
			return nil, fmt.Errorf("antispam: decode ban: %w", err)
		}
		return &ban, nil
	case http.StatusNotFound:
		return nil, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("antispam: spamwatch returned %d", resp.StatusCode)
	}
}
