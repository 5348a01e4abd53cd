// Package antispam answers whether a user is globally banned, combining the
// locally recorded global bans with an optional SpamWatch lookup.
package antispam

import (
	"context"
	"log/slog"

	"github.com/flemzord/gatekeep/internal/settings"
)

// BanStore is the part of settings.Store holding local global bans.
type BanStore interface {
	GlobalBan(ctx context.Context, userID int64) (settings.GlobalBan, bool, error)
}

// Lookuper resolves a remote ban list entry.
type Lookuper interface {
	Lookup(ctx context.Context, userID int64) (*Ban, error)
}

// Checker combines the local ban list with a remote one.
type Checker struct {
	store  BanStore
	remote Lookuper
	logger *slog.Logger
}

// NewChecker creates a Checker. remote may be nil to disable the remote
// lookup.
func NewChecker(store BanStore, remote Lookuper, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{store: store, remote: remote, logger: logger}
}

// IsGloballyBanned reports whether userID is banned locally or by the
// remote list. Lookup failures are logged and treated as not banned so an
// outage never blocks joins.
func (c *Checker) IsGloballyBanned(ctx context.Context, userID int64) bool {
	if c == nil {
		return false
	}
	if c.store != nil {
		_, banned, err := c.store.GlobalBan(ctx, userID)
		if err != nil {
			c.logger.Warn("antispam: local ban lookup failed", "user_id", userID, "error", err)
		} else if banned {
			return true
		}
	}
	if c.remote == nil {
		return false
	}
	ban, err := c.remote.Lookup(ctx, userID)
	if err != nil {
		c.logger.Warn("antispam: remote ban lookup failed", "user_id", userID, "error", err)
		return false
	}
	return ban != nil
}
