package role

import (
	"context"
	"log/slog"

	"github.com/flemzord/gatekeep/pkg/botapi"
)

// MemberLookup is the subset of the Bot API used to resolve chat roles.
type MemberLookup interface {
	GetChatAdministrators(ctx context.Context, chatID int64) ([]botapi.ChatMember, error)
	GetChatMember(ctx context.Context, chatID, userID int64) (*botapi.ChatMember, error)
}

// Oracle answers "is user X privileged at tier Y in chat C".
type Oracle struct {
	roster  *Roster
	cache   *AdminCache
	members MemberLookup
	logger  *slog.Logger
}

// NewOracle creates an Oracle.
func NewOracle(roster *Roster, cache *AdminCache, members MemberLookup, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{roster: roster, cache: cache, members: members, logger: logger}
}

// AdminFetcher adapts a MemberLookup into a FetchFunc for NewAdminCache.
func AdminFetcher(members MemberLookup) FetchFunc {
	return func(ctx context.Context, chatID int64) ([]int64, error) {
		list, err := members.GetChatAdministrators(ctx, chatID)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(list))
		for _, m := range list {
			ids = append(ids, m.User.ID)
		}
		return ids, nil
	}
}

// Roster returns the static tier sets.
func (o *Oracle) Roster() *Roster { return o.roster }

// Cache returns the admin cache.
func (o *Oracle) Cache() *AdminCache { return o.cache }

// RoleAtLeast reports whether userID holds tier or higher in chat.
func (o *Oracle) RoleAtLeast(ctx context.Context, chat botapi.Chat, userID int64, tier Tier) bool {
	if o.roster.Tier(userID) >= tier {
		return true
	}
	switch tier {
	case Member:
		return true
	case ChatAdmin:
		return o.IsChatAdmin(ctx, chat, userID)
	default:
		return false
	}
}

// IsChatAdmin reports whether userID can act as an administrator of chat.
// A failed administrator lookup degrades to false for this call.
func (o *Oracle) IsChatAdmin(ctx context.Context, chat botapi.Chat, userID int64) bool {
	if chat.IsPrivate() || chat.AllMembersAreAdministrators || IsReserved(userID) {
		return true
	}
	if o.roster.Tier(userID) >= SudoOwner {
		return true
	}
	ok, err := o.cache.IsAdmin(ctx, chat.ID, userID)
	if err != nil {
		o.logger.Warn("role: admin lookup failed, treating as non-admin",
			"chat_id", chat.ID, "user_id", userID, "error", err)
		return false
	}
	return ok
}

// IsBanProtected reports whether userID must never be muted or banned by
// the bot in chat. Static tiers short-circuit; otherwise the member status
// is queried directly, bypassing the admin cache.
func (o *Oracle) IsBanProtected(ctx context.Context, chat botapi.Chat, userID int64) (bool, error) {
	if chat.IsPrivate() || chat.AllMembersAreAdministrators || IsReserved(userID) {
		return true, nil
	}
	if o.roster.Tier(userID) >= Whitelisted {
		return true, nil
	}
	m, err := o.members.GetChatMember(ctx, chat.ID, userID)
	if err != nil {
		return false, err
	}
	return m.IsAdmin(), nil
}

// Member fetches the live status of userID in chatID.
func (o *Oracle) Member(ctx context.Context, chatID, userID int64) (*botapi.ChatMember, error) {
	return o.members.GetChatMember(ctx, chatID, userID)
}
