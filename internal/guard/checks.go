package guard

import (
	"context"
	"log/slog"

	"github.com/flemzord/gatekeep/internal/role"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

// Reply texts for denied commands.
const (
	MsgGroupOnly    = "This command is meant to be used in groups, not in PM!"
	MsgNotUserAdmin = "Who dis non-admin telling me what to do? You want a punch?"
	MsgBotNotAdmin  = "I can't perform this action, I'm not an admin!"
	MsgCantRestrict = "I can't restrict people here!\nMake sure I'm admin and can restrict other members."
	MsgCantDelete   = "I can't delete messages here!\nMake sure I'm admin and can delete other user's messages."
)

// Checks builds the standard guards on top of a role oracle.
type Checks struct {
	Oracle *role.Oracle
	// DeleteCommands makes UserAdmin delete an argument-less command from
	// a non-admin instead of replying to it.
	DeleteCommands bool
	Logger         *slog.Logger
}

func (c *Checks) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// GroupOnly denies commands sent in a private chat.
func (c *Checks) GroupOnly() Guard {
	return NewFunc("group_only", func(_ context.Context, req *Request) Decision {
		if req.Chat.IsPrivate() {
			return Deny(MsgGroupOnly)
		}
		return Allowed
	})
}

// UserAdmin requires the sender to be a chat administrator.
func (c *Checks) UserAdmin() Guard {
	return NewFunc("user_admin", func(ctx context.Context, req *Request) Decision {
		if req.User == nil {
			return Decision{}
		}
		if c.Oracle.IsChatAdmin(ctx, req.Chat, req.User.ID) {
			return Allowed
		}
		if c.DeleteCommands && !req.HasArgs() {
			return Decision{DeleteCommand: true}
		}
		return Deny(MsgNotUserAdmin)
	})
}

// UserAdminNoReply is UserAdmin without the reply, used by callback
// buttons where an answer would be noise.
func (c *Checks) UserAdminNoReply() Guard {
	return NewFunc("user_admin_no_reply", func(ctx context.Context, req *Request) Decision {
		if req.User != nil && c.Oracle.IsChatAdmin(ctx, req.Chat, req.User.ID) {
			return Allowed
		}
		return Decision{}
	})
}

// BotAdmin requires the bot to be an administrator of the chat.
func (c *Checks) BotAdmin() Guard {
	return c.botRight("bot_admin", MsgBotNotAdmin, func(m *botapi.ChatMember) bool {
		return m.IsAdmin()
	})
}

// BotCanRestrict requires the bot to hold the restrict-members right.
func (c *Checks) BotCanRestrict() Guard {
	return c.botRight("bot_can_restrict", MsgCantRestrict, func(m *botapi.ChatMember) bool {
		return m.Status == botapi.StatusCreator || m.CanRestrictMembers
	})
}

// BotCanDelete requires the bot to hold the delete-messages right.
func (c *Checks) BotCanDelete() Guard {
	return c.botRight("bot_can_delete", MsgCantDelete, func(m *botapi.ChatMember) bool {
		return m.Status == botapi.StatusCreator || m.CanDeleteMessages
	})
}

func (c *Checks) botRight(name, msg string, ok func(*botapi.ChatMember) bool) Guard {
	return NewFunc(name, func(ctx context.Context, req *Request) Decision {
		if req.Chat.IsPrivate() {
			return Allowed
		}
		m, err := c.Oracle.Member(ctx, req.Chat.ID, req.BotID)
		if err != nil {
			c.logger().Warn("guard: bot member lookup failed",
				"guard", name, "chat_id", req.Chat.ID, "error", err)
			return Deny(msg)
		}
		if ok(m) {
			return Allowed
		}
		return Deny(msg)
	})
}

// CreatorOrSudo requires the sender to be the chat creator or hold the
// SudoOwner tier. msg is the reply on denial.
func (c *Checks) CreatorOrSudo(msg string) Guard {
	return NewFunc("creator_or_sudo", func(ctx context.Context, req *Request) Decision {
		if req.User == nil {
			return Decision{}
		}
		if c.Oracle.RoleAtLeast(ctx, req.Chat, req.User.ID, role.SudoOwner) {
			return Allowed
		}
		m, err := c.Oracle.Member(ctx, req.Chat.ID, req.User.ID)
		if err == nil && m.Status == botapi.StatusCreator {
			return Allowed
		}
		return Deny(msg)
	})
}

// TierAtLeast requires the sender to hold min or a higher static tier.
func (c *Checks) TierAtLeast(min role.Tier, msg string) Guard {
	return NewFunc("tier_at_least", func(_ context.Context, req *Request) Decision {
		if req.User != nil && c.Oracle.Roster().Tier(req.User.ID) >= min {
			return Allowed
		}
		return Deny(msg)
	})
}
