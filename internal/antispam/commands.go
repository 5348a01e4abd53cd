package antispam

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flemzord/gatekeep/internal/guard"
	"github.com/flemzord/gatekeep/internal/metrics"
	"github.com/flemzord/gatekeep/internal/role"
	"github.com/flemzord/gatekeep/internal/router"
	"github.com/flemzord/gatekeep/internal/security"
	"github.com/flemzord/gatekeep/internal/settings"
)

const (
	msgNotSupport     = "Only my support users can do this."
	msgNoTarget       = "You don't seem to be referring to a user or the ID specified is incorrect.."
	msgProtected      = "That user is part of the staff, I can't act against them."
	msgSelfBan        = "You uhh...want me to gban myself?"
	msgAlreadyBanned  = "This user is already gbanned."
	msgGbanned        = "Done! %d is now globally banned."
	msgNotGbanned     = "This user is not gbanned!"
	msgUngbanned      = "%d has been unbanned globally."
	msgDefaultReason  = "No reason given"
	enforceJoinDetail = "globally banned member joined"
)

// Bot is the part of the Bot API enforcement calls.
type Bot interface {
	BanChatMember(ctx context.Context, chatID, userID int64) error
}

// Store persists the local global ban list.
type Store interface {
	BanStore
	AddGlobalBan(ctx context.Context, ban settings.GlobalBan) error
	RemoveGlobalBan(ctx context.Context, userID int64) error
}

// Enforcer owns the global ban commands and removes globally banned users
// when they join a chat.
type Enforcer struct {
	bot     Bot
	store   Store
	checker *Checker
	oracle  *role.Oracle
	self    int64
	audit   *security.AuditLogger
	logger  *slog.Logger
}

// EnforcerConfig holds the collaborators of an Enforcer.
type EnforcerConfig struct {
	Bot     Bot
	Store   Store
	Checker *Checker
	Oracle  *role.Oracle
	SelfID  int64
	Audit   *security.AuditLogger
	Logger  *slog.Logger
}

// NewEnforcer creates an Enforcer.
func NewEnforcer(cfg EnforcerConfig) *Enforcer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Enforcer{
		bot:     cfg.Bot,
		store:   cfg.Store,
		checker: cfg.Checker,
		oracle:  cfg.Oracle,
		self:    cfg.SelfID,
		audit:   cfg.Audit,
		logger:  cfg.Logger.With("component", "antispam"),
	}
}

// Register wires /gban, /ungban and join enforcement into d.
func (e *Enforcer) Register(d *router.Dispatcher, checks *guard.Checks) error {
	staff := guard.New(checks.TierAtLeast(role.Support, msgNotSupport))
	for _, c := range []router.Command{
		{Names: []string{"gban"}, Guards: staff, Handle: e.cmdGban},
		{Names: []string{"ungban"}, Guards: staff, Handle: e.cmdUngban},
	} {
		if err := d.HandleCommand(c); err != nil {
			return fmt.Errorf("antispam: %w", err)
		}
	}
	d.OnJoin(e.OnMemberJoined)
	return nil
}

// OnMemberJoined bans globally banned members from the chat they joined.
// Ban-protected members are left alone.
func (e *Enforcer) OnMemberJoined(ctx context.Context, ev *router.Event) error {
	if ev.Message == nil {
		return nil
	}
	for _, member := range ev.Message.NewChatMembers {
		if member.ID == e.self || !e.checker.IsGloballyBanned(ctx, member.ID) {
			continue
		}
		protected, err := e.oracle.IsBanProtected(ctx, ev.Chat, member.ID)
		if err != nil || protected {
			continue
		}
		if err := e.bot.BanChatMember(ctx, ev.Chat.ID, member.ID); err != nil {
			e.logger.Warn("antispam: banning gbanned member failed", "chat_id", ev.Chat.ID, "user_id", member.ID, "error", err)
			continue
		}
		metrics.JoinsTotal.WithLabelValues("gbanned").Inc()
		e.audit.Log(security.AuditEvent{
			Type:     security.EventBan,
			ChatID:   ev.Chat.ID,
			TargetID: member.ID,
			Detail:   enforceJoinDetail,
		})
	}
	return nil
}

func (e *Enforcer) cmdGban(ctx context.Context, ev *router.Event) error {
	target, rest, ok := ev.Target()
	if !ok {
		_, err := ev.Reply(ctx, msgNoTarget, "")
		return err
	}
	switch {
	case target == e.self:
		_, err := ev.Reply(ctx, msgSelfBan, "")
		return err
	case e.oracle.Roster().Tier(target) >= role.Whitelisted:
		_, err := ev.Reply(ctx, msgProtected, "")
		return err
	}

	if _, banned, err := e.store.GlobalBan(ctx, target); err != nil {
		return fmt.Errorf("antispam: lookup ban: %w", err)
	} else if banned {
		_, err := ev.Reply(ctx, msgAlreadyBanned, "")
		return err
	}

	reason := strings.Join(rest, " ")
	if reason == "" {
		reason = msgDefaultReason
	}
	if err := e.store.AddGlobalBan(ctx, settings.GlobalBan{UserID: target, Reason: reason}); err != nil {
		return fmt.Errorf("antispam: add ban: %w", err)
	}
	e.audit.Log(security.AuditEvent{
		Type:     security.EventGlobalBan,
		ChatID:   ev.Chat.ID,
		ActorID:  ev.From.ID,
		TargetID: target,
		Detail:   reason,
	})

	if !ev.Chat.IsPrivate() {
		if err := e.bot.BanChatMember(ctx, ev.Chat.ID, target); err != nil {
			ev.Logger.Debug("antispam: local ban after gban failed", "user_id", target, "error", err)
		}
	}
	_, err := ev.Reply(ctx, fmt.Sprintf(msgGbanned, target), "")
	return err
}

func (e *Enforcer) cmdUngban(ctx context.Context, ev *router.Event) error {
	target, _, ok := ev.Target()
	if !ok {
		_, err := ev.Reply(ctx, msgNoTarget, "")
		return err
	}
	_, banned, err := e.store.GlobalBan(ctx, target)
	if err != nil {
		return fmt.Errorf("antispam: lookup ban: %w", err)
	}
	if !banned {
		_, err := ev.Reply(ctx, msgNotGbanned, "")
		return err
	}
	if err := e.store.RemoveGlobalBan(ctx, target); err != nil {
		return fmt.Errorf("antispam: remove ban: %w", err)
	}
	e.audit.Log(security.AuditEvent{
		Type:     security.EventGlobalUnban,
		ChatID:   ev.Chat.ID,
		ActorID:  ev.From.ID,
		TargetID: target,
	})
	_, err = ev.Reply(ctx, fmt.Sprintf(msgUngbanned, target), "")
	return err
}
