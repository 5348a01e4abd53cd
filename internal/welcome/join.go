package welcome

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/flemzord/gatekeep/internal/metrics"
	"github.com/flemzord/gatekeep/internal/role"
	"github.com/flemzord/gatekeep/internal/router"
	"github.com/flemzord/gatekeep/internal/security"
	"github.com/flemzord/gatekeep/internal/settings"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

// joinEvent is the chat state shared by every member of one join message.
type joinEvent struct {
	chat     botapi.Chat
	greeting settings.Greeting
	policy   settings.MutePolicy
	replyTo  int
	joinID   int
	logger   *slog.Logger
}

// OnMemberJoined handles a new_chat_members service message. Each member
// is processed independently: a failure for one is logged and the next
// member is still handled.
func (p *Pipeline) OnMemberJoined(ctx context.Context, ev *router.Event) error {
	msg := ev.Message
	if msg == nil || len(msg.NewChatMembers) == 0 {
		return nil
	}

	greeting, err := p.store.Welcome(ctx, ev.Chat.ID)
	if err != nil {
		return fmt.Errorf("welcome: load welcome: %w", err)
	}
	policy, err := p.store.MutePolicy(ctx, ev.Chat.ID)
	if err != nil {
		return fmt.Errorf("welcome: load mute policy: %w", err)
	}

	je := &joinEvent{
		chat:     ev.Chat,
		greeting: greeting,
		policy:   policy,
		replyTo:  msg.MessageID,
		joinID:   msg.MessageID,
		logger:   p.eventLogger(ev),
	}
	if p.cleanService(ctx, ev.Chat.ID, msg.MessageID) {
		je.replyTo, je.joinID = 0, 0
	}

	for _, member := range msg.NewChatMembers {
		outcome := p.admit(ctx, je, member)
		metrics.JoinsTotal.WithLabelValues(outcome).Inc()
		je.logger.Debug("welcome: member processed", "user_id", member.ID, "outcome", outcome)
	}
	return nil
}

// admit runs the join state machine for one member and returns its outcome.
func (p *Pipeline) admit(ctx context.Context, je *joinEvent, member botapi.User) string {
	roster := p.oracle.Roster()

	switch {
	case p.isBanned(ctx, member.ID):
		return "banned"

	case roster.IsOwner(member.ID):
		p.reply(ctx, je, msgOwnerJoined)
		return "owner"

	case roster.Tier(member.ID) >= role.Whitelisted:
		p.reply(ctx, je, tierGreeting(roster.Title(member.ID)))
		return "tier"

	case member.ID == p.self.ID:
		p.announceNewGroup(ctx, je)
		p.reply(ctx, je, msgSelfJoined)
		return "self"
	}

	var pl Payload
	if je.greeting.Enabled {
		pl = p.resolve(ctx, je.chat, member, je.greeting, defaultWelcomes)
		pl.ReplyTo = je.replyTo
		pl.JoinMessageID = je.joinID
	}

	outcome := "welcomed"
	if p.shouldMute(ctx, je, member) {
		switch je.policy {
		case settings.MuteSoft:
			p.softMute(ctx, je, member)
			outcome = "soft"
		case settings.MuteStrong:
			if err := p.challenge(ctx, je, member, pl); err != nil {
				je.logger.Error("welcome: verification challenge failed", "user_id", member.ID, "error", err)
				return "failed"
			}
			// The welcome is delivered once the member verifies.
			return "challenged"
		}
	}

	if !je.greeting.Enabled {
		return outcome
	}
	if _, err := p.deliver(ctx, pl); err != nil {
		je.logger.Error("welcome: delivery failed", "user_id", member.ID, "error", err)
		return "failed"
	}
	return outcome
}

// shouldMute reports whether the chat policy applies to member.
func (p *Pipeline) shouldMute(ctx context.Context, je *joinEvent, member botapi.User) bool {
	if je.policy == settings.MuteOff || je.policy == "" || member.IsBot {
		return false
	}
	protected, err := p.oracle.IsBanProtected(ctx, je.chat, member.ID)
	if err != nil {
		je.logger.Warn("welcome: member status lookup failed, not muting", "user_id", member.ID, "error", err)
		return false
	}
	if protected {
		return false
	}
	passed, err := p.store.HumanCheckPassed(ctx, member.ID, je.chat.ID)
	if err != nil {
		je.logger.Warn("welcome: human check lookup failed", "user_id", member.ID, "error", err)
	}
	return !passed
}

// softMute revokes media rights for the soft-mute window. The welcome is
// still delivered even if the restriction fails.
func (p *Pipeline) softMute(ctx context.Context, je *joinEvent, member botapi.User) {
	err := p.bot.RestrictChatMember(ctx, botapi.RestrictRequest{
		ChatID:      je.chat.ID,
		UserID:      member.ID,
		Permissions: botapi.TextOnlyPermissions(),
		Until:       p.now().Add(p.softMuteDuration),
	})
	if err != nil {
		je.logger.Warn("welcome: soft mute failed", "user_id", member.ID, "error", err)
		return
	}
	p.audit.Log(security.AuditEvent{
		Type:     security.EventMute,
		ChatID:   je.chat.ID,
		ActorID:  p.self.ID,
		TargetID: member.ID,
		Detail:   "welcome soft mute",
	})
}

// announceNewGroup posts a notice to the audit chat when the bot itself is
// added somewhere.
func (p *Pipeline) announceNewGroup(ctx context.Context, je *joinEvent) {
	p.audit.Log(security.AuditEvent{
		Type:   security.EventNewGroup,
		ChatID: je.chat.ID,
		Detail: je.chat.Title,
	})
	if p.auditChatID == 0 {
		return
	}

	text := fmt.Sprintf(msgNewGroupAudit, html.EscapeString(je.chat.Title), je.chat.ID)
	admins, err := p.bot.GetChatAdministrators(ctx, je.chat.ID)
	if err != nil {
		je.logger.Debug("welcome: creator lookup failed", "error", err)
	}
	for _, a := range admins {
		if a.Status == botapi.StatusCreator {
			name := a.User.FullName()
			if a.User.Username != "" {
				name = "@" + a.User.Username
			}
			text += fmt.Sprintf(msgNewGroupAuditC, html.EscapeString(name))
			break
		}
	}

	if _, err := p.bot.SendMessage(ctx, botapi.SendMessageRequest{
		ChatID:    p.auditChatID,
		Text:      text,
		ParseMode: botapi.ParseModeHTML,
	}); err != nil {
		je.logger.Warn("welcome: audit chat notice failed", "audit_chat_id", p.auditChatID, "error", err)
	}
}

// cleanService deletes the join or leave service message when the chat
// asks for it and reports whether it did.
func (p *Pipeline) cleanService(ctx context.Context, chatID int64, messageID int) bool {
	enabled, err := p.store.CleanService(ctx, chatID)
	if err != nil {
		p.logger.Warn("welcome: clean-service lookup failed", "chat_id", chatID, "error", err)
		return false
	}
	if !enabled {
		return false
	}
	p.deleteQuietly(ctx, chatID, messageID)
	return true
}

// reply sends a fixed plain-text greeting.
func (p *Pipeline) reply(ctx context.Context, je *joinEvent, text string) {
	_, err := p.bot.SendMessage(ctx, botapi.SendMessageRequest{
		ChatID:                   je.chat.ID,
		Text:                     text,
		ReplyToMessageID:         je.replyTo,
		AllowSendingWithoutReply: true,
	})
	if err != nil && botapi.Classify(err) != botapi.KindNoRights {
		je.logger.Warn("welcome: greeting failed", "error", err)
	}
}

func (p *Pipeline) eventLogger(ev *router.Event) *slog.Logger {
	if ev.Logger != nil {
		return ev.Logger
	}
	return p.logger.With("event_id", ev.ID, "chat_id", ev.Chat.ID)
}

func tierGreeting(title string) string {
	switch title {
	case "Developer":
		return msgDeveloperJoined
	case "Dragon":
		return msgDragonJoined
	case "Demon":
		return msgDemonJoined
	case "Tiger":
		return msgTigerJoined
	default:
		return msgWolfJoined
	}
}
