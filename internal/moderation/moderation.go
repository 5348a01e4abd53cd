// Package moderation implements the admin mute commands: /mute, /unmute and
// /tmute.
package moderation

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/gatekeep/internal/guard"
	"github.com/flemzord/gatekeep/internal/role"
	"github.com/flemzord/gatekeep/internal/router"
	"github.com/flemzord/gatekeep/internal/security"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

const (
	msgNoTarget       = "You don't seem to be referring to a user or the ID specified is incorrect.."
	msgUserNotFound   = "I can't seem to find this user"
	msgSelf           = "I'm not gonna MUTE myself, how high are you?"
	msgProtected      = "Can't. Find someone else to mute but not this one."
	msgAlreadyMuted   = "This user is already muted!"
	msgMuted          = "<b>%s</b> has been muted."
	msgCanSpeak       = "This user already has the right to speak."
	msgUnmuted        = "I shall allow <b>%s</b> to text!"
	msgNotInChat      = "This user isn't even in the chat, unmuting them won't make them talk more than they already do!"
	msgNoDuration     = "You haven't specified a time to mute this user for!"
	msgTempMuted      = "<b>%s</b> has been muted for %s."
	msgCantMute       = "Well damn, I can't mute that user."
	msgNoTargetUnmute = "You'll need to either give me a username to unmute, or reply to someone to be unmuted."
)

// Bot is the part of the Bot API the commands call.
type Bot interface {
	SendMessage(ctx context.Context, req botapi.SendMessageRequest) (*botapi.Message, error)
	RestrictChatMember(ctx context.Context, req botapi.RestrictRequest) error
}

// Config holds the collaborators of a Moderator.
type Config struct {
	Bot    Bot
	Oracle *role.Oracle
	SelfID int64
	Audit  *security.AuditLogger
	Logger *slog.Logger
	Now    func() time.Time
}

// Moderator handles the mute commands.
type Moderator struct {
	bot    Bot
	oracle *role.Oracle
	self   int64
	audit  *security.AuditLogger
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Moderator.
func New(cfg Config) *Moderator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Moderator{
		bot:    cfg.Bot,
		oracle: cfg.Oracle,
		self:   cfg.SelfID,
		audit:  cfg.Audit,
		logger: cfg.Logger.With("component", "moderation"),
		now:    cfg.Now,
	}
}

// Register wires the commands into d.
func (m *Moderator) Register(d *router.Dispatcher, checks *guard.Checks) error {
	guards := guard.New(checks.GroupOnly(), checks.BotAdmin(), checks.BotCanRestrict(), checks.UserAdmin())
	for _, c := range []router.Command{
		{Names: []string{"mute"}, Guards: guards, Handle: m.cmdMute},
		{Names: []string{"unmute"}, Guards: guards, Handle: m.cmdUnmute},
		{Names: []string{"tmute", "tempmute"}, Guards: guards, Handle: m.cmdTempMute},
	} {
		if err := d.HandleCommand(c); err != nil {
			return fmt.Errorf("moderation: %w", err)
		}
	}
	return nil
}

// checkTarget loads the target member and returns a refusal text when the
// target may not be muted.
func (m *Moderator) checkTarget(ctx context.Context, ev *router.Event, userID int64) (*botapi.ChatMember, string, error) {
	member, err := m.oracle.Member(ctx, ev.Chat.ID, userID)
	if err != nil {
		if botapi.IsNotFound(err) {
			return nil, msgUserNotFound, nil
		}
		return nil, "", fmt.Errorf("moderation: member lookup: %w", err)
	}
	if userID == m.self {
		return nil, msgSelf, nil
	}
	protected, err := m.oracle.IsBanProtected(ctx, ev.Chat, userID)
	if err != nil {
		return nil, "", fmt.Errorf("moderation: protection lookup: %w", err)
	}
	if protected {
		return nil, msgProtected, nil
	}
	return member, "", nil
}

func canSpeak(member *botapi.ChatMember) bool {
	return member.CanSendMessages == nil || *member.CanSendMessages
}

func (m *Moderator) cmdMute(ctx context.Context, ev *router.Event) error {
	userID, rest, ok := ev.Target()
	if !ok {
		_, err := ev.Reply(ctx, msgNoTarget, "")
		return err
	}
	member, refusal, err := m.checkTarget(ctx, ev, userID)
	if err != nil {
		return err
	}
	if refusal != "" {
		_, err := ev.Reply(ctx, refusal, "")
		return err
	}
	if !canSpeak(member) {
		_, err := ev.Reply(ctx, msgAlreadyMuted, "")
		return err
	}

	if err := m.bot.RestrictChatMember(ctx, botapi.RestrictRequest{
		ChatID:      ev.Chat.ID,
		UserID:      userID,
		Permissions: botapi.NoPermissions(),
	}); err != nil {
		return fmt.Errorf("moderation: mute: %w", err)
	}
	m.log(ev, security.EventMute, userID, strings.Join(rest, " "), nil)
	return m.announce(ctx, ev, fmt.Sprintf(msgMuted, html.EscapeString(name(member))))
}

func (m *Moderator) cmdUnmute(ctx context.Context, ev *router.Event) error {
	userID, _, ok := ev.Target()
	if !ok {
		_, err := ev.Reply(ctx, msgNoTargetUnmute, "")
		return err
	}
	member, err := m.oracle.Member(ctx, ev.Chat.ID, userID)
	if err != nil {
		if botapi.IsNotFound(err) {
			_, err := ev.Reply(ctx, msgUserNotFound, "")
			return err
		}
		return fmt.Errorf("moderation: member lookup: %w", err)
	}
	if !member.InChat() {
		_, err := ev.Reply(ctx, msgNotInChat, "")
		return err
	}
	if member.Status != botapi.StatusRestricted || (canSpeak(member) && allowed(member.CanSendPhotos) && allowed(member.CanSendOther)) {
		_, err := ev.Reply(ctx, msgCanSpeak, "")
		return err
	}

	if err := m.bot.RestrictChatMember(ctx, botapi.RestrictRequest{
		ChatID:      ev.Chat.ID,
		UserID:      userID,
		Permissions: botapi.FullPermissions(),
	}); err != nil {
		ev.Logger.Warn("moderation: unmute failed", "user_id", userID, "error", err)
	}
	m.log(ev, security.EventUnmute, userID, "", nil)
	return m.announce(ctx, ev, fmt.Sprintf(msgUnmuted, html.EscapeString(name(member))))
}

func (m *Moderator) cmdTempMute(ctx context.Context, ev *router.Event) error {
	userID, rest, ok := ev.Target()
	if !ok {
		_, err := ev.Reply(ctx, msgNoTarget, "")
		return err
	}
	member, refusal, err := m.checkTarget(ctx, ev, userID)
	if err != nil {
		return err
	}
	if refusal != "" {
		_, err := ev.Reply(ctx, refusal, "")
		return err
	}
	if len(rest) == 0 {
		_, err := ev.Reply(ctx, msgNoDuration, "")
		return err
	}
	window := strings.ToLower(rest[0])
	d, problem := parseDuration(window)
	if problem != "" {
		_, err := ev.Reply(ctx, problem, "")
		return err
	}
	if !canSpeak(member) {
		_, err := ev.Reply(ctx, msgAlreadyMuted, "")
		return err
	}

	if err := m.bot.RestrictChatMember(ctx, botapi.RestrictRequest{
		ChatID:      ev.Chat.ID,
		UserID:      userID,
		Permissions: botapi.NoPermissions(),
		Until:       m.now().Add(d),
	}); err != nil {
		ev.Logger.Warn("moderation: temp mute failed", "user_id", userID, "error", err)
		_, rerr := ev.Reply(ctx, msgCantMute, "")
		return rerr
	}
	m.log(ev, security.EventMute, userID, strings.Join(rest[1:], " "), map[string]string{"duration": window})
	return m.announce(ctx, ev, fmt.Sprintf(msgTempMuted, html.EscapeString(name(member)), window))
}

// announce posts the outcome to the chat without quoting the command.
func (m *Moderator) announce(ctx context.Context, ev *router.Event, text string) error {
	_, err := m.bot.SendMessage(ctx, botapi.SendMessageRequest{
		ChatID:    ev.Chat.ID,
		Text:      text,
		ParseMode: botapi.ParseModeHTML,
	})
	return err
}

func (m *Moderator) log(ev *router.Event, t security.EventType, target int64, reason string, meta map[string]string) {
	var actor int64
	if ev.From != nil {
		actor = ev.From.ID
	}
	m.audit.Log(security.AuditEvent{
		Type:     t,
		ChatID:   ev.Chat.ID,
		ActorID:  actor,
		TargetID: target,
		Detail:   reason,
		Metadata: meta,
	})
}

func allowed(b *bool) bool { return b == nil || *b }

func name(member *botapi.ChatMember) string {
	if member.User.FirstName != "" {
		return member.User.FirstName
	}
	return fmt.Sprint(member.User.ID)
}
