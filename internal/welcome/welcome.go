// Package welcome implements the member admission pipeline: greetings for
// joining and leaving members, welcome-mute policies and the verification
// challenge that gates strongly muted members, plus the admin commands that
// configure them.
package welcome

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flemzord/gatekeep/internal/guard"
	"github.com/flemzord/gatekeep/internal/role"
	"github.com/flemzord/gatekeep/internal/router"
	"github.com/flemzord/gatekeep/internal/security"
	"github.com/flemzord/gatekeep/internal/settings"
	"github.com/flemzord/gatekeep/internal/waitlist"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

// Defaults for Config durations.
const (
	DefaultVerifyTimeout    = 120 * time.Second
	DefaultSoftMuteDuration = 24 * time.Hour
)

// strongMuteGrace is how long a challenge restriction outlives its verify
// timeout. Telegram lifts it on its own if neither the expiry nor the
// reaper gets to the member.
const strongMuteGrace = 10 * time.Minute

// Bot is the part of the Bot API the pipeline calls.
type Bot interface {
	SendMessage(ctx context.Context, req botapi.SendMessageRequest) (*botapi.Message, error)
	SendMedia(ctx context.Context, req botapi.MediaRequest) (*botapi.Message, error)
	EditMessageText(ctx context.Context, req botapi.EditMessageTextRequest) (*botapi.Message, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	RestrictChatMember(ctx context.Context, req botapi.RestrictRequest) error
	UnbanChatMember(ctx context.Context, chatID, userID int64) error
	GetChatAdministrators(ctx context.Context, chatID int64) ([]botapi.ChatMember, error)
	GetChatMemberCount(ctx context.Context, chatID int64) (int, error)
}

// Scheduler runs a named callback once after a delay. The returned
// function cancels it on a best-effort basis.
type Scheduler interface {
	ScheduleOnce(name string, delay time.Duration, fn func(ctx context.Context)) (cancel func())
}

// BanChecker reports globally banned users.
type BanChecker interface {
	IsGloballyBanned(ctx context.Context, userID int64) bool
}

// Config holds the collaborators of a Pipeline.
type Config struct {
	Bot       Bot
	Store     settings.Store
	Oracle    *role.Oracle
	Waitlist  *waitlist.Waitlist
	Scheduler Scheduler
	// Bans may be nil, in which case nobody is considered banned.
	Bans BanChecker
	Self router.Identity

	// AuditChatID receives a notice when the bot is added to a chat.
	AuditChatID int64
	Audit       *security.AuditLogger

	VerifyTimeout    time.Duration
	SoftMuteDuration time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Pipeline reacts to membership changes of every chat the bot is in.
type Pipeline struct {
	bot       Bot
	store     settings.Store
	oracle    *role.Oracle
	waitlist  *waitlist.Waitlist
	scheduler Scheduler
	bans      BanChecker
	self      router.Identity

	auditChatID int64
	audit       *security.AuditLogger

	verifyTimeout    time.Duration
	softMuteDuration time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// New validates cfg and creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	var errs []error
	if cfg.Bot == nil {
		errs = append(errs, errors.New("welcome: bot is required"))
	}
	if cfg.Store == nil {
		errs = append(errs, errors.New("welcome: settings store is required"))
	}
	if cfg.Oracle == nil {
		errs = append(errs, errors.New("welcome: role oracle is required"))
	}
	if cfg.Waitlist == nil {
		errs = append(errs, errors.New("welcome: waitlist is required"))
	}
	if cfg.Scheduler == nil {
		errs = append(errs, errors.New("welcome: scheduler is required"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = DefaultVerifyTimeout
	}
	if cfg.SoftMuteDuration <= 0 {
		cfg.SoftMuteDuration = DefaultSoftMuteDuration
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Pipeline{
		bot:              cfg.Bot,
		store:            cfg.Store,
		oracle:           cfg.Oracle,
		waitlist:         cfg.Waitlist,
		scheduler:        cfg.Scheduler,
		bans:             cfg.Bans,
		self:             cfg.Self,
		auditChatID:      cfg.AuditChatID,
		audit:            cfg.Audit,
		verifyTimeout:    cfg.VerifyTimeout,
		softMuteDuration: cfg.SoftMuteDuration,
		logger:           cfg.Logger.With("component", "welcome"),
		now:              cfg.Now,
	}, nil
}

// Register wires the membership handlers, the verification callback and
// the settings commands into d.
func (p *Pipeline) Register(d *router.Dispatcher, checks *guard.Checks) error {
	d.OnJoin(p.OnMemberJoined)
	d.OnLeave(p.OnMemberLeft)
	d.HandleCallback(router.Callback{Prefix: VerifyPrefix, Handle: p.OnVerifyButton})
	return p.registerCommands(d, checks)
}

func (p *Pipeline) isBanned(ctx context.Context, userID int64) bool {
	return p.bans != nil && p.bans.IsGloballyBanned(ctx, userID)
}

