package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/gatekeep/internal/core"
	"github.com/flemzord/gatekeep/internal/gateway"
	"github.com/flemzord/gatekeep/internal/security"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

// ModuleID is the module's registry key and its webhook source name.
const ModuleID = "channel.telegram"

// ServiceClient is the AppContext key of the shared *botapi.Client.
const ServiceClient = "telegram.client"

const webhookSource = "telegram"

func init() {
	core.RegisterModule(&Telegram{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Telegram)(nil)
	_ core.Provisioner  = (*Telegram)(nil)
	_ core.Validator    = (*Telegram)(nil)
	_ core.Starter      = (*Telegram)(nil)
	_ core.Stopper      = (*Telegram)(nil)
	_ core.Reloader     = (*Telegram)(nil)
)

// Sink receives every allowed update.
type Sink func(botapi.Update) error

// Telegram is the update source of the bot.
type Telegram struct {
	config Config
	client *botapi.Client
	logger *slog.Logger
	allow  *allowList
	sink   Sink
	appCtx *core.AppContext

	identMu sync.Mutex
	self    *botapi.User

	// Set during Start() depending on mode.
	poller     *Poller
	dispatcher *gateway.WebhookDispatcher
}

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Telegram{} },
	}
}

// Configure implements core.Configurable.
func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	t.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The client is registered as a
// service so the bot wiring shares its rate limiter.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.config.defaults()
	t.appCtx = ctx
	t.logger = ctx.Logger
	t.client = botapi.NewClient(t.config.Token, t.config.APIURL,
		botapi.WithRateLimit(t.config.RateLimit, t.config.RateBurst))
	t.allow = newAllowList(t.config.AllowChats)

	if redactor, ok := core.Service[*security.Redactor](ctx, "security.redactor"); ok {
		redactor.AddLiteral(t.config.Token)
		redactor.AddLiteral(t.config.WebhookSecret)
	}

	ctx.RegisterService(ServiceClient, t.client)
	return nil
}

// Validate implements core.Validator.
func (t *Telegram) Validate() error {
	if t.config.Token == "" {
		return errors.New("telegram: token is required")
	}
	switch t.config.Mode {
	case ModePolling, ModeWebhook:
	default:
		return fmt.Errorf("telegram: invalid mode %q (must be \"polling\" or \"webhook\")", t.config.Mode)
	}
	if t.config.Mode == ModeWebhook && t.config.WebhookURL == "" {
		return errors.New("telegram: webhook_url is required when mode is \"webhook\"")
	}
	return t.config.validate()
}

// Client returns the shared Bot API client.
func (t *Telegram) Client() *botapi.Client { return t.client }

// SetSink installs the update consumer. Must be called before Start.
func (t *Telegram) SetSink(s Sink) { t.sink = s }

// Identify returns the bot's own account, calling getMe once.
func (t *Telegram) Identify(ctx context.Context) (*botapi.User, error) {
	t.identMu.Lock()
	defer t.identMu.Unlock()
	if t.self != nil {
		return t.self, nil
	}
	user, err := t.client.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	t.self = user
	t.logger.Info("telegram bot authenticated", "id", user.ID, "username", user.Username)
	return user, nil
}

// Start implements core.Starter. It starts either polling or webhook mode.
func (t *Telegram) Start() error {
	if t.sink == nil {
		return errors.New("telegram: sink not set, call SetSink before Start")
	}
	ctx := context.Background()
	if _, err := t.Identify(ctx); err != nil {
		return err
	}

	switch t.config.Mode {
	case ModePolling:
		// getUpdates is refused while a webhook is registered.
		if err := t.client.DeleteWebhook(ctx); err != nil {
			t.logger.Warn("telegram: deleteWebhook before polling failed", "error", err)
		}
		t.poller = NewPoller(t.client, t.sink, t.allow, t.logger, t.config)
		t.poller.Start()
		t.logger.Info("telegram polling started", "timeout", t.config.PollingTimeout)

	case ModeWebhook:
		if t.config.WebhookSecret == "" {
			t.logger.Warn("telegram webhook running without webhook_secret")
		}
		dispatcher, ok := core.Service[*gateway.WebhookDispatcher](t.appCtx, gateway.ServiceWebhookDispatcher)
		if !ok {
			return errors.New("telegram: webhook mode needs the gateway.http module")
		}
		t.dispatcher = dispatcher
		receiver := NewWebhookReceiver(t.sink, t.allow, t.logger, t.config.WebhookSecret)
		dispatcher.Register(webhookSource, receiver)

		if err := t.client.SetWebhook(ctx, botapi.SetWebhookRequest{
			URL:            t.config.WebhookURL,
			SecretToken:    t.config.WebhookSecret,
			AllowedUpdates: t.config.AllowedUpdates,
		}); err != nil {
			dispatcher.Unregister(webhookSource)
			return fmt.Errorf("telegram: setWebhook failed: %w", err)
		}
		t.logger.Info("telegram webhook configured", "url", t.config.WebhookURL)
	}

	return nil
}

// Stop implements core.Stopper.
func (t *Telegram) Stop(ctx context.Context) error {
	t.logger.Info("telegram channel stopping")

	if t.poller != nil {
		t.poller.Stop()
	}
	if t.dispatcher != nil {
		t.dispatcher.Unregister(webhookSource)
		if err := t.client.DeleteWebhook(ctx); err != nil {
			t.logger.Warn("telegram: failed to delete webhook on shutdown", "error", err)
		}
	}
	return nil
}

// Reload implements core.Reloader. Only allow_chats is applied live;
// other changes need a restart.
func (t *Telegram) Reload(ctx *core.AppContext) error {
	node, ok := ctx.ModuleConfig(ModuleID)
	if !ok {
		return nil
	}
	var next Config
	if err := node.Decode(&next); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	next.defaults()
	if err := next.validate(); err != nil {
		return err
	}
	t.allow.set(next.AllowChats)
	t.logger.Info("telegram allow list reloaded", "chats", len(next.AllowChats))
	return nil
}
