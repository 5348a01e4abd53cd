package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/gatekeep/internal/guard"
	"github.com/flemzord/gatekeep/internal/metrics"
	"github.com/flemzord/gatekeep/internal/security"
)

// HandlerFunc handles one routed update.
type HandlerFunc func(ctx context.Context, ev *Event) error

// Command binds one or more command names to a guarded handler.
type Command struct {
	Names  []string
	Guards guard.Pipeline
	Handle HandlerFunc
}

// Callback binds a callback data prefix to a guarded handler.
type Callback struct {
	Prefix string
	Guards guard.Pipeline
	Handle HandlerFunc
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Bot  Bot
	Self Identity

	// RateLimiter, if non-nil, limits commands per user.
	RateLimiter *security.RateLimiter
	Logger      *slog.Logger
	Tracer      trace.Tracer
}

// Dispatcher routes events to the handlers registered by feature packages.
// Registration happens during wiring; Dispatch is safe for concurrent use.
type Dispatcher struct {
	bot     Bot
	self    Identity
	limiter *security.RateLimiter
	logger  *slog.Logger
	tracer  trace.Tracer

	mu        sync.RWMutex
	commands  map[string]*Command
	callbacks []*Callback
	joins     []HandlerFunc
	leaves    []HandlerFunc
	messages  []HandlerFunc
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/flemzord/gatekeep/internal/router")
	}
	return &Dispatcher{
		bot:      cfg.Bot,
		self:     cfg.Self,
		limiter:  cfg.RateLimiter,
		logger:   logger,
		tracer:   tracer,
		commands: make(map[string]*Command),
	}
}

// Self returns the bot identity events are parsed against.
func (d *Dispatcher) Self() Identity { return d.self }

// HandleCommand registers cmd under each of its names.
func (d *Dispatcher) HandleCommand(cmd Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range cmd.Names {
		name = strings.ToLower(name)
		if _, exists := d.commands[name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
		}
	}
	c := cmd
	for _, name := range cmd.Names {
		d.commands[strings.ToLower(name)] = &c
	}
	return nil
}

// HandleCallback registers a callback handler. Prefixes are matched in
// registration order.
func (d *Dispatcher) HandleCallback(cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := cb
	d.callbacks = append(d.callbacks, &c)
}

// OnJoin registers a handler for member-join service messages.
func (d *Dispatcher) OnJoin(h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.joins = append(d.joins, h)
}

// OnLeave registers a handler for member-leave service messages.
func (d *Dispatcher) OnLeave(h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leaves = append(d.leaves, h)
}

// OnMessage registers a handler for plain messages and unknown commands.
func (d *Dispatcher) OnMessage(h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, h)
}

// Commands returns the registered command names.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	return names
}

// Dispatch routes ev to its handlers.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) {
	if ev.Kind == KindIgnored {
		return
	}
	if ev.Bot == nil {
		ev.Bot = d.bot
	}
	if ev.Logger == nil {
		ev.Logger = d.logger.With("event_id", ev.ID, "chat_id", ev.Chat.ID)
	}

	ctx, span := d.tracer.Start(ctx, "dispatch "+string(ev.Kind), trace.WithAttributes(
		attribute.String("gatekeep.event_id", ev.ID),
		attribute.Int64("gatekeep.chat_id", ev.Chat.ID),
		attribute.String("gatekeep.kind", string(ev.Kind)),
	))
	defer span.End()

	metrics.UpdatesTotal.WithLabelValues(string(ev.Kind)).Inc()
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.HandlerDuration, string(ev.Kind))

	var err error
	switch ev.Kind {
	case KindCommand:
		err = d.dispatchCommand(ctx, ev, span)
	case KindCallback:
		err = d.dispatchCallback(ctx, ev)
	case KindJoin:
		err = d.runAll(ctx, ev, d.snapshot(&d.joins))
	case KindLeave:
		err = d.runAll(ctx, ev, d.snapshot(&d.leaves))
	case KindMessage:
		err = d.runAll(ctx, ev, d.snapshot(&d.messages))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ev.Logger.Error("router: handler failed", "kind", ev.Kind, "command", ev.Command, "error", err)
	}
}

func (d *Dispatcher) snapshot(hs *[]HandlerFunc) []HandlerFunc {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]HandlerFunc(nil), (*hs)...)
}

// runAll calls every handler and joins their errors.
func (d *Dispatcher) runAll(ctx context.Context, ev *Event, hs []HandlerFunc) error {
	var errs []error
	for _, h := range hs {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, ev *Event, span trace.Span) error {
	d.mu.RLock()
	cmd, ok := d.commands[ev.Command]
	d.mu.RUnlock()
	if !ok {
		// Unknown commands may still be note lookups.
		return d.runAll(ctx, ev, d.snapshot(&d.messages))
	}
	span.SetAttributes(attribute.String("gatekeep.command", ev.Command))

	if ev.From != nil && d.limiter != nil {
		if err := d.limiter.Allow(security.KindCommand, fmt.Sprint(ev.From.ID)); err != nil {
			ev.Logger.Warn("router: command rate limited", "user_id", ev.From.ID, "command", ev.Command)
			return nil
		}
	}

	req := &guard.Request{Chat: ev.Chat, User: ev.From, Message: ev.Message, BotID: d.self.ID}
	dec, name := cmd.Guards.Evaluate(ctx, req)
	if !dec.Allow {
		ev.Logger.Debug("router: command denied", "command", ev.Command, "guard", name)
		return d.applyDenial(ctx, ev, dec)
	}
	return cmd.Handle(ctx, ev)
}

func (d *Dispatcher) dispatchCallback(ctx context.Context, ev *Event) error {
	d.mu.RLock()
	var cb *Callback
	for _, c := range d.callbacks {
		if strings.HasPrefix(ev.Callback.Data, c.Prefix) {
			cb = c
			break
		}
	}
	d.mu.RUnlock()
	if cb == nil {
		ev.Logger.Debug("router: unhandled callback", "data", ev.Callback.Data)
		return ev.Answer(ctx, "", false)
	}

	req := &guard.Request{Chat: ev.Chat, User: ev.From, BotID: d.self.ID}
	dec, name := cb.Guards.Evaluate(ctx, req)
	if !dec.Allow {
		ev.Logger.Debug("router: callback denied", "prefix", cb.Prefix, "guard", name)
		return ev.Answer(ctx, dec.Reply, true)
	}
	return cb.Handle(ctx, ev)
}

// applyDenial answers a denied command as the Decision asks.
func (d *Dispatcher) applyDenial(ctx context.Context, ev *Event, dec guard.Decision) error {
	if dec.DeleteCommand && ev.Message != nil {
		if err := ev.Bot.DeleteMessage(ctx, ev.Chat.ID, ev.Message.MessageID); err != nil {
			ev.Logger.Debug("router: delete denied command failed", "error", err)
		}
		return nil
	}
	if dec.Reply == "" {
		return nil
	}
	_, err := ev.Reply(ctx, dec.Reply, dec.ParseMode)
	return err
}
