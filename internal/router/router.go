package router

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/gatekeep/internal/metrics"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

const defaultInboxSize = 256

// Config holds the configuration for a Router.
type Config struct {
	WorkerCount int
	InboxSize   int
	Dispatcher  *Dispatcher
	Logger      *slog.Logger
}

// withDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = DefaultWorkerCount
	}
	if c.InboxSize <= 0 {
		c.InboxSize = defaultInboxSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Router queues updates and hands them to the dispatcher, one at a time
// per chat.
type Router struct {
	config     Config
	inbox      chan envelope
	inboxMu    sync.RWMutex
	lanes      *Lanes
	pool       *WorkerPool
	dispatcher *Dispatcher
	cancel     context.CancelFunc
	stopOnce   sync.Once
	logger     *slog.Logger
	stopped    atomic.Bool
}

// NewRouter creates a new Router with the given configuration.
func NewRouter(cfg Config) (*Router, error) {
	cfg = cfg.withDefaults()
	if cfg.Dispatcher == nil {
		return nil, ErrNoDispatcher
	}

	r := &Router{
		config:     cfg,
		inbox:      make(chan envelope, cfg.InboxSize),
		lanes:      NewLanes(),
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
	}
	r.pool = NewWorkerPool(cfg.WorkerCount, func(env envelope, rec any) {
		r.logger.Error("router: handler panicked", "event_id", env.EventID, "update_id", env.Update.UpdateID, "panic", rec)
	})
	return r, nil
}

// Start launches the worker pool and begins processing updates.
func (r *Router) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.inboxMu.Lock()
	if r.stopped.Load() {
		r.inboxMu.Unlock()
		cancel()
		r.logger.Warn("router: start ignored, router already stopped")
		return
	}
	r.cancel = cancel
	r.inboxMu.Unlock()

	r.pool.Start(ctx, r.inbox, r.process)
	r.logger.Info("router: started", "workers", r.config.WorkerCount, "inbox_size", r.config.InboxSize)
}

// Submit enqueues an update. If the inbox is full the update is dropped.
func (r *Router) Submit(u botapi.Update) error {
	r.inboxMu.RLock()
	defer r.inboxMu.RUnlock()

	if r.stopped.Load() {
		return ErrRouterStopped
	}

	env := envelope{Update: u, EventID: uuid.NewString(), Received: time.Now()}

	// Non-blocking send.
	select {
	case r.inbox <- env:
		return nil
	default:
		metrics.RouterDropped.Inc()
		r.logger.Warn("router: inbox full, update dropped",
			"update_id", u.UpdateID,
			"chat_id", laneID(u),
		)
		return ErrInboxFull
	}
}

// Pending returns the number of queued updates.
func (r *Router) Pending() int {
	return len(r.inbox)
}

// Busy returns the number of workers handling an update right now.
func (r *Router) Busy() int {
	return r.pool.Busy()
}

func (r *Router) process(ctx context.Context, env envelope) {
	chatID := laneID(env.Update)
	unlock, err := r.lanes.Lock(ctx, chatID)
	if err != nil {
		r.logger.Warn("router: update abandoned while waiting for its chat", "update_id", env.Update.UpdateID, "chat_id", chatID, "error", err)
		return
	}
	defer unlock()

	ev := newEvent(env.EventID, env.Update, r.dispatcher.Self())
	r.dispatcher.Dispatch(ctx, ev)
}

// Stop gracefully shuts down the router: closes inbox, drains workers, cancels context.
func (r *Router) Stop(_ context.Context) {
	r.stopOnce.Do(func() {
		r.logger.Info("router: stopping")

		r.inboxMu.Lock()
		r.stopped.Store(true)
		close(r.inbox)
		cancel := r.cancel
		r.inboxMu.Unlock()

		r.pool.Wait()
		if cancel != nil {
			cancel()
		}
		r.logger.Info("router: stopped")
	})
}
