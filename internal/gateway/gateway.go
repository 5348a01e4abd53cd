// Package gateway provides the HTTP server for health checks, Prometheus
// metrics, administration and Bot API webhooks. It binds to loopback by
// default.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/gatekeep/internal/core"
	"github.com/flemzord/gatekeep/internal/cron"
	"github.com/flemzord/gatekeep/internal/security"
)

// Service names the gateway registers or looks up.
const (
	ServiceWebhookDispatcher = "gateway.webhook_dispatcher"
	ServiceWaitlist          = "bot.waitlist"
	ServiceQueue             = "bot.router"
	ServiceScheduler         = "bot.scheduler"
	ServiceConfigPath        = "config.path"
	ServiceReloader          = "reload.handler"
	ServiceRedactor          = "security.redactor"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Counter reports a number of pending items (waitlist entries, queued updates).
type Counter interface {
	Len() int
}

// QueueCounter reports the router's backlog: updates waiting for a worker
// and workers currently busy.
type QueueCounter interface {
	Pending() int
	Busy() int
}

// JobLister lists scheduled maintenance jobs and timers.
type JobLister interface {
	Entries() []cron.EntryInfo
	PendingOnce() int
}

// Reloader applies the configuration file to the running modules.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Gateway is the HTTP gateway module. Nothing imports it; other modules
// reach it through the webhook dispatcher service.
type Gateway struct {
	config     Config
	appCtx     *core.AppContext
	logger     *slog.Logger
	server     *http.Server
	metrics    *Metrics
	dispatcher *WebhookDispatcher
	audit      *security.AuditLogger
	limiter    *security.RateLimiter
	startedAt  time.Time

	// Resolved at Start() via the service registry; the bot is wired
	// after modules are provisioned.
	waitlist   Counter
	queue      QueueCounter
	jobs       JobLister
	reloader   Reloader
	redactor   *security.Redactor
	configPath string
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = &Metrics{}
	g.dispatcher = NewWebhookDispatcher(g.logger, g.metrics, g.config.MaxBodyBytes)

	g.audit, _ = core.Service[*security.AuditLogger](ctx, "security.audit")
	g.limiter, _ = core.Service[*security.RateLimiter](ctx, "security.ratelimiter")

	ctx.RegisterService(ServiceWebhookDispatcher, g.dispatcher)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	return g.config.validate()
}

// Start implements core.Starter. Optional services are resolved here; a
// missing one leaves the corresponding field out of the responses.
func (g *Gateway) Start() error {
	g.resolveServices()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

func (g *Gateway) resolveServices() {
	g.waitlist, _ = core.Service[Counter](g.appCtx, ServiceWaitlist)
	g.queue, _ = core.Service[QueueCounter](g.appCtx, ServiceQueue)
	g.jobs, _ = core.Service[JobLister](g.appCtx, ServiceScheduler)
	g.reloader, _ = core.Service[Reloader](g.appCtx, ServiceReloader)
	g.configPath, _ = core.Service[string](g.appCtx, ServiceConfigPath)
	if g.redactor, _ = core.Service[*security.Redactor](g.appCtx, ServiceRedactor); g.redactor == nil {
		g.redactor = security.NewRedactor()
	}
	g.startedAt = time.Now()
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
