package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/gatekeep/internal/antispam"
	"github.com/flemzord/gatekeep/internal/config"
	"github.com/flemzord/gatekeep/internal/core"
	"github.com/flemzord/gatekeep/internal/cron"
	"github.com/flemzord/gatekeep/internal/gateway"
	"github.com/flemzord/gatekeep/internal/guard"
	"github.com/flemzord/gatekeep/internal/moderation"
	"github.com/flemzord/gatekeep/internal/notes"
	"github.com/flemzord/gatekeep/internal/role"
	"github.com/flemzord/gatekeep/internal/router"
	"github.com/flemzord/gatekeep/internal/security"
	"github.com/flemzord/gatekeep/internal/settings"
	"github.com/flemzord/gatekeep/internal/waitlist"
	"github.com/flemzord/gatekeep/internal/welcome"
	"github.com/flemzord/gatekeep/modules/channel/telegram"
	"github.com/flemzord/gatekeep/modules/store/sqlite"
)

// reapGrace is how long past its verify timeout a challenge may live
// before the reaper job expires it.
const reapGrace = time.Minute

// routerModule wraps a *router.Router to satisfy core.Module, core.Starter,
// and core.Stopper, so the router participates in the App lifecycle.
type routerModule struct {
	router *router.Router
	ctx    context.Context
}

func (m *routerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "bot.router"}
}

func (m *routerModule) Start() error {
	m.router.Start(m.ctx)
	return nil
}

func (m *routerModule) Stop(ctx context.Context) error {
	m.router.Stop(ctx)
	return nil
}

// schedulerModule does the same for the cron scheduler.
type schedulerModule struct {
	scheduler *cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "bot.scheduler"}
}

func (m *schedulerModule) Start() error { return m.scheduler.Start() }

func (m *schedulerModule) Stop(ctx context.Context) error { return m.scheduler.Stop(ctx) }

// registrar is implemented by every feature package.
type registrar interface {
	Register(d *router.Dispatcher, checks *guard.Checks) error
}

// wireBot builds the role oracle, waitlist, scheduler and feature handlers
// on top of the Telegram client, registers them with a dispatcher, and
// puts the router and scheduler into the app lifecycle ahead of the
// Telegram module. Must be called after LoadModules and before Start.
func wireBot(
	ctx context.Context,
	app *core.App,
	appCtx *core.AppContext,
	cfg config.BotConfig,
	logger *slog.Logger,
	auditLogger *security.AuditLogger,
	rateLimiter *security.RateLimiter,
) error {
	mod, ok := app.Module(telegram.ModuleID)
	if !ok {
		return fmt.Errorf("module %s is required", telegram.ModuleID)
	}
	tg, ok := mod.(*telegram.Telegram)
	if !ok {
		return fmt.Errorf("module %s has unexpected type %T", telegram.ModuleID, mod)
	}
	bot := tg.Client()

	me, err := tg.Identify(ctx)
	if err != nil {
		return err
	}
	self := router.Identity{ID: me.ID, Username: me.Username}

	store, ok := core.Service[settings.Store](appCtx, sqlite.ServiceName)
	if !ok {
		logger.Warn("no store module configured, settings are kept in memory and lost on restart")
		store = settings.NewMemoryStore()
	}

	cache, err := role.NewAdminCache(role.CacheConfig{
		TTL:    cfg.AdminCacheTTL,
		Size:   cfg.AdminCacheSize,
		Logger: logger,
	}, role.AdminFetcher(bot))
	if err != nil {
		return fmt.Errorf("creating admin cache: %w", err)
	}
	oracle := role.NewOracle(role.NewRoster(cfg.RosterConfig), cache, bot, logger)
	pending := waitlist.New()
	scheduler := cron.NewScheduler(logger)

	var remote antispam.Lookuper
	if cfg.SpamWatch.Token != "" {
		sw, err := antispam.NewSpamWatch(antispam.SpamWatchConfig{
			BaseURL: cfg.SpamWatch.APIURL,
			Token:   cfg.SpamWatch.Token,
		})
		if err != nil {
			return fmt.Errorf("creating spamwatch client: %w", err)
		}
		remote = sw
	}
	checker := antispam.NewChecker(store, remote, logger)

	pipeline, err := welcome.New(welcome.Config{
		Bot:              bot,
		Store:            store,
		Oracle:           oracle,
		Waitlist:         pending,
		Scheduler:        scheduler,
		Bans:             checker,
		Self:             self,
		AuditChatID:      cfg.AuditChatID,
		Audit:            auditLogger,
		VerifyTimeout:    cfg.VerifyTimeout,
		SoftMuteDuration: cfg.SoftMuteDuration,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	features := []registrar{
		pipeline,
		antispam.NewEnforcer(antispam.EnforcerConfig{
			Bot:     bot,
			Store:   store,
			Checker: checker,
			Oracle:  oracle,
			SelfID:  self.ID,
			Audit:   auditLogger,
			Logger:  logger,
		}),
		moderation.New(moderation.Config{
			Bot:    bot,
			Oracle: oracle,
			SelfID: self.ID,
			Audit:  auditLogger,
			Logger: logger,
		}),
		notes.New(notes.Config{
			Bot:    bot,
			Store:  store,
			Oracle: oracle,
			Audit:  auditLogger,
			Logger: logger,
		}),
	}

	dispatcher := router.NewDispatcher(router.DispatcherConfig{
		Bot:         bot,
		Self:        self,
		RateLimiter: rateLimiter,
		Logger:      logger,
	})
	checks := &guard.Checks{Oracle: oracle, DeleteCommands: cfg.DeleteCommands, Logger: logger}
	var errs []error
	for _, f := range features {
		if err := f.Register(dispatcher, checks); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("registering handlers: %w", err)
	}

	r, err := router.NewRouter(router.Config{
		WorkerCount: cfg.Workers,
		InboxSize:   cfg.InboxSize,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating router: %w", err)
	}
	tg.SetSink(r.Submit)

	jobs := []cron.Job{
		&cron.WaitlistReaperJob{Expirer: pipeline, MaxAge: cfg.VerifyTimeout + reapGrace, Logger: logger},
		&cron.AdminCachePruneJob{Cache: cache, Logger: logger},
	}
	for _, j := range jobs {
		if err := scheduler.RegisterJob(j); err != nil {
			return fmt.Errorf("registering job %s: %w", j.Name(), err)
		}
	}

	// Start order: scheduler, router, Telegram. Stop runs in reverse so
	// the router drains before the scheduler goes away.
	app.InsertModule(telegram.ModuleID, "bot.scheduler", &schedulerModule{scheduler: scheduler})
	app.InsertModule(telegram.ModuleID, "bot.router", &routerModule{router: r, ctx: context.Background()})

	appCtx.RegisterService(gateway.ServiceWaitlist, pending)
	appCtx.RegisterService(gateway.ServiceQueue, r)
	appCtx.RegisterService(gateway.ServiceScheduler, scheduler)

	logger.Info("bot wired", "bot", "@"+self.Username, "store", fmt.Sprintf("%T", store))
	return nil
}
