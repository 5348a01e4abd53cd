package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

const shutdownTimeout = 30 * time.Second

// App owns the modules of one gatekeep process: those loaded from the
// configuration and the bot components inserted during wiring.
type App struct {
	ctx     *AppContext
	modules []moduleInstance
	logger  *slog.Logger
}

type moduleInstance struct {
	id      ModuleID
	module  Module
	started bool
}

// NewApp creates a new App with the given context.
func NewApp(ctx *AppContext) *App {
	return &App{
		ctx:    ctx,
		logger: ctx.Logger.With("component", "core"),
	}
}

// LoadModules loads the modules in ids order through AppContext.LoadModule.
// On failure the modules loaded so far are unloaded and the App is left
// empty.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.unload()
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		info := mod.ModuleInfo()
		a.modules = append(a.modules, moduleInstance{
			id:     info.ID,
			module: mod,
		})
		a.logger.Info("module loaded", "module", string(info.ID))
	}
	return nil
}

// ModuleIDs returns the IDs of the loaded modules in load order.
func (a *App) ModuleIDs() []ModuleID {
	ids := make([]ModuleID, 0, len(a.modules))
	for _, mi := range a.modules {
		ids = append(ids, mi.id)
	}
	return ids
}

// Module returns the loaded module with the given ID.
func (a *App) Module(id string) (Module, bool) {
	for _, mi := range a.modules {
		if string(mi.id) == id {
			return mi.module, true
		}
	}
	return nil, false
}

// InsertModule adds an already built module to the lifecycle, ahead of
// the loaded module before. When before is not loaded, mod goes last.
// Used for components assembled during wiring rather than loaded from
// configuration.
func (a *App) InsertModule(before, id string, mod Module) {
	mi := moduleInstance{id: ModuleID(id), module: mod}
	for i := range a.modules {
		if string(a.modules[i].id) == before {
			a.modules = slices.Insert(a.modules, i, mi)
			return
		}
	}
	a.modules = append(a.modules, mi)
}

// Start runs Start on every module that has one, in order. When a module
// fails, the modules started before it are stopped again.
func (a *App) Start() error {
	for i := range a.modules {
		mi := &a.modules[i]
		s, ok := mi.module.(Starter)
		if !ok {
			continue
		}
		a.logger.Debug("starting module", "module", string(mi.id))
		if err := s.Start(); err != nil {
			a.logger.Error("module start failed", "module", string(mi.id), "error", err)
			_ = a.stopFrom(i - 1)
			return fmt.Errorf("starting module %s: %w", mi.id, err)
		}
		mi.started = true
	}
	a.logger.Info("all modules started", "count", len(a.modules))
	return nil
}

// Stop stops the started modules in reverse order. All modules share one
// shutdown deadline; a module that overruns it eats into the time of the
// ones after it. Errors are logged and returned joined.
func (a *App) Stop() error {
	return a.stopFrom(len(a.modules) - 1)
}

func (a *App) stopFrom(last int) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for i := last; i >= 0; i-- {
		mi := &a.modules[i]
		if !mi.started {
			continue
		}
		mi.started = false
		s, ok := mi.module.(Stopper)
		if !ok {
			continue
		}
		begin := time.Now()
		if err := s.Stop(ctx); err != nil {
			a.logger.Error("module stop failed", "module", string(mi.id), "error", err)
			errs = append(errs, fmt.Errorf("stopping module %s: %w", mi.id, err))
			continue
		}
		a.logger.Debug("module stopped", "module", string(mi.id), "took", time.Since(begin))
	}
	return errors.Join(errs...)
}

// unload stops every loaded module, started or not, after a failed
// LoadModules. Provision may already have opened files or connections.
func (a *App) unload() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(a.modules) - 1; i >= 0; i-- {
		if s, ok := a.modules[i].module.(Stopper); ok {
			_ = s.Stop(ctx)
		}
	}
	a.modules = nil
}

// ReloadModules calls Reload on all loaded modules that implement Reloader.
// Returns a joined error if any module fails to reload.
func (a *App) ReloadModules(ctx *AppContext) error {
	var errs []error
	for i := range a.modules {
		mi := &a.modules[i]
		r, ok := mi.module.(Reloader)
		if !ok {
			continue
		}
		moduleCtx := ctx.ForModule(mi.id)
		a.logger.Info("reloading module", "module", string(mi.id))
		if err := r.Reload(moduleCtx); err != nil {
			a.logger.Error("module reload failed", "module", string(mi.id), "error", err)
			errs = append(errs, fmt.Errorf("reloading module %s: %w", mi.id, err))
		}
	}
	return errors.Join(errs...)
}
