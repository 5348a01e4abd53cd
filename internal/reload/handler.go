package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/gatekeep/internal/config"
	"github.com/flemzord/gatekeep/internal/core"
)

// ServiceName is the AppContext key of the *Handler.
const ServiceName = "reload.handler"

// Handler re-reads the configuration file and hands every module section
// to the modules that implement core.Reloader. Reloads are serialized.
type Handler struct {
	app        *core.App
	appCtx     *core.AppContext
	configPath string
	logger     *slog.Logger

	mu   sync.Mutex
	last time.Time
}

// NewHandler creates a reload handler. appCtx is the application context
// the modules were provisioned with; services stay visible on reload.
func NewHandler(app *core.App, appCtx *core.AppContext, configPath string, logger *slog.Logger) *Handler {
	return &Handler{
		app:        app,
		appCtx:     appCtx,
		configPath: configPath,
		logger:     logger,
	}
}

// Reload loads and validates the configuration, then reloads modules.
// An invalid file leaves the running configuration untouched.
func (h *Handler) Reload(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before reload: %w", err)
	}

	cfg, err := config.Load(h.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if err := h.app.ReloadModules(h.appCtx.WithModuleConfigs(cfg.Modules)); err != nil {
		return fmt.Errorf("reloading modules: %w", err)
	}

	h.last = time.Now()
	h.logger.Info("configuration reloaded", "path", h.configPath)
	return nil
}

// LastReload returns when the last successful reload finished.
func (h *Handler) LastReload() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}
