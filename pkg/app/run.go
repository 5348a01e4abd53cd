// Package app provides the shared entry point of the gatekeep binary.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/flemzord/gatekeep/internal/config"
	"github.com/flemzord/gatekeep/internal/core"
	"github.com/flemzord/gatekeep/internal/gateway"
	"github.com/flemzord/gatekeep/internal/reload"
	"github.com/flemzord/gatekeep/internal/security"
	"github.com/flemzord/gatekeep/internal/tracing"
	"github.com/flemzord/gatekeep/modules/channel/telegram"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// Workspace overrides the default working directory.
	Workspace string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogFormat is "text" (default) or "json".
	LogFormat string

	// LogOutput overrides os.Stderr.
	LogOutput io.Writer

	// WatchConfig reloads modules when the configuration file changes.
	WatchConfig bool

	// Context, when cancelled, stops the application like SIGTERM does.
	// Used by the service manager.
	Context context.Context
}

// Run loads configuration, wires the bot, starts all modules, and blocks
// until a shutdown signal is received. SIGHUP reloads the configuration
// of modules that implement core.Reloader.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	cfg.Bot = cfg.Bot.WithDefaults()

	redactor := security.NewRedactor()
	redactor.AddLiteral(cfg.Bot.SpamWatch.Token)
	logger, err := newLogger(params, redactor)
	if err != nil {
		return err
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	workspace := params.Workspace
	if workspace == "" {
		workspace = DefaultWorkspace()
	}

	auditLogger, closeAudit, err := openAuditLog(cfg.Bot.AuditLog, dataDir, redactor)
	if err != nil {
		return err
	}
	defer closeAudit()

	rateLimiter := security.NewRateLimiter(cfg.Bot.RateLimits)

	appCtx := core.NewAppContext(logger, dataDir, workspace)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	// Register security services for cross-module discovery.
	appCtx.RegisterService(gateway.ServiceRedactor, redactor)
	appCtx.RegisterService("security.audit", auditLogger)
	appCtx.RegisterService("security.ratelimiter", rateLimiter)
	appCtx.RegisterService(gateway.ServiceConfigPath, cfgPath)

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.Bot.Tracing, "gatekeep", params.Version, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	application := core.NewApp(appCtx)
	if err := application.LoadModules(config.Resolve(cfg)); err != nil {
		return err
	}

	// Wire the bot between LoadModules and Start: the Telegram module has
	// provisioned its client and the store module its settings store.
	if err := wireBot(context.Background(), application, appCtx, cfg.Bot, logger, auditLogger, rateLimiter); err != nil {
		return err
	}

	reloader := reload.NewHandler(application, appCtx, cfgPath, logger)
	appCtx.RegisterService(gateway.ServiceReloader, reloader)
	logger.Debug("services registered", "names", appCtx.ServiceNames())

	if err := application.Start(); err != nil {
		return err
	}
	logger.Info("gatekeep started", "version", params.Version, "commit", params.Commit, "config", cfgPath)

	// --- signal handling ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	ctx := params.Context
	if ctx == nil {
		ctx = context.Background()
	}

	// --- file watcher ---
	var changes <-chan reload.Event
	if params.WatchConfig {
		watcher := reload.NewWatcher(reload.WatcherConfig{ConfigPath: cfgPath})
		watcher.Start(ctx)
		defer watcher.Stop()
		changes = watcher.Events()
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown requested")
		case evt := <-changes:
			logger.Info("config file changed, reloading", "path", evt.ConfigPath)
			if err := reloader.Reload(ctx); err != nil {
				logger.Error("reload failed", "error", err)
			}
			continue
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				logger.Info("SIGHUP received, reloading configuration")
				if err := reloader.Reload(ctx); err != nil {
					logger.Error("reload failed", "error", err)
				}
				continue
			}
			logger.Info("shutdown signal received", "signal", sig.String())
		}
		if err := application.Stop(); err != nil {
			logger.Warn("shutdown finished with errors", "error", err)
		} else {
			logger.Info("shutdown complete")
		}
		return nil
	}
}

// CheckConfig loads and validates the configuration at path without
// starting anything. It returns the module IDs in load order.
func CheckConfig(path string) ([]string, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	if _, ok := cfg.Modules[telegram.ModuleID]; !ok {
		return nil, fmt.Errorf("config: module %q is required", telegram.ModuleID)
	}
	return config.Resolve(cfg), nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(params RunParams, redactor *security.Redactor) (*slog.Logger, error) {
	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: params.LogLevel}

	var inner slog.Handler
	switch params.LogFormat {
	case "", "text":
		inner = slog.NewTextHandler(out, opts)
	case "json":
		inner = slog.NewJSONHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", params.LogFormat)
	}

	// Wrap the handler so tokens never reach the logs.
	return slog.New(security.NewRedactingHandler(inner, redactor)), nil
}

// openAuditLog opens the JSONL audit file. An empty path keeps the audit
// logger but discards its output.
func openAuditLog(path, dataDir string, redactor *security.Redactor) (*security.AuditLogger, func(), error) {
	if path == "" {
		return security.NewAuditLogger(security.AuditLoggerConfig{Writer: io.Discard, Redactor: redactor}), func() {}, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dataDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating audit log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audit log: %w", err)
	}
	audit := security.NewAuditLogger(security.AuditLoggerConfig{Writer: f, Redactor: redactor})
	return audit, func() { _ = f.Close() }, nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/gatekeep/gatekeep.yaml → ~/.config/gatekeep/gatekeep.yaml → ./gatekeep.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "gatekeep", "gatekeep.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "gatekeep", "gatekeep.yaml"))
	}

	candidates = append(candidates, "gatekeep.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w (searched: %v)", ErrNoConfig, candidates)
}

// ErrNoConfig is returned when no configuration file can be found.
var ErrNoConfig = errors.New("no configuration file found")

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/gatekeep if set, otherwise ~/.local/share/gatekeep.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "gatekeep")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "gatekeep")
}

// DefaultWorkspace returns the current working directory.
func DefaultWorkspace() string {
	dir, _ := os.Getwd()
	return dir
}
