// Package sqlite implements the persistent settings store backed by
// modernc.org/sqlite, a pure Go driver.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/gatekeep/internal/core"
	"github.com/flemzord/gatekeep/internal/settings"
)

// ServiceName is the AppContext service key under which the store is registered.
const ServiceName = "settings.store"

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ settings.Store    = (*Store)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module exposes a SQLite-backed settings.Store to the application.
type Module struct {
	config Config
	store  *Store
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	switch {
	case m.config.Path == "":
		m.config.Path = ctx.DataPath(defaultDBFile)
	case !filepath.IsAbs(m.config.Path):
		m.config.Path = ctx.DataPath(m.config.Path)
	}

	if err := m.config.validate(); err != nil {
		return err
	}
	store, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.store = store

	ctx.RegisterService(ServiceName, store)

	m.logger.Info("sqlite store provisioned",
		"path", m.config.Path,
		"journal", m.config.Journal,
		"schema_version", schemaVersion,
	)
	return nil
}

// Validate implements core.Validator. It checks that the database answers
// and is at the schema version this binary writes.
func (m *Module) Validate() error {
	v, err := userVersion(context.Background(), m.store.db)
	if err != nil {
		return err
	}
	if v != schemaVersion {
		return fmt.Errorf("sqlite: schema version %d, want %d", v, schemaVersion)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("sqlite store stopping")
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// Store returns the underlying store.
func (m *Module) Store() *Store {
	return m.store
}
