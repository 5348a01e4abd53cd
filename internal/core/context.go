// Package core provides the module system foundation for gatekeep.
package core

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AppContext carries shared resources available to modules during provisioning
// and at runtime.
type AppContext struct {
	// Logger is scoped to the module being loaded, if any.
	Logger *slog.Logger

	// DataDir is the root directory for persistent module data.
	DataDir string

	// Workspace is the working directory the process was started in.
	Workspace string

	root     *slog.Logger
	configs  map[string]yaml.Node
	services *services
}

// NewAppContext creates a root AppContext. A nil logger means slog.Default.
func NewAppContext(logger *slog.Logger, dataDir, workspace string) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:    logger,
		DataDir:   dataDir,
		Workspace: workspace,
		root:      logger,
		services:  newServices(),
	}
}

// DataPath joins elem onto DataDir.
func (ctx *AppContext) DataPath(elem ...string) string {
	return filepath.Join(append([]string{ctx.DataDir}, elem...)...)
}

// WithModuleConfigs returns a copy of ctx carrying configs, keyed by
// module ID. Services stay shared with ctx.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.configs = configs
	return &cp
}

// ModuleConfig returns the raw configuration node of module id.
func (ctx *AppContext) ModuleConfig(id string) (*yaml.Node, bool) {
	node, ok := ctx.configs[id]
	if !ok {
		return nil, false
	}
	return &node, true
}

// ForModule returns a copy of ctx whose Logger carries a "module" attribute.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	cp := *ctx
	cp.Logger = ctx.root.With("module", string(id))
	return &cp
}

// LoadModule instantiates module id and runs it through
//
//	New → Configure → Provision → Validate
//
// skipping the steps the module does not implement. Configure only runs
// when ctx holds a section for id.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("unknown module: %s", id)
	}
	mod := info.New()

	steps := []struct {
		verb string
		run  func() error
	}{
		{"configuring", func() error {
			c, ok := mod.(Configurable)
			if !ok {
				return nil
			}
			node, ok := ctx.ModuleConfig(id)
			if !ok {
				return nil
			}
			return c.Configure(node)
		}},
		{"provisioning", func() error {
			if p, ok := mod.(Provisioner); ok {
				return p.Provision(ctx.ForModule(info.ID))
			}
			return nil
		}},
		{"validating", func() error {
			if v, ok := mod.(Validator); ok {
				return v.Validate()
			}
			return nil
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return nil, fmt.Errorf("%s module %s: %w", step.verb, id, err)
		}
	}
	return mod, nil
}
