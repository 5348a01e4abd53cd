package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// A module goes through Configure, Provision and Validate when it is
// loaded, then Start and Stop with the App. Each step is optional; the App
// calls the ones a module implements.

// Configurable modules receive their section of gatekeep.yaml, or nil when
// the section is absent.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules apply defaults and acquire what they need from the
// AppContext: services registered by earlier modules, the data directory,
// the logger. Services a module offers are registered here too.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check the provisioned configuration. Validate runs
// before Start and must not change any state.
type Validator interface {
	Validate() error
}

// Starter modules begin their background work: polling, listening, timers.
type Starter interface {
	Start() error
}

// Stopper modules release what Start acquired. The App stops modules in
// reverse start order, so update sources stop before the router drains
// and the store closes last.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Reloader modules accept a new configuration section while running. The
// section is available from ctx.ModuleConfig; a module that rejects it
// keeps its previous configuration.
type Reloader interface {
	Reload(ctx *AppContext) error
}
