package core

import (
	"slices"
	"sync"
)

// services is shared by every AppContext derived from the same root, so a
// service registered during one module's Provision is visible to the
// modules loaded after it and to the wiring code in pkg/app.
type services struct {
	mu     sync.RWMutex
	byName map[string]any
}

func newServices() *services {
	return &services{byName: make(map[string]any)}
}

func (s *services) put(name string, svc any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byName[name] = svc
}

func (s *services) get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.byName[name]
	return svc, ok
}

func (s *services) names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RegisterService makes svc discoverable under name. A later registration
// under the same name replaces the earlier one.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.services.put(name, svc)
}

// GetService returns the service registered under name.
func (ctx *AppContext) GetService(name string) (any, bool) {
	return ctx.services.get(name)
}

// ServiceNames lists registered service names in sorted order.
func (ctx *AppContext) ServiceNames() []string {
	return ctx.services.names()
}

// Service looks up name and asserts it to T. A service of another type
// is reported as absent.
func Service[T any](ctx *AppContext, name string) (T, bool) {
	raw, ok := ctx.GetService(name)
	if !ok {
		var zero T
		return zero, false
	}
	svc, ok := raw.(T)
	return svc, ok
}
