// Package crontest provides a manually driven one-shot scheduler for tests.
package crontest

import (
	"context"
	"sort"
	"sync"
	"time"
)

// OnceCall is a pending one-shot callback held by ManualScheduler.
type OnceCall struct {
	Name  string
	Delay time.Duration
	fn    func(context.Context)
}

// ManualScheduler records one-shot callbacks and fires them only when the
// test asks, so timeouts can be exercised without sleeping.
type ManualScheduler struct {
	mu      sync.Mutex
	pending map[string]*OnceCall
	seq     int
	order   map[string]int
}

// NewManualScheduler returns an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{
		pending: make(map[string]*OnceCall),
		order:   make(map[string]int),
	}
}

// ScheduleOnce records fn under name, replacing any pending call.
func (m *ManualScheduler) ScheduleOnce(name string, delay time.Duration, fn func(context.Context)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := &OnceCall{Name: name, Delay: delay, fn: fn}
	m.pending[name] = call
	m.seq++
	m.order[name] = m.seq

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.pending[name] == call {
			delete(m.pending, name)
		}
	}
}

// Pending returns the pending calls in scheduling order.
func (m *ManualScheduler) Pending() []OnceCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]OnceCall, 0, len(m.pending))
	for _, c := range m.pending {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return m.order[out[i].Name] < m.order[out[j].Name] })
	return out
}

// Fire runs the pending call registered under name, as if its delay had
// elapsed. It reports whether a call was pending.
func (m *ManualScheduler) Fire(ctx context.Context, name string) bool {
	m.mu.Lock()
	call, ok := m.pending[name]
	if ok {
		delete(m.pending, name)
	}
	m.mu.Unlock()

	if ok {
		call.fn(ctx)
	}
	return ok
}

// FireStale runs fn of a call even if it was cancelled, reproducing a timer
// that fired concurrently with its cancellation.
func (c OnceCall) FireStale(ctx context.Context) {
	c.fn(ctx)
}
