// Package securitytest records audit events for handler tests.
package securitytest

import (
	"sync"

	"github.com/flemzord/gatekeep/internal/security"
)

// NewTestAuditLogger creates an AuditLogger that records events in memory.
// Returns the logger and a function returning a snapshot of logged events.
func NewTestAuditLogger() (*security.AuditLogger, func() []security.AuditEvent) {
	var (
		mu     sync.Mutex
		events []security.AuditEvent
	)
	logger := security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(e security.AuditEvent) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		},
	})
	return logger, func() []security.AuditEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]security.AuditEvent(nil), events...)
	}
}
