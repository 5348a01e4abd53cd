package security

import (
	"encoding/json"
	"io"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/gatekeep/internal/metrics"
)

// EventType names an audit event in the JSONL file.
type EventType string

// Moderation events carry the chat, the acting admin and the target user.
// Auth events come from the gateway and carry request metadata instead.
const (
	EventNewGroup      EventType = "new_group"
	EventMute          EventType = "mute"
	EventUnmute        EventType = "unmute"
	EventBan           EventType = "ban"
	EventVerifyPassed  EventType = "verify_passed"
	EventVerifyExpired EventType = "verify_expired"
	EventSettingChange EventType = "setting_change"
	EventNotesCleared  EventType = "notes_cleared"
	EventGlobalBan     EventType = "global_ban"
	EventGlobalUnban   EventType = "global_unban"

	EventAuthSuccess EventType = "auth_success"
	EventAuthFailure EventType = "auth_failure"
	EventRateLimit   EventType = "rate_limit"
)

// AuditEvent is one line of the audit log.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	ChatID    int64             `json:"chat_id,omitempty"`
	ActorID   int64             `json:"actor_id,omitempty"`
	TargetID  int64             `json:"target_id,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditLoggerConfig configures NewAuditLogger.
type AuditLoggerConfig struct {
	// Writer receives one JSON object per line. Nil keeps events in
	// memory only, for OnEvent.
	Writer io.Writer

	// Redactor scrubs Detail and Metadata values; note text and welcome
	// messages end up in Detail and may quote anything.
	Redactor *Redactor

	// OnEvent sees every event after redaction.
	OnEvent func(AuditEvent)

	Now func() time.Time
}

// AuditLogger records moderation actions and admin API access. A nil
// *AuditLogger is valid and drops everything, so handlers need no checks.
type AuditLogger struct {
	redactor *Redactor
	onEvent  func(AuditEvent)
	now      func() time.Time

	mu  sync.Mutex
	enc *json.Encoder

	failed atomic.Int64
}

// NewAuditLogger returns a logger writing to cfg.Writer.
func NewAuditLogger(cfg AuditLoggerConfig) *AuditLogger {
	l := &AuditLogger{
		redactor: cfg.Redactor,
		onEvent:  cfg.OnEvent,
		now:      cfg.Now,
	}
	if l.now == nil {
		l.now = time.Now
	}
	if cfg.Writer != nil {
		l.enc = json.NewEncoder(cfg.Writer)
	}
	return l
}

// Log stamps, redacts and records event. The caller's Metadata map is
// copied, never modified.
func (l *AuditLogger) Log(event AuditEvent) {
	if l == nil {
		return
	}
	event.Timestamp = l.now()
	event.Metadata = maps.Clone(event.Metadata)
	if l.redactor != nil {
		event.Detail = l.redactor.Redact(event.Detail)
		for k, v := range event.Metadata {
			event.Metadata[k] = l.redactor.Redact(v)
		}
	}
	metrics.AuditEvents.WithLabelValues(string(event.Type)).Inc()

	// Both sinks see events in the same order.
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.onEvent != nil {
		l.onEvent(event)
	}
	if l.enc != nil {
		if err := l.enc.Encode(event); err != nil {
			l.failed.Add(1)
			metrics.AuditWriteErrors.Inc()
		}
	}
}

// WriteErrors returns how many events this logger failed to write.
func (l *AuditLogger) WriteErrors() int64 {
	if l == nil {
		return 0
	}
	return l.failed.Load()
}
