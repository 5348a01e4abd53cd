package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/gatekeep/internal/security"
)

// ErrUnauthorized is returned (possibly wrapped) by a webhook source that
// rejects the caller's credentials. The dispatcher answers 401.
var ErrUnauthorized = errors.New("gateway: webhook unauthorized")

// WebhookHandler processes a validated webhook payload.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error
}

// WebhookAuthenticator is implemented by handlers that authenticate the
// caller from request headers. The dispatcher calls it before reading the
// body, so unauthenticated callers cannot make it buffer a payload.
type WebhookAuthenticator interface {
	AuthenticateWebhook(headers http.Header) error
}

// WebhookDispatcher routes POST /webhooks/{source} to registered handlers.
// Bodies are size and shape checked before any handler sees them.
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers map[string]WebhookHandler
	logger   *slog.Logger
	metrics  *Metrics
	maxBody  int
}

// NewWebhookDispatcher creates a ready-to-use dispatcher. metrics may be nil.
func NewWebhookDispatcher(logger *slog.Logger, metrics *Metrics, maxBody int) *WebhookDispatcher {
	if metrics == nil {
		metrics = &Metrics{}
	}
	if maxBody <= 0 {
		maxBody = security.DefaultMaxMessageSize
	}
	return &WebhookDispatcher{
		handlers: make(map[string]WebhookHandler),
		logger:   logger,
		metrics:  metrics,
		maxBody:  maxBody,
	}
}

// Register routes source to h, replacing any earlier handler.
func (d *WebhookDispatcher) Register(source string, h WebhookHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[source] = h
}

// Unregister removes the handler for source.
func (d *WebhookDispatcher) Unregister(source string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, source)
}

func (d *WebhookDispatcher) lookup(source string) (WebhookHandler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[source]
	return h, ok
}

// ServeHTTP implements http.Handler. The source comes from the chi
// "source" URL parameter.
func (d *WebhookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source := chi.URLParam(r, "source")
	h, ok := d.lookup(source)
	if !ok {
		d.logger.Warn("webhook received for unregistered source", "source", source)
		http.Error(w, "unknown source", http.StatusNotFound)
		return
	}

	if auth, ok := h.(WebhookAuthenticator); ok {
		if err := auth.AuthenticateWebhook(r.Header); err != nil {
			d.reject(w, source, err)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, int64(d.maxBody)+1))
	if err == nil {
		err = security.ValidateUpdate(body, d.maxBody)
	}
	if err != nil {
		d.reject(w, source, err)
		return
	}

	if err := h.HandleWebhook(r.Context(), source, body, r.Header); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			d.reject(w, source, err)
			return
		}
		d.metrics.RecordFailed()
		d.logger.Error("webhook handler failed", "source", source, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	d.metrics.RecordReceived()
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"ok":true}`)
}

// reject answers a request refused before or by authentication, or for
// its body.
func (d *WebhookDispatcher) reject(w http.ResponseWriter, source string, err error) {
	d.metrics.RecordRejected()
	d.logger.Warn("webhook rejected", "source", source, "error", err)

	switch {
	case errors.Is(err, ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, security.ErrMessageTooLarge):
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
	default:
		http.Error(w, "invalid payload", http.StatusBadRequest)
	}
}
