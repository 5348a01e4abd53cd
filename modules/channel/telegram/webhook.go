package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/flemzord/gatekeep/internal/gateway"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

// SecretHeader carries the secret_token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookReceiver processes incoming Telegram webhook payloads.
// It implements gateway.WebhookHandler.
type WebhookReceiver struct {
	sink   Sink
	allow  *allowList
	logger *slog.Logger
	secret string
}

var (
	_ gateway.WebhookHandler       = (*WebhookReceiver)(nil)
	_ gateway.WebhookAuthenticator = (*WebhookReceiver)(nil)
)

// NewWebhookReceiver creates a new WebhookReceiver.
func NewWebhookReceiver(sink Sink, allow *allowList, logger *slog.Logger, secret string) *WebhookReceiver {
	return &WebhookReceiver{
		sink:   sink,
		allow:  allow,
		logger: logger,
		secret: secret,
	}
}

// AuthenticateWebhook compares the secret token header with the one
// registered through setWebhook. Without a configured secret every
// request is accepted.
func (w *WebhookReceiver) AuthenticateWebhook(headers http.Header) error {
	if w.secret == "" {
		return nil
	}
	token := headers.Get(SecretHeader)
	if subtle.ConstantTimeCompare([]byte(w.secret), []byte(token)) != 1 {
		return fmt.Errorf("telegram: invalid webhook secret token: %w", gateway.ErrUnauthorized)
	}
	return nil
}

// HandleWebhook decodes the update and hands it to the sink. The gateway
// has already called AuthenticateWebhook.
func (w *WebhookReceiver) HandleWebhook(_ context.Context, _ string, body []byte, _ http.Header) error {
	var u botapi.Update
	if err := json.Unmarshal(body, &u); err != nil {
		return fmt.Errorf("telegram: invalid update JSON: %w", err)
	}

	return deliver(w.sink, w.allow, w.logger, u)
}
