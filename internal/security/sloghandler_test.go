package security

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

const testBotToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"

func newRedactingLogger(buf *bytes.Buffer, literals ...string) *slog.Logger {
	r := NewRedactor()
	for _, l := range literals {
		r.AddLiteral(l)
	}
	inner := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewRedactingHandler(inner, r))
}

func TestRedactingHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		log      func(*slog.Logger)
		hidden   []string
		visible  []string
		literals []string
	}{
		{
			name:    "token in message",
			log:     func(l *slog.Logger) { l.Info("polling with " + testBotToken) },
			hidden:  []string{testBotToken},
			visible: []string{"polling with", RedactPlaceholder},
		},
		{
			name: "bot api url inside an error",
			log: func(l *slog.Logger) {
				err := fmt.Errorf("getUpdates: %w", errors.New(`Post "https://api.telegram.org/bot`+testBotToken+`/getUpdates": EOF`))
				l.Warn("poll failed", "error", err)
			},
			hidden:  []string{testBotToken},
			visible: []string{"api.telegram.org/bot" + RedactPlaceholder},
		},
		{
			name:     "spamwatch literal in a plain attribute",
			log:      func(l *slog.Logger) { l.Info("lookup", "header", "sw-literal-value", "user_id", 42) },
			literals: []string{"sw-literal-value"},
			hidden:   []string{"sw-literal-value"},
			visible:  []string{"user_id=42"},
		},
		{
			name:    "secret keyed attribute masked whole",
			log:     func(l *slog.Logger) { l.Info("webhook set", "webhook_secret", "short", "mode", "webhook") },
			hidden:  []string{"short"},
			visible: []string{"mode=webhook", "webhook_secret=" + RedactPlaceholder},
		},
		{
			name:    "empty secret stays empty",
			log:     func(l *slog.Logger) { l.Info("config", "bot_token", "") },
			hidden:  []string{RedactPlaceholder},
			visible: []string{"bot_token=\"\""},
		},
		{
			name: "nested group",
			log: func(l *slog.Logger) {
				l.Info("request", slog.Group("spamwatch", slog.String("token", "abc"), slog.Int64("user_id", 7)))
			},
			hidden:  []string{"=abc"},
			visible: []string{"spamwatch.user_id=7"},
		},
		{
			name:    "chat ids and times untouched",
			log:     func(l *slog.Logger) { l.Info("muted", "chat_id", int64(-1001234567890), "until", "12:30") },
			hidden:  []string{RedactPlaceholder},
			visible: []string{"chat_id=-1001234567890", "until=12:30"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			tt.log(newRedactingLogger(&buf, tt.literals...))
			out := buf.String()

			for _, s := range tt.hidden {
				if strings.Contains(out, s) {
					t.Errorf("output contains %q: %s", s, out)
				}
			}
			for _, s := range tt.visible {
				if !strings.Contains(out, s) {
					t.Errorf("output missing %q: %s", s, out)
				}
			}
		})
	}
}

func TestRedactingHandler_DerivedLoggers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newRedactingLogger(&buf, "persistent-secret").
		With("module", "channel.telegram", "api_key", "anything").
		WithGroup("update")

	logger.Info("received", "raw", "persistent-secret", "chat_id", 5)

	out := buf.String()
	for _, leaked := range []string{"persistent-secret", "anything"} {
		if strings.Contains(out, leaked) {
			t.Errorf("output contains %q: %s", leaked, out)
		}
	}
	if !strings.Contains(out, "module=channel.telegram") || !strings.Contains(out, "update.chat_id=5") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRedactingHandler_Enabled(t *testing.T) {
	t.Parallel()

	inner := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	h := NewRedactingHandler(inner, NewRedactor())

	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug enabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error disabled at warn level")
	}
}

func TestIsSensitiveKey(t *testing.T) {
	t.Parallel()

	for key, want := range map[string]bool{
		"token":          true,
		"bot_token":      true,
		"Webhook-Secret": true,
		"auth.password":  true,
		"api_key":        true,
		"key":            true,
		"tokens":         false,
		"monkey":         false,
		"chat_id":        false,
		"keyboard":       false,
	} {
		if got := isSensitiveKey(key); got != want {
			t.Errorf("isSensitiveKey(%q) = %v, want %v", key, got, want)
		}
	}
}
