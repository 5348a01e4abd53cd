package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/flemzord/gatekeep/internal/gateway"
)

func TestWebhookReceiver(t *testing.T) {
	t.Parallel()

	update, err := json.Marshal(groupMessage(7, -100))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		secret    string
		header    string
		body      []byte
		allow     []int64
		wantErr   error
		wantIDs   int
		wantError bool
	}{
		{name: "valid secret", secret: "s3", header: "s3", body: update, wantIDs: 1},
		{name: "no secret configured", body: update, wantIDs: 1},
		{name: "wrong secret", secret: "s3", header: "nope", body: update, wantErr: gateway.ErrUnauthorized},
		{name: "missing secret", secret: "s3", body: update, wantErr: gateway.ErrUnauthorized},
		{name: "invalid json", body: []byte(`{"update_id":`), wantError: true},
		{name: "chat not allowed", body: update, allow: []int64{-200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := &collector{}
			w := NewWebhookReceiver(c.sink, newAllowList(tt.allow), discardLogger(), tt.secret)
			h := http.Header{}
			if tt.header != "" {
				h.Set(SecretHeader, tt.header)
			}

			err := w.AuthenticateWebhook(h)
			if err == nil {
				err = w.HandleWebhook(context.Background(), "telegram", tt.body, h)
			}
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
			case tt.wantError:
				if err == nil {
					t.Error("err = nil, want decode error")
				}
			case err != nil:
				t.Errorf("err = %v", err)
			}
			if got := len(c.ids()); got != tt.wantIDs {
				t.Errorf("delivered %d updates, want %d", got, tt.wantIDs)
			}
		})
	}
}

func TestWebhookReceiver_SinkErrorPropagates(t *testing.T) {
	t.Parallel()

	body, _ := json.Marshal(groupMessage(1, -100))
	c := &collector{err: errors.New("router: stopped")}
	w := NewWebhookReceiver(c.sink, newAllowList(nil), discardLogger(), "")

	if err := w.HandleWebhook(context.Background(), "telegram", body, http.Header{}); err == nil {
		t.Error("err = nil, want sink error so Telegram retries")
	}
}
