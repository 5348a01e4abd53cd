package botapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	body, _ := io.ReadAll(r.Body)
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	return m
}

func TestGetMe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTEST_TOKEN/getMe" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		writeJSON(t, w, APIResponse[User]{
			OK:     true,
			Result: User{ID: 123, IsBot: true, FirstName: "GateBot", Username: "gate_bot"},
		})
	}))
	defer srv.Close()

	user, err := NewClient("TEST_TOKEN", srv.URL).GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe() error: %v", err)
	}
	if user.ID != 123 || !user.IsBot || user.Username != "gate_bot" {
		t.Errorf("GetMe() = %+v", user)
	}
}

func TestSendMessage_WithKeyboard(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req SendMessageRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("unmarshal request: %v", err)
		}
		if req.ChatID != -100 || req.Text != "hello" {
			t.Errorf("request = %+v", req)
		}
		if req.ReplyMarkup == nil || len(req.ReplyMarkup.InlineKeyboard) != 1 {
			t.Fatalf("ReplyMarkup = %+v, want one row", req.ReplyMarkup)
		}
		if got := req.ReplyMarkup.InlineKeyboard[0][0].CallbackData; got != "verify" {
			t.Errorf("CallbackData = %q, want verify", got)
		}
		writeJSON(t, w, APIResponse[Message]{OK: true, Result: Message{MessageID: 7}})
	}))
	defer srv.Close()

	msg, err := NewClient("TOKEN", srv.URL).SendMessage(context.Background(), SendMessageRequest{
		ChatID: -100,
		Text:   "hello",
		ReplyMarkup: &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
			{{Text: "ok", CallbackData: "verify"}},
		}},
	})
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if msg.MessageID != 7 {
		t.Errorf("MessageID = %d, want 7", msg.MessageID)
	}
}

func TestSendMedia_MethodPerKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind   MediaKind
		path   string
		field  string
		hasCap bool
	}{
		{MediaSticker, "/botT/sendSticker", "sticker", false},
		{MediaPhoto, "/botT/sendPhoto", "photo", true},
		{MediaDocument, "/botT/sendDocument", "document", true},
		{MediaAudio, "/botT/sendAudio", "audio", true},
		{MediaVoice, "/botT/sendVoice", "voice", true},
		{MediaVideo, "/botT/sendVideo", "video", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.path {
					t.Errorf("path = %s, want %s", r.URL.Path, tt.path)
				}
				body := decodeBody(t, r)
				if body[tt.field] != "FILE" {
					t.Errorf("%s = %v, want FILE", tt.field, body[tt.field])
				}
				if _, ok := body["caption"]; ok != tt.hasCap {
					t.Errorf("caption present = %v, want %v", ok, tt.hasCap)
				}
				writeJSON(t, w, APIResponse[Message]{OK: true, Result: Message{MessageID: 1}})
			}))
			defer srv.Close()

			_, err := NewClient("T", srv.URL).SendMedia(context.Background(), MediaRequest{
				Kind:    tt.kind,
				ChatID:  1,
				FileID:  "FILE",
				Caption: "hi",
			})
			if err != nil {
				t.Fatalf("SendMedia() error: %v", err)
			}
		})
	}
}

func TestSendMedia_UnknownKind(t *testing.T) {
	t.Parallel()

	_, err := NewClient("T", "http://127.0.0.1:0").SendMedia(context.Background(), MediaRequest{Kind: "gif"})
	if err == nil {
		t.Fatal("expected error for unknown media kind")
	}
}

func TestRestrictChatMember_UntilDate(t *testing.T) {
	t.Parallel()

	until := time.Unix(1_700_000_000, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if body["until_date"] != float64(until.Unix()) {
			t.Errorf("until_date = %v, want %d", body["until_date"], until.Unix())
		}
		perms, _ := body["permissions"].(map[string]any)
		if perms["can_send_messages"] != true || perms["can_send_photos"] != false {
			t.Errorf("permissions = %v", perms)
		}
		writeJSON(t, w, APIResponse[bool]{OK: true, Result: true})
	}))
	defer srv.Close()

	err := NewClient("T", srv.URL).RestrictChatMember(context.Background(), RestrictRequest{
		ChatID:      -1,
		UserID:      2,
		Permissions: TextOnlyPermissions(),
		Until:       until,
	})
	if err != nil {
		t.Fatalf("RestrictChatMember() error: %v", err)
	}
}

func TestGetChatAdministrators(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, APIResponse[[]ChatMember]{OK: true, Result: []ChatMember{
			{Status: StatusCreator, User: User{ID: 1}},
			{Status: StatusAdministrator, User: User{ID: 2}},
		}})
	}))
	defer srv.Close()

	admins, err := NewClient("T", srv.URL).GetChatAdministrators(context.Background(), -5)
	if err != nil {
		t.Fatalf("GetChatAdministrators() error: %v", err)
	}
	if len(admins) != 2 || !admins[0].IsAdmin() || !admins[1].IsAdmin() {
		t.Errorf("admins = %+v", admins)
	}
}

func TestAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, APIResponse[json.RawMessage]{
			OK:          false,
			ErrorCode:   400,
			Description: "Bad Request: message to delete not found",
		})
	}))
	defer srv.Close()

	err := NewClient("T", srv.URL).DeleteMessage(context.Background(), 1, 2)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Code != 400 {
		t.Errorf("Code = %d, want 400", apiErr.Code)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound() = false, want true")
	}
}

func TestRateLimitRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			writeJSON(t, w, APIResponse[json.RawMessage]{
				OK:          false,
				ErrorCode:   429,
				Description: "Too Many Requests",
				Parameters:  &ResponseParameters{RetryAfter: 1},
			})
			return
		}
		writeJSON(t, w, APIResponse[int]{OK: true, Result: 42})
	}))
	defer srv.Close()

	n, err := NewClient("T", srv.URL).GetChatMemberCount(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetChatMemberCount() error: %v", err)
	}
	if n != 42 {
		t.Errorf("count = %d, want 42", n)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestWithRateLimit_ContextCanceled(t *testing.T) {
	t.Parallel()

	c := NewClient("T", "http://127.0.0.1:0", WithRateLimit(0.001, 1))
	// Drain the single burst token.
	c.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.GetMe(ctx); err == nil {
		t.Fatal("expected error when rate limiter wait is canceled")
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want time.Duration
	}{
		{"parameters", `{"ok":false,"error_code":429,"parameters":{"retry_after":7}}`, 7 * time.Second},
		{"no parameters", `{"ok":false,"error_code":429}`, 0},
		{"html from a proxy", `<html>slow down</html>`, 0},
		{"empty", ``, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := retryAfter([]byte(tt.body)); got != tt.want {
				t.Errorf("retryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRateLimitRetry_CancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		writeJSON(t, w, APIResponse[json.RawMessage]{
			ErrorCode:  429,
			Parameters: &ResponseParameters{RetryAfter: 30},
		})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient("T", srv.URL).SendMessage(ctx, SendMessageRequest{ChatID: 1, Text: "hi"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}
