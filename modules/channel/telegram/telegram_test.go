package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/gatekeep/internal/core"
	"github.com/flemzord/gatekeep/internal/gateway"
	"github.com/flemzord/gatekeep/internal/security"
	"github.com/flemzord/gatekeep/pkg/botapi"
)

func configure(t *testing.T, tg *Telegram, raw string) {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		t.Fatal(err)
	}
	if err := tg.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure: %v", err)
	}
}

func TestModuleRegistered(t *testing.T) {
	t.Parallel()

	info, ok := core.GetModule(ModuleID)
	if !ok {
		t.Fatal("channel.telegram not registered")
	}
	if _, ok := info.New().(*Telegram); !ok {
		t.Errorf("New() = %T", info.New())
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"polling ok", "token: " + testToken, ""},
		{"missing token", "mode: polling", "token is required"},
		{"bad token", "token: nope", "token format"},
		{"bad mode", "token: " + testToken + "\nmode: carrier-pigeon", "invalid mode"},
		{"webhook needs url", "token: " + testToken + "\nmode: webhook", "webhook_url is required"},
		{"bad polling timeout", "token: " + testToken + "\npolling_timeout: 90", "polling_timeout"},
		{"positive allow chat", "token: " + testToken + "\nallow_chats: [42]", "allow_chats"},
		{"bad api url", "token: " + testToken + "\napi_url: ftp://x", "api_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tg := &Telegram{}
			configure(t, tg, tt.raw)
			err := tg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestProvision_RegistersClientAndSecrets(t *testing.T) {
	t.Parallel()

	redactor := security.NewRedactor()
	appCtx := core.NewAppContext(discardLogger(), t.TempDir(), t.TempDir())
	appCtx.RegisterService("security.redactor", redactor)

	tg := &Telegram{}
	configure(t, tg, "token: "+testToken+"\nwebhook_secret: hooksecret")
	if err := tg.Provision(appCtx.ForModule(ModuleID)); err != nil {
		t.Fatal(err)
	}

	client, ok := core.Service[*botapi.Client](appCtx, ServiceClient)
	if !ok || client != tg.Client() {
		t.Error("client service not registered")
	}
	if got := redactor.Redact("token 123:ABC secret hooksecret"); strings.Contains(got, "123:ABC") || strings.Contains(got, "hooksecret") {
		t.Errorf("Redact() = %q", got)
	}
}

func TestStart_RequiresSink(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	tg := &Telegram{}
	configure(t, tg, "token: "+testToken+"\napi_url: "+api.srv.URL)
	if err := tg.Provision(core.NewAppContext(discardLogger(), "", "")); err != nil {
		t.Fatal(err)
	}
	if err := tg.Start(); err == nil {
		t.Error("Start() without sink succeeded")
	}
}

func TestLifecycle_Polling(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t, groupMessage(1, -100), groupMessage(2, -300))
	tg := &Telegram{}
	configure(t, tg, "token: "+testToken+"\napi_url: "+api.srv.URL+"\nallow_chats: [-100]")
	if err := tg.Provision(core.NewAppContext(discardLogger(), "", "")); err != nil {
		t.Fatal(err)
	}
	if err := tg.Validate(); err != nil {
		t.Fatal(err)
	}

	c := &collector{}
	tg.SetSink(c.sink)
	if err := tg.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return len(c.ids()) == 1 })
	if err := tg.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := c.ids(); !slices.Equal(got, []int{1}) {
		t.Errorf("delivered = %v, want [1]", got)
	}
	if api.count("getMe") != 1 || api.count("deleteWebhook") != 1 {
		t.Errorf("getMe = %d, deleteWebhook = %d", api.count("getMe"), api.count("deleteWebhook"))
	}

	// Identify is cached.
	self, err := tg.Identify(context.Background())
	if err != nil || self.Username != "gatekeep_bot" {
		t.Errorf("Identify() = %+v, %v", self, err)
	}
	if api.count("getMe") != 1 {
		t.Errorf("getMe calls = %d, want 1", api.count("getMe"))
	}
}

func TestLifecycle_Webhook(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	appCtx := core.NewAppContext(discardLogger(), "", "")
	dispatcher := gateway.NewWebhookDispatcher(discardLogger(), nil, 0)
	appCtx.RegisterService(gateway.ServiceWebhookDispatcher, dispatcher)

	tg := &Telegram{}
	configure(t, tg, "token: "+testToken+"\napi_url: "+api.srv.URL+
		"\nmode: webhook\nwebhook_url: https://bot.example.org/webhooks/telegram\nwebhook_secret: s3")
	if err := tg.Provision(appCtx); err != nil {
		t.Fatal(err)
	}
	c := &collector{}
	tg.SetSink(c.sink)
	if err := tg.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if api.webhook.URL != "https://bot.example.org/webhooks/telegram" || api.webhook.SecretToken != "s3" {
		t.Errorf("setWebhook = %+v", api.webhook)
	}

	r := chi.NewRouter()
	r.Post("/webhooks/{source}", dispatcher.ServeHTTP)
	post := func(secret string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram",
			strings.NewReader(`{"update_id":9,"message":{"message_id":1,"chat":{"id":-100,"type":"group"}}}`))
		req.Header.Set(SecretHeader, secret)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := post("s3"); code != http.StatusOK {
		t.Errorf("valid webhook = %d", code)
	}
	if code := post("wrong"); code != http.StatusUnauthorized {
		t.Errorf("wrong secret = %d, want 401", code)
	}
	if got := c.ids(); !slices.Equal(got, []int{9}) {
		t.Errorf("delivered = %v", got)
	}

	if err := tg.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if code := post("s3"); code != http.StatusNotFound {
		t.Errorf("after stop = %d, want 404", code)
	}
	if api.count("deleteWebhook") != 1 {
		t.Errorf("deleteWebhook calls = %d", api.count("deleteWebhook"))
	}
}

func TestLifecycle_WebhookWithoutGateway(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	tg := &Telegram{}
	configure(t, tg, "token: "+testToken+"\napi_url: "+api.srv.URL+"\nmode: webhook\nwebhook_url: https://x.example/h")
	if err := tg.Provision(core.NewAppContext(discardLogger(), "", "")); err != nil {
		t.Fatal(err)
	}
	tg.SetSink((&collector{}).sink)
	if err := tg.Start(); err == nil || !strings.Contains(err.Error(), "gateway") {
		t.Errorf("Start() = %v, want gateway error", err)
	}
}

func TestReload_SwapsAllowList(t *testing.T) {
	t.Parallel()

	tg := &Telegram{}
	configure(t, tg, "token: "+testToken+"\nallow_chats: [-100]")
	if err := tg.Provision(core.NewAppContext(discardLogger(), "", "")); err != nil {
		t.Fatal(err)
	}
	if tg.allow.allowed(groupMessage(1, -200)) {
		t.Fatal("-200 allowed before reload")
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("token: "+testToken+"\nallow_chats: [-200]"), &node); err != nil {
		t.Fatal(err)
	}
	next := core.NewAppContext(discardLogger(), "", "").WithModuleConfigs(map[string]yaml.Node{ModuleID: *node.Content[0]})
	if err := tg.Reload(next); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if !tg.allow.allowed(groupMessage(1, -200)) || tg.allow.allowed(groupMessage(2, -100)) {
		t.Error("allow list not swapped")
	}
}

func TestAllowList(t *testing.T) {
	t.Parallel()

	cb := botapi.Update{UpdateID: 5, CallbackQuery: &botapi.CallbackQuery{
		ID: "q", Message: &botapi.Message{Chat: botapi.Chat{ID: -300, Type: botapi.ChatGroup}},
	}}

	tests := []struct {
		name  string
		allow []int64
		u     botapi.Update
		want  bool
	}{
		{"empty list allows groups", nil, groupMessage(1, -300), true},
		{"listed group", []int64{-300}, groupMessage(1, -300), true},
		{"unlisted group", []int64{-100}, groupMessage(1, -300), false},
		{"private always", []int64{-100}, privateMessage(1, 42), true},
		{"callback uses message chat", []int64{-100}, cb, false},
		{"inline callback", []int64{-100}, botapi.Update{CallbackQuery: &botapi.CallbackQuery{ID: "q"}}, true},
		{"no chat", nil, botapi.Update{UpdateID: 9}, false},
	}
	for _, tt := range tests {
		if got := newAllowList(tt.allow).allowed(tt.u); got != tt.want {
			t.Errorf("%s: allowed = %v, want %v", tt.name, got, tt.want)
		}
	}
}
