package telegram

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/gatekeep/pkg/botapi"
)

const testToken = "123:ABC"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAPI serves the Bot API methods the module calls. Queued updates are
// returned by the first getUpdates call; later calls return nothing after
// a short delay, like an idle long poll.
type fakeAPI struct {
	mu      sync.Mutex
	updates []botapi.Update
	calls   map[string]int
	webhook botapi.SetWebhookRequest
	failAll bool
	srv     *httptest.Server
}

func newFakeAPI(t *testing.T, updates ...botapi.Update) *fakeAPI {
	t.Helper()
	f := &fakeAPI{updates: updates, calls: make(map[string]int)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls[method]++
	fail := f.failAll
	f.mu.Unlock()

	if fail {
		writeResult(w, botapi.APIResponse[json.RawMessage]{OK: false, ErrorCode: 500, Description: "Internal Server Error"})
		return
	}

	switch method {
	case "getMe":
		writeResult(w, botapi.APIResponse[botapi.User]{OK: true, Result: botapi.User{ID: 999, IsBot: true, FirstName: "Gate", Username: "gatekeep_bot"}})
	case "getUpdates":
		f.mu.Lock()
		batch := f.updates
		f.updates = nil
		f.mu.Unlock()
		if len(batch) == 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(20 * time.Millisecond):
			}
			batch = []botapi.Update{}
		}
		writeResult(w, botapi.APIResponse[[]botapi.Update]{OK: true, Result: batch})
	case "setWebhook":
		f.mu.Lock()
		_ = json.Unmarshal(body, &f.webhook)
		f.mu.Unlock()
		writeResult(w, botapi.APIResponse[bool]{OK: true, Result: true})
	case "deleteWebhook":
		writeResult(w, botapi.APIResponse[bool]{OK: true, Result: true})
	default:
		writeResult(w, botapi.APIResponse[json.RawMessage]{OK: false, ErrorCode: 404, Description: "Not Found: method not found"})
	}
}

func (f *fakeAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func writeResult(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// collector is a Sink recording delivered updates.
type collector struct {
	mu  sync.Mutex
	got []botapi.Update
	err error
}

func (c *collector) sink(u botapi.Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, u)
	return c.err
}

func (c *collector) ids() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.got))
	for _, u := range c.got {
		out = append(out, u.UpdateID)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func groupMessage(updateID int, chatID int64) botapi.Update {
	return botapi.Update{
		UpdateID: updateID,
		Message: &botapi.Message{
			MessageID: updateID * 10,
			From:      &botapi.User{ID: 500, FirstName: "Ann"},
			Chat:      botapi.Chat{ID: chatID, Type: botapi.ChatSupergroup, Title: "Gophers"},
			Text:      "hello",
		},
	}
}

func privateMessage(updateID int, userID int64) botapi.Update {
	return botapi.Update{
		UpdateID: updateID,
		Message: &botapi.Message{
			MessageID: updateID * 10,
			From:      &botapi.User{ID: userID, FirstName: "Ann"},
			Chat:      botapi.Chat{ID: userID, Type: botapi.ChatPrivate},
			Text:      "/start",
		},
	}
}
