package gateway

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/gatekeep/internal/core"
	"github.com/flemzord/gatekeep/internal/cron"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

type fakeCounter int

func (c fakeCounter) Len() int { return int(c) }
func (c fakeCounter) Pending() int { return int(c) }
func (c fakeCounter) Busy() int { return int(c) / 2 }

type fakeJobs struct{}

func (fakeJobs) Entries() []cron.EntryInfo {
	return []cron.EntryInfo{
		{Name: "admin_cache_prune", Next: time.Date(2026, 1, 1, 0, 10, 0, 0, time.UTC)},
		{Name: "waitlist_reaper", Next: time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)},
	}
}

func (fakeJobs) PendingOnce() int { return 4 }

// newTestGateway provisions a gateway from yamlCfg, registers services
// and returns an httptest server over its router.
func newTestGateway(t *testing.T, yamlCfg string, services map[string]any) (*Gateway, *httptest.Server) {
	t.Helper()

	g := &Gateway{}
	if yamlCfg != "" {
		var node yaml.Node
		if err := yaml.Unmarshal([]byte(yamlCfg), &node); err != nil {
			t.Fatal(err)
		}
		if err := g.Configure(node.Content[0]); err != nil {
			t.Fatalf("Configure: %v", err)
		}
	}

	appCtx := core.NewAppContext(testLogger(), t.TempDir(), t.TempDir())
	for name, svc := range services {
		appCtx.RegisterService(name, svc)
	}
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	g.resolveServices()

	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return g, srv
}

func get(t *testing.T, url string, setAuth func(*http.Request)) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if setAuth != nil {
		setAuth(req)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func bearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}
