package core

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

type lifecycleMod struct {
	id       ModuleID
	rec      *recorder
	startErr error
	stopErr  error
}

func (m *lifecycleMod) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: m.id, New: func() Module { return m }}
}

func (m *lifecycleMod) Start() error {
	m.rec.add("start " + string(m.id))
	return m.startErr
}

func (m *lifecycleMod) Stop(context.Context) error {
	m.rec.add("stop " + string(m.id))
	return m.stopErr
}

func TestApp_StartStopOrder(t *testing.T) {
	t.Cleanup(resetRegistry)

	rec := &recorder{}
	RegisterModule(&lifecycleMod{id: "store.a", rec: rec})
	RegisterModule(&lifecycleMod{id: "channel.b", rec: rec})

	app := NewApp(NewAppContext(slog.Default(), t.TempDir(), t.TempDir()))
	if err := app.LoadModules([]string{"store.a", "channel.b"}); err != nil {
		t.Fatalf("LoadModules() error = %v", err)
	}
	app.InsertModule("channel.b", "router", &lifecycleMod{id: "router", rec: rec})
	app.InsertModule("missing", "tail", &lifecycleMod{id: "tail", rec: rec})

	if err := app.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	app.Stop()

	want := []string{
		"start store.a", "start router", "start channel.b", "start tail",
		"stop tail", "stop channel.b", "stop router", "stop store.a",
	}
	if !slices.Equal(rec.calls, want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
	if ids := app.ModuleIDs(); len(ids) != 4 || ids[1] != "router" {
		t.Errorf("ModuleIDs() = %v", ids)
	}
}

func TestApp_StartFailureStopsStarted(t *testing.T) {
	t.Cleanup(resetRegistry)

	rec := &recorder{}
	RegisterModule(&lifecycleMod{id: "store.a", rec: rec})
	RegisterModule(&lifecycleMod{id: "channel.b", rec: rec, startErr: errors.New("boom")})

	app := NewApp(NewAppContext(slog.Default(), t.TempDir(), t.TempDir()))
	if err := app.LoadModules([]string{"store.a", "channel.b"}); err != nil {
		t.Fatalf("LoadModules() error = %v", err)
	}
	if err := app.Start(); err == nil {
		t.Fatal("Start() error = nil, want failure")
	}

	want := []string{"start store.a", "start channel.b", "stop store.a"}
	if !slices.Equal(rec.calls, want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
}

func TestApp_StopJoinsErrors(t *testing.T) {
	t.Cleanup(resetRegistry)

	rec := &recorder{}
	RegisterModule(&lifecycleMod{id: "store.a", rec: rec, stopErr: errors.New("close db")})
	RegisterModule(&lifecycleMod{id: "channel.b", rec: rec, stopErr: errors.New("poll")})

	app := NewApp(NewAppContext(slog.Default(), t.TempDir(), t.TempDir()))
	if err := app.LoadModules([]string{"store.a", "channel.b"}); err != nil {
		t.Fatal(err)
	}
	if err := app.Start(); err != nil {
		t.Fatal(err)
	}

	err := app.Stop()
	if err == nil || !strings.Contains(err.Error(), "close db") || !strings.Contains(err.Error(), "poll") {
		t.Errorf("Stop() = %v, want both errors", err)
	}
	if err := app.Stop(); err != nil {
		t.Errorf("second Stop() = %v, want nil", err)
	}
	if want := []string{"start store.a", "start channel.b", "stop channel.b", "stop store.a"}; !slices.Equal(rec.calls, want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
}

func TestApp_Module(t *testing.T) {
	t.Cleanup(resetRegistry)

	RegisterModule(&lifecycleMod{id: "store.a", rec: &recorder{}})
	app := NewApp(NewAppContext(slog.Default(), t.TempDir(), t.TempDir()))
	if err := app.LoadModules([]string{"store.a"}); err != nil {
		t.Fatalf("LoadModules() error = %v", err)
	}

	if _, ok := app.Module("store.a"); !ok {
		t.Error("Module(store.a) not found")
	}
	if _, ok := app.Module("missing"); ok {
		t.Error("Module(missing) found")
	}
}

func TestGetModules_Sorted(t *testing.T) {
	t.Cleanup(resetRegistry)

	for _, id := range []ModuleID{"store.sqlite", "channel.telegram", "gateway.http"} {
		RegisterModule(&lifecycleMod{id: id, rec: &recorder{}})
	}

	var got []ModuleID
	for _, info := range GetModules() {
		got = append(got, info.ID)
	}
	want := []ModuleID{"channel.telegram", "gateway.http", "store.sqlite"}
	if !slices.Equal(got, want) {
		t.Errorf("GetModules() = %v, want %v", got, want)
	}
}

func TestRegisterModule_Invalid(t *testing.T) {
	t.Cleanup(resetRegistry)

	tests := []struct {
		name string
		mod  Module
	}{
		{"empty id", &lifecycleMod{id: "", rec: &recorder{}}},
		{"nil constructor", nilCtor{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("RegisterModule did not panic")
				}
			}()
			RegisterModule(tt.mod)
		})
	}
}

type nilCtor struct{}

func (nilCtor) ModuleInfo() ModuleInfo { return ModuleInfo{ID: "store.broken"} }

func TestRegisterModule_DuplicatePanics(t *testing.T) {
	t.Cleanup(resetRegistry)

	RegisterModule(&lifecycleMod{id: "store.a", rec: &recorder{}})
	defer func() {
		if recover() == nil {
			t.Error("second RegisterModule did not panic")
		}
	}()
	RegisterModule(&lifecycleMod{id: "store.a", rec: &recorder{}})
}
