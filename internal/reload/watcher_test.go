package reload

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testInterval = 20 * time.Millisecond

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

// watch starts a watcher on path and waits for its first snapshot.
func watch(t *testing.T, path string) *Watcher {
	t.Helper()
	w := NewWatcher(WatcherConfig{ConfigPath: path, PollInterval: testInterval})
	w.Start(t.Context())
	t.Cleanup(w.Stop)
	time.Sleep(3 * testInterval)
	return w
}

func expectEvent(t *testing.T, w *Watcher, content string) {
	t.Helper()
	select {
	case evt := <-w.Events():
		if evt.Digest != sha256.Sum256([]byte(content)) {
			t.Errorf("digest does not match %q", content)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event for %q", content)
	}
}

func expectQuiet(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case evt := <-w.Events():
		t.Errorf("unexpected event: %+v", evt)
	case <-time.After(8 * testInterval):
	}
}

func TestWatcher_ContentChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gatekeep.yaml")
	writeFile(t, path, "bot:\n  workers: 4\n")
	w := watch(t, path)

	writeFile(t, path, "bot:\n  workers: 8\n")
	select {
	case evt := <-w.Events():
		if evt.ConfigPath != path {
			t.Errorf("ConfigPath = %q, want %q", evt.ConfigPath, path)
		}
		if evt.Digest != sha256.Sum256([]byte("bot:\n  workers: 8\n")) {
			t.Error("digest does not match new content")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestWatcher_NoEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		create bool
		mutate func(t *testing.T, path string)
	}{
		{
			name:   "untouched",
			create: true,
			mutate: func(*testing.T, string) {},
		},
		{
			name:   "identical rewrite with new mtime",
			create: true,
			mutate: func(t *testing.T, path string) {
				writeFile(t, path, "version: \"1\"\n")
				future := time.Now().Add(time.Hour)
				if err := os.Chtimes(path, future, future); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name:   "never exists",
			mutate: func(*testing.T, string) {},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "gatekeep.yaml")
			if tt.create {
				writeFile(t, path, "version: \"1\"\n")
			}
			w := watch(t, path)
			tt.mutate(t, path)
			expectQuiet(t, w)
		})
	}
}

func TestWatcher_RenameOverIsOneChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "gatekeep.yaml")
	writeFile(t, path, "old")
	w := watch(t, path)

	// Editors write a temp file and rename it over the original.
	tmp := filepath.Join(dir, ".gatekeep.yaml.swp")
	writeFile(t, tmp, "new")
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * testInterval)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	expectEvent(t, w, "new")
	expectQuiet(t, w)
}

func TestWatcher_UnreadEventsCoalesce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gatekeep.yaml")
	writeFile(t, path, "a")
	w := watch(t, path)

	writeFile(t, path, "bb")
	time.Sleep(4 * testInterval)
	writeFile(t, path, "ccc")
	time.Sleep(4 * testInterval)

	if got := len(w.Events()); got != 1 {
		t.Fatalf("buffered events = %d, want 1", got)
	}
	<-w.Events()
	expectQuiet(t, w)
}

func TestWatcher_Stop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		start  bool
		cancel bool
	}{
		{name: "running", start: true},
		{name: "context already cancelled", start: true, cancel: true},
		{name: "never started"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := NewWatcher(WatcherConfig{ConfigPath: "/nonexistent/gatekeep.yaml", PollInterval: testInterval})
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.start {
				w.Start(ctx)
				w.Start(ctx)
			}
			if tt.cancel {
				cancel()
			}

			done := make(chan struct{})
			go func() {
				w.Stop()
				w.Stop()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("Stop did not return")
			}
		})
	}
}

func TestNewWatcher_DefaultInterval(t *testing.T) {
	t.Parallel()

	if w := NewWatcher(WatcherConfig{ConfigPath: "x"}); w.interval != DefaultPollInterval {
		t.Errorf("interval = %v, want %v", w.interval, DefaultPollInterval)
	}
}
