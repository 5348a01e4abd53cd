// Package reload applies configuration changes to a running application,
// on demand or when the configuration file changes on disk.
package reload

import (
	"context"
	"crypto/sha256"
	"io/fs"
	"os"
	"sync"
	"time"
)

// DefaultPollInterval is used when WatcherConfig.PollInterval is zero.
const DefaultPollInterval = 5 * time.Second

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	ConfigPath   string
	PollInterval time.Duration
}

// Event reports that the watched file's content changed.
type Event struct {
	ConfigPath string
	Digest     [sha256.Size]byte
}

// snapshot is what the watcher remembers about the file between polls.
// The digest is only recomputed when size or mtime moved.
type snapshot struct {
	size    int64
	modTime time.Time
	digest  [sha256.Size]byte
}

// Watcher polls a configuration file and reports content changes. A file
// that is touched or rewritten with identical bytes produces no event,
// nor does a file that is briefly missing during an editor's rename.
type Watcher struct {
	path     string
	interval time.Duration
	events   chan Event

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher. Nothing is read until Start.
func NewWatcher(cfg WatcherConfig) *Watcher {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		path:     cfg.ConfigPath,
		interval: interval,
		events:   make(chan Event, 1),
	}
}

// Start begins polling until ctx is done or Stop is called. Calls after
// the first are ignored.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
}

// Events returns the channel of change events. Unread events coalesce
// into one.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop ends polling and waits for the goroutine. It may be called more
// than once, and before Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Watcher) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	last, _ := w.snapshot(snapshot{})
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cur, ok := w.snapshot(last)
		if !ok {
			continue
		}
		changed := cur.digest != last.digest
		last = cur
		if !changed {
			continue
		}
		select {
		case w.events <- Event{ConfigPath: w.path, Digest: cur.digest}:
		default:
		}
	}
}

// snapshot stats the file and hashes it if it looks different from prev.
// It reports false when the file cannot be read.
func (w *Watcher) snapshot(prev snapshot) (snapshot, bool) {
	info, err := os.Stat(w.path)
	if err != nil {
		return prev, false
	}
	if sameFile(info, prev) {
		return prev, true
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return prev, false
	}
	return snapshot{
		size:    info.Size(),
		modTime: info.ModTime(),
		digest:  sha256.Sum256(data),
	}, true
}

func sameFile(info fs.FileInfo, prev snapshot) bool {
	return !prev.modTime.IsZero() && info.Size() == prev.size && info.ModTime().Equal(prev.modTime)
}
