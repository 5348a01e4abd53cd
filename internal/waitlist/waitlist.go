// Package waitlist tracks members who joined a chat and have not yet
// answered the verification challenge.
package waitlist

import (
	"sync"
	"time"

	"github.com/flemzord/gatekeep/internal/metrics"
)

// Key identifies a pending member. A user pending in two chats has two
// independent entries.
type Key struct {
	UserID int64
	ChatID int64
}

// Entry is the pending state of one member. Payload is opaque to the
// waitlist and immutable after insertion.
type Entry struct {
	Key
	ShouldWelcome      bool
	MediaWelcome       bool
	Verified           bool
	Payload            any
	ChallengeMessageID int
	CreatedAt          time.Time

	cancel func()
}

// Waitlist is a mutex-guarded map of pending members. Every operation is
// atomic with respect to the others, so the first of two racing terminal
// transitions wins and the second observes absence.
type Waitlist struct {
	mu      sync.Mutex
	entries map[Key]*Entry
	now     func() time.Time
}

// New creates an empty Waitlist.
func New() *Waitlist {
	return &Waitlist{
		entries: make(map[Key]*Entry),
		now:     time.Now,
	}
}

// Add inserts e, replacing any pending entry for the same key. The replaced
// entry's expiry is cancelled and it is returned.
func (w *Waitlist) Add(e Entry) (replaced *Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = w.now()
	}
	e.Verified = false
	e.cancel = nil

	w.mu.Lock()
	prev, ok := w.entries[e.Key]
	w.entries[e.Key] = &e
	n := len(w.entries)
	w.mu.Unlock()

	metrics.WaitlistPending.Set(float64(n))
	if !ok {
		return nil
	}
	if prev.cancel != nil {
		prev.cancel()
	}
	out := *prev
	return &out
}

// SetChallenge records the challenge message id and the cancel function of
// its expiry timer. It returns false if the entry is gone, in which case
// cancel is invoked immediately.
func (w *Waitlist) SetChallenge(k Key, messageID int, cancel func()) bool {
	w.mu.Lock()
	e, ok := w.entries[k]
	if ok {
		e.ChallengeMessageID = messageID
		e.cancel = cancel
	}
	w.mu.Unlock()

	if !ok && cancel != nil {
		cancel()
	}
	return ok
}

// Get returns a copy of the entry for k.
func (w *Waitlist) Get(k Key) (Entry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[k]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Verify marks the entry verified and removes it in one step, returning the
// final state. The pending expiry is cancelled on a best-effort basis.
// ok is false when the entry was already consumed.
func (w *Waitlist) Verify(k Key) (Entry, bool) {
	w.mu.Lock()
	e, ok := w.entries[k]
	if ok {
		e.Verified = true
		delete(w.entries, k)
	}
	n := len(w.entries)
	w.mu.Unlock()

	if !ok {
		return Entry{}, false
	}
	metrics.WaitlistPending.Set(float64(n))
	if e.cancel != nil {
		e.cancel()
	}
	return *e, true
}

// Expire removes the entry for k when it is unverified and belongs to the
// challenge messageID. A zero messageID matches any challenge. The
// entry's expiry timer is cancelled, which is a no-op when the timer itself
// is the caller. ok is false when there is nothing to expire.
func (w *Waitlist) Expire(k Key, messageID int) (Entry, bool) {
	w.mu.Lock()
	e, ok := w.entries[k]
	if ok && (e.Verified || (messageID != 0 && e.ChallengeMessageID != messageID)) {
		ok = false
	}
	if ok {
		delete(w.entries, k)
	}
	n := len(w.entries)
	w.mu.Unlock()

	if !ok {
		return Entry{}, false
	}
	metrics.WaitlistPending.Set(float64(n))
	if e.cancel != nil {
		e.cancel()
	}
	return *e, true
}

// Remove drops the entry for k without any state check, cancelling its
// expiry. Used to roll back a challenge that could not be delivered.
func (w *Waitlist) Remove(k Key) bool {
	w.mu.Lock()
	e, ok := w.entries[k]
	if ok {
		delete(w.entries, k)
	}
	n := len(w.entries)
	w.mu.Unlock()

	if ok {
		metrics.WaitlistPending.Set(float64(n))
		if e.cancel != nil {
			e.cancel()
		}
	}
	return ok
}

// Stale returns copies of entries created before cutoff.
func (w *Waitlist) Stale(cutoff time.Time) []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []Entry
	for _, e := range w.entries {
		if e.CreatedAt.Before(cutoff) {
			out = append(out, *e)
		}
	}
	return out
}

// Len returns the number of pending entries.
func (w *Waitlist) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
