package router

import (
	"context"
	"sync"
)

// Lanes serializes work per chat. Updates of one chat are handled one at
// a time, in the order they win the lane, while other chats proceed in
// parallel. A lane exists only while someone holds or waits on it.
type Lanes struct {
	mu    sync.Mutex
	lanes map[int64]*lane
}

// lane is a one-slot semaphore. waiters counts goroutines holding or
// waiting on it and is guarded by Lanes.mu.
type lane struct {
	slot    chan struct{}
	waiters int
}

// NewLanes creates an empty lane set.
func NewLanes() *Lanes {
	return &Lanes{lanes: make(map[int64]*lane)}
}

// Lock waits for the lane of chatID and returns the function that frees
// it. It gives up with ctx's error when ctx ends first; the returned
// unlock is then nil.
func (l *Lanes) Lock(ctx context.Context, chatID int64) (unlock func(), err error) {
	ln := l.join(chatID)

	select {
	case ln.slot <- struct{}{}:
	case <-ctx.Done():
		l.leave(chatID, ln)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-ln.slot
			l.leave(chatID, ln)
		})
	}, nil
}

func (l *Lanes) join(chatID int64) *lane {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln, ok := l.lanes[chatID]
	if !ok {
		ln = &lane{slot: make(chan struct{}, 1)}
		l.lanes[chatID] = ln
	}
	ln.waiters++
	return ln
}

func (l *Lanes) leave(chatID int64, ln *lane) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln.waiters--
	if ln.waiters == 0 {
		delete(l.lanes, chatID)
	}
}

// Len returns the number of chats with a held or awaited lane.
func (l *Lanes) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
