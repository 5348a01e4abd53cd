package router

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/flemzord/gatekeep/pkg/botapi"
)

func TestWorkerPool_DefaultSize(t *testing.T) {
	t.Parallel()

	if p := NewWorkerPool(0, nil); p.size != DefaultWorkerCount {
		t.Errorf("size = %d, want %d", p.size, DefaultWorkerCount)
	}
}

func TestWorkerPool_DrainsInboxAndSurvivesPanics(t *testing.T) {
	t.Parallel()

	inbox := make(chan envelope, 20)
	for i := range 20 {
		inbox <- envelope{Update: botapi.Update{UpdateID: i}}
	}
	close(inbox)

	var (
		handled  atomic.Int32
		mu       sync.Mutex
		panicked []int
	)
	p := NewWorkerPool(4, func(env envelope, _ any) {
		mu.Lock()
		panicked = append(panicked, env.Update.UpdateID)
		mu.Unlock()
	})
	p.Start(context.Background(), inbox, func(_ context.Context, env envelope) {
		handled.Add(1)
		if env.Update.UpdateID%5 == 0 {
			panic("handler failure")
		}
	})
	p.Wait()

	if got := handled.Load(); got != 20 {
		t.Errorf("handled = %d, want 20", got)
	}
	if len(panicked) != 4 {
		t.Errorf("panicked = %v, want 4 updates", panicked)
	}
	if p.Busy() != 0 {
		t.Errorf("Busy() = %d after drain", p.Busy())
	}
}

func TestWorkerPool_Busy(t *testing.T) {
	t.Parallel()

	inbox := make(chan envelope, 2)
	inbox <- envelope{}
	inbox <- envelope{}

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	p := NewWorkerPool(2, nil)
	p.Start(context.Background(), inbox, func(context.Context, envelope) {
		started <- struct{}{}
		<-release
	})
	<-started
	<-started

	if got := p.Busy(); got != 2 {
		t.Errorf("Busy() = %d, want 2", got)
	}
	close(release)
	close(inbox)
	p.Wait()
}
