package router

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flemzord/gatekeep/pkg/botapi"
)

// DefaultWorkerCount is the number of workers when no size is specified.
const DefaultWorkerCount = 10

// envelope carries an update from Submit to a worker.
type envelope struct {
	Update   botapi.Update
	EventID  string
	Received time.Time
}

// WorkerPool runs a fixed number of workers over the inbox. A handler that
// panics is reported through onPanic and its worker moves on to the next
// update.
type WorkerPool struct {
	size    int
	busy    atomic.Int32
	group   errgroup.Group
	onPanic func(env envelope, rec any)
}

// NewWorkerPool creates a pool of size workers, or DefaultWorkerCount when
// size is not positive.
func NewWorkerPool(size int, onPanic func(env envelope, rec any)) *WorkerPool {
	if size <= 0 {
		size = DefaultWorkerCount
	}
	if onPanic == nil {
		onPanic = func(envelope, any) {}
	}
	return &WorkerPool{size: size, onPanic: onPanic}
}

// Start launches the workers. They exit once inbox is closed and drained.
func (p *WorkerPool) Start(ctx context.Context, inbox <-chan envelope, handler func(context.Context, envelope)) {
	for range p.size {
		p.group.Go(func() error {
			for env := range inbox {
				p.handle(ctx, env, handler)
			}
			return nil
		})
	}
}

func (p *WorkerPool) handle(ctx context.Context, env envelope, handler func(context.Context, envelope)) {
	p.busy.Add(1)
	defer p.busy.Add(-1)
	defer func() {
		if rec := recover(); rec != nil {
			p.onPanic(env, rec)
		}
	}()
	handler(ctx, env)
}

// Busy returns the number of workers currently handling an update.
func (p *WorkerPool) Busy() int {
	return int(p.busy.Load())
}

// Wait blocks until every worker has exited.
func (p *WorkerPool) Wait() {
	_ = p.group.Wait()
}
