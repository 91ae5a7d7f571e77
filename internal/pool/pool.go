package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Submit after Shutdown has been called.
var ErrClosed = errors.New("pool closed")

// Task is a unit of background work. ctx is cancelled when the pool is
// forced down; a task that could not start receives an already-cancelled ctx
// so it can record why it never ran.
type Task func(ctx context.Context)

// Pool runs submitted tasks in the background with at most workers of them
// executing at once. Submit never blocks.
type Pool struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	pending atomic.Int64
	running atomic.Int64
}

func New(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:    semaphore.NewWeighted(int64(workers)),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Submit queues task and returns immediately.
func (p *Pool) Submit(name string, task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	p.wg.Add(1)
	p.pending.Add(1)
	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			p.pending.Add(-1)
			p.logger.Warn("pool task dropped", "task", name, "error", err)
			task(p.ctx)
			return
		}
		p.pending.Add(-1)
		p.running.Add(1)
		defer func() {
			p.running.Add(-1)
			p.sem.Release(1)
		}()

		task(p.ctx)
	}()
	return nil
}

// Stats reports how many tasks are waiting for a slot and how many run.
func (p *Pool) Stats() (pending, running int) {
	return int(p.pending.Load()), int(p.running.Load())
}

// Shutdown stops accepting tasks and waits for queued and running ones to
// finish. When ctx ends first, the tasks' context is cancelled and Shutdown
// waits for them to return before reporting ctx.Err().
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.logger.Warn("pool shutdown deadline reached, cancelling tasks")
		p.cancel()
		<-done
		return ctx.Err()
	}
}
