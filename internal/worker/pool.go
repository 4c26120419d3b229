package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Do after the pool has been closed.
var ErrClosed = errors.New("worker: pool closed")

// Pool is a bounded pool of background workers. Blocking source calls are
// submitted here and awaited independently, so concurrent requests do not
// serialize behind each other's network or parse calls. A worker that is
// blocked inside a call occupies its slot until the call returns.
type Pool struct {
	tasks     chan task
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type task struct {
	fn   func() error
	done chan error
}

// New creates a pool with the given number of workers.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}

	p := &Pool{
		tasks: make(chan task),
		quit:  make(chan struct{}),
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.run()
	}

	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case t := <-p.tasks:
			t.done <- t.fn()
		case <-p.quit:
			return
		}
	}
}

// Do submits fn to the pool and waits for it to finish. The context is
// honored only while waiting for a free slot; a running task is never
// preempted. After Close, Do returns ErrClosed.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}

	select {
	case p.tasks <- t:
	case <-p.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	return <-t.done
}

// Close stops accepting tasks and waits for in-flight work to drain.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}
