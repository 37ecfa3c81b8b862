package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/jdziat/simple-recurring-jobs/pkg/security"
)

// ErrTaskPanicked wraps the value recovered from a panicking task.
var ErrTaskPanicked = errors.New("worker: task panicked")

// Task is one unit of work run by a Pool.
type Task func(ctx context.Context) error

// ErrorHandler receives the error of a failed or panicking task.
type ErrorHandler func(name string, err error)

// Option configures a Pool.
type Option interface {
	apply(*Pool)
}

type optionFunc func(*Pool)

func (f optionFunc) apply(p *Pool) { f(p) }

// OnError sets the handler for task errors. Errors are dropped by default.
func OnError(fn ErrorHandler) Option {
	return optionFunc(func(p *Pool) {
		p.onError = fn
	})
}

// Pool runs tasks on goroutines with bounded concurrency. Submitting never
// blocks: a task that cannot start immediately waits for a slot on its own
// goroutine.
type Pool struct {
	slots    chan struct{}
	onError  ErrorHandler
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
	inFlight atomic.Int64
}

// NewPool creates a pool running at most size tasks at once.
// size is clamped to [1, security.MaxConcurrency].
func NewPool(size int, opts ...Option) *Pool {
	p := &Pool{
		slots: make(chan struct{}, security.ClampConcurrency(size)),
	}
	for _, opt := range opts {
		opt.apply(p)
	}
	return p
}

// Size returns the concurrency limit.
func (p *Pool) Size() int {
	return cap(p.slots)
}

// InFlight returns the number of accepted tasks that have not returned,
// including those still waiting for a slot.
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Go submits a task. It returns false once the pool is draining. A task
// whose context ends before it gets a slot is not run and its context
// error is reported.
func (p *Pool) Go(ctx context.Context, name string, task Task) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.inFlight.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer p.inFlight.Add(-1)

		select {
		case p.slots <- struct{}{}:
		case <-ctx.Done():
			p.report(name, ctx.Err())
			return
		}
		defer func() { <-p.slots }()

		if err := p.run(ctx, name, task); err != nil {
			p.report(name, err)
		}
	}()
	return true
}

func (p *Pool) run(ctx context.Context, name string, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrTaskPanicked, "%s: %v", name, r)
		}
	}()
	return task(ctx)
}

func (p *Pool) report(name string, err error) {
	if p.onError != nil {
		p.onError(name, err)
	}
}

// Drain stops accepting tasks and waits for accepted ones to return. It
// returns ctx.Err() if ctx ends first; the remaining tasks keep running.
func (p *Pool) Drain(ctx context.Context) error {
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
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every accepted task has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
