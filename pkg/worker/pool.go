// Package worker runs background continuations on a fixed set of goroutines
// fed by a bounded queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrQueueFull is returned by Submit when the queue has no free slot.
	ErrQueueFull = errors.New("worker: queue full")
	// ErrClosed is returned by Submit after Shutdown has started.
	ErrClosed = errors.New("worker: pool closed")
)

// Task is a unit of background work. The context is never cancelled by the
// pool; tasks bound their own blocking calls.
type Task func(ctx context.Context)

// Pool executes submitted tasks on a fixed number of workers.
type Pool struct {
	tasks chan Task
	group errgroup.Group
	log   zerolog.Logger

	mu     sync.RWMutex
	closed bool

	active    atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Queued    int   `json:"queued"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
	Panics    int64 `json:"panics"`
}

// New starts a pool with the given number of workers and queue capacity.
func New(workers, queueSize int, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &Pool{
		tasks: make(chan Task, queueSize),
		log:   log.With().Str("component", "worker").Logger(),
	}
	for i := 0; i < workers; i++ {
		p.group.Go(func() error {
			for t := range p.tasks {
				p.run(t)
			}
			return nil
		})
	}
	return p
}

// Submit enqueues t without blocking.
func (p *Pool) Submit(t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	select {
	case p.tasks <- t:
		return nil
	default:
		p.rejected.Add(1)
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for queued and running tasks to
// finish, or for ctx to end.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("worker shutdown: %w", ctx.Err())
	}
}

// Depth returns the number of tasks waiting in the queue.
func (p *Pool) Depth() int {
	return len(p.tasks)
}

// Stats returns current pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Queued:    len(p.tasks),
		Active:    p.active.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Panics:    p.panics.Load(),
	}
}

func (p *Pool) run(t Task) {
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.completed.Add(1)
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.log.Error().Interface("panic", r).Msg("background task panicked")
		}
	}()
	t(context.Background())
}
