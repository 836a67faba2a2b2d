// Package workers runs fire-and-forget tasks on a bounded goroutine pool.
package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/pubflow/internal/logging"
	"github.com/dmitrijs2005/pubflow/internal/server/metrics"
)

// ErrStopped is returned by Submit after Stop has been called.
var ErrStopped = errors.New("worker pool stopped")

// ErrQueueFull is returned by Submit when the buffer is full and the task
// was dropped.
var ErrQueueFull = errors.New("worker queue full")

// Task is a unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type job struct {
	ctx  context.Context
	task Task
}

// Pool executes submitted tasks with a fixed number of goroutines.
type Pool struct {
	size    int
	queue   chan job
	metrics *metrics.Metrics
	logger  logging.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

func NewPool(size, queueSize int, m *metrics.Metrics, logger logging.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		size:    size,
		queue:   make(chan job, queueSize),
		metrics: m,
		logger:  logger.With("module", "workers"),
	}
}

// Start launches the worker goroutines. Calling it twice is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info(context.Background(), "worker pool started", "workers", p.size, "queue", cap(p.queue))
}

// Submit enqueues task without blocking. The task runs with a context that
// keeps ctx's values but not its cancellation, so the caller may return
// before the task finishes.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.queue <- job{ctx: context.WithoutCancel(ctx), task: task}:
		p.metrics.SetQueueDepth(len(p.queue))
		return nil
	default:
		p.metrics.RecordTaskDropped()
		p.logger.Warn(ctx, "worker queue full, task dropped", "task", task.Name)
		return ErrQueueFull
	}
}

// Stop refuses new tasks, runs everything already queued and waits for the
// workers to exit or ctx to expire.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	if !p.started {
		// nobody will drain the queue; run what was accepted inline
		p.started = true
		p.wg.Add(1)
		go p.worker(0)
	}
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info(ctx, "worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for j := range p.queue {
		p.metrics.SetQueueDepth(len(p.queue))
		p.run(id, j)
	}
}

func (p *Pool) run(id int, j job) {
	p.metrics.AddActiveWorkers(1)
	defer p.metrics.AddActiveWorkers(-1)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(j.ctx, "task panicked", "task", j.task.Name, "worker", id, "panic", r)
		}
	}()

	if err := j.task.Run(j.ctx); err != nil {
		p.logger.Warn(j.ctx, "task failed", "task", j.task.Name, "worker", id, "error", err)
	}
}
