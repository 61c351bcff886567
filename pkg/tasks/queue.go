// Package tasks runs blocking work off the frame loop. Results are
// buffered and collected by the caller with Poll, so they are applied on
// the thread that owns the application state.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/google/uuid"
)

var (
	// ErrQueueFull is returned by Submit when the backlog is at capacity.
	ErrQueueFull = errors.New("task queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("task queue is stopped")
)

const (
	DefaultWorkers  = 2
	DefaultCapacity = 64
)

// Func is a unit of background work. It should return when ctx is done.
type Func func(ctx context.Context) (any, error)

// Result is the outcome of a task.
type Result struct {
	ID       uuid.UUID
	Name     string
	Value    any
	Err      error
	Duration time.Duration
}

type job struct {
	id   uuid.UUID
	name string
	fn   Func
}

type options struct {
	logger   *slog.Logger
	workers  int
	capacity int
}

// Option configures a Queue.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithWorkers sets how many tasks run concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithCapacity bounds the number of tasks waiting to run.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// Queue is a bounded pool of workers.
type Queue struct {
	logger   *slog.Logger
	workers  int
	capacity int
	jobs     chan job

	mu       sync.Mutex
	started  bool
	stopped  bool
	pending  int
	running  int
	finished int
	failed   int
	results  []Result
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New returns a queue that accepts tasks immediately and runs them once
// started.
func New(opts ...Option) *Queue {
	o := &options{workers: DefaultWorkers, capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		logger:   logger.With("component", "task_queue"),
		workers:  o.workers,
		capacity: o.capacity,
		jobs:     make(chan job, o.capacity),
	}
}

// Start launches the workers. Tasks run with a context derived from ctx;
// cancelling ctx stops the workers and fails the tasks still queued.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrStopped
	}
	if q.started {
		q.logger.Warn("task queue already started")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.runCtx = runCtx
	q.cancel = cancel
	q.started = true
	q.wg.Add(q.workers)
	for i := 0; i < q.workers; i++ {
		lifecycle.Go(runCtx, func(ctx context.Context) error {
			defer q.wg.Done()
			q.work(ctx)
			return nil
		}, lifecycle.WithErrorHandler(func(err error) {
			q.logger.Error("task worker failed", "error", err)
		}))
	}
	q.logger.Debug("task queue started", "workers", q.workers, "capacity", q.capacity)
	return nil
}

// Submit enqueues fn without blocking.
func (q *Queue) Submit(name string, fn Func) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped || (q.runCtx != nil && q.runCtx.Err() != nil) {
		return uuid.Nil, ErrStopped
	}

	j := job{id: uuid.New(), name: name, fn: fn}
	select {
	case q.jobs <- j:
	default:
		return uuid.Nil, fmt.Errorf("%s: %w", name, ErrQueueFull)
	}
	q.pending++
	return j.id, nil
}

// Poll returns the results collected since the last call.
func (q *Queue) Poll() []Result {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.results
	q.results = nil
	return out
}

// Pending is the number of tasks queued or running.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Stop rejects new tasks, cancels running ones and waits for the workers
// to exit. Tasks that never started are reported with context.Canceled.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	started := q.started
	cancel := q.cancel
	close(q.jobs)
	q.mu.Unlock()

	if !started {
		q.drain()
		return nil
	}

	cancel()
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		q.drain()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to stop task queue: %w", ctx.Err())
	}
}

// work runs jobs until jobs is closed or the context passed to Start is
// done. Jobs left behind by a cancelled context are reported as failed.
func (q *Queue) work(ctx context.Context) {
	for {
		var j job
		select {
		case <-ctx.Done():
			q.discard(ctx.Err())
			return
		case next, ok := <-q.jobs:
			if !ok {
				return
			}
			j = next
		}
		if ctx.Err() != nil {
			q.record(Result{ID: j.id, Name: j.name, Err: ctx.Err()})
			continue
		}
		q.mu.Lock()
		q.running++
		q.mu.Unlock()

		q.record(q.run(ctx, j))

		q.mu.Lock()
		q.running--
		q.mu.Unlock()
	}
}

func (q *Queue) run(ctx context.Context, j job) (res Result) {
	start := time.Now()
	res = Result{ID: j.id, Name: j.name}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("task %s panicked: %v", j.name, r)
			q.logger.Error("task panic", "task", j.name, "error", r, "stack", string(debug.Stack()))
		}
		res.Duration = time.Since(start)
	}()
	res.Value, res.Err = j.fn(ctx)
	return res
}

// drain reports every queued task as cancelled. jobs must be closed.
func (q *Queue) discard(err error) {
	for {
		select {
		case j, ok := <-q.jobs:
			if !ok {
				return
			}
			q.record(Result{ID: j.id, Name: j.name, Err: err})
		default:
			return
		}
	}
}

func (q *Queue) drain() {
	for j := range q.jobs {
		q.record(Result{ID: j.id, Name: j.name, Err: context.Canceled})
	}
}

func (q *Queue) record(r Result) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if r.Err != nil {
		q.failed++
		q.logger.Debug("task failed", "task", r.Name, "error", r.Err)
	} else {
		q.finished++
	}
	q.results = append(q.results, r)
}
