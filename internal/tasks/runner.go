package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sailsonlabs/pulse/internal/telemetry"
)

// ErrQueueFull is returned by Submit when the queue is at capacity.
// Callers surface this as a synchronous rejection, not a silent wait.
var ErrQueueFull = errors.New("task queue is full")

type job struct {
	taskID string
	fn     func(ctx context.Context)
}

// Runner executes background units on a fixed-size worker pool fed by
// a bounded queue. One submission point, bounded concurrency,
// backpressure by queue depth.
type Runner struct {
	queue   chan job
	workers int
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a runner with the given pool and queue sizes.
func NewRunner(workers, queueSize int, logger *slog.Logger) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Runner{
		queue:   make(chan job, queueSize),
		workers: workers,
		logger:  logger.With("component", "runner"),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
	r.logger.Info("worker pool started", "workers", r.workers, "queue_size", cap(r.queue))
}

// Stop cancels workers and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	r.logger.Info("worker pool stopped")
}

// Submit enqueues a background unit. It never blocks: a full queue is
// an immediate ErrQueueFull.
func (r *Runner) Submit(taskID string, fn func(ctx context.Context)) error {
	select {
	case r.queue <- job{taskID: taskID, fn: fn}:
		telemetry.QueueDepth.Inc()
		return nil
	default:
		telemetry.TasksRejected.Inc()
		return ErrQueueFull
	}
}

// QueueDepth returns the number of jobs waiting for a worker.
func (r *Runner) QueueDepth() int {
	return len(r.queue)
}

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-r.queue:
			telemetry.QueueDepth.Dec()
			r.logger.Debug("worker picked up task", "worker", id, "task_id", j.taskID)
			j.fn(ctx)
		}
	}
}
