package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a unit of background work, such as delivering one leave event.
type Task struct {
	ID         string
	Kind       string
	Payload    any
	Attempts   int
	EnqueuedAt time.Time
}

// TaskFunc handles a single task. A returned error triggers a retry until
// MaxAttempts is exhausted.
type TaskFunc func(context.Context, Task) error

// Options tunes the dispatcher. Zero values fall back to small defaults
// suitable for low-volume event delivery.
type Options struct {
	Workers     int
	Buffer      int
	MaxAttempts int
	Backoff     time.Duration
	Logger      *zap.Logger
}

// Queue fans tasks out to a fixed pool of worker goroutines. Retries happen
// inside the worker with a linear backoff, so a persistently failing task
// never occupies more than one worker.
type Queue struct {
	name   string
	fn     TaskFunc
	opts   Options
	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewQueue builds a queue around fn. Call Start before Submit.
func NewQueue(name string, fn TaskFunc, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Queue{
		name:  name,
		fn:    fn,
		opts:  opts,
		tasks: make(chan Task, opts.Buffer),
	}
}

// Start launches the worker pool. Subsequent calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
	q.running = true
	q.opts.Logger.Info("task queue started",
		zap.String("queue", q.name),
		zap.Int("workers", q.opts.Workers))
}

// Stop cancels the workers and blocks until they exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.opts.Logger.Info("task queue stopped", zap.String("queue", q.name))
}

// Submit enqueues a task, blocking while the buffer is full. Fails once the
// queue is stopped or not yet started.
func (q *Queue) Submit(task Task) error {
	q.mu.Lock()
	ctx := q.ctx
	running := q.running
	q.mu.Unlock()

	if !running {
		return fmt.Errorf("queue %s is not running", q.name)
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s is shutting down: %w", q.name, ctx.Err())
	case q.tasks <- task:
		return nil
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			q.process(task)
		}
	}
}

func (q *Queue) process(task Task) {
	for {
		task.Attempts++
		err := q.fn(q.ctx, task)
		if err == nil {
			return
		}
		if task.Attempts >= q.opts.MaxAttempts {
			q.opts.Logger.Error("task dropped after retries",
				zap.String("queue", q.name),
				zap.String("task_id", task.ID),
				zap.String("kind", task.Kind),
				zap.Int("attempts", task.Attempts),
				zap.Error(err))
			return
		}
		q.opts.Logger.Warn("task failed, backing off",
			zap.String("queue", q.name),
			zap.String("task_id", task.ID),
			zap.String("kind", task.Kind),
			zap.Int("attempt", task.Attempts),
			zap.Error(err))

		timer := time.NewTimer(time.Duration(task.Attempts) * q.opts.Backoff)
		select {
		case <-q.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
