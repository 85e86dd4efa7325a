package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a unit of serialized work. The context passed to a running task is
// never cancelled, so a task that has started always runs to completion.
type Task func(ctx context.Context) error

// ErrQueueStopped is returned when submitting to a queue that is not running.
var ErrQueueStopped = errors.New("mutation queue not running")

// ErrTaskSkipped is reported when a task's submitter gave up before the task started.
var ErrTaskSkipped = errors.New("task skipped: submitter context done before start")

// Observer receives queue instrumentation. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveQueueTask(name string, err error, duration time.Duration)
	SetQueueDepth(depth int)
}

// QueueConfig configures the mutation queue.
type QueueConfig struct {
	BufferSize int
	Logger     *zap.Logger
	Observer   Observer
}

type queuedTask struct {
	name     string
	ctx      context.Context
	run      Task
	result   chan error
	enqueued time.Time
}

type inTaskKey struct{}

// InTask reports whether ctx belongs to a task currently executed by a MutationQueue worker.
func InTask(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(inTaskKey{}).(bool)
	return v
}

// MutationQueue is a FIFO executor drained by exactly one worker goroutine.
// At most one task runs at any instant and tasks run in submission order.
type MutationQueue struct {
	name     string
	logger   *zap.Logger
	observer Observer

	tasks   chan queuedTask
	done    chan struct{}
	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewMutationQueue builds a queue. Call Start before submitting.
func NewMutationQueue(name string, cfg QueueConfig) *MutationQueue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &MutationQueue{
		name:     name,
		logger:   cfg.Logger,
		observer: cfg.Observer,
		tasks:    make(chan queuedTask, cfg.BufferSize),
		done:     make(chan struct{}),
	}
}

// Start launches the single worker. Safe to call once.
func (q *MutationQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	go q.worker()
	q.logger.Sugar().Infow("mutation queue started", "queue", q.name, "buffer", cap(q.tasks))
}

// Stop rejects new submissions, drains queued tasks and waits for the worker to exit.
func (q *MutationQueue) Stop() {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.tasks)
	q.mu.Unlock()

	<-q.done
	q.logger.Sugar().Infow("mutation queue stopped", "queue", q.name)
}

// Submit enqueues task and waits for its result. When ctx ends first the
// caller receives ctx.Err(); a task that already started still completes.
func (q *MutationQueue) Submit(ctx context.Context, name string, task Task) error {
	result := make(chan error, 1)
	if err := q.enqueue(ctx, name, task, result); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("wait for %s: %w", name, ctx.Err())
	}
}

// Go enqueues task without waiting for completion. Failures are only logged.
func (q *MutationQueue) Go(ctx context.Context, name string, task Task) error {
	return q.enqueue(ctx, name, task, nil)
}

// Len returns the number of tasks waiting to run.
func (q *MutationQueue) Len() int {
	return len(q.tasks)
}

func (q *MutationQueue) enqueue(ctx context.Context, name string, task Task, result chan error) error {
	if task == nil {
		return fmt.Errorf("queue %s: nil task %s", q.name, name)
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.started || q.stopped {
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueStopped)
	}

	item := queuedTask{name: name, ctx: ctx, run: task, result: result, enqueued: time.Now()}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", name, ctx.Err())
	case q.tasks <- item:
		q.reportDepth()
		return nil
	}
}

func (q *MutationQueue) worker() {
	defer close(q.done)
	for item := range q.tasks {
		q.reportDepth()
		q.execute(item)
	}
}

func (q *MutationQueue) execute(item queuedTask) {
	if item.ctx.Err() != nil {
		q.logger.Sugar().Warnw("skipping task, submitter gave up", "queue", q.name, "task", item.name, "waited", time.Since(item.enqueued))
		q.finish(item, ErrTaskSkipped, 0)
		return
	}

	runCtx := context.WithValue(context.WithoutCancel(item.ctx), inTaskKey{}, true)
	start := time.Now()
	err := q.safeRun(runCtx, item)
	duration := time.Since(start)

	if err != nil {
		q.logger.Sugar().Warnw("task failed", "queue", q.name, "task", item.name, "duration", duration, "error", err)
	}
	q.finish(item, err, duration)
}

func (q *MutationQueue) safeRun(ctx context.Context, item queuedTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", zap.String("queue", q.name), zap.String("task", item.name), zap.Any("panic", r))
			err = fmt.Errorf("task %s panicked: %v", item.name, r)
		}
	}()
	return item.run(ctx)
}

func (q *MutationQueue) finish(item queuedTask, err error, duration time.Duration) {
	if q.observer != nil {
		q.observer.ObserveQueueTask(item.name, err, duration)
	}
	if item.result != nil {
		item.result <- err
	}
}

func (q *MutationQueue) reportDepth() {
	if q.observer != nil {
		q.observer.SetQueueDepth(len(q.tasks))
	}
}
