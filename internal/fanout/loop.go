package fanout

import (
	"context"
	"fmt"
	"sync"
)

// DefaultQueueSize is used when NewLoop is given a non-positive size.
const DefaultQueueSize = 1024

// Task is a unit of work run on the loop goroutine.
type Task func()

// Loop is the single goroutine that owns every broadcaster's state.
//
// Submit is safe from any goroutine. Tasks run one at a time in the order
// they were accepted. Tasks still queued when Run returns are discarded.
type Loop struct {
	tasks  chan Task
	logger Logger

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewLoop creates a loop with room for queueSize pending tasks.
// A nil logger discards output.
func NewLoop(queueSize int, logger Logger) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Loop{
		tasks:   make(chan Task, queueSize),
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled. It returns nil on shutdown.
// Run must be called exactly once.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()

	l.logger.Debug("fanout loop started", "queue_size", cap(l.tasks))
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("fanout loop stopped", "discarded", len(l.tasks))
			return nil
		case task := <-l.tasks:
			l.runTask(task)
		}
	}
}

// Submit enqueues task without blocking.
//
// It returns ErrLoopSaturated when the queue is full and ErrLoopStopped
// after Run has returned.
func (l *Loop) Submit(task Task) error {
	select {
	case <-l.stopped:
		return ErrLoopStopped
	default:
	}

	select {
	case l.tasks <- task:
		return nil
	default:
		return ErrLoopSaturated
	}
}

// Do submits task and waits for it to finish or for ctx to end.
func (l *Loop) Do(ctx context.Context, task Task) error {
	done := make(chan struct{})
	if err := l.Submit(func() {
		defer close(done)
		task()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-l.stopped:
		// The task may have run just before the loop stopped.
		select {
		case <-done:
			return nil
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return fmt.Errorf("waiting for fanout task: %w", ctx.Err())
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	return len(l.tasks)
}

func (l *Loop) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("fanout task panicked", "panic", r)
		}
	}()
	task()
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.stopped) })
}
