// Package loop provides the cooperative scheduler every serpnav session
// runs on. One goroutine executes all tasks in FIFO order, so commands,
// scans and timer callbacks never interleave mid-operation.
package loop

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a pending callback. Stop guarantees the callback will not run
// afterwards, even if the underlying timer already fired and its task is
// queued. Stop returns false if the callback already ran or was stopped.
type Timer interface {
	Stop() bool
}

// Scheduler posts tasks and delayed tasks onto a single execution context.
type Scheduler interface {
	Post(fn func())
	After(d time.Duration, fn func()) Timer
}

// Loop is a Scheduler backed by one goroutine (Run).
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	logger *slog.Logger
}

// New creates a Loop. Call Run to start executing tasks.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Post enqueues fn. It never blocks, including when called from a task.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// After runs fn on the loop once d has elapsed.
func (l *Loop) After(d time.Duration, fn func()) Timer {
	t := &timer{}
	t.rt = time.AfterFunc(d, func() {
		l.Post(func() {
			if !t.fired.CompareAndSwap(false, true) {
				return
			}
			fn()
		})
	})
	return t
}

// Run executes tasks until ctx is cancelled. A panicking task is logged
// and does not stop the loop.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			if ctx.Err() != nil {
				return
			}
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop: task panicked", "panic", r)
		}
	}()
	fn()
}

// timer wraps a runtime timer. fired doubles as the stopped flag: whoever
// flips it first (the task or Stop) wins.
type timer struct {
	rt    *time.Timer
	fired atomic.Bool
}

func (t *timer) Stop() bool {
	t.rt.Stop()
	return t.fired.CompareAndSwap(false, true)
}
