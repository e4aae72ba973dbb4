package sink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Async decouples producers from a slow sink. Send never blocks: when the
// buffer is full the event is dropped and counted.
type Async struct {
	next    Sink
	queue   chan Event
	logger  *slog.Logger
	dropped atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewAsync starts a delivery goroutine in front of next. size <= 0 means 256.
func NewAsync(next Sink, size int, logger *slog.Logger) *Async {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Async{
		next:   next,
		queue:  make(chan Event, size),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Send enqueues ev. It returns nil even when ev is dropped.
func (a *Async) Send(_ context.Context, ev Event) error {
	select {
	case <-a.ctx.Done():
		return nil
	default:
	}
	select {
	case a.queue <- ev:
	default:
		if n := a.dropped.Add(1); n == 1 || n%100 == 0 {
			a.logger.Warn("sink: buffer full, event dropped", "type", ev.Type, "dropped", n)
		}
	}
	return nil
}

// Dropped returns the number of events dropped so far.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Close delivers what is already queued, stops the goroutine and closes
// the wrapped sink.
func (a *Async) Close() error {
	a.once.Do(func() {
		a.cancel()
		<-a.done
	})
	return a.next.Close()
}

func (a *Async) run() {
	defer close(a.done)
	for {
		select {
		case ev := <-a.queue:
			a.deliver(ev)
		case <-a.ctx.Done():
			for {
				select {
				case ev := <-a.queue:
					a.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (a *Async) deliver(ev Event) {
	if err := a.next.Send(context.Background(), ev); err != nil {
		a.logger.Debug("sink: async delivery failed", "type", ev.Type, "error", err)
	}
}
