package events

import (
	"context"
	"log/slog"
	"sync"
)

const defaultAsyncQueue = 1024

// Async hands events to a slow sink from a worker goroutine. Emit never
// blocks: when the queue is full the event is dropped and onDrop is called.
type Async struct {
	sink   Emitter
	queue  chan Event
	onDrop func(Event)
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the worker. A non-positive size selects the default queue.
func NewAsync(sink Emitter, size int, onDrop func(Event), logger *slog.Logger) *Async {
	if size <= 0 {
		size = defaultAsyncQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		sink:   sink,
		queue:  make(chan Event, size),
		onDrop: onDrop,
		logger: logger,
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for evt := range a.queue {
		a.deliver(evt)
	}
}

func (a *Async) deliver(evt Event) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("async sink panicked", "event", evt.EventType(), "panic", r)
		}
	}()
	a.sink.Emit(evt)
}

// Emit implements Emitter.
func (a *Async) Emit(evt Event) {
	if a == nil || evt == nil {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.drop(evt)
		return
	}
	select {
	case a.queue <- evt:
	default:
		a.drop(evt)
	}
}

func (a *Async) drop(evt Event) {
	if a.onDrop != nil {
		a.onDrop(evt)
	}
}

// Pending reports the number of queued events.
func (a *Async) Pending() int { return len(a.queue) }

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
