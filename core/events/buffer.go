package events

import "sync"

// Buffer queues events until the surrounding unit of work commits. Events of
// a discarded unit of work are never delivered.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// Emit implements Emitter.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

// Events returns a snapshot of the queued events.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Flush forwards the queued events to sink in emission order and empties the
// buffer.
func (b *Buffer) Flush(sink Emitter) {
	b.mu.Lock()
	pending := b.events
	b.events = nil
	b.mu.Unlock()
	if sink == nil {
		return
	}
	for _, evt := range pending {
		sink.Emit(evt)
	}
}

// Reset drops the queued events.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}
