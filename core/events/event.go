package events

import "nhbmarket/core/types"

// Event represents a structured state change emitted by the node.
type Event interface {
	EventType() string
}

// Payload is implemented by events that carry the canonical attribute map.
type Payload interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Typed wraps a canonical event so it satisfies both Event and Payload.
type Typed struct {
	evt *types.Event
}

// Wrap adapts a canonical event for emission.
func Wrap(evt *types.Event) Typed { return Typed{evt: evt} }

func (t Typed) EventType() string {
	if t.evt == nil {
		return ""
	}
	return t.evt.Type
}

func (t Typed) Event() *types.Event { return t.evt }

// Canonical extracts the attribute payload from an emitted event, if any.
func Canonical(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	payload, ok := evt.(Payload)
	if !ok {
		return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
	}
	return payload.Event()
}
