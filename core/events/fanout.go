package events

import "log/slog"

// Fanout delivers each event to every sink. A panicking sink is logged and
// skipped so delivery never fails the caller.
type Fanout struct {
	sinks  []Emitter
	logger *slog.Logger
}

// NewFanout builds a fanout over the non-nil sinks.
func NewFanout(logger *slog.Logger, sinks ...Emitter) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	filtered := make([]Emitter, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}
	return &Fanout{sinks: filtered, logger: logger}
}

// Emit implements Emitter.
func (f *Fanout) Emit(evt Event) {
	if f == nil || evt == nil {
		return
	}
	for _, sink := range f.sinks {
		f.deliver(sink, evt)
	}
}

func (f *Fanout) deliver(sink Emitter, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Warn("event sink panicked", "event", evt.EventType(), "panic", r)
		}
	}()
	sink.Emit(evt)
}
