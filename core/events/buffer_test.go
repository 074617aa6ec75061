package events

import (
	"math/big"
	"testing"

	"nhbmarket/core/types"
)

type recordingEmitter struct {
	events []Event
}

func (r *recordingEmitter) Emit(evt Event) { r.events = append(r.events, evt) }

type panickingEmitter struct{}

func (panickingEmitter) Emit(Event) { panic("sink down") }

func TestBufferFlushPreservesOrder(t *testing.T) {
	buf := NewBuffer()
	buf.Emit(Wrap(&types.Event{Type: "a"}))
	buf.Emit(Wrap(&types.Event{Type: "b"}))
	buf.Emit(nil)

	sink := &recordingEmitter{}
	buf.Flush(sink)
	if len(sink.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(sink.events))
	}
	if sink.events[0].EventType() != "a" || sink.events[1].EventType() != "b" {
		t.Fatalf("unexpected order: %s, %s", sink.events[0].EventType(), sink.events[1].EventType())
	}
	if len(buf.Events()) != 0 {
		t.Fatalf("buffer should be empty after flush")
	}
}

func TestBufferResetDropsEvents(t *testing.T) {
	buf := NewBuffer()
	buf.Emit(Wrap(&types.Event{Type: "a"}))
	buf.Reset()
	sink := &recordingEmitter{}
	buf.Flush(sink)
	if len(sink.events) != 0 {
		t.Fatalf("expected no events after reset")
	}
}

func TestFanoutSurvivesPanickingSink(t *testing.T) {
	first := &recordingEmitter{}
	last := &recordingEmitter{}
	fan := NewFanout(nil, first, panickingEmitter{}, nil, last)
	fan.Emit(Transfer{Amount: big.NewInt(3)})
	if len(first.events) != 1 || len(last.events) != 1 {
		t.Fatalf("expected both healthy sinks to receive the event")
	}
}

func TestTransferEventAttributes(t *testing.T) {
	var from, to [20]byte
	from[0], to[0] = 1, 2
	evt := Transfer{From: from, To: to, Amount: big.NewInt(95), Reason: " Purchase "}.Event()
	if evt.Type != TypeTransfer {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["amount"] != "95" {
		t.Fatalf("unexpected amount %s", evt.Attributes["amount"])
	}
	if evt.Attributes["reason"] != "purchase" {
		t.Fatalf("unexpected reason %q", evt.Attributes["reason"])
	}
	if Canonical(Transfer{}).Type != TypeTransfer {
		t.Fatalf("canonical payload mismatch")
	}
}
