package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"nhbmarket/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
	dropped *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured marketplace events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhbmarket",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
			dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhbmarket",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Count of events a sink failed to deliver segmented by sink.",
			}, []string{"sink"}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.dropped)
	})
	return eventRegistry
}

// RecordEvent increments the counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// RecordDropped counts an event the named sink could not deliver.
func (m *eventMetrics) RecordDropped(sink string) {
	if m == nil {
		return
	}
	if sink == "" {
		sink = "unknown"
	}
	m.dropped.WithLabelValues(sink).Inc()
}

// Emit implements events.Emitter so the registry can sit in a fanout.
func (m *eventMetrics) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	m.RecordEvent(evt.EventType())
}
