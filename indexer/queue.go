package indexer

import (
	"nhbmarket/core/events"
	"nhbmarket/observability"
)

// Queue decouples the archive from the commit path. Inserts run on a worker
// goroutine; when size events are already waiting, new ones are dropped and
// counted under the "indexer" sink label.
func (ix *Indexer) Queue(size int) *events.Async {
	return events.NewAsync(ix, size, func(evt events.Event) {
		ix.logger.Warn("event queue full", "event", evt.EventType())
		observability.Events().RecordDropped("indexer")
	}, ix.logger)
}
