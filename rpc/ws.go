package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"nhbmarket/core/events"
	"nhbmarket/core/types"
	"nhbmarket/observability"
)

const (
	wsWriteTimeout        = 10 * time.Second
	defaultSubscriberSize = 64
)

// Hub fans committed events out to websocket subscribers. A subscriber whose
// buffer is full misses the event rather than stalling the commit path.
type Hub struct {
	buffer int

	mu   sync.Mutex
	subs map[chan *types.Event]struct{}
}

// NewHub creates a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberSize
	}
	return &Hub{buffer: buffer, subs: make(map[chan *types.Event]struct{})}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	if h == nil || evt == nil {
		return
	}
	canonical := events.Canonical(evt)
	if canonical == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- canonical.Clone():
		default:
			observability.Events().RecordDropped("websocket")
		}
	}
}

// Subscribe registers a new listener. The returned cancel func must be called
// to release it.
func (h *Hub) Subscribe() (<-chan *types.Event, func()) {
	ch := make(chan *types.Event, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "event stream disabled", http.StatusServiceUnavailable)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := conn.CloseRead(r.Context())
	updates, cancel := s.hub.Subscribe()
	defer cancel()
	if err := streamEvents(ctx, conn, updates); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func streamEvents(ctx context.Context, conn *websocket.Conn, updates <-chan *types.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			data, err := json.Marshal(evt)
			if err != nil {
				return err
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
