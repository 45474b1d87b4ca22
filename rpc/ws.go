package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"qamarket/core/events"
)

const (
	wsWriteTimeout  = 10 * time.Second
	wsSendQueueSize = 64
)

// wsEventPayload is the wire shape of one streamed event.
type wsEventPayload struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// EventHub fans ledger events out to connected websocket clients. It
// implements events.Emitter so it can sit directly in the node's emitter
// chain. Slow clients are dropped rather than allowed to stall emission.
type EventHub struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewEventHub constructs an empty hub.
func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{logger: logger, subs: make(map[chan []byte]struct{})}
}

// Emit implements events.Emitter.
func (h *EventHub) Emit(evt events.Event) {
	if h == nil || evt == nil {
		return
	}
	payload := wsEventPayload{Type: evt.EventType()}
	if raw, ok := events.RawEvent(evt); ok {
		payload.Type = raw.Type
		payload.Attributes = raw.Attributes
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("event marshal failed", "type", payload.Type, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- data:
		default:
			delete(h.subs, ch)
			close(ch)
			h.logger.Warn("dropping slow websocket subscriber")
		}
	}
}

func (h *EventHub) subscribe() chan []byte {
	ch := make(chan []byte, wsSendQueueSize)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	wsClients.Inc()
	return ch
}

func (h *EventHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
	wsClients.Dec()
}

func (h *EventHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// The stream is write-only; CloseRead keeps control frames serviced and
	// cancels the context as soon as the peer goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
