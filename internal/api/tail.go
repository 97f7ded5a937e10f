package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	tailSendBuffer = 16
	tailWriteWait  = 10 * time.Second
)

var tailUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// TailEvent is pushed to every tail subscriber when a message is
// appended to the global log.
type TailEvent struct {
	Index int64 `json:"index"`
}

// TailHub fans appended message indexes out to websocket subscribers.
// Notify never blocks: a subscriber that cannot keep up has events
// dropped rather than stalling the engine loop.
type TailHub struct {
	mu      sync.Mutex
	clients map[chan TailEvent]struct{}
}

// NewTailHub creates an empty hub.
func NewTailHub() *TailHub {
	return &TailHub{clients: make(map[chan TailEvent]struct{})}
}

// Notify broadcasts a newly appended message index. Suitable as an
// engine.WithAppendHook callback.
func (h *TailHub) Notify(index int64) {
	ev := TailEvent{Index: index}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			// subscriber is behind, drop
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *TailHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *TailHub) subscribe() chan TailEvent {
	ch := make(chan TailEvent, tailSendBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *TailHub) unsubscribe(ch chan TailEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// handleTail upgrades the connection and streams TailEvents until the
// client goes away.
func (h *TailHub) handleTail(w http.ResponseWriter, r *http.Request) {
	conn, err := tailUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("tail upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// Reader goroutine exists only to observe the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-ch:
			conn.SetWriteDeadline(time.Now().Add(tailWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
