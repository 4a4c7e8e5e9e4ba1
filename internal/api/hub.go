package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/relief-mobility/internal/engine"
)

const (
	defaultMaxSubscribers = 8
	subscriberBuffer      = 1024
	writeWait             = 5 * time.Second
)

// Hub fans emitted paths out to websocket subscribers. It is a path sink:
// Record never blocks the simulation, and a subscriber that falls behind
// loses paths rather than slowing the run down.
type Hub struct {
	// MaxSubscribers bounds concurrent stream connections.
	MaxSubscribers int

	upgrader websocket.Upgrader

	mu      sync.Mutex
	subs    map[uint64]chan []byte
	nextID  uint64
	dropped uint64
	closed  bool
}

// NewHub creates a hub accepting up to maxSubscribers connections.
func NewHub(maxSubscribers int) *Hub {
	if maxSubscribers <= 0 {
		maxSubscribers = defaultMaxSubscribers
	}
	return &Hub{
		MaxSubscribers: maxSubscribers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[uint64]chan []byte),
	}
}

// Record implements engine.PathSink.
func (h *Hub) Record(ev engine.PathEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode path %d: %w", ev.Seq, err)
	}
	h.Publish(b)
	return nil
}

// Publish sends one encoded message to every subscriber.
func (h *Hub) Publish(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- b:
		default:
			h.dropped++
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}

func (h *Hub) subscribe() (uint64, chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || len(h.subs) >= h.MaxSubscribers {
		return 0, nil, false
	}
	h.nextID++
	ch := make(chan []byte, subscriberBuffer)
	h.subs[h.nextID] = ch
	return h.nextID, ch, true
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

// ServeHTTP upgrades the request and streams paths as JSON text messages
// until the client goes away or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id, ch, ok := h.subscribe()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
		return
	}
	defer h.unsubscribe(id)
	slog.Info("stream client connected", "sub_id", id, "remote", r.RemoteAddr)

	// The reader only notices the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case b, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run over"), time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-gone:
			slog.Info("stream client disconnected", "sub_id", id)
			return
		}
	}
}
