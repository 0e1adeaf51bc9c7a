// Package monitor broadcasts status_out events (spec §4.7) to external,
// read-only monitoring clients over WebSocket. This is a transport for an
// external tool, not the GUI itself — spec §1 excludes "any GUI" from the
// core, and this package never renders anything.
//
// Grounded on the teacher's pkg/web/websocket.go: the same
// register/unregister/broadcast hub goroutine, per-client buffered
// channel, and a reader goroutine that only drains reads to detect
// client-initiated close.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sleipnir-radio/sleipnir/internal/bus"
	"github.com/sleipnir-radio/sleipnir/internal/logging"
)

// Event is one JSON message pushed to connected monitoring clients.
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Status    bus.StatusEvent `json:"status"`
}

func (e *Event) marshal() ([]byte, error) { return json.Marshal(e) }

type client struct {
	id       string
	conn     *websocket.Conn
	messages chan []byte
}

// Hub manages connected monitoring clients and fans out status events
// broadcast to it.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	log        *logging.Logger
	mu         sync.RWMutex
}

// NewHub creates a Hub. Call Run to start its event loop.
func NewHub(log *logging.Logger) *Hub {
	if log == nil {
		log = logging.New(logging.Config{Level: "info"})
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		log:        log.WithComponent("monitor"),
	}
}

// Run drives the hub's register/unregister/broadcast loop until ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.log.Debug("monitor client registered", logging.String("client_id", c.id))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.messages)
			}
			h.mu.Unlock()
			h.log.Debug("monitor client unregistered", logging.String("client_id", c.id))

		case ev := <-h.broadcast:
			data, err := ev.marshal()
			if err != nil {
				h.log.Error("failed to marshal monitor event", logging.Error(err))
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.messages <- data:
				default:
					h.log.Warn("monitor client buffer full, skipping", logging.String("client_id", c.id))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.log.Info("monitor hub shutting down")
			h.mu.Lock()
			for c := range h.clients {
				close(c.messages)
			}
			h.clients = make(map[*client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// BroadcastStatus pushes one status_out event to every connected client,
// preserving spec §5's total-ordering guarantee: the caller is expected to
// invoke this in the same order the Parser emits events on StatusOut.
func (h *Hub) BroadcastStatus(ev bus.StatusEvent) {
	event := Event{Type: "status", Timestamp: time.Now(), Status: ev}
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("monitor broadcast channel full, dropping event")
	}
}

// ClientCount reports the number of currently connected monitoring clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler returns an HTTP handler that upgrades connections to WebSocket
// and registers them with the hub.
func (h *Hub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}
		c := &client{id: r.RemoteAddr, conn: conn, messages: make(chan []byte, 256)}
		h.register <- c

		go func() {
			defer func() {
				h.unregister <- c
				_ = c.conn.Close()
			}()
			c.conn.SetReadLimit(1024)
			for {
				if _, _, err := c.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		go func() {
			for msg := range c.messages {
				_ = c.conn.WriteMessage(websocket.TextMessage, msg)
			}
		}()
	})
}

// Pump drains StatusOut and broadcasts every event, returning when ctx is
// cancelled. Intended to run in its own goroutine alongside Run.
func (h *Hub) Pump(ctx context.Context, statusOut *bus.Queue[bus.StatusEvent]) {
	for {
		ev, err := statusOut.Pop(ctx)
		if err != nil {
			return
		}
		h.BroadcastStatus(ev)
	}
}
