package events

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one catalog change notification pushed to connected clients.
type Event struct {
	Type   string    `json:"type"` // "pass.started", "pass.finished", "title.created", "title.updated", "domain.changed"
	RunID  string    `json:"run_id,omitempty"`
	Slug   string    `json:"slug,omitempty"`
	Domain string    `json:"domain,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

const (
	PassStarted  = "pass.started"
	PassFinished = "pass.finished"
	TitleCreated = "title.created"
	TitleUpdated = "title.updated"
	DomainMoved  = "domain.changed"
)

// Hub fans catalog events out to websocket subscribers. Publishing never
// blocks the sync pass; slow or dead clients are dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *Hub) Add(ws *websocket.Conn) {
	h.mu.Lock()
	h.clients[ws] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Remove(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish broadcasts one event. A nil hub is a valid no-op publisher so
// callers don't have to guard every call site.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[events] marshal: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ws := range h.clients {
		_ = ws.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			_ = ws.Close()
			delete(h.clients, ws)
		}
	}
}
