// Package websocket broadcasts tool progress and license state changes
// to connected frontends.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"tktcli/internal/tools"
)

// Message type constants.
const (
	TypeConnection = "connection"
	TypeProgress   = "progress"
	TypeLicense    = "license"
	TypeError      = "error"
)

// Envelope is the wire shape of every broadcast message.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Hub maintains the set of active clients and fans broadcast messages
// out to them. Slow clients are dropped rather than blocking the hub.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}

	mu      sync.Mutex
	running bool

	logger *slog.Logger
}

// NewHub creates a hub. Call Start before serving connections.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
}

// Start launches the hub loop. Idempotent.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Shutdown stops the hub loop and closes every client connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.quit)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.logger.Info("hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("client registered",
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("clients", len(h.clients)),
			)
			client.trySend(marshalEnvelope(TypeConnection, map[string]string{"status": "connected"}))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("client unregistered",
					slog.String("remote_addr", client.remoteAddr),
					slog.Int("clients", len(h.clients)),
				)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				if !client.trySend(message) {
					// Buffer full, the client is too slow to keep.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Broadcast sends an envelope of the given type to every client.
func (h *Hub) Broadcast(msgType string, data any) {
	select {
	case h.broadcast <- marshalEnvelope(msgType, data):
	default:
		h.logger.Warn("broadcast queue full, message dropped", slog.String("type", msgType))
	}
}

// BroadcastProgress forwards a tool progress event. Usable as a
// tools.ProgressFunc.
func (h *Hub) BroadcastProgress(ev tools.ProgressEvent) {
	h.Broadcast(TypeProgress, ev)
}

// BroadcastLicenseState announces an activation state change.
func (h *Hub) BroadcastLicenseState(state string) {
	h.Broadcast(TypeLicense, map[string]string{"state": state})
}

func marshalEnvelope(msgType string, data any) []byte {
	env := Envelope{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		payload, _ = json.Marshal(Envelope{Type: TypeError, Timestamp: env.Timestamp})
	}
	return payload
}
