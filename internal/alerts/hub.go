// Package alerts pushes budget alerts to connected clients over websockets.
package alerts

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fingrow/fingrow/internal/finance"
)

// sendBuffer bounds per-connection backlog; slow consumers are dropped rather
// than blocking the publisher.
const sendBuffer = 8

// Hub fans budget alerts out to each user's open websocket connections.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan finance.Alert
}

// NewHub creates an alert hub. Origin checking is delegated to the CORS
// middleware in front of the handler.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[string]map[*client]struct{}),
	}
}

// Subscribe upgrades the request to a websocket and streams the user's alerts
// until the client disconnects.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, send: make(chan finance.Alert, sendBuffer)}
	h.register(userID, c)
	h.log.Info().Str("user_id", userID).Msg("Alert stream opened")

	go h.writeLoop(userID, c)
	go h.readLoop(userID, c)
	return nil
}

// Publish delivers an alert to every open connection of the user without
// blocking: a connection with a full buffer misses the alert.
func (h *Hub) Publish(userID string, alert finance.Alert) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[userID] {
		select {
		case c.send <- alert:
		default:
			h.log.Warn().Str("user_id", userID).Msg("Alert dropped for slow consumer")
		}
	}
}

// Subscribers returns the number of open connections for a user.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

func (h *Hub) register(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*client]struct{})
	}
	h.conns[userID][c] = struct{}{}
}

func (h *Hub) unregister(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[userID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			close(c.send)
			if len(set) == 0 {
				delete(h.conns, userID)
			}
		}
	}
}

func (h *Hub) writeLoop(userID string, c *client) {
	for alert := range c.send {
		if err := c.conn.WriteJSON(alert); err != nil {
			h.log.Debug().Err(err).Str("user_id", userID).Msg("Alert write failed")
			h.unregister(userID, c)
			_ = c.conn.Close()
			return
		}
	}
	_ = c.conn.Close()
}

// readLoop drains client frames so pings are answered, and tears the
// connection down on close.
func (h *Hub) readLoop(userID string, c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.unregister(userID, c)
			h.log.Info().Str("user_id", userID).Msg("Alert stream closed")
			return
		}
	}
}
