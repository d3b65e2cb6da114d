// Package hub fans engine events out to websocket clients watching a profile.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"travel_tracker/internal/travel"
)

const writeWait = 10 * time.Second

type client struct {
	conn      *websocket.Conn
	profileID uuid.UUID
	send      chan []byte
}

// Hub implements travel.EventSink. Each connection has its own writer
// goroutine so writes to a socket never overlap.
type Hub struct {
	mu         sync.Mutex
	clients    map[uuid.UUID]map[*client]struct{}
	sendBuffer int
}

func New(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Hub{clients: make(map[uuid.UUID]map[*client]struct{}), sendBuffer: sendBuffer}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.profileID]; !ok {
		h.clients[c.profileID] = make(map[*client]struct{})
	}
	h.clients[c.profileID][c] = struct{}{}
	logrus.WithFields(logrus.Fields{
		"profile_id": c.profileID,
		"conn_ptr":   fmt.Sprintf("%p", c.conn),
	}).Info("Client registered with event hub")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[c.profileID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.clients, c.profileID)
	}
	logrus.WithFields(logrus.Fields{
		"profile_id": c.profileID,
		"conn_ptr":   fmt.Sprintf("%p", c.conn),
	}).Info("Client unregistered from event hub")
}

// Clients returns the number of sockets watching profileID.
func (h *Hub) Clients(profileID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[profileID])
}

// Publish queues ev for every client of its profile. Slow clients drop events.
func (h *Hub) Publish(_ context.Context, ev travel.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[ev.ProfileID] {
		select {
		case c.send <- b:
		default:
			logrus.WithFields(logrus.Fields{
				"profile_id": ev.ProfileID,
				"event":      ev.Type,
			}).Warn("Event hub client buffer full, dropping event")
		}
	}
	return nil
}

// Serve runs a watcher connection until the peer goes away. Incoming messages are ignored.
func (h *Hub) Serve(conn *websocket.Conn, profileID uuid.UUID) {
	c := &client{conn: conn, profileID: profileID, send: make(chan []byte, h.sendBuffer)}
	h.register(c)
	defer h.unregister(c)

	go c.writeLoop()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).WithField("profile_id", profileID).Warn("Event websocket read error")
			}
			return
		}
	}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logrus.WithError(err).WithField("profile_id", c.profileID).Warn("Failed to write event to client")
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0)
	for _, clients := range h.clients {
		for c := range clients {
			conns = append(conns, c.conn)
		}
	}
	h.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
}
