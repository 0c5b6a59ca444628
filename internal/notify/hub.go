package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/PewPewSlowMo/SmartCallCenter/internal/rbac"
)

// Message is one frame pushed to a dashboard client.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	sendBufferSize = 64
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 54 * time.Second
)

type client struct {
	id     string
	userID string
	role   string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
}

type envelope struct {
	payload      []byte
	roles        []string
	targetUserID string
}

func (e envelope) matches(c *client) bool {
	if e.targetUserID != "" && c.userID == e.targetUserID {
		return true
	}
	for _, r := range e.roles {
		if c.role == r {
			return true
		}
	}
	return false
}

// Hub fans call-center events out to connected websocket clients. Every
// publish reaches the supervisory roles; a target user id additionally
// reaches that user's own connections regardless of role. A client whose
// send buffer is full misses the frame rather than stalling the hub.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	mu         sync.RWMutex
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	outbound   chan envelope
	done       chan struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:        log,
		now:        time.Now,
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		outbound:   make(chan envelope, 256),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			// Dashboard origins are enforced upstream by the API gateway.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run owns the client set. It exits when ctx is cancelled, closing every
// client's send channel. After exit the register and unregister channels
// are never read again; Attach and readPump select on done instead.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Info("notification client connected", "user_id", c.userID, "role", c.role)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case env := <-h.outbound:
			h.mu.RLock()
			for c := range h.clients {
				if !env.matches(c) {
					continue
				}
				select {
				case c.send <- env.payload:
				default:
					h.log.Warn("notification client too slow, dropping frame",
						"user_id", c.userID, "role", c.role)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish implements Notifier. A failed marshal is logged and the event
// dropped; callers never see notification failures.
func (h *Hub) Publish(event string, data any, targetUserID string) {
	payload, err := json.Marshal(Message{Type: event, Data: data, Timestamp: h.now().UTC()})
	if err != nil {
		h.log.Error("marshal notification", "event", event, "error", err)
		return
	}
	env := envelope{payload: payload, roles: rbac.SupervisoryRoles(), targetUserID: targetUserID}
	select {
	case h.outbound <- env:
	default:
		h.log.Warn("notification queue full, dropping event", "event", event)
	}
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Attach upgrades the request and subscribes the authenticated user until
// the connection drops.
func (h *Hub) Attach(w http.ResponseWriter, r *http.Request, userID, role string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:     uuid.NewString(),
		userID: userID,
		role:   role,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		hub:    h,
	}

	// Queue the greeting while the send channel is still owned here; once
	// registered, the hub may close it at any time.
	greeting, _ := json.Marshal(Message{
		Type:      "connection-established",
		Data:      map[string]string{"client_id": c.id},
		Timestamp: h.now().UTC(),
	})
	c.send <- greeting

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	// Clients only receive; inbound frames are drained for keepalive.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
