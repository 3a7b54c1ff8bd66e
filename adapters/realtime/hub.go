package realtime

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/khoahotran/stories-backend/pkg/logger"
)

const (
	EventOnlineUsers = "online_users"

	writeWait  = 10 * time.Second
	pongDelay  = 60 * time.Second
	pingPeriod = (pongDelay * 9) / 10
	sendBuffer = 16
)

// Envelope is the frame written to every socket.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type client struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub tracks one live connection per user. A newer connection from the same
// user replaces the older one.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	logger  logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*client),
		logger:  log,
	}
}

// Deliver queues an event for a user. It reports false when the user is not
// connected or their buffer is full.
func (h *Hub) Deliver(userID uuid.UUID, event string, payload any) bool {
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("Failed to marshal live event", err, zap.String("event", event))
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[userID]
	if !ok {
		return false
	}
	return h.enqueue(c, frame)
}

func (h *Hub) OnlineUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onlineLocked()
}

func (h *Hub) onlineLocked() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// must hold at least the read lock
func (h *Hub) enqueue(c *client, frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		h.logger.Warn("Dropping live event, client buffer full", zap.String("user_id", c.userID.String()))
		return false
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[c.userID]; ok {
		old.close()
	}
	h.clients[c.userID] = c
	h.broadcastOnlineLocked()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.userID]; ok && cur == c {
		delete(h.clients, c.userID)
		h.broadcastOnlineLocked()
	}
	c.close()
}

func (h *Hub) broadcastOnlineLocked() {
	online := h.onlineLocked()
	ids := make([]string, len(online))
	for i, id := range online {
		ids[i] = id.String()
	}
	frame, err := json.Marshal(Envelope{Event: EventOnlineUsers, Data: ids})
	if err != nil {
		return
	}
	for _, c := range h.clients {
		h.enqueue(c, frame)
	}
}

// Serve owns conn until the peer goes away or is replaced.
func (h *Hub) Serve(conn *websocket.Conn, userID uuid.UUID) {
	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	h.logger.Debug("Socket connected", zap.String("user_id", userID.String()))

	done := make(chan struct{})
	go func() {
		h.writePump(c)
		close(done)
	}()

	h.readPump(c)
	h.unregister(c)
	<-done
	h.logger.Debug("Socket disconnected", zap.String("user_id", userID.String()))
}

// readPump discards inbound frames; it only keeps the deadline fresh.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongDelay))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongDelay))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Debug("Socket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
