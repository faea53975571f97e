package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"verona-backend/internal/middleware"
	"verona-backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub pushes live conversation updates to the websocket clients watching a
// session. With a Redis client, updates travel through pub/sub so every
// instance behind a load balancer sees them; without one they are delivered
// in-process.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*client
	redisClient *redis.Client
	auth        *middleware.JWTAuth
	cancelFuncs map[uuid.UUID]context.CancelFunc
}

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

// client owns the writes to one connection. broadcast only queues; a client
// that falls sendBuffer messages behind misses updates instead of stalling
// the turn that publishes them.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func NewHub(redisClient *redis.Client, auth *middleware.JWTAuth) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*client),
		redisClient: redisClient,
		auth:        auth,
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
	}
}

func channelName(sessionID uuid.UUID) string {
	return "session_updates:" + sessionID.String()
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	// Browsers cannot set headers on the upgrade request, so the token rides
	// in the query string.
	if h.auth != nil && h.auth.Enabled() {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if _, err := h.auth.Verify(tokenStr); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.registerConnection(sessionID, c)
	go c.writePump()

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(sessionID, c)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[sessionID] = append(h.connections[sessionID], c)

	// Start pub/sub subscription if this is the first connection for this session
	if h.redisClient != nil && len(h.connections[sessionID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[sessionID] = cancel
		go h.subscribeToPubSub(ctx, sessionID)
	}

	log.Printf("WebSocket connected: session %s (total: %d)", sessionID, len(h.connections[sessionID]))
}

func (h *Hub) unregisterConnection(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.connections[sessionID]
	for i, existing := range conns {
		if existing == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			// writePump closes the connection once the queue drains.
			close(c.send)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
			delete(h.cancelFuncs, sessionID)
		}
	}

	log.Printf("WebSocket disconnected: session %s", sessionID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, sessionID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, channelName(sessionID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(sessionID, []byte(msg.Payload))
		}
	}
}

// Publish implements services.Publisher.
func (h *Hub) Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if h.redisClient == nil {
		h.broadcast(sessionID, data)
		return
	}
	if err := h.redisClient.Publish(ctx, channelName(sessionID), string(data)).Err(); err != nil {
		log.Printf("session %s: publish failed: %v", sessionID, err)
	}
}

// broadcast queues data for every subscriber of the session without waiting
// on the network.
func (h *Hub) broadcast(sessionID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.connections[sessionID] {
		select {
		case c.send <- data:
		default:
			log.Printf("session %s: websocket client too slow, update dropped", sessionID)
		}
	}
}
