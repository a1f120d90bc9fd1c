package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"agora/internal/models"
	"agora/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	DefaultMaxConnsPerUser = 12
	DefaultMaxTotalConns   = 10000
)

var (
	ErrUserConnLimit   = errors.New("user connection limit reached")
	ErrServerConnLimit = errors.New("server connection limit reached")
	ErrHubClosed       = errors.New("change feed is shutting down")
)

// feedMessage is the envelope written to websocket clients.
type feedMessage struct {
	Type    string             `json:"type"`
	Payload models.ChangeEvent `json:"payload"`
}

// Hub tracks change-feed websocket clients per user and fans events out to
// them.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool

	maxPerUser int
	maxTotal   int
	log        *observability.WSLogger
}

// NewHub creates a Hub. Non-positive limits fall back to the defaults.
func NewHub(maxPerUser, maxTotal int, logger *slog.Logger) *Hub {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxConnsPerUser
	}
	if maxTotal <= 0 {
		maxTotal = DefaultMaxTotalConns
	}
	return &Hub{
		conns:      make(map[uint]map[*Client]struct{}),
		maxPerUser: maxPerUser,
		maxTotal:   maxTotal,
		log:        observability.NewWSLogger(logger, "change feed"),
	}
}

// Register adds a connection for userID, optionally filtered to topicID.
func (h *Hub) Register(userID, topicID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= h.maxTotal {
		return nil, ErrServerConnLimit
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= h.maxPerUser {
		return nil, ErrUserConnLimit
	}

	client := newClient(h, conn, userID, topicID)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnections.Inc()
	h.log.LogConnect(context.Background(), userID, topicID)
	return client, nil
}

// UnregisterClient removes client and closes its send channel. It is safe to
// call more than once.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.UserID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
	h.totalConns--
	close(client.Send)
	observability.WebSocketConnections.Dec()
	h.log.LogDisconnect(context.Background(), client.UserID, "unregistered")
}

// Dispatch delivers event to every client whose filter accepts it. It never
// blocks on a slow client.
func (h *Hub) Dispatch(event models.ChangeEvent) {
	data, err := json.Marshal(feedMessage{Type: "change", Payload: event})
	if err != nil {
		h.log.LogError(context.Background(), 0, err, "marshal")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.conns {
		for c := range clients {
			if c.Wants(event.TopicID) {
				c.TrySend(data)
			}
		}
	}
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// Shutdown closes every client's send channel; each write pump then sends a
// going-away close frame and ends the connection.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for userID, userConns := range h.conns {
		for client := range userConns {
			close(client.Send)
			observability.WebSocketConnections.Dec()
			h.log.LogDisconnect(context.Background(), userID, "shutdown")
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
