package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marketchat/internal/domain/entity"
	"marketchat/internal/infrastructure/metrics"
	"marketchat/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBuffer     = 256
)

// Backend is what live sessions need from the messaging core.
type Backend interface {
	SubscribeToMessages(ctx context.Context, userID, conversationID string, fn func([]*entity.Message)) error
	SubscribeToConversations(ctx context.Context, userID string, fn func([]*entity.Conversation)) error
	MarkMessagesAsRead(ctx context.Context, conversationID, userID string) error
}

// Client is one authenticated websocket session.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[string]context.CancelFunc
	closed bool
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]context.CancelFunc),
	}
}

// Manager tracks live sessions per user. A user may hold several sessions (tabs, devices);
// events are delivered to all of them and never to anyone else.
type Manager struct {
	backend Backend

	mutex   sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]map[*Client]struct{}),
	}
}

// SetBackend attaches the messaging core. The core publishes through the manager, so the
// two are wired after both exist and before the first session connects.
func (m *Manager) SetBackend(backend Backend) {
	m.backend = backend
}

func (m *Manager) Register(client *Client) {
	m.mutex.Lock()
	if m.clients[client.UserID] == nil {
		m.clients[client.UserID] = make(map[*Client]struct{})
	}
	m.clients[client.UserID][client] = struct{}{}
	m.mutex.Unlock()

	metrics.WebSocketConnections.Inc()
	logger.Debug("Client registered: %s", client.UserID)
}

func (m *Manager) Unregister(client *Client) {
	m.mutex.Lock()
	sessions, ok := m.clients[client.UserID]
	if ok {
		if _, ok = sessions[client]; ok {
			delete(sessions, client)
			if len(sessions) == 0 {
				delete(m.clients, client.UserID)
			}
		}
	}
	m.mutex.Unlock()

	if !ok {
		return
	}
	client.close()
	metrics.WebSocketConnections.Dec()
	logger.Debug("Client unregistered: %s", client.UserID)
}

// Sessions returns how many live sessions userID has.
func (m *Manager) Sessions(userID string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients[userID])
}

// PublishToUser pushes an event to every session of userID.
func (m *Manager) PublishToUser(userID string, event entity.Event) {
	payload, err := json.Marshal(WSMessage{
		Type:           event.Type,
		ConversationID: event.ConversationID,
		Data:           event.Payload,
		Timestamp:      event.Timestamp.UTC().Format(time.RFC3339),
	})
	if err != nil {
		logger.Warn("Failed to encode %s event for %s: %v", event.Type, userID, err)
		return
	}
	m.SendToUser(userID, payload)
}

// SendToUser queues a raw frame on every session of userID. Sessions whose buffer is full
// are dropped rather than allowed to stall the sender.
func (m *Manager) SendToUser(userID string, message []byte) {
	m.mutex.RLock()
	sessions := make([]*Client, 0, len(m.clients[userID]))
	for c := range m.clients[userID] {
		sessions = append(sessions, c)
	}
	m.mutex.RUnlock()

	for _, c := range sessions {
		if !c.enqueue(message) {
			logger.Warn("Dropping slow websocket session of %s", userID)
			m.Unregister(c)
		}
	}
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mutex.RLock()
	var all []*Client
	for _, sessions := range m.clients {
		for c := range sessions {
			all = append(all, c)
		}
	}
	m.mutex.RUnlock()

	for _, c := range all {
		m.Unregister(c)
	}
}

func (c *Client) enqueue(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	for key, cancel := range c.subs {
		cancel()
		delete(c.subs, key)
	}
	close(c.Send)
}

// subscribe starts run under a context that ends on unsubscribe or disconnect. An existing
// subscription under the same key is replaced.
func (c *Client) subscribe(key string, run func(ctx context.Context)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if cancel, ok := c.subs[key]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.subs[key] = cancel
	c.mu.Unlock()

	go run(ctx)
}

func (c *Client) unsubscribe(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cancel, ok := c.subs[key]; ok {
		cancel()
		delete(c.subs, key)
	}
}

// ReadPump reads frames until the connection fails, then unregisters the client.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error for %s: %v", c.UserID, err)
			}
			return
		}
		m.HandleClientMessage(c, message)
	}
}

// WritePump drains Send to the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("websocket write error for %s: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
