package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reelflow/reelflow/pkg/logging"
)

// wsClient wraps a connection with a write lock: gorilla/websocket
// supports only one concurrent writer per connection, and both the
// broadcast path and the read loop's ping reply write to it.
type wsClient struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

func (c *wsClient) writeMessage(messageType int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(messageType, payload)
}

func (c *wsClient) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// WebSocketManager manages WebSocket connections for real-time updates
type WebSocketManager struct {
	upgrader websocket.Upgrader
	logger   logging.Logger

	mu sync.RWMutex
	// connections maps run IDs to sets of WebSocket clients
	connections map[string]map[*wsClient]bool
	// subscriptions maps a client to the run IDs it watches
	subscriptions map[*wsClient]map[string]bool
}

// WebSocketMessage represents incoming WebSocket messages
type WebSocketMessage struct {
	Type  string `json:"type"` // "subscribe", "unsubscribe", "ping"
	RunID string `json:"run_id,omitempty"`
}

// NewWebSocketManager creates a new WebSocket manager
func NewWebSocketManager(logger logging.Logger) *WebSocketManager {
	return &WebSocketManager{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The dashboard is served from a different origin
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:        logger,
		connections:   make(map[string]map[*wsClient]bool),
		subscriptions: make(map[*wsClient]map[string]bool),
	}
}

// HandleWebSocket handles WebSocket connection upgrade and management
func (m *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed",
			logging.Field{Key: "error", Value: err.Error()},
		)
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn}

	m.mu.Lock()
	m.subscriptions[client] = make(map[string]bool)
	m.mu.Unlock()

	defer m.cleanup(client)

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		switch msg.Type {
		case "subscribe":
			m.subscribe(client, msg.RunID)
		case "unsubscribe":
			m.unsubscribe(client, msg.RunID)
		case "ping":
			client.writeJSON(map[string]string{"type": "pong"})
		}
	}
}

// BroadcastProgress sends an update to every connection subscribed to
// the run
func (m *WebSocketManager) BroadcastProgress(runID string, update ProgressUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}

	m.mu.RLock()
	clients := make([]*wsClient, 0, len(m.connections[runID]))
	for client := range m.connections[runID] {
		clients = append(clients, client)
	}
	m.mu.RUnlock()

	for _, client := range clients {
		if err := client.writeMessage(websocket.TextMessage, payload); err != nil {
			m.cleanup(client)
		}
	}
}

func (m *WebSocketManager) subscribe(client *wsClient, runID string) {
	if runID == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connections[runID] == nil {
		m.connections[runID] = make(map[*wsClient]bool)
	}
	m.connections[runID][client] = true
	m.subscriptions[client][runID] = true
}

func (m *WebSocketManager) unsubscribe(client *wsClient, runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(client, runID)
}

// cleanup removes a client from all run subscriptions
func (m *WebSocketManager) cleanup(client *wsClient) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for runID := range m.subscriptions[client] {
		m.removeLocked(client, runID)
	}
	delete(m.subscriptions, client)
}

// removeLocked drops a single subscription; callers must hold the lock
func (m *WebSocketManager) removeLocked(client *wsClient, runID string) {
	if clients, ok := m.connections[runID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(m.connections, runID)
		}
	}
	if subs, ok := m.subscriptions[client]; ok {
		delete(subs, runID)
	}
}
