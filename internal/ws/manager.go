package ws

import (
	"context"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"chat-relay/internal/session"
)

// Manager tracks every live client and owns their lifecycle: registration,
// unregistration (which finalizes the session and triggers the departure
// broadcast), and shutdown. Registry mutation is funneled through the
// session controller from the Start loop, one event at a time.
type Manager struct {
	logger     *slog.Logger
	session    *session.Controller
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewManager(ctx context.Context, logger *slog.Logger, session *session.Controller) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		logger:     logger,
		session:    session,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// HandleNewConnection wraps an accepted WebSocket connection in a Client
// and starts its pumps.
func (m *Manager) HandleNewConnection(conn *websocket.Conn) {
	newClient(conn, m).start()
}

func (m *Manager) Start() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client.id] = client
			m.mu.Unlock()
			m.logger.Info("client connected", "clientID", client.id)
		case client := <-m.unregister:
			m.mu.Lock()
			_, ok := m.clients[client.id]
			if ok {
				delete(m.clients, client.id)
			}
			m.mu.Unlock()
			if ok {
				m.session.HandleClose(m.ctx, client)
				m.logger.Info("client disconnected", "clientID", client.id)
			}
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) forceDisconnect(c *Client) {
	m.logger.Warn("force disconnecting slow client", "clientID", c.id)
	c.close()
}

// Shutdown closes every live connection and stops the Start loop.
func (m *Manager) Shutdown() {
	m.cancel()
	m.mu.Lock()
	for _, client := range m.clients {
		client.close()
	}
	m.mu.Unlock()
}
