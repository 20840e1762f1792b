package ws

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"chat-relay/internal/protocol"
)

const (
	// sendChannelSize controls the max number
	// of messages that can be queued for a client.
	sendChannelSize = 16
	// keepalivePeriod drives the application-level ping frame. Peers are
	// expected to answer with a bare "pong".
	keepalivePeriod = 40 * time.Second
)

// Client owns one WebSocket connection: a read pump feeding frames to the
// session controller and a write pump draining the send queue and the
// keepalive ticker.
type Client struct {
	id      string
	conn    *websocket.Conn
	manager *Manager
	send    chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
}

func newClient(conn *websocket.Conn, manager *Manager) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:      uuid.NewString(),
		conn:    conn,
		manager: manager,
		send:    make(chan []byte, sendChannelSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ID is a per-connection identifier used only for log correlation.
func (c *Client) ID() string { return c.id }

// start registers the client with the manager before the pumps run. A
// connection accepted after the manager has stopped is closed instead of
// leaving the HTTP handler blocked on the register handshake.
func (c *Client) start() {
	select {
	case c.manager.register <- c:
	case <-c.manager.ctx.Done():
		c.close()
		return
	}
	go c.readPump()
	go c.writePump()
}

func (c *Client) close() {
	if c.conn != nil {
		if err := c.conn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
			c.manager.logger.Debug("failed to close connection", "clientID", c.id, "error", err)
		}
	}
	c.cancel()
}

// Send queues a serialized frame for delivery. It never blocks: a client
// whose buffer is full is force-disconnected rather than allowed to stall
// a broadcast. Sending to an already-closed client quietly drops the frame.
func (c *Client) Send(payload []byte) {
	select {
	case <-c.ctx.Done():
	case c.send <- payload:
	default:
		c.manager.forceDisconnect(c)
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.ctx.Done():
		}
		c.close()
	}()

	for {
		_, raw, err := c.conn.Read(c.ctx)
		if err != nil {
			c.manager.logger.Debug("read loop ended", "clientID", c.id, "error", err)
			return
		}
		if err := c.manager.session.HandleFrame(c.ctx, c, raw); err != nil {
			c.manager.logger.Warn("fatal frame, closing connection", "clientID", c.id, "error", err)
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(keepalivePeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case payload := <-c.send:
			if err := c.conn.Write(c.ctx, websocket.MessageText, payload); err != nil {
				c.manager.logger.Warn("failed to write message", "clientID", c.id, "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.Write(c.ctx, websocket.MessageText, []byte(protocol.Ping)); err != nil {
				c.manager.logger.Debug("failed to ping client", "clientID", c.id, "error", err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
