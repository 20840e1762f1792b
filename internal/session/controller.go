// Package session drives the lifecycle of one chat connection: connected,
// joined to a room, closed. It is the only writer of the participant
// registry.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chat-relay/internal/protocol"
	"chat-relay/internal/room"
)

// PresenceNotifier receives membership changes after they have been applied
// to the registry and broadcast to the room. Implementations must not
// block the caller on a slow backend.
type PresenceNotifier interface {
	MemberJoined(ctx context.Context, roomID, name string, count int)
	MemberLeft(ctx context.Context, roomID, name string, count int)
}

// NopPresence discards membership changes. Used where no presence backend
// is wired, e.g. in tests.
type NopPresence struct{}

func (NopPresence) MemberJoined(context.Context, string, string, int) {}
func (NopPresence) MemberLeft(context.Context, string, string, int)  {}

// Controller applies the relay protocol to inbound frames: keepalives are
// answered in place, join mutates the registry, chat and typing fan out to
// the sender's room, and anything malformed is fatal for the connection.
type Controller struct {
	registry    *room.Registry
	broadcaster *room.Broadcaster
	presence    PresenceNotifier
	logger      *slog.Logger
}

func NewController(registry *room.Registry, broadcaster *room.Broadcaster, presence PresenceNotifier, logger *slog.Logger) *Controller {
	return &Controller{
		registry:    registry,
		broadcaster: broadcaster,
		presence:    presence,
		logger:      logger,
	}
}

// HandleFrame processes a single inbound frame from conn. A returned error
// is fatal: the transport must tear the connection down. There is no
// partial recovery for malformed input since no authenticated owner exists
// to report it to; an error event is sent best-effort before the close.
func (c *Controller) HandleFrame(ctx context.Context, conn room.Conn, raw []byte) error {
	switch {
	case protocol.IsPing(raw):
		conn.Send([]byte(protocol.Pong))
		return nil
	case protocol.IsPong(raw):
		c.logger.Debug("keepalive pong received")
		return nil
	}

	env, err := protocol.Decode(raw)
	if err != nil {
		c.sendError(conn, "malformed message")
		return err
	}

	switch env.Type {
	case protocol.TypeJoin:
		return c.handleJoin(ctx, conn, env)
	case protocol.TypeChat:
		return c.handleChat(conn, env)
	case protocol.TypeTyping:
		return c.handleTyping(conn, env)
	default:
		c.sendError(conn, "malformed message")
		return fmt.Errorf("%w: unhandled type %q", protocol.ErrMalformed, env.Type)
	}
}

// HandleClose finalizes a closing connection. Closing before any join is a
// no-op. Otherwise the participant is removed first, then the remaining
// members (if any) are told about the departure with the updated count.
func (c *Controller) HandleClose(ctx context.Context, conn room.Conn) {
	p, ok := c.registry.Remove(conn)
	if !ok {
		return
	}

	count := c.registry.Count(p.RoomID)
	c.logger.Info("participant left", "roomId", p.RoomID, "name", p.Name, "count", count)

	if count > 0 {
		payload, err := protocol.EncodeLeftNotice(p.Name, count)
		if err != nil {
			c.logger.Error("failed to encode left notice", "error", err)
		} else {
			c.broadcaster.Broadcast(p.RoomID, payload, nil)
		}
	}
	c.presence.MemberLeft(ctx, p.RoomID, p.Name, count)
}

func (c *Controller) handleJoin(ctx context.Context, conn room.Conn, env *protocol.Envelope) error {
	req, err := env.JoinRequest()
	if err != nil {
		c.sendError(conn, "malformed message")
		return err
	}

	p, err := c.registry.Join(conn, req.RoomID, req.Name)
	if errors.Is(err, room.ErrAlreadyJoined) {
		// Rejected without state change; the existing session stays valid.
		c.sendError(conn, "already joined a room")
		return nil
	}
	if err != nil {
		return err
	}

	count := c.registry.Count(p.RoomID)
	c.logger.Info("participant joined", "roomId", p.RoomID, "name", p.Name, "count", count)

	// Every member including the new joiner gets the same notice.
	payload, err := protocol.EncodeJoinNotice(p.Name, count)
	if err != nil {
		c.logger.Error("failed to encode join notice", "error", err)
		return nil
	}
	c.broadcaster.Broadcast(p.RoomID, payload, nil)
	c.presence.MemberJoined(ctx, p.RoomID, p.Name, count)
	return nil
}

func (c *Controller) handleChat(conn room.Conn, env *protocol.Envelope) error {
	msg, err := env.ChatMessage()
	if err != nil {
		c.sendError(conn, "malformed message")
		return err
	}

	p, ok := c.registry.Lookup(conn)
	if !ok {
		// Chat before join references a room this connection is not part
		// of; dropped, same as a room that just emptied.
		c.logger.Debug("chat from unjoined connection dropped")
		return nil
	}

	payload, err := protocol.EncodeChatDeliver(p.Name, msg.Message)
	if err != nil {
		c.logger.Error("failed to encode chat event", "error", err)
		return nil
	}
	c.broadcaster.Broadcast(p.RoomID, payload, room.ExcludeConn(conn))
	return nil
}

func (c *Controller) handleTyping(conn room.Conn, env *protocol.Envelope) error {
	ind, err := env.TypingIndicator()
	if err != nil {
		c.sendError(conn, "malformed message")
		return err
	}

	p, ok := c.registry.Lookup(conn)
	if !ok {
		c.logger.Debug("typing from unjoined connection dropped")
		return nil
	}

	payload, err := protocol.EncodeTyping(p.Name, ind.IsTyping)
	if err != nil {
		c.logger.Error("failed to encode typing event", "error", err)
		return nil
	}
	c.broadcaster.Broadcast(p.RoomID, payload, room.ExcludeConn(conn))
	return nil
}

func (c *Controller) sendError(conn room.Conn, message string) {
	payload, err := protocol.EncodeError(message)
	if err != nil {
		c.logger.Error("failed to encode error event", "error", err)
		return
	}
	conn.Send(payload)
}
