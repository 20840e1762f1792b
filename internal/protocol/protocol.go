// Package protocol defines the wire format exchanged with chat clients:
// keepalive frames, inbound request envelopes, and outbound event payloads.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Keepalive frames are bare text frames, not JSON.
const (
	Ping = "ping"
	Pong = "pong"
)

// ErrMalformed marks an inbound frame that is neither a keepalive nor a
// well-formed structured event. The connection handling such a frame is
// expected to be closed.
var ErrMalformed = errors.New("malformed frame")

type Type string

const (
	TypeJoin   Type = "join"
	TypeChat   Type = "chat"
	TypeTyping Type = "typing"
	TypeLeft   Type = "left"
	TypeError  Type = "error"
)

// IsPing reports whether the raw frame is a keepalive probe.
func IsPing(raw []byte) bool { return string(raw) == Ping }

// IsPong reports whether the raw frame is a keepalive reply.
func IsPong(raw []byte) bool { return string(raw) == Pong }

// Envelope is the outer shape of every structured inbound frame.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type JoinRequest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

type ChatMessage struct {
	RoomID  string `json:"roomId,omitempty"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type TypingIndicator struct {
	RoomID   string `json:"roomId,omitempty"`
	Sender   string `json:"sender"`
	IsTyping bool   `json:"isTyping"`
}

// Decode parses a structured inbound frame. Keepalive frames must be
// filtered out by the caller first. Frames that are not JSON, carry an
// unknown type, or lack a payload yield ErrMalformed.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch env.Type {
	case TypeJoin, TypeChat, TypeTyping:
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	return &env, nil
}

// JoinRequest extracts and validates the payload of a join envelope.
func (e *Envelope) JoinRequest() (JoinRequest, error) {
	var req JoinRequest
	if err := json.Unmarshal(e.Payload, &req); err != nil {
		return JoinRequest{}, fmt.Errorf("%w: join payload: %v", ErrMalformed, err)
	}
	if req.RoomID == "" || req.Name == "" {
		return JoinRequest{}, fmt.Errorf("%w: join payload requires roomId and name", ErrMalformed)
	}
	return req, nil
}

// ChatMessage extracts and validates the payload of a chat envelope.
func (e *Envelope) ChatMessage() (ChatMessage, error) {
	var msg ChatMessage
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return ChatMessage{}, fmt.Errorf("%w: chat payload: %v", ErrMalformed, err)
	}
	if msg.Sender == "" {
		return ChatMessage{}, fmt.Errorf("%w: chat payload requires sender", ErrMalformed)
	}
	return msg, nil
}

// TypingIndicator extracts and validates the payload of a typing envelope.
func (e *Envelope) TypingIndicator() (TypingIndicator, error) {
	var ind TypingIndicator
	if err := json.Unmarshal(e.Payload, &ind); err != nil {
		return TypingIndicator{}, fmt.Errorf("%w: typing payload: %v", ErrMalformed, err)
	}
	if ind.Sender == "" {
		return TypingIndicator{}, fmt.Errorf("%w: typing payload requires sender", ErrMalformed)
	}
	return ind, nil
}

// JoinNotice is the flat outbound shape sent to every member of a room when
// someone joins. Field names are load-bearing: clients match on them and no
// protocol versioning exists.
type JoinNotice struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
	Count   int    `json:"count"`
	NewUser string `json:"newUser"`
}

type envelope struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload"`
}

type leftPayload struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// ErrorEvent is sent to a single connection before a fail-fast close or to
// reject an invalid request.
type ErrorEvent struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
}

// EncodeJoinNotice serializes the presence notice for a new member.
func EncodeJoinNotice(name string, count int) ([]byte, error) {
	return json.Marshal(JoinNotice{
		Type:    TypeJoin,
		Message: fmt.Sprintf("%s joined the room!", name),
		Count:   count,
		NewUser: name,
	})
}

// EncodeChatDeliver serializes a chat event for delivery. The room id is
// intentionally absent from the outbound shape.
func EncodeChatDeliver(sender, message string) ([]byte, error) {
	return json.Marshal(envelope{
		Type:    TypeChat,
		Payload: ChatMessage{Sender: sender, Message: message},
	})
}

// EncodeTyping serializes a typing indicator for delivery.
func EncodeTyping(sender string, isTyping bool) ([]byte, error) {
	return json.Marshal(envelope{
		Type:    TypeTyping,
		Payload: TypingIndicator{Sender: sender, IsTyping: isTyping},
	})
}

// EncodeLeftNotice serializes the notice sent to the remaining members of a
// room after a participant disconnects.
func EncodeLeftNotice(name string, count int) ([]byte, error) {
	return json.Marshal(envelope{
		Type: TypeLeft,
		Payload: leftPayload{
			Message: fmt.Sprintf("%s has left the room", name),
			Count:   count,
		},
	})
}

// EncodeError serializes an error event.
func EncodeError(message string) ([]byte, error) {
	return json.Marshal(ErrorEvent{Type: TypeError, Message: message})
}
