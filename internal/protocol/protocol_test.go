package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeepaliveDetection(t *testing.T) {
	req := require.New(t)

	req.True(IsPing([]byte("ping")))
	req.True(IsPong([]byte("pong")))

	// Exact match only: anything else goes through the structured path.
	req.False(IsPing([]byte("ping ")))
	req.False(IsPing([]byte(`"ping"`)))
	req.False(IsPong([]byte("PONG")))
}

func TestDecode_JoinRequest(t *testing.T) {
	req := require.New(t)

	env, err := Decode([]byte(`{"type":"join","payload":{"roomId":"42","name":"alice"}}`))
	req.NoError(err)
	req.Equal(TypeJoin, env.Type)

	join, err := env.JoinRequest()
	req.NoError(err)
	req.Equal("42", join.RoomID)
	req.Equal("alice", join.Name)
}

func TestDecode_ChatMessage(t *testing.T) {
	req := require.New(t)

	env, err := Decode([]byte(`{"type":"chat","payload":{"roomId":"42","sender":"alice","message":"hi"}}`))
	req.NoError(err)

	msg, err := env.ChatMessage()
	req.NoError(err)
	req.Equal("42", msg.RoomID)
	req.Equal("alice", msg.Sender)
	req.Equal("hi", msg.Message)
}

func TestDecode_TypingIndicator(t *testing.T) {
	req := require.New(t)

	env, err := Decode([]byte(`{"type":"typing","payload":{"roomId":"42","sender":"alice","isTyping":true}}`))
	req.NoError(err)

	ind, err := env.TypingIndicator()
	req.NoError(err)
	req.Equal("alice", ind.Sender)
	req.True(ind.IsTyping)
}

func TestDecode_MalformedFrames(t *testing.T) {
	req := require.New(t)

	cases := map[string][]byte{
		"not json":        []byte("hello there"),
		"unknown type":    []byte(`{"type":"shout","payload":{}}`),
		"missing payload": []byte(`{"type":"chat"}`),
		"outbound type":   []byte(`{"type":"left","payload":{}}`),
	}
	for name, raw := range cases {
		_, err := Decode(raw)
		req.ErrorIs(err, ErrMalformed, name)
	}
}

func TestPayloadValidation(t *testing.T) {
	req := require.New(t)

	env, err := Decode([]byte(`{"type":"join","payload":{"roomId":"","name":"alice"}}`))
	req.NoError(err)
	_, err = env.JoinRequest()
	req.ErrorIs(err, ErrMalformed)

	env, err = Decode([]byte(`{"type":"join","payload":{"roomId":42,"name":"alice"}}`))
	req.NoError(err)
	_, err = env.JoinRequest()
	req.ErrorIs(err, ErrMalformed)

	env, err = Decode([]byte(`{"type":"chat","payload":{"message":"hi"}}`))
	req.NoError(err)
	_, err = env.ChatMessage()
	req.ErrorIs(err, ErrMalformed)

	env, err = Decode([]byte(`{"type":"typing","payload":{"isTyping":false}}`))
	req.NoError(err)
	_, err = env.TypingIndicator()
	req.ErrorIs(err, ErrMalformed)
}

func TestEncode_WireShapes(t *testing.T) {
	req := require.New(t)

	joined, err := EncodeJoinNotice("alice", 2)
	req.NoError(err)
	req.JSONEq(`{"type":"join","message":"alice joined the room!","count":2,"newUser":"alice"}`, string(joined))

	chat, err := EncodeChatDeliver("alice", "hi")
	req.NoError(err)
	req.JSONEq(`{"type":"chat","payload":{"sender":"alice","message":"hi"}}`, string(chat))

	typing, err := EncodeTyping("alice", true)
	req.NoError(err)
	req.JSONEq(`{"type":"typing","payload":{"sender":"alice","isTyping":true}}`, string(typing))

	left, err := EncodeLeftNotice("bob", 1)
	req.NoError(err)
	req.JSONEq(`{"type":"left","payload":{"message":"bob has left the room","count":1}}`, string(left))

	errEvent, err := EncodeError("malformed message")
	req.NoError(err)
	req.JSONEq(`{"type":"error","message":"malformed message"}`, string(errEvent))
}
