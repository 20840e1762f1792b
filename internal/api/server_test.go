package api_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/api"
	"chat-relay/internal/config"
	"chat-relay/internal/room"
	"chat-relay/internal/session"
	"chat-relay/internal/ws"
)

func startRelay(t *testing.T) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := room.NewRegistry()
	broadcaster := room.NewBroadcaster(registry, logger)
	controller := session.NewController(registry, broadcaster, session.NopPresence{}, logger)

	manager := ws.NewManager(ctx, logger, controller)
	go manager.Start()

	server := api.NewServer(&config.Config{Env: config.EnvDev}, manager, logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		manager.Shutdown()
		cancel()
		ts.Close()
	})
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(frame)))
}

func recv(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, raw, err := conn.Read(ctx)
	require.NoError(t, err)
	return string(raw)
}

// recvNothing asserts that no frame arrives within a short window.
func recvNothing(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, raw, err := conn.Read(ctx)
	require.Error(t, err, "unexpected frame: %s", raw)
}

func TestHealthEndpoint(t *testing.T) {
	req := require.New(t)
	ts := startRelay(t)

	resp, err := http.Get(ts.URL + "/health")
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("no-cache, no-store, must-revalidate;", resp.Header.Get("Cache-Control"))
}

func TestRelay_EndToEnd(t *testing.T) {
	req := require.New(t)
	ts := startRelay(t)

	alice := dial(t, ts)
	send(t, alice, `{"type":"join","payload":{"roomId":"42","name":"alice"}}`)
	req.JSONEq(`{"type":"join","message":"alice joined the room!","count":1,"newUser":"alice"}`, recv(t, alice))

	bob := dial(t, ts)
	send(t, bob, `{"type":"join","payload":{"roomId":"42","name":"bob"}}`)
	req.JSONEq(`{"type":"join","message":"bob joined the room!","count":2,"newUser":"bob"}`, recv(t, bob))
	req.JSONEq(`{"type":"join","message":"bob joined the room!","count":2,"newUser":"bob"}`, recv(t, alice))

	send(t, alice, `{"type":"chat","payload":{"roomId":"42","sender":"alice","message":"hi"}}`)
	req.JSONEq(`{"type":"chat","payload":{"sender":"alice","message":"hi"}}`, recv(t, bob))

	// Delivery to one connection is ordered, so if alice had been echoed her
	// own "hi" it would arrive before bob's reply.
	send(t, bob, `{"type":"chat","payload":{"roomId":"42","sender":"bob","message":"yo"}}`)
	req.JSONEq(`{"type":"chat","payload":{"sender":"bob","message":"yo"}}`, recv(t, alice))

	req.NoError(bob.Close(websocket.StatusNormalClosure, ""))
	req.JSONEq(`{"type":"left","payload":{"message":"bob has left the room","count":1}}`, recv(t, alice))
}

func TestRelay_Keepalive(t *testing.T) {
	req := require.New(t)
	ts := startRelay(t)

	conn := dial(t, ts)
	send(t, conn, "ping")
	req.Equal("pong", recv(t, conn))
}

func TestRelay_MalformedFrameClosesConnection(t *testing.T) {
	req := require.New(t)
	ts := startRelay(t)

	alice := dial(t, ts)
	send(t, alice, `{"type":"join","payload":{"roomId":"42","name":"alice"}}`)
	req.JSONEq(`{"type":"join","message":"alice joined the room!","count":1,"newUser":"alice"}`, recv(t, alice))

	rogue := dial(t, ts)
	send(t, rogue, "this is not a frame")

	// The rogue connection dies; alice's room never hears about it.
	deadline, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		_, _, err := rogue.Read(deadline)
		if err != nil {
			req.NotErrorIs(err, context.DeadlineExceeded)
			break
		}
	}
	recvNothing(t, alice)
}
