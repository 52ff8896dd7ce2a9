package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/markov/internal/config"
	"github.com/zeusync/markov/internal/core/markov"
	"github.com/zeusync/markov/internal/core/observability/log"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	bot := NewBot(markov.Echo{}, config.DefaultConfig(), log.Nop(), WithChance(func() float64 { return 1 }))
	server := NewServer(cfg, bot, log.Nop())

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return server, ts
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ChatMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg ChatMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketChat(t *testing.T) {
	t.Run("Bot answers when mentioned", func(t *testing.T) {
		_, ts := newTestServer(t, Config{})
		conn := dial(t, ts, "?roomID=lobby")

		require.NoError(t, conn.WriteJSON(ChatMessage{Sender: "test", Message: "hello markov"}))

		echoed := readMessage(t, conn)
		require.Equal(t, ChatMessage{Sender: "test", Message: "hello markov", Room: "lobby"}, echoed)

		reply := readMessage(t, conn)
		require.Equal(t, ChatMessage{Sender: "Markov", Message: markov.DummyReply, Room: "lobby"}, reply)
	})

	t.Run("Rooms are separate", func(t *testing.T) {
		server, ts := newTestServer(t, Config{})
		a := dial(t, ts, "?roomID=a")
		b := dial(t, ts, "?roomID=b")
		other := dial(t, ts, "?roomID=b")

		require.Eventually(t, func() bool { return server.GetStats().ClientCount == 3 }, time.Second, 5*time.Millisecond)
		require.Equal(t, 2, server.GetStats().RoomCount)

		require.NoError(t, b.WriteJSON(ChatMessage{Sender: "bob", Message: "markov !rate 0"}))
		require.Equal(t, "markov !rate 0", readMessage(t, other).Message)
		require.Equal(t, "Response rate set to 0.000000.", readMessage(t, other).Message)

		require.NoError(t, a.WriteJSON(ChatMessage{Sender: "amy", Message: "only for a"}))
		require.Equal(t, "only for a", readMessage(t, a).Message)

		require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
		_, _, err := other.ReadMessage()
		require.Error(t, err, "room b must not see room a")
	})

	t.Run("Malformed messages are skipped", func(t *testing.T) {
		_, ts := newTestServer(t, Config{})
		conn := dial(t, ts, "")

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
		require.NoError(t, conn.WriteJSON(ChatMessage{Sender: "test", Message: "   "}))
		require.NoError(t, conn.WriteJSON(ChatMessage{Sender: "test", Message: "Markov?"}))

		msg := readMessage(t, conn)
		require.Equal(t, "Markov?", msg.Message)
		require.Equal(t, "general", msg.Room)
	})
}

func TestAuth(t *testing.T) {
	_, ts := newTestServer(t, Config{Token: "supersecrettoken"})
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(u+"?token=invalid", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(u+"?token=supersecrettoken", nil)
	require.NoError(t, err)
	_ = conn.Close()

	header := http.Header{"Authorization": []string{"Bearer supersecrettoken"}}
	conn, _, err = websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestHTTPChat(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	listener := dial(t, ts, "?roomID=lobby")

	body, err := json.Marshal(ChatMessage{Sender: "curl", Message: "markov, talk to me", Room: "lobby"})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/chat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.True(t, out.Replied)
	require.Equal(t, markov.DummyReply, out.Reply.Message)

	require.Equal(t, "markov, talk to me", readMessage(t, listener).Message)
	require.Equal(t, markov.DummyReply, readMessage(t, listener).Message)

	resp, err = http.Get(ts.URL + "/chat")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/chat", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerLifecycle(t *testing.T) {
	bot := NewBot(markov.Echo{}, config.DefaultConfig(), log.Nop())
	server := NewServer(Config{ListenAddr: "127.0.0.1:0"}, bot, log.Nop())

	require.ErrorIs(t, server.Stop(context.Background()), ErrServerNotRunning)
	require.NoError(t, server.Start(context.Background()))
	require.ErrorIs(t, server.Start(context.Background()), ErrServerAlreadyRunning)

	u := "ws://" + server.Addr().String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return server.GetStats().ClientCount == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, server.Close())
	require.False(t, server.GetStats().Running)
	require.ErrorIs(t, server.Start(context.Background()), ErrServerClosed)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err, "clients are disconnected on shutdown")
}
