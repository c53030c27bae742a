package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/wsprobe/probe"
	"github.com/wricardo/wsprobe/transport/rest"
)

func fastTiming() probe.Timing {
	return probe.Timing{
		SendTimeout:      200 * time.Millisecond,
		RetryDelay:       20 * time.Millisecond,
		ReadTimeout:      50 * time.Millisecond,
		ProbeInterval:    20 * time.Millisecond,
		ProbeRetryDelay:  20 * time.Millisecond,
		HandshakeTimeout: time.Second,
	}
}

func wsServer(t *testing.T, handler func(conn *gws.Conn)) string {
	t.Helper()

	upgrader := gws.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"send_message":  s.handleSendMessage,
		"listen":        s.handleListen,
		"start_voting":  s.handleStartVoting,
		"submit_move":   s.handleSubmitMove,
		"end_voting":    s.handleEndVoting,
		"voting_status": s.handleVotingStatus,
	}
	handler, ok := handlers[name]
	require.True(t, ok, "unknown tool %s", name)

	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestNewServer(t *testing.T) {
	s := NewServer("ws://127.0.0.1:8080/ws", rest.NewClient("http://localhost:8080", zerolog.Nop()))

	require.NotNil(t, s)
	assert.NotNil(t, s.GetMCPServer())
	assert.Equal(t, probe.DefaultTiming(), s.timing)
}

func TestSendMessageTool(t *testing.T) {
	received := make(chan string, 1)
	url := wsServer(t, func(conn *gws.Conn) {
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- string(data)
		}
		conn.ReadMessage()
	})

	s := NewServer("ws://unused.invalid/ws", nil, WithTiming(fastTiming()))
	result := callTool(t, s, "send_message", map[string]interface{}{
		"message": "hello",
		"url":     url,
	})

	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "message sent")

	select {
	case msg := <-received:
		assert.Equal(t, "hello", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the message")
	}
}

func TestSendMessageRequiresMessage(t *testing.T) {
	s := NewServer("ws://127.0.0.1:1/ws", nil)
	result := callTool(t, s, "send_message", map[string]interface{}{})

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "message is required")
}

func TestSendMessageHandshakeFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	s := NewServer("ws"+strings.TrimPrefix(server.URL, "http"), nil, WithTiming(fastTiming()))
	result := callTool(t, s, "send_message", map[string]interface{}{"message": "hi"})

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "handshake failed")
}

func TestListenTool(t *testing.T) {
	url := wsServer(t, func(conn *gws.Conn) {
		conn.WriteMessage(gws.TextMessage, []byte("first"))
		conn.WriteMessage(gws.TextMessage, []byte("second"))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	s := NewServer(url, nil, WithTiming(fastTiming()))
	result := callTool(t, s, "listen", map[string]interface{}{"seconds": float64(1)})

	require.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "first\nsecond\n")
	assert.Less(t, strings.Index(text, "first"), strings.Index(text, "second"))
}

func TestListenToolWhenPeerCloses(t *testing.T) {
	url := wsServer(t, func(conn *gws.Conn) {
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		conn.WriteMessage(gws.TextMessage, []byte("bye soon"))
		time.Sleep(30 * time.Millisecond)
		msg := gws.FormatCloseMessage(gws.CloseGoingAway, "done")
		conn.WriteControl(gws.CloseMessage, msg, time.Now().Add(time.Second))
		time.Sleep(20 * time.Millisecond)
	})

	s := NewServer(url, nil, WithTiming(fastTiming()))

	// The read loop and the keepalive task both log while the session ends.
	for i := 0; i < 20; i++ {
		result := callTool(t, s, "listen", map[string]interface{}{"seconds": float64(5)})

		require.False(t, result.IsError)
		text := resultText(t, result)
		assert.Contains(t, text, "bye soon\n")
		assert.Contains(t, text, "connection closed by peer")
		assert.Contains(t, text, "disconnected")
	}
}

func TestSecondsArg(t *testing.T) {
	assert.Equal(t, 5*time.Second, secondsArg(map[string]interface{}{}, "seconds", 5))
	assert.Equal(t, 3*time.Second, secondsArg(map[string]interface{}{"seconds": float64(3)}, "seconds", 5))
	assert.Equal(t, 5*time.Second, secondsArg(map[string]interface{}{"seconds": float64(-1)}, "seconds", 5))
	assert.Equal(t, maxSessionSeconds*time.Second, secondsArg(map[string]interface{}{"seconds": float64(999)}, "seconds", 5))
}

func TestVotingTools(t *testing.T) {
	var paths []string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/start-voting":
			w.Write([]byte("Voting phase started"))
		case "/submit-move":
			w.Write([]byte("Move submitted"))
		case "/end-voting":
			http.Error(w, "Voting phase not started", http.StatusBadRequest)
		case "/status":
			w.Write([]byte(`{"phase":"voting","ballots":1}`))
		}
	}))
	defer api.Close()

	s := NewServer("ws://127.0.0.1:1/ws", rest.NewClient(api.URL, zerolog.Nop()))

	result := callTool(t, s, "start_voting", nil)
	assert.False(t, result.IsError)
	assert.Equal(t, "Voting phase started", resultText(t, result))

	result = callTool(t, s, "submit_move", map[string]interface{}{"move": "e2e4"})
	assert.False(t, result.IsError)
	assert.Equal(t, "Move submitted", resultText(t, result))

	result = callTool(t, s, "voting_status", nil)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"phase":"voting","ballots":1}`, resultText(t, result))

	result = callTool(t, s, "end_voting", nil)
	assert.True(t, result.IsError)
	assert.Equal(t, "HTTP 400: Voting phase not started", resultText(t, result))

	assert.Equal(t, []string{
		"POST /start-voting",
		"POST /submit-move",
		"GET /status",
		"POST /end-voting",
	}, paths)
}

func TestSubmitMoveToolRejectsShortMove(t *testing.T) {
	s := NewServer("ws://127.0.0.1:1/ws", rest.NewClient("http://127.0.0.1:1", zerolog.Nop()))

	result := callTool(t, s, "submit_move", map[string]interface{}{"move": "e2"})
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid move")
}
