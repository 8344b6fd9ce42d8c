package rpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "nowplaying/pkg/logx"
)

// newTestServer upgrades every request and forwards received text frames.
func newTestServer(t *testing.T) (endpoint string, frames <-chan string, conns <-chan *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	out := make(chan string, 16)
	ready := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rpc" || r.URL.Query().Get("v") != "1" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ready <- c
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.TextMessage {
				out <- string(data)
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/rpc?v=1", out, ready
}

func TestDialAndSendText(t *testing.T) {
	endpoint, frames, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, endpoint, DialOptions{Logger: logx.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	payload, err := TextStatus("♪ hello").Encode()
	require.NoError(t, err)
	require.NoError(t, c.SendText(ctx, payload))
	require.NoError(t, c.SendText(ctx, "second"))

	for _, want := range []string{payload, "second"} {
		select {
		case got := <-frames:
			assert.Equal(t, want, got)
		case <-ctx.Done():
			t.Fatalf("frame %q not received", want)
		}
	}
}

func TestDialFailsWithoutServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rpc?v=1"
	srv.Close()

	_, err := Dial(context.Background(), endpoint, DialOptions{HandshakeTimeout: time.Second})
	require.Error(t, err)
}

func TestDialRejectedHandshake(t *testing.T) {
	endpoint, _, _ := newTestServer(t)
	bad := strings.Replace(endpoint, "/rpc", "/other", 1)

	_, err := Dial(context.Background(), bad, DialOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 404")
}

func TestSendTextAfterPeerClose(t *testing.T) {
	endpoint, _, conns := newTestServer(t)

	c, err := Dial(context.Background(), endpoint, DialOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	server := <-conns
	_ = server.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	_ = server.Close()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("drain loop did not observe peer close")
	}

	// gorilla answers the close frame, so subsequent writes must fail.
	assert.Eventually(t, func() bool {
		return c.SendText(context.Background(), "late") != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSendTextHonoursCanceledContext(t *testing.T) {
	endpoint, _, _ := newTestServer(t)
	c, err := Dial(context.Background(), endpoint, DialOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.SendText(ctx, "x"), context.Canceled)
}
