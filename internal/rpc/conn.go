package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	logx "nowplaying/pkg/logx"
)

// DefaultEndpoint is the local RPC websocket.
const DefaultEndpoint = "ws://127.0.0.1:6463/rpc?v=1"

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	closeGrace              = time.Second
)

var ErrClosed = errors.New("rpc connection closed")

type DialOptions struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Header           http.Header
	Logger           logx.Logger
}

// Conn is an open websocket to the RPC service.
//
// It is write-oriented: a background reader drains inbound frames so control
// frames (ping/close) are handled, but payloads are only logged at debug.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	log          logx.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens the websocket once. There is no retry.
func Dial(ctx context.Context, endpoint string, opts DialOptions) (*Conn, error) {
	hs := opts.HandshakeTimeout
	if hs <= 0 {
		hs = defaultHandshakeTimeout
	}
	d := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: hs,
	}

	ws, resp, err := d.DialContext(ctx, endpoint, opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (http %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	wt := opts.WriteTimeout
	if wt <= 0 {
		wt = defaultWriteTimeout
	}
	c := &Conn{
		ws:           ws,
		writeTimeout: wt,
		log:          opts.Logger,
		done:         make(chan struct{}),
	}
	go c.drain()
	return c, nil
}

func (c *Conn) drain() {
	defer close(c.done)
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("rpc peer closed connection", logx.Err(err))
			} else {
				c.log.Debug("rpc read loop stopped", logx.Err(err))
			}
			return
		}
		if mt == websocket.TextMessage {
			c.log.Debug("rpc inbound frame ignored", logx.Int("bytes", len(data)))
		}
	}
}

// Done is closed once the peer side of the connection has gone away.
func (c *Conn) Done() <-chan struct{} { return c.done }

// SendText writes one complete text frame.
func (c *Conn) SendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Close sends a normal-closure frame and closes the socket.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(closeGrace))
		_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		select {
		case <-c.done:
		case <-time.After(closeGrace):
		}
		err = c.ws.Close()
	})
	return err
}
