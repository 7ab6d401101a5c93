package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one open message channel.
type Conn interface {
	// ReadMessage blocks for the next text or binary message.
	// A remote close returns a *websocket.CloseError.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one text message.
	WriteMessage(ctx context.Context, data []byte) error

	// CloseNormal sends a normal-closure frame and closes the channel.
	CloseNormal(reason string) error

	// Close closes the channel without a close frame.
	Close() error
}

// Dialer opens message channels.
type Dialer interface {
	Dial(ctx context.Context, rawURL string, header http.Header) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
}

// NewWebsocketDialer creates a dialer with the given timeouts.
func NewWebsocketDialer(handshake, write time.Duration) *WebsocketDialer {
	return &WebsocketDialer{
		HandshakeTimeout: handshake,
		WriteTimeout:     write,
		ReadLimit:        16 << 20,
	}
}

// Dial opens a WebSocket connection.
func (d *WebsocketDialer) Dial(ctx context.Context, rawURL string, header http.Header) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}

	c, resp, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		cerr := NewConnectionError("dial", err, true)
		if resp != nil {
			cerr.StatusCode = resp.StatusCode
			cerr.Retryable = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		}
		return nil, cerr
	}
	if d.ReadLimit > 0 {
		c.SetReadLimit(d.ReadLimit)
	}

	return &wsConn{conn: c, writeTimeout: d.WriteTimeout}, nil
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteMessage(ctx context.Context, data []byte) error {
	deadline := time.Time{}
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) CloseNormal(reason string) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	if errors.Is(err, websocket.ErrCloseSent) {
		err = nil
	}
	if cerr := c.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// isRemoteClose reports whether err is a close frame from the peer.
func isRemoteClose(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce)
}
