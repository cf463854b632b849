package transport

import (
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a single established transport connection. Read blocks until a
// frame arrives or the connection dies; Close unblocks a pending Read.
type Conn interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Ping(deadline time.Time) error
	Close() error
	Name() Name
}

// Dialer establishes a Conn to the given server URL within timeout.
type Dialer func(serverURL string, timeout time.Duration) (Conn, error)

// MaxMessageSize caps inbound frames at 1MB.
const MaxMessageSize = 1024 * 1024

// wsConn wraps a gorilla WebSocket connection. gorilla does not support
// concurrent writers, so all writes (including control frames) are
// serialized through writeMu.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	closeMu sync.Mutex
	closed  bool
}

// DialWebSocket establishes the WebSocket transport.
func DialWebSocket(serverURL string, timeout time.Duration) (Conn, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	conn.SetReadLimit(MaxMessageSize)

	c := &wsConn{conn: conn}

	// Answer server pings so the connection stays alive from both sides.
	conn.SetPingHandler(func(appData string) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
	})

	return c, nil
}

func (c *wsConn) Read() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Ping(deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline)
}

func (c *wsConn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return net.ErrClosed
	}
	c.closed = true

	c.writeMu.Lock()
	_ = c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	c.writeMu.Unlock()

	return c.conn.Close()
}

func (c *wsConn) Name() Name {
	return NameWebSocket
}

// IsServerClose reports whether a read error corresponds to a clean close
// initiated by the server.
func IsServerClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
