package connector

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one open duplex connection. Implementations must allow
// concurrent WriteMessage calls and a single reader.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens transport connections. The WebSocket dialer is the only
// production implementation; tests inject fakes.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

const wsReadLimit = 16 << 20

// WebSocketDialer dials endpoints over gorilla/websocket.
type WebSocketDialer struct{}

// Dial opens a WebSocket connection to the given ws:// or wss:// URL.
func (WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(wsReadLimit)
	return &wsConn{conn: conn}, nil
}

// wsConn adapts *websocket.Conn to the Conn interface. Writes are
// serialized because gorilla permits only one concurrent writer.
type wsConn struct {
	wmu  sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close attempts the close handshake before dropping the socket.
func (c *wsConn) Close() error {
	c.wmu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(500*time.Millisecond))
	c.wmu.Unlock()
	return c.conn.Close()
}
