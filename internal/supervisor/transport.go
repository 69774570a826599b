package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// wsConn wraps coder/websocket with a thread-safe write method. Envelopes
// travel as text frames, one JSON object per frame.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// dialWS connects to the supervisor's WebSocket endpoint.
func dialWS(ctx context.Context, wsURL string, headers http.Header) (*wsConn, error) {
	opts := &websocket.DialOptions{
		HTTPHeader: headers,
	}

	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return nil, fmt.Errorf("supervisor: ws dial: %w", err)
	}
	conn.SetReadLimit(1 << 20) // 1MB
	return &wsConn{conn: conn}, nil
}

// Read returns the next WebSocket message. Blocks until a message arrives,
// the context is cancelled, or the connection is closed.
func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

// Write sends one envelope as a text frame. Thread-safe.
func (c *wsConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Close sends a close frame and shuts down the connection.
func (c *wsConn) Close(code websocket.StatusCode, reason string) {
	c.conn.Close(code, reason)
}
