package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/realtime-ai/interpreter/pkg/protocol"
)

// Transport writes frames to one client.
type Transport interface {
	// SendMessage writes a JSON control message.
	SendMessage(msg protocol.ServerMessage) error

	// SendAudio writes a binary PCM frame.
	SendAudio(pcm []byte) error

	// Close closes the connection. Sends after Close are dropped silently.
	Close() error
}

// WebSocketTransport serializes writes to a gorilla connection, which
// allows only one concurrent writer.
type WebSocketTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewWebSocketTransport wraps conn. A zero writeTimeout disables write
// deadlines.
func NewWebSocketTransport(conn *websocket.Conn, writeTimeout time.Duration) *WebSocketTransport {
	return &WebSocketTransport{conn: conn, writeTimeout: writeTimeout}
}

func (t *WebSocketTransport) SendMessage(msg protocol.ServerMessage) error {
	data, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}
	return t.write(websocket.TextMessage, data)
}

func (t *WebSocketTransport) SendAudio(pcm []byte) error {
	return t.write(websocket.BinaryMessage, pcm)
}

func (t *WebSocketTransport) write(messageType int, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	if t.writeTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return t.conn.WriteMessage(messageType, data)
}

// Close sends a normal close frame and closes the connection.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.conn.Close()
}

// Closed reports whether Close has been called.
func (t *WebSocketTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
