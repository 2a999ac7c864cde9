package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a message-oriented connection. ReadMessage returns io.EOF when
// the peer closes cleanly between messages. One goroutine may read while
// another writes; Close may be called from anywhere.
type Conn interface {
	ReadMessage() (Message, error)
	WriteMessage(m Message) error
	RemoteAddr() string
	Close() error
}

// streamConn carries length-prefixed frames over a byte stream.
type streamConn struct {
	conn    net.Conn
	r       *bufio.Reader
	maxSize uint32
}

// NewStreamConn wraps a byte-stream connection such as TCP.
func NewStreamConn(c net.Conn, maxSize uint32) Conn {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &streamConn{conn: c, r: bufio.NewReader(c), maxSize: maxSize}
}

func (c *streamConn) ReadMessage() (Message, error) { return ReadFrame(c.r, c.maxSize) }
func (c *streamConn) WriteMessage(m Message) error  { return WriteFrame(c.conn, m) }
func (c *streamConn) RemoteAddr() string            { return c.conn.RemoteAddr().String() }
func (c *streamConn) Close() error                  { return c.conn.Close() }

// closeGrace bounds the close handshake write.
const closeGrace = time.Second

// wsConn carries one payload per binary WebSocket message. The length
// prefix is dropped since WebSocket messages are already delimited.
type wsConn struct {
	ws        *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// NewWebSocketConn wraps an upgraded or dialed WebSocket connection.
func NewWebSocketConn(ws *websocket.Conn, maxSize uint32) Conn {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	ws.SetReadLimit(int64(maxSize))
	return &wsConn{ws: ws}
}

func (c *wsConn) ReadMessage() (Message, error) {
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		if errors.Is(err, websocket.ErrReadLimit) {
			return nil, fmt.Errorf("%w: %v", ErrFrameTooLarge, err)
		}
		return nil, fmt.Errorf("protocol: read websocket message: %w", err)
	}
	if mt != websocket.BinaryMessage {
		return nil, fmt.Errorf("%w: websocket message type %d", ErrMalformed, mt)
	}
	return Unmarshal(data)
}

func (c *wsConn) WriteMessage(m Message) error {
	payload, err := Marshal(m)
	if err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, payload)
}

func (c *wsConn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// Close sends a close frame on a best-effort basis and closes the socket.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
