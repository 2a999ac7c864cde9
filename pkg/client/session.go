// Package client is the client side of a room session: it dials a server,
// joins a room, sends commands and receives the room's changes.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/philpax/exoform-sub000/pkg/graph"
	"github.com/philpax/exoform-sub000/pkg/protocol"
)

// ErrClosed is returned by Send after the session has ended.
var ErrClosed = errors.New("client: session closed")

// changeBuffer bounds changes read from the socket but not yet consumed.
const changeBuffer = 64

// Session is one connection to a server. Send may be called from any
// goroutine; Changes must be drained for the session to keep reading.
type Session struct {
	conn protocol.Conn

	writeMu sync.Mutex
	changes chan graph.Change
	done    chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Dial connects to a server over TCP.
func Dial(ctx context.Context, addr string) (*Session, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewSession(protocol.NewStreamConn(c, protocol.DefaultMaxFrameSize)), nil
}

// DialWebSocket connects to a server's WebSocket listener, e.g.
// ws://localhost:23422/.
func DialWebSocket(ctx context.Context, url string) (*Session, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewSession(protocol.NewWebSocketConn(ws, protocol.DefaultMaxFrameSize)), nil
}

// NewSession starts reading changes from conn.
func NewSession(conn protocol.Conn) *Session {
	s := &Session{
		conn:    conn,
		changes: make(chan graph.Change, changeBuffer),
		done:    make(chan struct{}),
	}
	go s.read()
	return s
}

// Join asks to enter room. The server answers with Initialize.
func (s *Session) Join(room string) error {
	return s.write(protocol.RequestJoin{Room: room})
}

// Send sends events as commands, in order.
func (s *Session) Send(events ...graph.Event) error {
	for _, e := range events {
		if err := s.write(protocol.GraphCommand{Event: e}); err != nil {
			return err
		}
	}
	return nil
}

// Changes returns the stream of changes from the room. It is closed when
// the connection ends; Err then reports why.
func (s *Session) Changes() <-chan graph.Change { return s.changes }

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error that ended the session, or nil after a clean close.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close ends the session.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *Session) write(m protocol.Message) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(m); err != nil {
		return fmt.Errorf("send %s: %w", m.Kind(), err)
	}
	return nil
}

func (s *Session) read() {
	defer close(s.changes)
	defer s.Close()
	for {
		m, err := s.conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.fail(err)
			}
			return
		}
		gc, ok := m.(protocol.GraphChange)
		if !ok {
			s.fail(protocol.Unexpected(m, "client"))
			return
		}
		glog.V(2).Infof("received %T", gc.Change)
		select {
		case s.changes <- gc.Change:
		case <-s.done:
			return
		}
	}
}

func (s *Session) fail(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	select {
	case <-s.done:
		// Reads fail once Close has run; that is not an error.
		return
	default:
	}
	s.err = err
}
