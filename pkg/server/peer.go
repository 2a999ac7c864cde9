package server

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"

	"github.com/philpax/exoform-sub000/pkg/graph"
	"github.com/philpax/exoform-sub000/pkg/protocol"
)

type peerState int

const (
	peerNew peerState = iota
	peerJoining
	peerInRoom
	peerLeaving
)

func (s peerState) String() string {
	switch s {
	case peerNew:
		return "new"
	case peerJoining:
		return "joining"
	case peerInRoom:
		return "in-room"
	case peerLeaving:
		return "leaving"
	}
	return "unknown"
}

type peerMsg interface{ isPeerMsg() }

type peerRequestJoin struct {
	room string
}

type peerDisconnect struct {
	err error
}

type peerInbound struct {
	event graph.Event
}

// peerOutbound is a message for the client. from is the room that sent
// it; messages from a room the peer has since left are dropped.
type peerOutbound struct {
	from *Room
	msg  protocol.Message
}

type peerSetRoom struct {
	room *Room
}

func (peerRequestJoin) isPeerMsg() {}
func (peerDisconnect) isPeerMsg()  {}
func (peerInbound) isPeerMsg()     {}
func (peerOutbound) isPeerMsg()    {}
func (peerSetRoom) isPeerMsg()     {}

// Peer is the server side of one client connection. A reader goroutine
// turns frames into mailbox messages and a writer goroutine drains the
// bounded outbound queue; the peer goroutine owns all other state.
type Peer struct {
	addr    string
	session ulid.ULID
	conn    protocol.Conn
	coord   *Coordinator
	cfg     Config

	mb       mailbox[peerMsg]
	outbound chan protocol.Message

	state peerState
	room  *Room
}

func newPeer(conn protocol.Conn, coord *Coordinator, cfg Config) *Peer {
	return &Peer{
		addr:     conn.RemoteAddr(),
		session:  ulid.Make(),
		conn:     conn,
		coord:    coord,
		cfg:      cfg,
		mb:       newMailbox[peerMsg](cfg.MailboxSize),
		outbound: make(chan protocol.Message, cfg.OutboundBuffer),
	}
}

func (p *Peer) deliver(ctx context.Context, from *Room, m protocol.Message, timeout time.Duration) error {
	return p.mb.send(ctx, peerOutbound{from: from, msg: m}, timeout)
}

func (p *Peer) setRoom(ctx context.Context, r *Room, timeout time.Duration) error {
	return p.mb.send(ctx, peerSetRoom{room: r}, timeout)
}

// release asks p to leave its room and disconnect without waiting for
// mailbox space.
func (p *Peer) release() error {
	return p.mb.trySend(peerSetRoom{})
}

func (p *Peer) run(ctx context.Context) {
	PeersConnected.Inc()
	defer PeersConnected.Dec()

	ctx, cancel := context.WithCancel(ctx)
	writerDone := make(chan struct{})
	defer func() {
		close(p.mb.done)
		p.conn.Close()
		cancel()
		<-writerDone
		glog.Infof("[%s] closed", p.session)
	}()

	glog.Infof("[%s] connected from %s", p.session, p.addr)
	go p.read(ctx)
	go func() {
		defer close(writerDone)
		p.write(ctx)
	}()

	for p.state != peerLeaving {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.mb.ch:
			p.handle(ctx, msg)
		}
	}
}

func (p *Peer) read(ctx context.Context) {
	for {
		m, err := p.conn.ReadMessage()
		if err != nil {
			p.mb.send(ctx, peerDisconnect{err: err}, 0)
			return
		}
		var msg peerMsg
		switch m := m.(type) {
		case protocol.RequestJoin:
			msg = peerRequestJoin{room: m.Room}
		case protocol.GraphCommand:
			msg = peerInbound{event: m.Event}
		default:
			p.mb.send(ctx, peerDisconnect{err: protocol.Unexpected(m, "server")}, 0)
			return
		}
		if err := p.mb.send(ctx, msg, 0); err != nil {
			return
		}
	}
}

func (p *Peer) write(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-p.outbound:
			if err := p.conn.WriteMessage(m); err != nil {
				p.mb.send(ctx, peerDisconnect{err: err}, 0)
				return
			}
		}
	}
}

func (p *Peer) handle(ctx context.Context, msg peerMsg) {
	switch m := msg.(type) {
	case peerRequestJoin:
		glog.Infof("[%s] requests room %q", p.session, m.room)
		if p.state == peerNew {
			p.state = peerJoining
		}
		if err := p.coord.joinRoom(ctx, p.addr, m.room); err != nil {
			glog.Warningf("[%s] join: %v", p.session, err)
			p.disconnect(ctx)
		}

	case peerSetRoom:
		if m.room == nil {
			glog.V(1).Infof("[%s] removed from room", p.session)
			p.leaveRoom(ctx)
			p.state = peerLeaving
			return
		}
		if p.room != nil && p.room != m.room {
			p.leaveRoom(ctx)
		}
		p.room = m.room
		p.state = peerInRoom
		glog.V(1).Infof("[%s] in room %q", p.session, m.room.Name())

	case peerInbound:
		if p.state != peerInRoom {
			glog.V(2).Infof("[%s] dropping %s while %s", p.session, m.event, p.state)
			return
		}
		glog.V(2).Infof("[%s] command %s", p.session, m.event)
		if err := p.room.command(ctx, p.addr, m.event); err != nil {
			glog.Warningf("[%s] dropping %s: %v", p.session, m.event, err)
		}

	case peerOutbound:
		if p.state != peerInRoom || m.from != p.room {
			return
		}
		t := time.NewTimer(p.cfg.SendTimeout)
		defer t.Stop()
		select {
		case p.outbound <- m.msg:
		case <-t.C:
			glog.Warningf("[%s] outbound queue full for %s; disconnecting", p.session, p.cfg.SendTimeout)
			p.disconnect(ctx)
		case <-ctx.Done():
		}

	case peerDisconnect:
		switch {
		case errors.Is(m.err, io.EOF):
			glog.Infof("[%s] disconnected", p.session)
		case m.err != nil:
			glog.Warningf("[%s] connection error: %v", p.session, m.err)
		}
		p.disconnect(ctx)
	}
}

// leaveRoom tells the current room, if any, that this peer has left.
func (p *Peer) leaveRoom(ctx context.Context) {
	if p.room == nil {
		return
	}
	if err := p.room.leave(ctx, p.addr); err != nil && !errors.Is(err, ErrActorClosed) {
		glog.Warningf("[%s] leaving room %q: %v", p.session, p.room.Name(), err)
	}
	p.room = nil
}

// disconnect leaves the room and asks the coordinator to forget this peer.
func (p *Peer) disconnect(ctx context.Context) {
	if p.state == peerLeaving {
		return
	}
	p.leaveRoom(ctx)
	p.state = peerLeaving
	if err := p.coord.peerLeave(ctx, p); err != nil && !errors.Is(err, ErrActorClosed) {
		glog.Warningf("[%s] reporting disconnect: %v", p.session, err)
	}
}
