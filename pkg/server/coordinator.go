package server

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/golang/glog"

	"github.com/philpax/exoform-sub000/pkg/graph"
	"github.com/philpax/exoform-sub000/pkg/protocol"
	"github.com/philpax/exoform-sub000/pkg/store"
)

type coordMsg interface{ isCoordMsg() }

type coordAddPeer struct {
	peer *Peer
}

type coordJoinRoom struct {
	addr string
	room string
}

type coordPeerLeave struct {
	peer *Peer
}

type coordRoomShutdown struct {
	room  *Room
	joins uint64
}

type coordLookup struct {
	room  string
	reply chan<- coordState
}

type coordState struct {
	room  *Room
	peers []string
	rooms []string
}

func (coordAddPeer) isCoordMsg()      {}
func (coordJoinRoom) isCoordMsg()     {}
func (coordPeerLeave) isCoordMsg()    {}
func (coordRoomShutdown) isCoordMsg() {}
func (coordLookup) isCoordMsg()       {}

type roomEntry struct {
	room *Room
	// joins counts PeerJoin messages routed to room. A shutdown request
	// carrying a smaller count raced with a join and is refused.
	joins uint64
}

// Coordinator routes connections to rooms. It owns the peer and room
// tables; both are touched only from its own goroutine.
type Coordinator struct {
	cfg   Config
	store store.Store
	seed  *graph.Graph

	mb    mailbox[coordMsg]
	peers map[string]*Peer
	rooms map[string]*roomEntry
	// retiring holds rooms that were shut down but may still be making
	// their final save. A room recreated under the same name waits for it.
	retiring map[string]*Room
	wg       sync.WaitGroup
}

// NewCoordinator creates a coordinator. Rooms without a snapshot start
// from a copy of seed, or from the default graph when seed is nil.
func NewCoordinator(cfg Config, st store.Store, seed *graph.Graph) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		store:    st,
		seed:     seed,
		mb:       newMailbox[coordMsg](cfg.MailboxSize),
		peers:    make(map[string]*Peer),
		rooms:    make(map[string]*roomEntry),
		retiring: make(map[string]*Room),
	}
}

// Run processes the coordinator mailbox until ctx is done, then waits for
// every peer to disconnect and every room to make its final save.
func (c *Coordinator) Run(ctx context.Context) {
	defer func() {
		close(c.mb.done)
		for _, e := range c.rooms {
			e.room.stop()
		}
		c.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.mb.ch:
			c.handle(ctx, msg)
		}
	}
}

// Accept hands a new connection to the coordinator, which spawns its peer.
func (c *Coordinator) Accept(ctx context.Context, conn protocol.Conn) error {
	p := newPeer(conn, c, c.cfg)
	if err := c.mb.send(ctx, coordAddPeer{peer: p}, 0); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// Room returns the running room with the given name, or nil.
func (c *Coordinator) Room(ctx context.Context, name string) (*Room, error) {
	s, err := c.lookup(ctx, name)
	return s.room, err
}

// Peers returns the addresses of connected peers, sorted.
func (c *Coordinator) Peers(ctx context.Context) ([]string, error) {
	s, err := c.lookup(ctx, "")
	return s.peers, err
}

// Rooms returns the names of running rooms, sorted.
func (c *Coordinator) Rooms(ctx context.Context) ([]string, error) {
	s, err := c.lookup(ctx, "")
	return s.rooms, err
}

func (c *Coordinator) lookup(ctx context.Context, room string) (coordState, error) {
	reply := make(chan coordState, 1)
	if err := c.mb.send(ctx, coordLookup{room: room, reply: reply}, 0); err != nil {
		return coordState{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-c.mb.done:
		return coordState{}, ErrActorClosed
	case <-ctx.Done():
		return coordState{}, ctx.Err()
	}
}

func (c *Coordinator) joinRoom(ctx context.Context, addr, room string) error {
	return c.mb.send(ctx, coordJoinRoom{addr: addr, room: room}, c.cfg.SendTimeout)
}

func (c *Coordinator) peerLeave(ctx context.Context, p *Peer) error {
	return c.mb.send(ctx, coordPeerLeave{peer: p}, c.cfg.SendTimeout)
}

func (c *Coordinator) roomShutdown(ctx context.Context, r *Room, joins uint64) error {
	return c.mb.send(ctx, coordRoomShutdown{room: r, joins: joins}, c.cfg.SendTimeout)
}

func (c *Coordinator) handle(ctx context.Context, msg coordMsg) {
	switch m := msg.(type) {
	case coordAddPeer:
		addr := m.peer.addr
		if old, ok := c.peers[addr]; ok {
			glog.Warningf("duplicate peer address %s; replacing", addr)
			c.setRoom(ctx, old, nil)
		}
		c.peers[addr] = m.peer
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			m.peer.run(ctx)
		}()

	case coordJoinRoom:
		p, ok := c.peers[m.addr]
		if !ok {
			return
		}
		e := c.room(ctx, m.room)
		// SetRoom reaches the peer before the room can send it Initialize.
		if !c.setRoom(ctx, p, e.room) {
			return
		}
		if err := e.room.join(ctx, m.addr, p); err != nil {
			glog.Warningf("routing %s to room %q: %v", m.addr, m.room, err)
			c.setRoom(ctx, p, nil)
			return
		}
		e.joins++
		glog.V(1).Infof("routed %s to room %q", m.addr, m.room)

	case coordPeerLeave:
		addr := m.peer.addr
		if c.peers[addr] != m.peer {
			return
		}
		// Never block the coordinator on a peer that is already going away.
		if err := m.peer.release(); err != nil && !errors.Is(err, ErrActorClosed) {
			glog.V(1).Infof("releasing %s: %v", addr, err)
		}
		delete(c.peers, addr)

	case coordRoomShutdown:
		name := m.room.Name()
		e, ok := c.rooms[name]
		if !ok || e.room != m.room {
			return
		}
		if e.joins != m.joins {
			glog.V(1).Infof("room %q: shutdown refused, join in flight", name)
			return
		}
		delete(c.rooms, name)
		c.pruneRetiring()
		c.retiring[name] = e.room
		e.room.stop()
		glog.Infof("room %q: shut down", name)

	case coordLookup:
		s := coordState{}
		if e, ok := c.rooms[m.room]; ok {
			s.room = e.room
		}
		for addr := range c.peers {
			s.peers = append(s.peers, addr)
		}
		for name := range c.rooms {
			s.rooms = append(s.rooms, name)
		}
		sort.Strings(s.peers)
		sort.Strings(s.rooms)
		m.reply <- s
	}
}

// room returns the named room, creating and starting it if needed.
func (c *Coordinator) room(ctx context.Context, name string) *roomEntry {
	if e, ok := c.rooms[name]; ok {
		return e
	}
	r := newRoom(name, c.cfg, c.store, c.seed, c)
	if prev, ok := c.retiring[name]; ok {
		r.prev = prev
		delete(c.retiring, name)
	}
	e := &roomEntry{room: r}
	c.rooms[name] = e
	c.wg.Add(1)
	r.start(ctx)
	go func() {
		<-r.Done()
		c.wg.Done()
	}()
	glog.Infof("room %q: created", name)
	return e
}

// setRoom tells p which room it is in; nil removes it from its room and
// disconnects it. It reports whether the peer accepted the message.
func (c *Coordinator) setRoom(ctx context.Context, p *Peer, r *Room) bool {
	if err := p.setRoom(ctx, r, c.cfg.SendTimeout); err != nil {
		if !errors.Is(err, ErrActorClosed) {
			glog.Warningf("setting room for %s: %v", p.addr, err)
		}
		return false
	}
	return true
}

// pruneRetiring forgets retired rooms that have finished their final save.
func (c *Coordinator) pruneRetiring() {
	for name, r := range c.retiring {
		select {
		case <-r.Done():
			delete(c.retiring, name)
		default:
		}
	}
}
