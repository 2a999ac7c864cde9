package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/philpax/exoform-sub000/pkg/graph"
	"github.com/philpax/exoform-sub000/pkg/protocol"
	"github.com/philpax/exoform-sub000/pkg/store"
)

// finalSaveTimeout bounds the save a room makes while shutting down.
const finalSaveTimeout = 10 * time.Second

type roomMsg interface{ isRoomMsg() }

type peerJoin struct {
	addr string
	peer *Peer
}

type peerLeave struct {
	addr string
}

type roomCommand struct {
	addr  string
	event graph.Event
}

type roomSave struct{}

type roomInspect struct {
	reply chan<- RoomState
}

func (peerJoin) isRoomMsg()    {}
func (peerLeave) isRoomMsg()   {}
func (roomCommand) isRoomMsg() {}
func (roomSave) isRoomMsg()    {}
func (roomInspect) isRoomMsg() {}

// RoomState is a point-in-time view of a room.
type RoomState struct {
	Name    string
	Graph   *graph.Graph
	Members []string
}

type member struct {
	addr string
	peer *Peer
}

// Room owns one scene graph and the peers editing it. All state is
// confined to the room goroutine; other actors reach it through its
// mailbox.
type Room struct {
	name  string
	cfg   Config
	store store.Store
	seed  *graph.Graph
	coord *Coordinator

	// prev is the retired room of the same name, if it may still be saving.
	prev *Room

	graph   *graph.Graph
	members []member
	joins   uint64

	mb     mailbox[roomMsg]
	cancel context.CancelFunc
}

func newRoom(name string, cfg Config, st store.Store, seed *graph.Graph, coord *Coordinator) *Room {
	return &Room{
		name:  name,
		cfg:   cfg,
		store: st,
		seed:  seed,
		coord: coord,
		mb:    newMailbox[roomMsg](cfg.MailboxSize),
	}
}

// Name returns the room name.
func (r *Room) Name() string { return r.name }

// Done is closed once the room has stopped and made its final save.
func (r *Room) Done() <-chan struct{} { return r.mb.done }

// Inspect returns a copy of the room's graph and its membership.
func (r *Room) Inspect(ctx context.Context) (RoomState, error) {
	reply := make(chan RoomState, 1)
	if err := r.mb.send(ctx, roomInspect{reply: reply}, 0); err != nil {
		return RoomState{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-r.mb.done:
		return RoomState{}, ErrActorClosed
	case <-ctx.Done():
		return RoomState{}, ctx.Err()
	}
}

func (r *Room) join(ctx context.Context, addr string, p *Peer) error {
	return r.mb.send(ctx, peerJoin{addr: addr, peer: p}, r.cfg.SendTimeout)
}

func (r *Room) leave(ctx context.Context, addr string) error {
	return r.mb.send(ctx, peerLeave{addr: addr}, r.cfg.SendTimeout)
}

func (r *Room) command(ctx context.Context, addr string, e graph.Event) error {
	return r.mb.send(ctx, roomCommand{addr: addr, event: e}, r.cfg.SendTimeout)
}

// start runs the room until ctx is cancelled or stop is called.
func (r *Room) start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	go r.run(ctx)
}

func (r *Room) stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Room) run(ctx context.Context) {
	defer close(r.mb.done)
	if r.prev != nil {
		// The previous instance must finish its final save before load.
		select {
		case <-r.prev.Done():
			r.prev = nil
		case <-ctx.Done():
			return
		}
	}
	RoomsActive.Inc()
	defer RoomsActive.Dec()

	r.graph = r.load(ctx)
	glog.Infof("room %q: started with %d nodes", r.name, r.graph.NodeCount())

	go r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), finalSaveTimeout)
			r.save(saveCtx)
			cancel()
			glog.Infof("room %q: stopped", r.name)
			return
		case msg := <-r.mb.ch:
			r.handle(ctx, msg)
		}
	}
}

// tick posts a save to the room's own mailbox every SavePeriod, so saves
// are serialised with edits.
func (r *Room) tick(ctx context.Context) {
	t := time.NewTicker(r.cfg.SavePeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := r.mb.send(ctx, roomSave{}, r.cfg.SavePeriod); err != nil {
				glog.V(2).Infof("room %q: skipping save tick: %v", r.name, err)
			}
		}
	}
}

// load reads the room's snapshot. Any failure falls back to the seed
// graph, or to a lone Union root without one.
func (r *Room) load(ctx context.Context) *graph.Graph {
	fresh := func() *graph.Graph {
		if r.seed != nil {
			return r.seed.Clone()
		}
		return graph.NewDefault()
	}
	data, err := r.store.Load(ctx, r.name)
	if errors.Is(err, store.ErrNotFound) {
		return fresh()
	}
	if err != nil {
		glog.Errorf("room %q: loading snapshot: %v; starting fresh", r.name, err)
		return fresh()
	}
	g, err := graph.UnmarshalSnapshot(data)
	if err != nil {
		glog.Warningf("room %q: bad snapshot: %v; starting fresh", r.name, err)
		return fresh()
	}
	return g
}

func (r *Room) save(ctx context.Context) {
	data, err := graph.MarshalSnapshot(r.graph)
	if err == nil {
		err = r.store.Save(ctx, r.name, data)
	}
	if err != nil {
		SnapshotWrites.WithLabelValues("error").Inc()
		glog.Errorf("room %q: saving snapshot: %v", r.name, err)
		return
	}
	SnapshotWrites.WithLabelValues("ok").Inc()
	glog.V(2).Infof("room %q: saved %d bytes", r.name, len(data))
}

func (r *Room) handle(ctx context.Context, msg roomMsg) {
	switch m := msg.(type) {
	case peerJoin:
		r.joins++
		r.remove(m.addr)
		r.members = append(r.members, member{addr: m.addr, peer: m.peer})
		glog.Infof("room %q: %s joined (%d members)", r.name, m.addr, len(r.members))
		initial := protocol.GraphChange{Change: graph.Initialize{Graph: r.graph.Clone()}}
		if err := m.peer.deliver(ctx, r, initial, r.cfg.SendTimeout); err != nil {
			r.drop(ctx, m.peer, err)
		}

	case peerLeave:
		if r.remove(m.addr) {
			glog.Infof("room %q: %s left (%d members)", r.name, m.addr, len(r.members))
			r.maybeShutdown(ctx)
		}

	case roomCommand:
		if r.indexOf(m.addr) < 0 {
			glog.V(2).Infof("room %q: ignoring command from non-member %s", r.name, m.addr)
			return
		}
		r.apply(ctx, m.addr, m.event)

	case roomSave:
		r.save(ctx)

	case roomInspect:
		addrs := make([]string, len(r.members))
		for i, mem := range r.members {
			addrs[i] = mem.addr
		}
		m.reply <- RoomState{Name: r.name, Graph: r.graph.Clone(), Members: addrs}
	}
}

func (r *Room) apply(ctx context.Context, addr string, e graph.Event) {
	changes, err := r.graph.Apply(e)
	if err != nil {
		CommandsTotal.WithLabelValues("rejected").Inc()
		glog.Warningf("room %q: dropping %s from %s: %v", r.name, e, addr, err)
		return
	}
	if graph.Debug {
		if errs := graph.Errors(graph.Validate(r.graph)); len(errs) > 0 {
			panic(fmt.Sprintf("room %q: %s broke the graph: %v", r.name, e, errs))
		}
	}
	if len(changes) == 0 {
		CommandsTotal.WithLabelValues("noop").Inc()
		glog.V(2).Infof("room %q: %s from %s changed nothing", r.name, e, addr)
		return
	}
	CommandsTotal.WithLabelValues("applied").Inc()
	glog.V(2).Infof("room %q: applied %s from %s (%d changes)", r.name, e, addr, len(changes))
	r.broadcast(ctx, changes)
}

// broadcast sends changes to every member in membership order. A member
// whose mailbox stays full for SendTimeout is dropped from the room.
func (r *Room) broadcast(ctx context.Context, changes []graph.Change) {
	var failed []*Peer
	for _, mem := range r.members {
		for _, c := range changes {
			if err := mem.peer.deliver(ctx, r, protocol.GraphChange{Change: c}, r.cfg.SendTimeout); err != nil {
				glog.Warningf("room %q: sending to %s: %v", r.name, mem.addr, err)
				failed = append(failed, mem.peer)
				break
			}
			ChangesBroadcast.Inc()
		}
	}
	for _, p := range failed {
		r.drop(ctx, p, nil)
	}
}

// drop removes a member the room could not reach and reports it upward so
// the coordinator can disconnect it.
func (r *Room) drop(ctx context.Context, p *Peer, err error) {
	if !r.remove(p.addr) {
		return
	}
	PeersDropped.Inc()
	if err != nil {
		glog.Warningf("room %q: dropping %s: %v", r.name, p.addr, err)
	} else {
		glog.Warningf("room %q: dropping %s", r.name, p.addr)
	}
	if err := r.coord.peerLeave(ctx, p); err != nil {
		glog.Warningf("room %q: reporting %s left: %v", r.name, p.addr, err)
	}
	r.maybeShutdown(ctx)
}

// maybeShutdown asks the coordinator to retire an empty room. The join
// count lets the coordinator refuse when a join is already on its way.
func (r *Room) maybeShutdown(ctx context.Context) {
	if len(r.members) > 0 {
		return
	}
	if err := r.coord.roomShutdown(ctx, r, r.joins); err != nil {
		glog.Warningf("room %q: requesting shutdown: %v", r.name, err)
	}
}

func (r *Room) indexOf(addr string) int {
	for i, m := range r.members {
		if m.addr == addr {
			return i
		}
	}
	return -1
}

func (r *Room) remove(addr string) bool {
	i := r.indexOf(addr)
	if i < 0 {
		return false
	}
	r.members = append(r.members[:i], r.members[i+1:]...)
	return true
}
