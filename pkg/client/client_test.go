package client

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/philpax/exoform-sub000/pkg/graph"
	"github.com/philpax/exoform-sub000/pkg/protocol"
)

func pipe(t *testing.T) (*Session, protocol.Conn) {
	t.Helper()
	a, b := net.Pipe()
	s := NewSession(protocol.NewStreamConn(a, 0))
	server := protocol.NewStreamConn(b, 0)
	t.Cleanup(func() {
		s.Close()
		server.Close()
	})
	return s, server
}

func recv(t *testing.T, s *Session) graph.Change {
	t.Helper()
	select {
	case c, ok := <-s.Changes():
		if !ok {
			t.Fatalf("changes closed: %v", s.Err())
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a change")
	}
	return nil
}

func TestSessionJoinAndSend(t *testing.T) {
	s, server := pipe(t)

	go func() {
		s.Join("R")
		s.Send(graph.AddChild{Parent: 0, Data: graph.Sphere{Radius: 1}}, graph.SetScale{Node: 1, Scale: 2})
	}()

	m, err := server.ReadMessage()
	assert.Equal(t, err, nil)
	assert.Equal(t, m, protocol.RequestJoin{Room: "R"})

	m, err = server.ReadMessage()
	assert.Equal(t, err, nil)
	cmd, ok := m.(protocol.GraphCommand)
	assert.Equal(t, ok, true)
	assert.Equal(t, cmd.Event.EventKind(), graph.EventAddChild)

	m, err = server.ReadMessage()
	assert.Equal(t, err, nil)
	assert.Equal(t, m, protocol.GraphCommand{Event: graph.SetScale{Node: 1, Scale: 2}})
}

func TestSessionReceivesChanges(t *testing.T) {
	s, server := pipe(t)
	g := graph.NewDefault()

	go func() {
		server.WriteMessage(protocol.GraphChange{Change: graph.Initialize{Graph: g}})
		server.WriteMessage(protocol.GraphChange{Change: graph.Remove{Node: 4}})
		server.Close()
	}()

	ini, ok := recv(t, s).(graph.Initialize)
	assert.Equal(t, ok, true)
	assert.Equal(t, ini.Graph.Equal(g), true)
	assert.Equal(t, recv(t, s), graph.Change(graph.Remove{Node: 4}))

	select {
	case _, ok := <-s.Changes():
		assert.Equal(t, ok, false)
	case <-time.After(2 * time.Second):
		t.Fatal("changes not closed after EOF")
	}
	assert.Equal(t, s.Err(), nil)
	assert.Equal(t, errors.Is(s.Send(graph.SetScale{Node: 1, Scale: 1}), ErrClosed), true)
}

func TestSessionRejectsUnexpectedMessages(t *testing.T) {
	s, server := pipe(t)

	go server.WriteMessage(protocol.RequestJoin{Room: "R"})

	select {
	case _, ok := <-s.Changes():
		assert.Equal(t, ok, false)
	case <-time.After(2 * time.Second):
		t.Fatal("changes not closed after protocol error")
	}
	assert.Equal(t, errors.Is(s.Err(), protocol.ErrUnexpectedMessage), true)
}

func TestReplica(t *testing.T) {
	r := NewReplica()
	assert.Equal(t, r.Initialized(), false)
	assert.Equal(t, r.Apply(graph.Remove{Node: 1}), ErrNotInitialized)

	room := graph.NewDefault()
	assert.Equal(t, r.Apply(graph.Initialize{Graph: room.Clone()}), nil)
	assert.Equal(t, r.Initialized(), true)

	events := []graph.Event{
		graph.AddChild{Parent: room.RootNodeID, Data: graph.Sphere{Radius: 1}},
		graph.AddChild{Parent: room.RootNodeID, Data: graph.Subtract{}},
		graph.AddChild{Parent: 2, Data: graph.Box{HalfSize: graph.Vec3{X: 1, Y: 1, Z: 1}}},
		graph.RemoveChild{Parent: room.RootNodeID, Child: 2},
		graph.AddChild{Parent: room.RootNodeID, Data: graph.Torus{BigR: 1, SmallR: 0.1}},
		graph.AddNewParent{Grandparent: room.RootNodeID, Child: 1, Data: graph.Translate{}},
	}
	n := 0
	for _, e := range events {
		changes, err := room.Apply(e)
		assert.Equal(t, err, nil)
		for _, c := range changes {
			assert.Equal(t, r.Apply(c), nil)
			n++
		}
	}
	assert.Equal(t, r.Applied(), n)
	assert.Equal(t, r.Graph().Equal(room), true)

	assert.NotEqual(t, r.Apply(graph.Initialize{}), nil)
	assert.Equal(t, r.Graph().Equal(room), true)
}
