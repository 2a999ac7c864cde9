package client

import (
	"errors"

	"github.com/philpax/exoform-sub000/pkg/graph"
)

// ErrNotInitialized is returned when a change arrives before Initialize.
var ErrNotInitialized = errors.New("client: replica not initialized")

// Replica is a local copy of a room's graph kept in step by replaying the
// room's changes.
type Replica struct {
	graph   *graph.Graph
	applied int
}

// NewReplica returns an empty replica waiting for Initialize.
func NewReplica() *Replica {
	return &Replica{}
}

// Apply replays one change. Initialize replaces the whole graph; Apply and
// Remove require an earlier Initialize.
func (r *Replica) Apply(c graph.Change) error {
	if _, ok := c.(graph.Initialize); ok {
		g := &graph.Graph{}
		if err := g.ApplyChange(c); err != nil {
			return err
		}
		r.graph, r.applied = g, 0
		return nil
	}
	if r.graph == nil {
		return ErrNotInitialized
	}
	if err := r.graph.ApplyChange(c); err != nil {
		return err
	}
	r.applied++
	return nil
}

// Initialized reports whether an Initialize has been applied.
func (r *Replica) Initialized() bool { return r.graph != nil }

// Applied is the number of changes replayed since the last Initialize.
func (r *Replica) Applied() int { return r.applied }

// Graph returns the replica's graph, or nil before Initialize. Callers must
// not modify it.
func (r *Replica) Graph() *graph.Graph { return r.graph }
