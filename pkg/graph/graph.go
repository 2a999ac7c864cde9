package graph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvariant is matched by every error returned for an event that would
// break a graph invariant. Such events are rejected without any mutation.
var ErrInvariant = errors.New("graph invariant violation")

// InvariantError describes why an event was rejected.
type InvariantError struct {
	Event   Event
	Node    NodeID
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: node %s: %s", e.Event, e.Node, e.Message)
}

func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}

// Graph is a room's scene. Nodes is keyed by node id; every node is
// reachable from RootNodeID once an event has been fully applied.
type Graph struct {
	Nodes       map[NodeID]*Node `json:"nodes"`
	RootNodeID  NodeID           `json:"root_node_id"`
	IDGenerator IDGenerator      `json:"id_generator"`
}

// New creates a graph holding a single root node built from root.
func New(root NodeData) *Graph {
	g := &Graph{
		Nodes:       make(map[NodeID]*Node),
		IDGenerator: IDGenerator{ReturnedIDs: []NodeID{}},
	}
	id := g.IDGenerator.Generate()
	g.Nodes[id] = NewNode(id, root)
	g.RootNodeID = id
	return g
}

// NewDefault creates the graph a fresh room starts with: a lone Union root.
func NewDefault() *Graph {
	return New(Default(KindUnion))
}

// Get returns the node with the given ID, or nil.
func (g *Graph) Get(id NodeID) *Node {
	return g.Nodes[id]
}

// Root returns the root node.
func (g *Graph) Root() *Node {
	return g.Nodes[g.RootNodeID]
}

// Children returns the nodes in n's filled slots.
func (g *Graph) Children(n *Node) []*Node {
	children := make([]*Node, 0, len(n.Children))
	for _, s := range n.Children {
		if !s.Filled {
			continue
		}
		if c := g.Nodes[s.ID]; c != nil {
			children = append(children, c)
		}
	}
	return children
}

// NodeCount returns the total number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// IDs returns every node id in ascending order.
func (g *Graph) IDs() []NodeID {
	ids := make([]NodeID, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Parent returns the first node (in id order) with a slot referencing id.
func (g *Graph) Parent(id NodeID) (*Node, bool) {
	for _, pid := range g.IDs() {
		p := g.Nodes[pid]
		if p.slotOf(id) >= 0 {
			return p, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Nodes:       make(map[NodeID]*Node, len(g.Nodes)),
		RootNodeID:  g.RootNodeID,
		IDGenerator: g.IDGenerator.clone(),
	}
	for id, n := range g.Nodes {
		out.Nodes[id] = n.clone()
	}
	return out
}

// Equal reports whether two graphs hold identical nodes, root and id
// generator state.
func (g *Graph) Equal(o *Graph) bool {
	if g == nil || o == nil {
		return g == o
	}
	if g.RootNodeID != o.RootNodeID || !g.IDGenerator.equal(o.IDGenerator) {
		return false
	}
	if len(g.Nodes) != len(o.Nodes) {
		return false
	}
	for id, n := range g.Nodes {
		m, ok := o.Nodes[id]
		if !ok || !n.equal(m) {
			return false
		}
	}
	return true
}

// GarbageCollect removes every node not reachable from the root, returns
// their ids to the generator and reports them in ascending order.
func (g *Graph) GarbageCollect() []NodeID {
	reachable := g.reachable()
	var reaped []NodeID
	for id := range g.Nodes {
		if !reachable[id] {
			reaped = append(reaped, id)
		}
	}
	sort.Slice(reaped, func(i, j int) bool { return reaped[i] < reaped[j] })
	for _, id := range reaped {
		delete(g.Nodes, id)
		g.IDGenerator.Return(id)
	}
	return reaped
}

// reachable runs a BFS from the root through filled slots.
func (g *Graph) reachable() map[NodeID]bool {
	seen := make(map[NodeID]bool, len(g.Nodes))
	if _, ok := g.Nodes[g.RootNodeID]; !ok {
		return seen
	}
	seen[g.RootNodeID] = true
	queue := []NodeID{g.RootNodeID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node := g.Nodes[current]
		if node == nil {
			continue
		}
		for _, s := range node.Children {
			if s.Filled && !seen[s.ID] {
				seen[s.ID] = true
				queue = append(queue, s.ID)
			}
		}
	}
	return seen
}
