package graph

import (
	"fmt"
	"sort"
)

// NodeID is an opaque identifier for a node. Identifiers are only unique
// within one graph and may be reissued after the node they named is reaped.
type NodeID uint32

func (id NodeID) String() string {
	return fmt.Sprintf("#%d", uint32(id))
}

// IDGenerator hands out node identifiers. LastID is the next fresh
// identifier; ReturnedIDs holds reaped identifiers, kept sorted, which are
// reissued (smallest first) before any fresh one.
type IDGenerator struct {
	LastID      NodeID   `json:"last_id"`
	ReturnedIDs []NodeID `json:"returned_ids"`
}

// Generate returns the next identifier.
func (g *IDGenerator) Generate() NodeID {
	if len(g.ReturnedIDs) > 0 {
		id := g.ReturnedIDs[0]
		g.ReturnedIDs = g.ReturnedIDs[1:]
		return id
	}
	id := g.LastID
	g.LastID++
	return id
}

// Return puts a reaped identifier back into the recycle pool.
func (g *IDGenerator) Return(id NodeID) {
	i := sort.Search(len(g.ReturnedIDs), func(i int) bool { return g.ReturnedIDs[i] >= id })
	if i < len(g.ReturnedIDs) && g.ReturnedIDs[i] == id {
		return
	}
	g.ReturnedIDs = append(g.ReturnedIDs, 0)
	copy(g.ReturnedIDs[i+1:], g.ReturnedIDs[i:])
	g.ReturnedIDs[i] = id
}

func (g IDGenerator) clone() IDGenerator {
	out := IDGenerator{LastID: g.LastID, ReturnedIDs: make([]NodeID, len(g.ReturnedIDs))}
	copy(out.ReturnedIDs, g.ReturnedIDs)
	return out
}

func (g IDGenerator) equal(o IDGenerator) bool {
	if g.LastID != o.LastID || len(g.ReturnedIDs) != len(o.ReturnedIDs) {
		return false
	}
	for i := range g.ReturnedIDs {
		if g.ReturnedIDs[i] != o.ReturnedIDs[i] {
			return false
		}
	}
	return true
}
