package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Vec3 is a 3-component vector.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Quat is a rotation quaternion stored as (x, y, z, w).
type Quat struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

// IdentityQuat is the rotation that does nothing.
var IdentityQuat = Quat{W: 1}

// IsIdentity reports whether q is within float noise of the identity.
func (q Quat) IsIdentity() bool {
	const eps = 1e-6
	return math.Abs(float64(q.X)) < eps && math.Abs(float64(q.Y)) < eps &&
		math.Abs(float64(q.Z)) < eps && math.Abs(float64(q.W)-1) < eps
}

func (q Quat) norm() float64 {
	return math.Sqrt(float64(q.X)*float64(q.X) + float64(q.Y)*float64(q.Y) +
		float64(q.Z)*float64(q.Z) + float64(q.W)*float64(q.W))
}

// RGB is a colour with channels in [0, 1].
type RGB struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
}

// DefaultColour is the colour given to every new node.
var DefaultColour = RGB{R: 1, G: 1, B: 1}

// Transform is a rigid transform plus a uniform scale.
type Transform struct {
	Translation Vec3    `json:"translation"`
	Rotation    Quat    `json:"rotation"`
	Scale       float32 `json:"scale"`
}

// IdentityTransform returns the transform that leaves a shape in place.
func IdentityTransform() Transform {
	return Transform{Rotation: IdentityQuat, Scale: 1}
}

// Slot is one child position of a node. An empty slot stands for a
// missing input and is encoded as null.
type Slot struct {
	ID     NodeID
	Filled bool
}

// Child returns a slot referencing id.
func Child(id NodeID) Slot {
	return Slot{ID: id, Filled: true}
}

// EmptySlot is a slot with no child.
var EmptySlot = Slot{}

func (s Slot) String() string {
	if !s.Filled {
		return "none"
	}
	return s.ID.String()
}

// MarshalJSON encodes a slot as its id or null.
func (s Slot) MarshalJSON() ([]byte, error) {
	if !s.Filled {
		return []byte("null"), nil
	}
	return json.Marshal(uint32(s.ID))
}

// UnmarshalJSON decodes a slot from an id or null.
func (s *Slot) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = EmptySlot
		return nil
	}
	var id uint32
	if err := json.Unmarshal(b, &id); err != nil {
		return fmt.Errorf("slot: %w", err)
	}
	*s = Child(NodeID(id))
	return nil
}

// Node is the fundamental element of the scene graph.
type Node struct {
	ID        NodeID
	RGB       RGB
	Transform Transform
	Data      NodeData
	Children  []Slot
}

// NewNode returns a node with the default colour and identity transform.
func NewNode(id NodeID, data NodeData) *Node {
	return &Node{
		ID:        id,
		RGB:       DefaultColour,
		Transform: IdentityTransform(),
		Data:      data,
	}
}

// ChildIDs returns the ids in the filled slots, in slot order.
func (n *Node) ChildIDs() []NodeID {
	ids := make([]NodeID, 0, len(n.Children))
	for _, s := range n.Children {
		if s.Filled {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// slotOf returns the index of the first slot referencing id, or -1.
func (n *Node) slotOf(id NodeID) int {
	for i, s := range n.Children {
		if s.Filled && s.ID == id {
			return i
		}
	}
	return -1
}

func (n *Node) clone() *Node {
	out := *n
	out.Children = make([]Slot, len(n.Children))
	copy(out.Children, n.Children)
	return &out
}

func (n *Node) equal(o *Node) bool {
	if n.ID != o.ID || n.RGB != o.RGB || n.Transform != o.Transform || n.Data != o.Data {
		return false
	}
	if len(n.Children) != len(o.Children) {
		return false
	}
	for i := range n.Children {
		if n.Children[i] != o.Children[i] {
			return false
		}
	}
	return true
}
