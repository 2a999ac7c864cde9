package graph

import "fmt"

// EventKind identifies an Event variant. The numeric value is the
// variant's wire index.
type EventKind uint32

const (
	EventAddChild EventKind = iota
	EventRemoveChild
	EventAddNewParent
	EventReplaceData
	EventSetTranslation
	EventSetRotation
	EventSetScale
	EventSetColour
)

// Event is a mutation request against a graph. Clients send events as
// commands; the room applies them and broadcasts the accepted ones.
type Event interface {
	EventKind() EventKind
	fmt.Stringer
}

// AddChild creates a node from Data under Parent. With a nil Index the
// child is appended (or fills the first empty positional slot); an Index
// below the child count overwrites that slot and one equal to it appends.
type AddChild struct {
	Parent NodeID
	Index  *int
	Data   NodeData
}

// At is a convenience for building AddChild indices.
func At(i int) *int { return &i }

// RemoveChild detaches Child from Parent.
type RemoveChild struct {
	Parent NodeID
	Child  NodeID
}

// AddNewParent inserts a new node built from Data between Grandparent and
// its existing child Child.
type AddNewParent struct {
	Grandparent NodeID
	Child       NodeID
	Data        NodeData
}

// ReplaceData swaps a node's variant, keeping its id, colour, transform and
// as many children as the new variant admits.
type ReplaceData struct {
	Node NodeID
	Data NodeData
}

type SetTranslation struct {
	Node        NodeID
	Translation Vec3
}

type SetRotation struct {
	Node     NodeID
	Rotation Quat
}

type SetScale struct {
	Node  NodeID
	Scale float32
}

type SetColour struct {
	Node NodeID
	RGB  RGB
}

func (AddChild) EventKind() EventKind       { return EventAddChild }
func (RemoveChild) EventKind() EventKind    { return EventRemoveChild }
func (AddNewParent) EventKind() EventKind   { return EventAddNewParent }
func (ReplaceData) EventKind() EventKind    { return EventReplaceData }
func (SetTranslation) EventKind() EventKind { return EventSetTranslation }
func (SetRotation) EventKind() EventKind    { return EventSetRotation }
func (SetScale) EventKind() EventKind       { return EventSetScale }
func (SetColour) EventKind() EventKind      { return EventSetColour }

func (e AddChild) String() string {
	idx := "end"
	if e.Index != nil {
		idx = fmt.Sprint(*e.Index)
	}
	return fmt.Sprintf("AddChild(%s[%s] <- %s)", e.Parent, idx, kindOf(e.Data))
}

func (e RemoveChild) String() string {
	return fmt.Sprintf("RemoveChild(%s -/- %s)", e.Parent, e.Child)
}

func (e AddNewParent) String() string {
	return fmt.Sprintf("AddNewParent(%s / %s / %s)", e.Grandparent, kindOf(e.Data), e.Child)
}

func (e ReplaceData) String() string {
	return fmt.Sprintf("ReplaceData(%s := %s)", e.Node, kindOf(e.Data))
}

func (e SetTranslation) String() string {
	return fmt.Sprintf("SetTranslation(%s, %v)", e.Node, e.Translation)
}

func (e SetRotation) String() string {
	return fmt.Sprintf("SetRotation(%s, %v)", e.Node, e.Rotation)
}

func (e SetScale) String() string {
	return fmt.Sprintf("SetScale(%s, %g)", e.Node, e.Scale)
}

func (e SetColour) String() string {
	return fmt.Sprintf("SetColour(%s, %v)", e.Node, e.RGB)
}

func kindOf(d NodeData) string {
	if d == nil {
		return "<nil>"
	}
	return d.Kind().String()
}

// ChangeKind identifies a Change variant by wire index.
type ChangeKind uint32

const (
	ChangeInitialize ChangeKind = iota
	ChangeApply
	ChangeRemove
)

// Change is a server-to-client notification. Replaying a room's change
// stream from its Initialize reproduces the room's graph exactly.
type Change interface {
	ChangeKind() ChangeKind
}

// Initialize replaces the receiver's graph wholesale.
type Initialize struct {
	Graph *Graph
}

// Apply replays an accepted event.
type Apply struct {
	Event Event
}

// Remove reports a node reaped by garbage collection.
type Remove struct {
	Node NodeID
}

func (Initialize) ChangeKind() ChangeKind { return ChangeInitialize }
func (Apply) ChangeKind() ChangeKind      { return ChangeApply }
func (Remove) ChangeKind() ChangeKind     { return ChangeRemove }
