package graph

import (
	"errors"
	"testing"
)

func mustAdd(t *testing.T, g *Graph, parent NodeID, data NodeData) NodeID {
	t.Helper()
	id, err := g.AddChild(parent, nil, data)
	if err != nil {
		t.Fatalf("AddChild(%s, %s): %v", parent, data.Kind(), err)
	}
	return id
}

func mustApply(t *testing.T, g *Graph, e Event) []Change {
	t.Helper()
	changes, err := g.Apply(e)
	if err != nil {
		t.Fatalf("Apply(%s): %v", e, err)
	}
	if errs := Errors(Validate(g)); len(errs) > 0 {
		t.Fatalf("graph invalid after %s: %v", e, errs)
	}
	return changes
}

func slotIDs(n *Node) []Slot {
	return append([]Slot(nil), n.Children...)
}

func TestAddChildAppendsAndOverwrites(t *testing.T) {
	g := NewDefault()
	root := g.RootNodeID

	changes := mustApply(t, g, AddChild{Parent: root, Data: Sphere{Radius: 1}})
	if len(changes) != 1 {
		t.Fatalf("changes = %v, want a single Apply", changes)
	}
	if _, ok := changes[0].(Apply); !ok {
		t.Fatalf("change = %T, want Apply", changes[0])
	}
	first := g.Root().Children[0].ID
	if d := g.Nodes[first].Data; d != (Sphere{Radius: 1}) {
		t.Errorf("child data = %#v", d)
	}

	mustApply(t, g, AddChild{Parent: root, Index: At(1), Data: Torus{BigR: 1, SmallR: 0.25}})
	if len(g.Root().Children) != 2 {
		t.Fatalf("children = %v, want 2 slots", g.Root().Children)
	}

	changes = mustApply(t, g, AddChild{Parent: root, Index: At(0), Data: Cone{Radius: 1, Height: 2}})
	if len(g.Root().Children) != 2 {
		t.Errorf("overwrite changed slot count: %v", g.Root().Children)
	}
	if g.Nodes[first] != nil {
		t.Errorf("overwritten child %s should be reaped", first)
	}
	if len(changes) != 2 {
		t.Fatalf("changes = %v, want Apply + Remove", changes)
	}
	if rm, ok := changes[1].(Remove); !ok || rm.Node != first {
		t.Errorf("second change = %#v, want Remove(%s)", changes[1], first)
	}
}

func TestAddChildRejections(t *testing.T) {
	tests := []struct {
		name  string
		event func(g *Graph, sphere, intersect NodeID) Event
	}{
		{"index beyond child count", func(g *Graph, _, _ NodeID) Event {
			return AddChild{Parent: g.RootNodeID, Index: At(5), Data: Sphere{}}
		}},
		{"negative index", func(g *Graph, _, _ NodeID) Event {
			return AddChild{Parent: g.RootNodeID, Index: At(-1), Data: Sphere{}}
		}},
		{"child on primitive", func(_ *Graph, sphere, _ NodeID) Event {
			return AddChild{Parent: sphere, Data: Sphere{}}
		}},
		{"third intersect slot", func(_ *Graph, _, intersect NodeID) Event {
			return AddChild{Parent: intersect, Data: Sphere{}}
		}},
		{"negative radius", func(g *Graph, _, _ NodeID) Event {
			return AddChild{Parent: g.RootNodeID, Data: Sphere{Radius: -1}}
		}},
		{"factor above one", func(g *Graph, _, _ NodeID) Event {
			return AddChild{Parent: g.RootNodeID, Data: Union{Factor: 1.5}}
		}},
		{"nil data", func(g *Graph, _, _ NodeID) Event {
			return AddChild{Parent: g.RootNodeID}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewDefault()
			sphere := mustAdd(t, g, g.RootNodeID, Sphere{Radius: 1})
			intersect := mustAdd(t, g, g.RootNodeID, Intersect{})
			mustAdd(t, g, intersect, Sphere{Radius: 1})
			mustAdd(t, g, intersect, Sphere{Radius: 2})
			before := g.Clone()

			changes, err := g.Apply(tt.event(g, sphere, intersect))
			if !errors.Is(err, ErrInvariant) {
				t.Fatalf("err = %v, want ErrInvariant", err)
			}
			var ie *InvariantError
			if !errors.As(err, &ie) {
				t.Fatalf("err %T is not *InvariantError", err)
			}
			if changes != nil {
				t.Errorf("rejected event produced changes %v", changes)
			}
			if !g.Equal(before) {
				t.Error("rejected event mutated the graph")
			}
		})
	}
}

func TestMissingTargetsAreNoOps(t *testing.T) {
	const ghost NodeID = 999
	g := NewDefault()
	x := mustAdd(t, g, g.RootNodeID, Sphere{Radius: 1})
	before := g.Clone()

	events := []Event{
		AddChild{Parent: ghost, Data: Sphere{}},
		RemoveChild{Parent: ghost, Child: x},
		RemoveChild{Parent: g.RootNodeID, Child: ghost},
		RemoveChild{Parent: x, Child: g.RootNodeID},
		AddNewParent{Grandparent: ghost, Child: x, Data: Translate{}},
		AddNewParent{Grandparent: g.RootNodeID, Child: ghost, Data: Translate{}},
		AddNewParent{Grandparent: x, Child: g.RootNodeID, Data: Translate{}},
		ReplaceData{Node: ghost, Data: Sphere{}},
		SetTranslation{Node: ghost},
		SetRotation{Node: ghost, Rotation: IdentityQuat},
		SetScale{Node: ghost, Scale: 2},
		SetColour{Node: ghost},
	}
	for _, e := range events {
		changes, err := g.Apply(e)
		if err != nil {
			t.Errorf("Apply(%s) error = %v, want nil", e, err)
		}
		if len(changes) != 0 {
			t.Errorf("Apply(%s) changes = %v, want none", e, changes)
		}
	}
	if !g.Equal(before) {
		t.Error("no-op events mutated the graph")
	}
}

func TestRemoveChildReapsSubtree(t *testing.T) {
	g := NewDefault()
	root := g.RootNodeID
	x := mustAdd(t, g, root, Sphere{Radius: 1})
	y := mustAdd(t, g, root, Subtract{})
	z := mustAdd(t, g, y, Sphere{Radius: 0.5})

	changes := mustApply(t, g, RemoveChild{Parent: root, Child: y})

	if g.NodeCount() != 2 || g.Nodes[root] == nil || g.Nodes[x] == nil {
		t.Fatalf("remaining nodes = %v, want {root, X}", g.IDs())
	}
	removed := map[NodeID]bool{}
	for _, c := range changes[1:] {
		rm, ok := c.(Remove)
		if !ok {
			t.Fatalf("unexpected change %#v", c)
		}
		removed[rm.Node] = true
	}
	if len(removed) != 2 || !removed[y] || !removed[z] {
		t.Errorf("removed = %v, want {%s, %s}", removed, y, z)
	}
	if len(g.Root().Children) != 1 || g.Root().Children[0] != Child(x) {
		t.Errorf("root children = %v, want [%s]", g.Root().Children, x)
	}
}

func TestRemoveChildLeavesPositionalSlotEmpty(t *testing.T) {
	g := NewDefault()
	in := mustAdd(t, g, g.RootNodeID, Intersect{})
	lhs := mustAdd(t, g, in, Sphere{Radius: 1})
	rhs := mustAdd(t, g, in, Box{HalfSize: Vec3{1, 1, 1}})

	mustApply(t, g, RemoveChild{Parent: in, Child: lhs})
	got := slotIDs(g.Nodes[in])
	if len(got) != 2 || got[0].Filled || got[1] != Child(rhs) {
		t.Fatalf("intersect slots = %v, want [none %s]", got, rhs)
	}

	// The empty lhs slot is filled before anything is appended.
	mustApply(t, g, AddChild{Parent: in, Data: Cone{Radius: 1, Height: 1}})
	got = slotIDs(g.Nodes[in])
	if !got[0].Filled || got[1] != Child(rhs) {
		t.Errorf("intersect slots = %v, want lhs refilled", got)
	}
}

func TestAddNewParentInsertsCarrier(t *testing.T) {
	g := NewDefault()
	root := g.RootNodeID
	x := mustAdd(t, g, root, Sphere{Radius: 1})

	changes := mustApply(t, g, AddNewParent{Grandparent: root, Child: x, Data: Translate{}})
	if len(changes) != 1 {
		t.Fatalf("changes = %v, want a single Apply", changes)
	}

	kids := g.Root().Children
	if len(kids) != 1 || !kids[0].Filled {
		t.Fatalf("root children = %v", kids)
	}
	n := g.Nodes[kids[0].ID]
	if n.Data != (Translate{}) {
		t.Errorf("new parent data = %#v, want Translate{}", n.Data)
	}
	if len(n.Children) != 1 || n.Children[0] != Child(x) {
		t.Errorf("new parent children = %v, want [%s]", n.Children, x)
	}
	if n.Transform != IdentityTransform() || n.RGB != DefaultColour {
		t.Error("new parent should start with identity transform and default colour")
	}
}

func TestAddNewParentRejectsPrimitive(t *testing.T) {
	g := NewDefault()
	x := mustAdd(t, g, g.RootNodeID, Sphere{Radius: 1})
	_, err := g.Apply(AddNewParent{Grandparent: g.RootNodeID, Child: x, Data: Sphere{}})
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("err = %v, want ErrInvariant", err)
	}
}

func TestReplaceDataPreservesIdentity(t *testing.T) {
	g := NewDefault()
	root := g.RootNodeID
	u := mustAdd(t, g, root, Union{})
	a := mustAdd(t, g, u, Sphere{Radius: 1})
	b := mustAdd(t, g, u, Sphere{Radius: 2})
	c := mustAdd(t, g, u, Sphere{Radius: 3})
	mustApply(t, g, SetColour{Node: u, RGB: RGB{R: 0.5}})
	mustApply(t, g, SetTranslation{Node: u, Translation: Vec3{1, 2, 3}})

	changes := mustApply(t, g, ReplaceData{Node: u, Data: Intersect{Factor: 0.2}})
	n := g.Nodes[u]
	if n.RGB != (RGB{R: 0.5}) || n.Transform.Translation != (Vec3{1, 2, 3}) {
		t.Errorf("replace lost colour or transform: %+v", n)
	}
	if len(n.Children) != 2 || n.Children[0] != Child(a) || n.Children[1] != Child(b) {
		t.Errorf("children = %v, want [%s %s]", n.Children, a, b)
	}
	if g.Nodes[c] != nil {
		t.Errorf("dropped child %s should be reaped", c)
	}
	if len(changes) != 2 {
		t.Errorf("changes = %v, want Apply + Remove(%s)", changes, c)
	}

	mustApply(t, g, ReplaceData{Node: u, Data: Sphere{Radius: 1}})
	if len(g.Nodes[u].Children) != 0 || g.NodeCount() != 2 {
		t.Errorf("primitive replacement should drop all children, nodes = %v", g.IDs())
	}
}

func TestSetters(t *testing.T) {
	g := NewDefault()
	x := mustAdd(t, g, g.RootNodeID, Sphere{Radius: 1})
	q := Quat{X: 0, Y: 0.70710677, Z: 0, W: 0.70710677}

	mustApply(t, g, SetTranslation{Node: x, Translation: Vec3{1, -2, 3}})
	mustApply(t, g, SetRotation{Node: x, Rotation: q})
	mustApply(t, g, SetScale{Node: x, Scale: 0})
	mustApply(t, g, SetColour{Node: x, RGB: RGB{0.1, 0.2, 0.3}})

	want := Transform{Translation: Vec3{1, -2, 3}, Rotation: q, Scale: 0}
	if got := g.Nodes[x].Transform; got != want {
		t.Errorf("transform = %+v, want %+v", got, want)
	}
	if got := g.Nodes[x].RGB; got != (RGB{0.1, 0.2, 0.3}) {
		t.Errorf("rgb = %+v", got)
	}

	bad := []Event{
		SetScale{Node: x, Scale: -1},
		SetRotation{Node: x, Rotation: Quat{W: 2}},
		SetColour{Node: x, RGB: RGB{R: 1.5}},
	}
	for _, e := range bad {
		if _, err := g.Apply(e); !errors.Is(err, ErrInvariant) {
			t.Errorf("Apply(%s) err = %v, want ErrInvariant", e, err)
		}
	}
}

func TestApplyChangeReplaysRoomStream(t *testing.T) {
	room := NewDefault()
	replica := &Graph{}
	if err := replica.ApplyChange(Initialize{Graph: room.Clone()}); err != nil {
		t.Fatal(err)
	}

	events := []Event{
		AddChild{Parent: 0, Data: Subtract{}},
		AddChild{Parent: 1, Data: Sphere{Radius: 1}},
		AddChild{Parent: 1, Data: Box{HalfSize: Vec3{1, 1, 1}}},
		AddNewParent{Grandparent: 0, Child: 1, Data: Rgb{}},
		RemoveChild{Parent: 4, Child: 1},
		AddChild{Parent: 0, Data: Torus{BigR: 1, SmallR: 0.2}},
	}
	for _, e := range events {
		changes, err := room.Apply(e)
		if err != nil {
			t.Fatalf("room Apply(%s): %v", e, err)
		}
		for _, c := range changes {
			if err := replica.ApplyChange(c); err != nil {
				t.Fatalf("replica ApplyChange(%#v): %v", c, err)
			}
		}
		if !replica.Equal(room) {
			t.Fatalf("replica diverged after %s", e)
		}
	}
}
