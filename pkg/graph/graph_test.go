package graph

import "testing"

func TestNewDefaultGraph(t *testing.T) {
	g := NewDefault()
	if g.NodeCount() != 1 {
		t.Fatalf("node count = %d, want 1", g.NodeCount())
	}
	root := g.Root()
	if root == nil {
		t.Fatal("root node missing")
	}
	if root.Data != (Union{}) {
		t.Errorf("root data = %#v, want Union{}", root.Data)
	}
	if len(root.Children) != 0 {
		t.Errorf("root has %d children, want 0", len(root.Children))
	}
	if root.RGB != DefaultColour {
		t.Errorf("root colour = %v, want %v", root.RGB, DefaultColour)
	}
	if root.Transform != IdentityTransform() {
		t.Errorf("root transform = %v, want identity", root.Transform)
	}
	if g.IDGenerator.LastID != 1 {
		t.Errorf("last_id = %d, want 1", g.IDGenerator.LastID)
	}
}

func TestIDGeneratorRecyclesSmallestFirst(t *testing.T) {
	var gen IDGenerator
	for i := 0; i < 5; i++ {
		if got := gen.Generate(); got != NodeID(i) {
			t.Fatalf("Generate() = %d, want %d", got, i)
		}
	}
	gen.Return(3)
	gen.Return(1)
	gen.Return(3)

	if len(gen.ReturnedIDs) != 2 {
		t.Fatalf("returned ids = %v, want [1 3]", gen.ReturnedIDs)
	}
	for _, want := range []NodeID{1, 3, 5, 6} {
		if got := gen.Generate(); got != want {
			t.Errorf("Generate() = %d, want %d", got, want)
		}
	}
}

func TestGarbageCollectReapsInAscendingOrder(t *testing.T) {
	g := NewDefault()
	a, _ := g.AddChild(g.RootNodeID, nil, Union{})
	b, _ := g.AddChild(a, nil, Sphere{Radius: 1})
	c, _ := g.AddChild(a, nil, Sphere{Radius: 2})

	// Detach a behind Apply's back; GC alone must find the orphans.
	g.Root().Children = nil
	reaped := g.GarbageCollect()

	want := []NodeID{a, b, c}
	if len(reaped) != len(want) {
		t.Fatalf("reaped = %v, want %v", reaped, want)
	}
	for i := range want {
		if reaped[i] != want[i] {
			t.Errorf("reaped[%d] = %s, want %s", i, reaped[i], want[i])
		}
	}
	if g.NodeCount() != 1 {
		t.Errorf("node count = %d, want 1", g.NodeCount())
	}
	if got := g.IDGenerator.Generate(); got != a {
		t.Errorf("next id = %s, want recycled %s", got, a)
	}
}

func TestCloneIsDeep(t *testing.T) {
	g := NewDefault()
	id, err := g.AddChild(g.RootNodeID, nil, Sphere{Radius: 1})
	if err != nil {
		t.Fatal(err)
	}
	c := g.Clone()
	if !g.Equal(c) {
		t.Fatal("clone should equal original")
	}

	c.Nodes[id].RGB = RGB{}
	c.Root().Children[0] = EmptySlot
	c.IDGenerator.Return(7)

	if g.Nodes[id].RGB != DefaultColour {
		t.Error("mutating clone changed original node colour")
	}
	if !g.Root().Children[0].Filled {
		t.Error("mutating clone changed original children")
	}
	if len(g.IDGenerator.ReturnedIDs) != 0 {
		t.Error("mutating clone changed original id generator")
	}
	if g.Equal(c) {
		t.Error("graphs should differ after mutating clone")
	}
}

func TestParentLookup(t *testing.T) {
	g := NewDefault()
	x, _ := g.AddChild(g.RootNodeID, nil, Sphere{Radius: 1})
	p, ok := g.Parent(x)
	if !ok || p.ID != g.RootNodeID {
		t.Errorf("Parent(%s) = %v, %v; want root", x, p, ok)
	}
	if _, ok := g.Parent(g.RootNodeID); ok {
		t.Error("root should have no parent")
	}
}

func TestKindMetadata(t *testing.T) {
	tests := []struct {
		kind     DataKind
		category Category
		max      int
	}{
		{KindSphere, CategoryPrimitive, 0},
		{KindCylinder, CategoryPrimitive, 0},
		{KindTorus, CategoryPrimitive, 0},
		{KindBox, CategoryPrimitive, 0},
		{KindCone, CategoryPrimitive, 0},
		{KindUnion, CategoryOperation, Unbounded},
		{KindSubtract, CategoryOperation, Unbounded},
		{KindIntersect, CategoryOperation, 2},
		{KindTranslate, CategoryTransform, 1},
		{KindRotate, CategoryTransform, 1},
		{KindScale, CategoryTransform, 1},
		{KindRgb, CategoryMetadata, 1},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.Category(); got != tt.category {
				t.Errorf("Category() = %s, want %s", got, tt.category)
			}
			if got := tt.kind.MaxChildren(); got != tt.max {
				t.Errorf("MaxChildren() = %d, want %d", got, tt.max)
			}
			d := Default(tt.kind)
			if d == nil || d.Kind() != tt.kind {
				t.Fatalf("Default(%s) = %#v", tt.kind, d)
			}
			if err := ValidateData(d); err != nil {
				t.Errorf("default data invalid: %v", err)
			}
			k, ok := KindByName(tt.kind.String())
			if !ok || k != tt.kind {
				t.Errorf("KindByName(%q) = %v, %v", tt.kind.String(), k, ok)
			}
		})
	}
	if len(Defaults()) != len(tests) {
		t.Errorf("Defaults() has %d entries, want %d", len(Defaults()), len(tests))
	}
}
