// Package tessellate walks a scene graph and produces a triangle mesh
// using a geometry kernel. It never mutates the graph.
package tessellate

import (
	"math"

	"github.com/philpax/exoform-sub000/pkg/graph"
	"github.com/philpax/exoform-sub000/pkg/kernel"
)

// Tessellate builds the solid for g's root and meshes it with k.
func Tessellate(g *graph.Graph, k kernel.Kernel) (*kernel.Mesh, error) {
	solid, err := Compile(g, k)
	if err != nil {
		return nil, err
	}
	mesh, err := k.ToMesh(solid)
	if err != nil {
		return nil, &CompilationError{Kind: BackendError, Node: g.RootNodeID, Err: err}
	}
	return mesh, nil
}

// Compile builds the root solid without meshing it.
func Compile(g *graph.Graph, k kernel.Kernel) (kernel.Solid, error) {
	if g == nil {
		return nil, &CompilationError{Kind: NoRootNode}
	}
	root := g.Root()
	if root == nil {
		return nil, &CompilationError{Kind: NoRootNode, Node: g.RootNodeID}
	}

	w := &walker{g: g, k: k, visiting: make(map[graph.NodeID]bool)}
	solid, err := w.walk(root)
	if err != nil {
		return nil, err
	}
	if solid == nil {
		if root.Data.Kind().MaxChildren() != 0 && len(root.ChildIDs()) == 0 {
			return nil, &CompilationError{Kind: NoChildren, Node: root.ID}
		}
		return nil, &CompilationError{Kind: NoVolume, Node: root.ID}
	}

	min, max := solid.BoundingBox()
	volume := 1.0
	for i := 0; i < 3; i++ {
		if math.IsInf(min[i], 0) || math.IsInf(max[i], 0) || math.IsNaN(min[i]) || math.IsNaN(max[i]) {
			return nil, &CompilationError{Kind: InfiniteBounds, Node: root.ID}
		}
		volume *= max[i] - min[i]
	}
	if volume <= 0 {
		return nil, &CompilationError{Kind: NoVolume, Node: root.ID}
	}
	return solid, nil
}

type walker struct {
	g        *graph.Graph
	k        kernel.Kernel
	visiting map[graph.NodeID]bool
}

// walk returns the solid for n with n's own transform and colour applied,
// or nil when n contributes no volume.
func (w *walker) walk(n *graph.Node) (kernel.Solid, error) {
	if w.visiting[n.ID] {
		return nil, &CompilationError{Kind: BackendError, Node: n.ID, Err: errCycle}
	}
	w.visiting[n.ID] = true
	defer delete(w.visiting, n.ID)

	solid, err := w.data(n)
	if err != nil || solid == nil {
		return nil, err
	}

	// Scale, then rotate, then translate.
	tf := n.Transform
	switch {
	case tf.Scale < 0 || math.IsNaN(float64(tf.Scale)):
		return nil, &CompilationError{Kind: NegativeScale, Node: n.ID}
	case tf.Scale == 0:
		return nil, nil
	case tf.Scale != 1:
		solid = w.k.Scale(solid, float64(tf.Scale))
	}
	if q := tf.Rotation; !q.IsIdentity() {
		solid = w.k.Rotate(solid, float64(q.X), float64(q.Y), float64(q.Z), float64(q.W))
	}
	if t := tf.Translation; t != (graph.Vec3{}) {
		solid = w.k.Translate(solid, float64(t.X), float64(t.Y), float64(t.Z))
	}
	if c := n.RGB; c != graph.DefaultColour {
		solid = w.k.Tint(solid, float64(c.R), float64(c.G), float64(c.B))
	}
	return solid, nil
}

// children walks the filled slots of n. Empty slots and children without
// volume are dropped.
func (w *walker) children(n *graph.Node) ([]kernel.Solid, error) {
	var solids []kernel.Solid
	for _, child := range w.g.Children(n) {
		s, err := w.walk(child)
		if err != nil {
			return nil, err
		}
		if s != nil {
			solids = append(solids, s)
		}
	}
	return solids, nil
}

func (w *walker) slot(n *graph.Node, i int) (kernel.Solid, error) {
	if i >= len(n.Children) || !n.Children[i].Filled {
		return nil, nil
	}
	child := w.g.Get(n.Children[i].ID)
	if child == nil {
		return nil, nil
	}
	return w.walk(child)
}

func (w *walker) data(n *graph.Node) (kernel.Solid, error) {
	switch d := n.Data.(type) {
	case graph.Sphere:
		return w.primitive(n, func() (kernel.Solid, error) { return w.k.Sphere(float64(d.Radius)) }, d.Radius)
	case graph.Cylinder:
		return w.primitive(n, func() (kernel.Solid, error) {
			return w.k.Cylinder(float64(d.CylinderRadius), float64(d.HalfHeight), float64(d.RoundingRadius))
		}, d.CylinderRadius, d.HalfHeight)
	case graph.Torus:
		return w.primitive(n, func() (kernel.Solid, error) { return w.k.Torus(float64(d.BigR), float64(d.SmallR)) }, d.BigR, d.SmallR)
	case graph.Box:
		return w.primitive(n, func() (kernel.Solid, error) {
			return w.k.Box(float64(d.HalfSize.X), float64(d.HalfSize.Y), float64(d.HalfSize.Z), float64(d.RoundingRadius))
		}, d.HalfSize.X, d.HalfSize.Y, d.HalfSize.Z)
	case graph.Cone:
		return w.primitive(n, func() (kernel.Solid, error) { return w.k.Cone(float64(d.Radius), float64(d.Height)) }, d.Radius, d.Height)

	case graph.Union:
		solids, err := w.children(n)
		if err != nil || len(solids) == 0 {
			return nil, err
		}
		return w.k.Union(float64(d.Factor), solids...), nil

	case graph.Subtract:
		solids, err := w.children(n)
		if err != nil || len(solids) == 0 {
			return nil, err
		}
		if len(solids) == 1 {
			return solids[0], nil
		}
		return w.k.Difference(float64(d.Factor), solids[0], solids[1:]...), nil

	case graph.Intersect:
		lhs, err := w.slot(n, 0)
		if err != nil || lhs == nil {
			return nil, err
		}
		rhs, err := w.slot(n, 1)
		if err != nil {
			return nil, err
		}
		if rhs == nil {
			return lhs, nil
		}
		return w.k.Intersection(float64(d.Factor), lhs, rhs), nil

	case graph.Translate, graph.Rotate, graph.Scale, graph.Rgb:
		return w.slot(n, 0)
	}
	return nil, &CompilationError{Kind: BackendError, Node: n.ID, Err: errUnknownData}
}

// primitive checks sizes before calling build. Degenerate (zero-sized)
// primitives contribute no volume.
func (w *walker) primitive(n *graph.Node, build func() (kernel.Solid, error), sizes ...float32) (kernel.Solid, error) {
	for _, s := range sizes {
		if s < 0 || math.IsNaN(float64(s)) {
			return nil, &CompilationError{Kind: NegativeSize, Node: n.ID}
		}
		if s == 0 {
			return nil, nil
		}
	}
	solid, err := build()
	if err != nil {
		return nil, &CompilationError{Kind: BackendError, Node: n.ID, Err: err}
	}
	return solid, nil
}
