// Package kernel defines the abstract geometry kernel interface.
// The mesher builds solids through this interface so the SDF backend can
// be swapped without touching graph traversal.
package kernel

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface. Primitives are centred
// on the origin with Z up. A factor of 0 selects the sharp boolean; a
// positive factor selects the smooth variant with that blend radius.
type Kernel interface {
	// Primitives
	Sphere(radius float64) (Solid, error)
	Cylinder(radius, halfHeight, round float64) (Solid, error)
	Torus(bigR, smallR float64) (Solid, error)
	Box(halfX, halfY, halfZ, round float64) (Solid, error)
	Cone(radius, height float64) (Solid, error)

	// Boolean operations
	Union(factor float64, solids ...Solid) Solid
	Difference(factor float64, a Solid, b ...Solid) Solid
	Intersection(factor float64, a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z, w float64) Solid // unit quaternion
	Scale(s Solid, k float64) Solid

	// Tint multiplies the colour of every surface point of s.
	Tint(s Solid, r, g, b float64) Solid

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
