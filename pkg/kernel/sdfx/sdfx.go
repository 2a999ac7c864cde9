// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/philpax/exoform-sub000/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 200

// colourFunc returns the surface colour nearest a point in solid space.
type colourFunc func(p v3.Vec) [3]float64

var white = [3]float64{1, 1, 1}

func uniform(c [3]float64) colourFunc {
	return func(v3.Vec) [3]float64 { return c }
}

// sdfxSolid wraps an sdf.SDF3 together with its colour field.
type sdfxSolid struct {
	s      sdf.SDF3
	colour colourFunc
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	cells int
}

// New returns a kernel meshing at DefaultMeshCells.
func New() *SdfxKernel {
	return NewWithResolution(DefaultMeshCells)
}

// NewWithResolution returns a kernel whose marching cubes grid has cells
// cells along the longest bounding box axis.
func NewWithResolution(cells int) *SdfxKernel {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	return &SdfxKernel{cells: cells}
}

func unwrap(s kernel.Solid) *sdfxSolid {
	return s.(*sdfxSolid)
}

func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s, colour: uniform(white)}
}

// Sphere creates a sphere centred on the origin.
func (k *SdfxKernel) Sphere(radius float64) (kernel.Solid, error) {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Sphere3D: %w", err)
	}
	return wrap(s), nil
}

// Cylinder creates a cylinder along Z spanning [-halfHeight, halfHeight].
func (k *SdfxKernel) Cylinder(radius, halfHeight, round float64) (kernel.Solid, error) {
	s, err := sdf.Cylinder3D(2*halfHeight, radius, round)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Cylinder3D: %w", err)
	}
	return wrap(s), nil
}

// Torus creates a ring in the XY plane by revolving a circle of radius
// smallR, offset by bigR, about the Z axis.
func (k *SdfxKernel) Torus(bigR, smallR float64) (kernel.Solid, error) {
	circle, err := sdf.Circle2D(smallR)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Circle2D: %w", err)
	}
	profile := sdf.Transform2D(circle, sdf.Translate2d(v2.Vec{X: bigR, Y: 0}))
	s, err := sdf.Revolve3D(profile)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Revolve3D: %w", err)
	}
	return wrap(s), nil
}

// Box creates a box centred on the origin from its half extents.
func (k *SdfxKernel) Box(halfX, halfY, halfZ, round float64) (kernel.Solid, error) {
	s, err := sdf.Box3D(v3.Vec{X: 2 * halfX, Y: 2 * halfY, Z: 2 * halfZ}, round)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Box3D: %w", err)
	}
	return wrap(s), nil
}

// Cone creates a cone along Z with its base on the origin and its apex at
// z = height. sdf.Cone3D centres the cone, so we shift it up by half.
func (k *SdfxKernel) Cone(radius, height float64) (kernel.Solid, error) {
	s, err := sdf.Cone3D(height, radius, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Cone3D: %w", err)
	}
	m := sdf.Translate3d(v3.Vec{X: 0, Y: 0, Z: height / 2})
	return wrap(sdf.Transform3D(s, m)), nil
}

// Union returns the union of solids. The colour at a point is taken from
// whichever input is closest there.
func (k *SdfxKernel) Union(factor float64, solids ...kernel.Solid) kernel.Solid {
	if len(solids) == 1 {
		return solids[0]
	}
	parts := make([]*sdfxSolid, len(solids))
	sdfs := make([]sdf.SDF3, len(solids))
	for i, s := range solids {
		parts[i] = unwrap(s)
		sdfs[i] = parts[i].s
	}
	u := sdf.Union3D(sdfs...)
	if factor > 0 {
		if sm, ok := u.(interface{ SetMin(sdf.MinFunc) }); ok {
			sm.SetMin(sdf.PolyMin(factor))
		}
	}
	return &sdfxSolid{s: u, colour: func(p v3.Vec) [3]float64 {
		best, bestD := parts[0], parts[0].s.Evaluate(p)
		for _, part := range parts[1:] {
			if d := part.s.Evaluate(p); d < bestD {
				best, bestD = part, d
			}
		}
		return best.colour(p)
	}}
}

// Difference returns a with every solid in b removed. A carved surface
// takes the colour of the solid that carved it.
func (k *SdfxKernel) Difference(factor float64, a kernel.Solid, b ...kernel.Solid) kernel.Solid {
	result := unwrap(a)
	for _, cut := range b {
		lhs, rhs := result, unwrap(cut)
		d := sdf.Difference3D(lhs.s, rhs.s)
		if factor > 0 {
			if sm, ok := d.(interface{ SetMax(sdf.MaxFunc) }); ok {
				sm.SetMax(sdf.PolyMax(factor))
			}
		}
		result = &sdfxSolid{s: d, colour: func(p v3.Vec) [3]float64 {
			if lhs.s.Evaluate(p) >= -rhs.s.Evaluate(p) {
				return lhs.colour(p)
			}
			return rhs.colour(p)
		}}
	}
	return result
}

// Intersection returns the volume shared by a and b.
func (k *SdfxKernel) Intersection(factor float64, a, b kernel.Solid) kernel.Solid {
	lhs, rhs := unwrap(a), unwrap(b)
	i := sdf.Intersect3D(lhs.s, rhs.s)
	if factor > 0 {
		if sm, ok := i.(interface{ SetMax(sdf.MaxFunc) }); ok {
			sm.SetMax(sdf.PolyMax(factor))
		}
	}
	return &sdfxSolid{s: i, colour: func(p v3.Vec) [3]float64 {
		if lhs.s.Evaluate(p) >= rhs.s.Evaluate(p) {
			return lhs.colour(p)
		}
		return rhs.colour(p)
	}}
}

// Translate moves a solid by (x, y, z).
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	inner := unwrap(s)
	offset := v3.Vec{X: x, Y: y, Z: z}
	return &sdfxSolid{
		s:      sdf.Transform3D(inner.s, sdf.Translate3d(offset)),
		colour: func(p v3.Vec) [3]float64 { return inner.colour(p.Sub(offset)) },
	}
}

// Rotate rotates a solid by the quaternion (x, y, z, w).
func (k *SdfxKernel) Rotate(s kernel.Solid, x, y, z, w float64) kernel.Solid {
	inner := unwrap(s)
	roll, pitch, yaw := quatToEuler(x, y, z, w)
	m := sdf.RotateZ(yaw).Mul(sdf.RotateY(pitch)).Mul(sdf.RotateX(roll))
	return &sdfxSolid{
		s: sdf.Transform3D(inner.s, m),
		colour: func(p v3.Vec) [3]float64 {
			return inner.colour(rotateVec(p, -x, -y, -z, w))
		},
	}
}

// rotateVec rotates p by the unit quaternion (x, y, z, w).
func rotateVec(p v3.Vec, x, y, z, w float64) v3.Vec {
	// t = 2 * cross(q.xyz, p); p' = p + w*t + cross(q.xyz, t)
	tx := 2 * (y*p.Z - z*p.Y)
	ty := 2 * (z*p.X - x*p.Z)
	tz := 2 * (x*p.Y - y*p.X)
	return v3.Vec{
		X: p.X + w*tx + (y*tz - z*ty),
		Y: p.Y + w*ty + (z*tx - x*tz),
		Z: p.Z + w*tz + (x*ty - y*tx),
	}
}

// quatToEuler converts a unit quaternion to intrinsic Z-Y-X angles in
// radians, so that R = Rz(yaw) * Ry(pitch) * Rx(roll).
func quatToEuler(x, y, z, w float64) (roll, pitch, yaw float64) {
	roll = math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	sinp := 2 * (w*y - z*x)
	if sinp > 1 {
		sinp = 1
	} else if sinp < -1 {
		sinp = -1
	}
	pitch = math.Asin(sinp)
	yaw = math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return roll, pitch, yaw
}

// Scale scales a solid uniformly about the origin.
func (k *SdfxKernel) Scale(s kernel.Solid, factor float64) kernel.Solid {
	inner := unwrap(s)
	return &sdfxSolid{
		s:      sdf.ScaleUniform3D(inner.s, factor),
		colour: func(p v3.Vec) [3]float64 { return inner.colour(p.MulScalar(1/factor)) },
	}
}

// Tint multiplies the colour field of s by (r, g, b).
func (k *SdfxKernel) Tint(s kernel.Solid, r, g, b float64) kernel.Solid {
	inner := unwrap(s)
	return &sdfxSolid{s: inner.s, colour: func(p v3.Vec) [3]float64 {
		c := inner.colour(p)
		return [3]float64{c[0] * r, c[1] * g, c[2] * b}
	}}
}

// ToMesh converts a solid to a triangle mesh using marching cubes. Each
// vertex is coloured from the solid's colour field.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	solid := unwrap(s)

	renderer := render.NewMarchingCubesUniform(k.cells)
	triangles := render.ToTriangles(solid.s, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	colours := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			c := solid.colour(v)
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			colours = append(colours, float32(c[0]), float32(c[1]), float32(c[2]))
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Colours:  colours,
		Indices:  indices,
	}, nil
}
