package graph

import (
	"fmt"
	"math"
)

// DataKind identifies a NodeData variant. The numeric value is the
// variant's wire index and must not be reordered.
type DataKind uint32

const (
	KindSphere DataKind = iota
	KindCylinder
	KindTorus
	KindUnion
	KindIntersect
	KindSubtract
	KindTranslate
	KindRotate
	KindScale
	KindRgb
	KindBox
	KindCone
)

var kindNames = [...]string{
	KindSphere:    "Sphere",
	KindCylinder:  "Cylinder",
	KindTorus:     "Torus",
	KindUnion:     "Union",
	KindIntersect: "Intersect",
	KindSubtract:  "Subtract",
	KindTranslate: "Translate",
	KindRotate:    "Rotate",
	KindScale:     "Scale",
	KindRgb:       "Rgb",
	KindBox:       "Box",
	KindCone:      "Cone",
}

func (k DataKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("DataKind(%d)", uint32(k))
}

// KindByName looks up a variant by its display name.
func KindByName(name string) (DataKind, bool) {
	for k, n := range kindNames {
		if n == name {
			return DataKind(k), true
		}
	}
	return 0, false
}

// Category groups variants for client palettes.
type Category int

const (
	CategoryPrimitive Category = iota
	CategoryOperation
	CategoryTransform
	CategoryMetadata
)

func (c Category) String() string {
	switch c {
	case CategoryPrimitive:
		return "Primitive"
	case CategoryOperation:
		return "Operation"
	case CategoryTransform:
		return "Transform"
	case CategoryMetadata:
		return "Metadata"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// quatTolerance bounds how far a rotation's norm may drift from 1.
const quatTolerance = 1e-3

// Unbounded is the MaxChildren value of variadic variants.
const Unbounded = -1

// Category returns the palette category of k.
func (k DataKind) Category() Category {
	switch k {
	case KindSphere, KindCylinder, KindTorus, KindBox, KindCone:
		return CategoryPrimitive
	case KindUnion, KindIntersect, KindSubtract:
		return CategoryOperation
	case KindTranslate, KindRotate, KindScale:
		return CategoryTransform
	default:
		return CategoryMetadata
	}
}

// MaxChildren returns how many slots a variant admits, or Unbounded.
func (k DataKind) MaxChildren() int {
	switch k.Category() {
	case CategoryPrimitive:
		return 0
	case CategoryOperation:
		if k == KindIntersect {
			return 2
		}
		return Unbounded
	default:
		return 1
	}
}

// Variadic reports whether removing a child splices its slot out rather
// than leaving an empty slot behind.
func (k DataKind) Variadic() bool {
	return k.MaxChildren() == Unbounded
}

// AllKinds lists every variant in wire order.
func AllKinds() []DataKind {
	out := make([]DataKind, len(kindNames))
	for i := range out {
		out[i] = DataKind(i)
	}
	return out
}

// NodeData is the variant payload of a node. Implementations are the
// value types in this file.
type NodeData interface {
	Kind() DataKind
	validate() error
}

// Default returns the default payload for a variant.
func Default(k DataKind) NodeData {
	switch k {
	case KindSphere:
		return Sphere{Radius: 0.5}
	case KindCylinder:
		return Cylinder{CylinderRadius: 0.5, HalfHeight: 0.5}
	case KindTorus:
		return Torus{BigR: 0.5, SmallR: 0.1}
	case KindBox:
		return Box{HalfSize: Vec3{X: 0.5, Y: 0.5, Z: 0.5}}
	case KindCone:
		return Cone{Radius: 0.5, Height: 1}
	case KindUnion:
		return Union{}
	case KindIntersect:
		return Intersect{}
	case KindSubtract:
		return Subtract{}
	case KindTranslate:
		return Translate{}
	case KindRotate:
		return Rotate{}
	case KindScale:
		return Scale{}
	case KindRgb:
		return Rgb{}
	}
	return nil
}

// Defaults returns the default payload of every variant in wire order.
func Defaults() []NodeData {
	kinds := AllKinds()
	out := make([]NodeData, len(kinds))
	for i, k := range kinds {
		out[i] = Default(k)
	}
	return out
}

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// Sphere is a sphere centred on the node origin.
type Sphere struct {
	Radius float32 `json:"radius"`
}

func (Sphere) Kind() DataKind { return KindSphere }

func (d Sphere) validate() error {
	return nonNegative("radius", d.Radius)
}

// Cylinder is a capped cylinder along the Z axis, centred on the origin.
type Cylinder struct {
	CylinderRadius float32 `json:"cylinder_radius"`
	HalfHeight     float32 `json:"half_height"`
	RoundingRadius float32 `json:"rounding_radius"`
}

func (Cylinder) Kind() DataKind { return KindCylinder }

func (d Cylinder) validate() error {
	if err := nonNegative("cylinder_radius", d.CylinderRadius); err != nil {
		return err
	}
	if err := nonNegative("half_height", d.HalfHeight); err != nil {
		return err
	}
	return nonNegative("rounding_radius", d.RoundingRadius)
}

// Torus is a ring in the XY plane around the Z axis.
type Torus struct {
	BigR   float32 `json:"big_r"`
	SmallR float32 `json:"small_r"`
}

func (Torus) Kind() DataKind { return KindTorus }

func (d Torus) validate() error {
	if err := nonNegative("big_r", d.BigR); err != nil {
		return err
	}
	return nonNegative("small_r", d.SmallR)
}

// Box is an axis-aligned box given by its half extents.
type Box struct {
	HalfSize       Vec3    `json:"half_size"`
	RoundingRadius float32 `json:"rounding_radius"`
}

func (Box) Kind() DataKind { return KindBox }

func (d Box) validate() error {
	for _, c := range []struct {
		name string
		v    float32
	}{{"half_size.x", d.HalfSize.X}, {"half_size.y", d.HalfSize.Y}, {"half_size.z", d.HalfSize.Z}} {
		if err := nonNegative(c.name, c.v); err != nil {
			return err
		}
	}
	return nonNegative("rounding_radius", d.RoundingRadius)
}

// Cone is a cone along the Z axis with its base centred on the origin.
type Cone struct {
	Radius float32 `json:"radius"`
	Height float32 `json:"height"`
}

func (Cone) Kind() DataKind { return KindCone }

func (d Cone) validate() error {
	if err := nonNegative("radius", d.Radius); err != nil {
		return err
	}
	return nonNegative("height", d.Height)
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Union combines all children. Factor > 0 blends them smoothly.
type Union struct {
	Factor float32 `json:"factor"`
}

func (Union) Kind() DataKind { return KindUnion }

func (d Union) validate() error { return unitInterval("factor", d.Factor) }

// Intersect keeps the volume shared by its two positional children.
type Intersect struct {
	Factor float32 `json:"factor"`
}

func (Intersect) Kind() DataKind { return KindIntersect }

func (d Intersect) validate() error { return unitInterval("factor", d.Factor) }

// Subtract removes every later child from the first.
type Subtract struct {
	Factor float32 `json:"factor"`
}

func (Subtract) Kind() DataKind { return KindSubtract }

func (d Subtract) validate() error { return unitInterval("factor", d.Factor) }

// ---------------------------------------------------------------------------
// Single-slot carriers
// ---------------------------------------------------------------------------

// Translate groups one child under the node's translation.
type Translate struct{}

func (Translate) Kind() DataKind  { return KindTranslate }
func (Translate) validate() error { return nil }

// Rotate groups one child under the node's rotation.
type Rotate struct{}

func (Rotate) Kind() DataKind  { return KindRotate }
func (Rotate) validate() error { return nil }

// Scale groups one child under the node's scale.
type Scale struct{}

func (Scale) Kind() DataKind  { return KindScale }
func (Scale) validate() error { return nil }

// Rgb groups one child under the node's colour.
type Rgb struct{}

func (Rgb) Kind() DataKind  { return KindRgb }
func (Rgb) validate() error { return nil }

// ---------------------------------------------------------------------------
// Value checks
// ---------------------------------------------------------------------------

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func unitInterval(name string, v float32) error {
	if !finite(v) || v < 0 || v > 1 {
		return fmt.Errorf("%s must lie in [0, 1], got %g", name, v)
	}
	return nil
}

func nonNegative(name string, v float32) error {
	if !finite(v) || v < 0 {
		return fmt.Errorf("%s must be a non-negative finite number, got %g", name, v)
	}
	return nil
}

func finiteVec(name string, v Vec3) error {
	if !finite(v.X) || !finite(v.Y) || !finite(v.Z) {
		return fmt.Errorf("%s must be finite", name)
	}
	return nil
}

func checkRGB(c RGB) error {
	for _, ch := range []float32{c.R, c.G, c.B} {
		if !finite(ch) || ch < 0 || ch > 1 {
			return fmt.Errorf("colour channel %g outside [0, 1]", ch)
		}
	}
	return nil
}

func checkQuat(q Quat) error {
	if !finite(q.X) || !finite(q.Y) || !finite(q.Z) || !finite(q.W) {
		return fmt.Errorf("rotation must be finite")
	}
	if n := q.norm(); math.Abs(n-1) > quatTolerance {
		return fmt.Errorf("rotation must be a unit quaternion, norm is %g", n)
	}
	return nil
}

// ValidateData reports whether d is acceptable as a node payload.
func ValidateData(d NodeData) error {
	if d == nil {
		return fmt.Errorf("missing node data")
	}
	return d.validate()
}
