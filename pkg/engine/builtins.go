package engine

import (
	"fmt"
	"math"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/philpax/exoform-sub000/pkg/graph"
)

// sexpShape is an unbuilt scene node. Builtins return shapes and nest them;
// scene (or the script's last value) turns the root shape into a graph.
type sexpShape struct {
	data        graph.NodeData
	translation *graph.Vec3
	rotation    *graph.Quat
	scale       *float32
	rgb         *graph.RGB
	children    []*sexpShape
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	if len(s.children) == 0 {
		return fmt.Sprintf("(%s)", s.data.Kind())
	}
	parts := make([]string, len(s.children))
	for i, c := range s.children {
		parts[i] = c.SexpString(ps)
	}
	return fmt.Sprintf("(%s %s)", s.data.Kind(), strings.Join(parts, " "))
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

type sexpVec3 struct {
	vec graph.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// build creates a graph rooted at s. Every value goes through the graph's
// own event validation, so scripts cannot produce an invalid scene.
func (s *sexpShape) build() (*graph.Graph, error) {
	if err := graph.ValidateData(s.data); err != nil {
		return nil, fmt.Errorf("%s: %w", s.data.Kind(), err)
	}
	g := graph.New(s.data)
	if err := s.populate(g, g.RootNodeID); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *sexpShape) populate(g *graph.Graph, id graph.NodeID) error {
	var events []graph.Event
	if s.translation != nil {
		events = append(events, graph.SetTranslation{Node: id, Translation: *s.translation})
	}
	if s.rotation != nil {
		events = append(events, graph.SetRotation{Node: id, Rotation: *s.rotation})
	}
	if s.scale != nil {
		events = append(events, graph.SetScale{Node: id, Scale: *s.scale})
	}
	if s.rgb != nil {
		events = append(events, graph.SetColour{Node: id, RGB: *s.rgb})
	}
	for _, e := range events {
		if _, err := g.Apply(e); err != nil {
			return fmt.Errorf("%s: %w", s.data.Kind(), err)
		}
	}
	for _, c := range s.children {
		child, err := g.AddChild(id, nil, c.data)
		if err != nil {
			return fmt.Errorf("%s: %w", c.data.Kind(), err)
		}
		if err := c.populate(g, child); err != nil {
			return err
		}
	}
	return nil
}

// sceneBuilder collects the result of a (scene ...) call.
type sceneBuilder struct {
	root *sexpShape
}

func toVec3(s zygo.Sexp) (graph.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return graph.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

func toShape(s zygo.Sexp) (*sexpShape, error) {
	if sh, ok := s.(*sexpShape); ok {
		return sh, nil
	}
	return nil, fmt.Errorf("expected shape, got %T (%s)", s, s.SexpString(nil))
}

func toShapes(args []zygo.Sexp) ([]*sexpShape, error) {
	shapes := make([]*sexpShape, 0, len(args))
	for i, a := range args {
		sh, err := toShape(a)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		shapes = append(shapes, sh)
	}
	return shapes, nil
}

// float32Arg reads a number from the keyword kw, or from positional slot
// pos when the keyword is absent. dst is left alone if neither is given.
func float32Arg(pa kwArgs, kw string, pos int, dst *float32) error {
	v, ok := pa.kw[kw]
	if !ok {
		if pos < 0 || pos >= len(pa.positional) {
			return nil
		}
		v = pa.positional[pos]
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %w", kw, err)
	}
	*dst = float32(f)
	return nil
}

// applyCommon handles the keywords every shape builtin accepts:
// :at (vec3), :rgb (vec3) and :scale.
func applyCommon(pa kwArgs, s *sexpShape) error {
	if v, ok := pa.kw["at"]; ok {
		vec, err := toVec3(v)
		if err != nil {
			return fmt.Errorf("at: %w", err)
		}
		s.translation = &vec
	}
	if v, ok := pa.kw["rgb"]; ok {
		vec, err := toVec3(v)
		if err != nil {
			return fmt.Errorf("rgb: %w", err)
		}
		s.rgb = &graph.RGB{R: vec.X, G: vec.Y, B: vec.Z}
	}
	if _, ok := pa.kw["scale"]; ok {
		var k float32
		if err := float32Arg(pa, "scale", -1, &k); err != nil {
			return err
		}
		s.scale = &k
	}
	return nil
}

// axisAngle returns the unit quaternion rotating by deg degrees about axis.
func axisAngle(axis graph.Vec3, deg float64) (graph.Quat, error) {
	x, y, z := float64(axis.X), float64(axis.Y), float64(axis.Z)
	n := math.Sqrt(x*x + y*y + z*z)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return graph.Quat{}, fmt.Errorf("rotation axis must be a finite non-zero vector")
	}
	half := deg * math.Pi / 360
	s := math.Sin(half) / n
	return graph.Quat{
		X: float32(x * s),
		Y: float32(y * s),
		Z: float32(z * s),
		W: float32(math.Cos(half)),
	}, nil
}

type builtin func(pa kwArgs) (*sexpShape, error)

// primitive builds a leaf builtin; fill overrides the variant's defaults.
func primitive(kind graph.DataKind, fill func(pa kwArgs, d graph.NodeData) (graph.NodeData, error)) builtin {
	return func(pa kwArgs) (*sexpShape, error) {
		d, err := fill(pa, graph.Default(kind))
		if err != nil {
			return nil, err
		}
		return &sexpShape{data: d}, nil
	}
}

// operation builds union, subtract and intersect; every positional argument
// is a child.
func operation(kind graph.DataKind, withFactor func(f float32) graph.NodeData) builtin {
	return func(pa kwArgs) (*sexpShape, error) {
		var f float32
		if err := float32Arg(pa, "factor", -1, &f); err != nil {
			return nil, err
		}
		children, err := toShapes(pa.positional)
		if err != nil {
			return nil, err
		}
		if limit := kind.MaxChildren(); limit != graph.Unbounded && len(children) > limit {
			return nil, fmt.Errorf("takes at most %d children, got %d", limit, len(children))
		}
		return &sexpShape{data: withFactor(f), children: children}, nil
	}
}

// carrier builds the single-child transform and colour wrappers. lead is the
// number of leading positional arguments consumed by set.
func carrier(data graph.NodeData, lead int, set func(args []zygo.Sexp, s *sexpShape) error) builtin {
	return func(pa kwArgs) (*sexpShape, error) {
		if len(pa.positional) != lead+1 {
			return nil, fmt.Errorf("expects %d arguments and one child, got %d arguments", lead, len(pa.positional))
		}
		child, err := toShape(pa.positional[lead])
		if err != nil {
			return nil, err
		}
		s := &sexpShape{data: data, children: []*sexpShape{child}}
		if err := set(pa.positional[:lead], s); err != nil {
			return nil, err
		}
		return s, nil
	}
}

func shapeBuiltins() map[string]builtin {
	return map[string]builtin{
		// (sphere 0.5) or (sphere :radius 0.5)
		"sphere": primitive(graph.KindSphere, func(pa kwArgs, d graph.NodeData) (graph.NodeData, error) {
			s := d.(graph.Sphere)
			err := float32Arg(pa, "radius", 0, &s.Radius)
			return s, err
		}),
		// (cylinder :radius 0.5 :half-height 1 :rounding 0.1)
		"cylinder": primitive(graph.KindCylinder, func(pa kwArgs, d graph.NodeData) (graph.NodeData, error) {
			c := d.(graph.Cylinder)
			for _, f := range []struct {
				kw  string
				dst *float32
			}{{"radius", &c.CylinderRadius}, {"half-height", &c.HalfHeight}, {"rounding", &c.RoundingRadius}} {
				if err := float32Arg(pa, f.kw, -1, f.dst); err != nil {
					return nil, err
				}
			}
			return c, nil
		}),
		// (torus 1 0.2) or (torus :big-r 1 :small-r 0.2)
		"torus": primitive(graph.KindTorus, func(pa kwArgs, d graph.NodeData) (graph.NodeData, error) {
			t := d.(graph.Torus)
			if err := float32Arg(pa, "big-r", 0, &t.BigR); err != nil {
				return nil, err
			}
			err := float32Arg(pa, "small-r", 1, &t.SmallR)
			return t, err
		}),
		// (box (vec3 1 1 1) :rounding 0.1)
		"box": primitive(graph.KindBox, func(pa kwArgs, d graph.NodeData) (graph.NodeData, error) {
			b := d.(graph.Box)
			v, ok := pa.kw["half-size"]
			if !ok && len(pa.positional) > 0 {
				v, ok = pa.positional[0], true
			}
			if ok {
				vec, err := toVec3(v)
				if err != nil {
					return nil, fmt.Errorf("half-size: %w", err)
				}
				b.HalfSize = vec
			}
			err := float32Arg(pa, "rounding", -1, &b.RoundingRadius)
			return b, err
		}),
		// (cone :radius 0.5 :height 1)
		"cone": primitive(graph.KindCone, func(pa kwArgs, d graph.NodeData) (graph.NodeData, error) {
			c := d.(graph.Cone)
			if err := float32Arg(pa, "radius", 0, &c.Radius); err != nil {
				return nil, err
			}
			err := float32Arg(pa, "height", 1, &c.Height)
			return c, err
		}),

		// (union :factor 0.2 a b c)
		"union": operation(graph.KindUnion, func(f float32) graph.NodeData { return graph.Union{Factor: f} }),
		// (subtract a b c) removes b and c from a
		"subtract": operation(graph.KindSubtract, func(f float32) graph.NodeData { return graph.Subtract{Factor: f} }),
		// (intersect a b)
		"intersect": operation(graph.KindIntersect, func(f float32) graph.NodeData { return graph.Intersect{Factor: f} }),

		// (translate (vec3 0 0 1) child)
		"translate": carrier(graph.Translate{}, 1, func(args []zygo.Sexp, s *sexpShape) error {
			v, err := toVec3(args[0])
			if err != nil {
				return err
			}
			s.translation = &v
			return nil
		}),
		// (rotate (vec3 0 0 1) 90 child) rotates by degrees about an axis
		"rotate": carrier(graph.Rotate{}, 2, func(args []zygo.Sexp, s *sexpShape) error {
			axis, err := toVec3(args[0])
			if err != nil {
				return fmt.Errorf("axis: %w", err)
			}
			deg, err := toFloat64(args[1])
			if err != nil {
				return fmt.Errorf("angle: %w", err)
			}
			q, err := axisAngle(axis, deg)
			if err != nil {
				return err
			}
			s.rotation = &q
			return nil
		}),
		// (scale 2 child)
		"scale": carrier(graph.Scale{}, 1, func(args []zygo.Sexp, s *sexpShape) error {
			k, err := toFloat64(args[0])
			if err != nil {
				return err
			}
			f := float32(k)
			s.scale = &f
			return nil
		}),
		// (rgb 1 0 0 child)
		"rgb": carrier(graph.Rgb{}, 3, func(args []zygo.Sexp, s *sexpShape) error {
			var c [3]float32
			for i := range c {
				f, err := toFloat64(args[i])
				if err != nil {
					return err
				}
				c[i] = float32(f)
			}
			s.rgb = &graph.RGB{R: c[0], G: c[1], B: c[2]}
			return nil
		}),
	}
}

// registerBuiltins installs the scene builtins into a zygomys environment.
// Source must go through preprocessSource first so that :keyword tokens
// reach the builtins as recognisable strings.
func registerBuiltins(env *zygo.Zlisp, sc *sceneBuilder) {
	for name, fn := range shapeBuiltins() {
		fn := fn
		env.AddFunction(name, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			s, err := fn(pa)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			if err := applyCommon(pa, s); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			return s, nil
		})
	}

	// (vec3 1 2 3)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float32
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			c[i] = float32(f)
		}
		return &sexpVec3{vec: graph.Vec3{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// (scene root) selects the root of the seeded graph.
	env.AddFunction("scene", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("scene requires exactly one shape, got %d arguments", len(args))
		}
		s, err := toShape(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("scene: %w", err)
		}
		if sc.root != nil {
			return zygo.SexpNull, fmt.Errorf("scene: root already set")
		}
		sc.root = s
		return s, nil
	})
}
