package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/philpax/exoform-sub000/pkg/graph"
)

// Marshal encodes m as a bincode payload without the length prefix.
func Marshal(m Message) ([]byte, error) {
	e := &encoder{}
	e.message(m)
	if e.err != nil {
		return nil, e.err
	}
	return e.buf, nil
}

// Unmarshal decodes a payload produced by Marshal. Every byte must be
// consumed.
func Unmarshal(payload []byte) (Message, error) {
	d := &decoder{buf: payload}
	m := d.message()
	if d.err == nil && d.off != len(d.buf) {
		d.fail("%d trailing bytes", len(d.buf)-d.off)
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

type encoder struct {
	buf []byte
	err error
}

func (e *encoder) fail(format string, args ...interface{}) {
	if e.err == nil {
		e.err = fmt.Errorf("protocol: encode: "+format, args...)
	}
}

func (e *encoder) u8(v uint8)        { e.buf = append(e.buf, v) }
func (e *encoder) u32(v uint32)      { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) u64(v uint64)      { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *encoder) f32(v float32)     { e.u32(math.Float32bits(v)) }
func (e *encoder) id(v graph.NodeID) { e.u32(uint32(v)) }

func (e *encoder) str(s string) {
	e.u64(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) vec3(v graph.Vec3) {
	e.f32(v.X)
	e.f32(v.Y)
	e.f32(v.Z)
}

func (e *encoder) quat(q graph.Quat) {
	e.f32(q.X)
	e.f32(q.Y)
	e.f32(q.Z)
	e.f32(q.W)
}

func (e *encoder) rgb(c graph.RGB) {
	e.f32(c.R)
	e.f32(c.G)
	e.f32(c.B)
}

func (e *encoder) message(m Message) {
	switch m := m.(type) {
	case RequestJoin:
		e.u32(uint32(KindRequestJoin))
		e.str(m.Room)
	case GraphCommand:
		e.u32(uint32(KindGraphCommand))
		e.event(m.Event)
	case GraphChange:
		e.u32(uint32(KindGraphChange))
		e.change(m.Change)
	default:
		e.fail("unknown message %T", m)
	}
}

func (e *encoder) change(c graph.Change) {
	switch c := c.(type) {
	case graph.Initialize:
		if c.Graph == nil {
			e.fail("initialize without graph")
			return
		}
		e.u32(uint32(graph.ChangeInitialize))
		e.graph(c.Graph)
	case graph.Apply:
		e.u32(uint32(graph.ChangeApply))
		e.event(c.Event)
	case graph.Remove:
		e.u32(uint32(graph.ChangeRemove))
		e.id(c.Node)
	default:
		e.fail("unknown change %T", c)
	}
}

func (e *encoder) event(ev graph.Event) {
	if ev == nil {
		e.fail("nil event")
		return
	}
	e.u32(uint32(ev.EventKind()))
	switch ev := ev.(type) {
	case graph.AddChild:
		e.id(ev.Parent)
		if ev.Index == nil {
			e.u8(0)
		} else if *ev.Index < 0 {
			e.fail("negative child index %d", *ev.Index)
		} else {
			e.u8(1)
			e.u64(uint64(*ev.Index))
		}
		e.data(ev.Data)
	case graph.RemoveChild:
		e.id(ev.Parent)
		e.id(ev.Child)
	case graph.AddNewParent:
		e.id(ev.Grandparent)
		e.id(ev.Child)
		e.data(ev.Data)
	case graph.ReplaceData:
		e.id(ev.Node)
		e.data(ev.Data)
	case graph.SetTranslation:
		e.id(ev.Node)
		e.vec3(ev.Translation)
	case graph.SetRotation:
		e.id(ev.Node)
		e.quat(ev.Rotation)
	case graph.SetScale:
		e.id(ev.Node)
		e.f32(ev.Scale)
	case graph.SetColour:
		e.id(ev.Node)
		e.rgb(ev.RGB)
	default:
		e.fail("unknown event %T", ev)
	}
}

func (e *encoder) data(d graph.NodeData) {
	if d == nil {
		e.fail("nil node data")
		return
	}
	e.u32(uint32(d.Kind()))
	switch d := d.(type) {
	case graph.Sphere:
		e.f32(d.Radius)
	case graph.Cylinder:
		e.f32(d.CylinderRadius)
		e.f32(d.HalfHeight)
		e.f32(d.RoundingRadius)
	case graph.Torus:
		e.f32(d.BigR)
		e.f32(d.SmallR)
	case graph.Union:
		e.f32(d.Factor)
	case graph.Intersect:
		e.f32(d.Factor)
	case graph.Subtract:
		e.f32(d.Factor)
	case graph.Box:
		e.vec3(d.HalfSize)
		e.f32(d.RoundingRadius)
	case graph.Cone:
		e.f32(d.Radius)
		e.f32(d.Height)
	case graph.Translate, graph.Rotate, graph.Scale, graph.Rgb:
	default:
		e.fail("unknown node data %T", d)
	}
}

// graph writes nodes sorted by id so equal graphs encode identically.
func (e *encoder) graph(g *graph.Graph) {
	ids := g.IDs()
	e.u64(uint64(len(ids)))
	for _, id := range ids {
		e.id(id)
		e.node(g.Nodes[id])
	}
	e.id(g.RootNodeID)
	e.id(g.IDGenerator.LastID)
	e.u64(uint64(len(g.IDGenerator.ReturnedIDs)))
	for _, id := range g.IDGenerator.ReturnedIDs {
		e.id(id)
	}
}

func (e *encoder) node(n *graph.Node) {
	e.id(n.ID)
	e.rgb(n.RGB)
	e.vec3(n.Transform.Translation)
	e.quat(n.Transform.Rotation)
	e.f32(n.Transform.Scale)
	e.data(n.Data)
	e.u64(uint64(len(n.Children)))
	for _, s := range n.Children {
		if s.Filled {
			e.u8(1)
			e.id(s.ID)
		} else {
			e.u8(0)
		}
	}
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) fail(format string, args ...interface{}) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: "+format, append([]interface{}{ErrMalformed}, args...)...)
	}
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf)-d.off < n {
		d.fail("need %d bytes at offset %d, have %d", n, d.off, len(d.buf)-d.off)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) f32() float32     { return math.Float32frombits(d.u32()) }
func (d *decoder) id() graph.NodeID { return graph.NodeID(d.u32()) }

// length reads a sequence length and checks that at least min bytes per
// element remain, so corrupt lengths cannot force large allocations.
func (d *decoder) length(min int) int {
	n := d.u64()
	if d.err != nil {
		return 0
	}
	remaining := uint64(len(d.buf) - d.off)
	if n > remaining || (min > 0 && n*uint64(min) > remaining) {
		d.fail("sequence length %d exceeds remaining %d bytes", n, remaining)
		return 0
	}
	return int(n)
}

func (d *decoder) str() string {
	return string(d.take(d.length(1)))
}

func (d *decoder) vec3() graph.Vec3 {
	return graph.Vec3{X: d.f32(), Y: d.f32(), Z: d.f32()}
}

func (d *decoder) quat() graph.Quat {
	return graph.Quat{X: d.f32(), Y: d.f32(), Z: d.f32(), W: d.f32()}
}

func (d *decoder) rgb() graph.RGB {
	return graph.RGB{R: d.f32(), G: d.f32(), B: d.f32()}
}

func (d *decoder) message() Message {
	switch k := MessageKind(d.u32()); k {
	case KindRequestJoin:
		return RequestJoin{Room: d.str()}
	case KindGraphCommand:
		return GraphCommand{Event: d.event()}
	case KindGraphChange:
		return GraphChange{Change: d.change()}
	default:
		d.fail("unknown message variant %d", uint32(k))
		return nil
	}
}

func (d *decoder) change() graph.Change {
	switch k := graph.ChangeKind(d.u32()); k {
	case graph.ChangeInitialize:
		return graph.Initialize{Graph: d.graph()}
	case graph.ChangeApply:
		return graph.Apply{Event: d.event()}
	case graph.ChangeRemove:
		return graph.Remove{Node: d.id()}
	default:
		d.fail("unknown change variant %d", uint32(k))
		return nil
	}
}

func (d *decoder) event() graph.Event {
	switch k := graph.EventKind(d.u32()); k {
	case graph.EventAddChild:
		e := graph.AddChild{Parent: d.id()}
		switch tag := d.u8(); tag {
		case 0:
		case 1:
			v := d.u64()
			if v > math.MaxInt32 {
				d.fail("child index %d out of range", v)
			}
			e.Index = graph.At(int(v))
		default:
			d.fail("invalid option tag %d", tag)
		}
		e.Data = d.data()
		return e
	case graph.EventRemoveChild:
		return graph.RemoveChild{Parent: d.id(), Child: d.id()}
	case graph.EventAddNewParent:
		return graph.AddNewParent{Grandparent: d.id(), Child: d.id(), Data: d.data()}
	case graph.EventReplaceData:
		return graph.ReplaceData{Node: d.id(), Data: d.data()}
	case graph.EventSetTranslation:
		return graph.SetTranslation{Node: d.id(), Translation: d.vec3()}
	case graph.EventSetRotation:
		return graph.SetRotation{Node: d.id(), Rotation: d.quat()}
	case graph.EventSetScale:
		return graph.SetScale{Node: d.id(), Scale: d.f32()}
	case graph.EventSetColour:
		return graph.SetColour{Node: d.id(), RGB: d.rgb()}
	default:
		d.fail("unknown event variant %d", uint32(k))
		return nil
	}
}

func (d *decoder) data() graph.NodeData {
	switch k := graph.DataKind(d.u32()); k {
	case graph.KindSphere:
		return graph.Sphere{Radius: d.f32()}
	case graph.KindCylinder:
		return graph.Cylinder{CylinderRadius: d.f32(), HalfHeight: d.f32(), RoundingRadius: d.f32()}
	case graph.KindTorus:
		return graph.Torus{BigR: d.f32(), SmallR: d.f32()}
	case graph.KindUnion:
		return graph.Union{Factor: d.f32()}
	case graph.KindIntersect:
		return graph.Intersect{Factor: d.f32()}
	case graph.KindSubtract:
		return graph.Subtract{Factor: d.f32()}
	case graph.KindBox:
		return graph.Box{HalfSize: d.vec3(), RoundingRadius: d.f32()}
	case graph.KindCone:
		return graph.Cone{Radius: d.f32(), Height: d.f32()}
	case graph.KindTranslate:
		return graph.Translate{}
	case graph.KindRotate:
		return graph.Rotate{}
	case graph.KindScale:
		return graph.Scale{}
	case graph.KindRgb:
		return graph.Rgb{}
	default:
		d.fail("unknown node data variant %d", uint32(k))
		return nil
	}
}

func (d *decoder) graph() *graph.Graph {
	// id + node header is at least 4 + 4 + 12 + 12 + 16 + 4 + 4 + 8 bytes.
	const minEntry = 64
	n := d.length(minEntry)
	g := &graph.Graph{Nodes: make(map[graph.NodeID]*graph.Node, n)}
	for i := 0; i < n && d.err == nil; i++ {
		id := d.id()
		node := d.node()
		if _, dup := g.Nodes[id]; dup {
			d.fail("duplicate node %s", id)
		}
		g.Nodes[id] = node
	}
	g.RootNodeID = d.id()
	g.IDGenerator.LastID = d.id()
	m := d.length(4)
	g.IDGenerator.ReturnedIDs = make([]graph.NodeID, 0, m)
	for i := 0; i < m && d.err == nil; i++ {
		g.IDGenerator.ReturnedIDs = append(g.IDGenerator.ReturnedIDs, d.id())
	}
	return g
}

func (d *decoder) node() *graph.Node {
	n := &graph.Node{ID: d.id(), RGB: d.rgb()}
	n.Transform.Translation = d.vec3()
	n.Transform.Rotation = d.quat()
	n.Transform.Scale = d.f32()
	n.Data = d.data()
	count := d.length(1)
	n.Children = make([]graph.Slot, 0, count)
	for i := 0; i < count && d.err == nil; i++ {
		switch tag := d.u8(); tag {
		case 0:
			n.Children = append(n.Children, graph.EmptySlot)
		case 1:
			n.Children = append(n.Children, graph.Child(d.id()))
		default:
			d.fail("invalid option tag %d", tag)
		}
	}
	return n
}
