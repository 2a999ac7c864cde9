package graph

import "fmt"

// Apply applies e, then garbage-collects. It returns the changes a replica
// needs to reproduce the mutation: Apply(e) followed by one Remove per
// reaped node in ascending id order. An event whose target no longer exists
// yields no changes and no error. An event that would break an invariant
// returns an error matching ErrInvariant and leaves g untouched.
func (g *Graph) Apply(e Event) ([]Change, error) {
	applied, err := g.applyEvent(e)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, nil
	}
	changes := []Change{Apply{Event: e}}
	for _, id := range g.GarbageCollect() {
		changes = append(changes, Remove{Node: id})
	}
	return changes, nil
}

// ApplyChange replays a change received from a room.
func (g *Graph) ApplyChange(c Change) error {
	switch c := c.(type) {
	case Initialize:
		if c.Graph == nil {
			return fmt.Errorf("initialize: missing graph")
		}
		*g = *c.Graph.Clone()
		return nil
	case Apply:
		_, err := g.applyEvent(c.Event)
		return err
	case Remove:
		if _, ok := g.Nodes[c.Node]; !ok {
			return nil
		}
		delete(g.Nodes, c.Node)
		g.IDGenerator.Return(c.Node)
		return nil
	}
	return fmt.Errorf("unknown change %T", c)
}

// AddChild applies an AddChild event and returns the new node's id.
func (g *Graph) AddChild(parent NodeID, index *int, data NodeData) (NodeID, error) {
	e := AddChild{Parent: parent, Index: index, Data: data}
	if _, ok := g.Nodes[parent]; !ok {
		return 0, &InvariantError{Event: e, Node: parent, Message: "parent does not exist"}
	}
	next := g.peekID()
	if _, err := g.Apply(e); err != nil {
		return 0, err
	}
	return next, nil
}

func (g *Graph) peekID() NodeID {
	if len(g.IDGenerator.ReturnedIDs) > 0 {
		return g.IDGenerator.ReturnedIDs[0]
	}
	return g.IDGenerator.LastID
}

func (g *Graph) applyEvent(e Event) (bool, error) {
	reject := func(id NodeID, format string, args ...interface{}) (bool, error) {
		return false, &InvariantError{Event: e, Node: id, Message: fmt.Sprintf(format, args...)}
	}

	switch e := e.(type) {
	case AddChild:
		parent := g.Nodes[e.Parent]
		if parent == nil {
			return false, nil
		}
		if err := ValidateData(e.Data); err != nil {
			return reject(e.Parent, "%v", err)
		}
		max := parent.Data.Kind().MaxChildren()
		if max == 0 {
			return reject(e.Parent, "%s does not accept children", parent.Data.Kind())
		}
		slot := -1
		switch {
		case e.Index == nil:
			if max != Unbounded {
				for i, s := range parent.Children {
					if !s.Filled {
						slot = i
						break
					}
				}
			}
			if slot < 0 {
				slot = len(parent.Children)
			}
		case *e.Index < 0 || *e.Index > len(parent.Children):
			return reject(e.Parent, "index %d out of range for %d children", *e.Index, len(parent.Children))
		default:
			slot = *e.Index
		}
		if max != Unbounded && slot >= max {
			return reject(e.Parent, "%s admits at most %d children", parent.Data.Kind(), max)
		}
		id := g.IDGenerator.Generate()
		g.Nodes[id] = NewNode(id, e.Data)
		if slot == len(parent.Children) {
			parent.Children = append(parent.Children, Child(id))
		} else {
			parent.Children[slot] = Child(id)
		}
		return true, nil

	case RemoveChild:
		parent := g.Nodes[e.Parent]
		if parent == nil {
			return false, nil
		}
		i := parent.slotOf(e.Child)
		if i < 0 {
			return false, nil
		}
		if parent.Data.Kind().Variadic() {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
		} else {
			parent.Children[i] = EmptySlot
		}
		return true, nil

	case AddNewParent:
		gp := g.Nodes[e.Grandparent]
		if gp == nil || g.Nodes[e.Child] == nil {
			return false, nil
		}
		i := gp.slotOf(e.Child)
		if i < 0 {
			return false, nil
		}
		if err := ValidateData(e.Data); err != nil {
			return reject(e.Grandparent, "%v", err)
		}
		if e.Data.Kind().MaxChildren() == 0 {
			return reject(e.Grandparent, "%s cannot wrap a child", e.Data.Kind())
		}
		id := g.IDGenerator.Generate()
		n := NewNode(id, e.Data)
		n.Children = []Slot{Child(e.Child)}
		g.Nodes[id] = n
		gp.Children[i] = Child(id)
		return true, nil

	case ReplaceData:
		n := g.Nodes[e.Node]
		if n == nil {
			return false, nil
		}
		if err := ValidateData(e.Data); err != nil {
			return reject(e.Node, "%v", err)
		}
		n.Data = e.Data
		if max := e.Data.Kind().MaxChildren(); max != Unbounded && len(n.Children) > max {
			n.Children = n.Children[:max]
		}
		return true, nil

	case SetTranslation:
		n := g.Nodes[e.Node]
		if n == nil {
			return false, nil
		}
		if err := finiteVec("translation", e.Translation); err != nil {
			return reject(e.Node, "%v", err)
		}
		n.Transform.Translation = e.Translation
		return true, nil

	case SetRotation:
		n := g.Nodes[e.Node]
		if n == nil {
			return false, nil
		}
		if err := checkQuat(e.Rotation); err != nil {
			return reject(e.Node, "%v", err)
		}
		n.Transform.Rotation = e.Rotation
		return true, nil

	case SetScale:
		n := g.Nodes[e.Node]
		if n == nil {
			return false, nil
		}
		if err := nonNegative("scale", e.Scale); err != nil {
			return reject(e.Node, "%v", err)
		}
		n.Transform.Scale = e.Scale
		return true, nil

	case SetColour:
		n := g.Nodes[e.Node]
		if n == nil {
			return false, nil
		}
		if err := checkRGB(e.RGB); err != nil {
			return reject(e.Node, "%v", err)
		}
		n.RGB = e.RGB
		return true, nil
	}
	return false, fmt.Errorf("unknown event %T", e)
}
