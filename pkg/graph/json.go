package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type nodeJSON struct {
	ID        NodeID          `json:"id"`
	RGB       RGB             `json:"rgb"`
	Transform Transform       `json:"transform"`
	Data      json.RawMessage `json:"data"`
	Children  []Slot          `json:"children"`
}

// MarshalJSON encodes a node with its data externally tagged by variant
// name, e.g. {"Sphere":{"radius":0.5}}.
func (n *Node) MarshalJSON() ([]byte, error) {
	data, err := MarshalData(n.Data)
	if err != nil {
		return nil, err
	}
	children := n.Children
	if children == nil {
		children = []Slot{}
	}
	return json.Marshal(nodeJSON{
		ID:        n.ID,
		RGB:       n.RGB,
		Transform: n.Transform,
		Data:      data,
		Children:  children,
	})
}

// UnmarshalJSON decodes a node, rejecting unknown fields and variants.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw nodeJSON
	if err := decodeStrict(b, &raw); err != nil {
		return fmt.Errorf("node: %w", err)
	}
	data, err := UnmarshalData(raw.Data)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}
	*n = Node{
		ID:        raw.ID,
		RGB:       raw.RGB,
		Transform: raw.Transform,
		Data:      data,
		Children:  raw.Children,
	}
	return nil
}

// MarshalData encodes node data externally tagged by variant name.
func MarshalData(d NodeData) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("missing node data")
	}
	body, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{d.Kind().String(): body})
}

// UnmarshalData decodes externally tagged node data.
func UnmarshalData(b []byte) (NodeData, error) {
	var tagged map[string]json.RawMessage
	if err := decodeStrict(b, &tagged); err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	if len(tagged) != 1 {
		return nil, fmt.Errorf("data: expected exactly one variant, got %d", len(tagged))
	}
	for name, body := range tagged {
		kind, ok := KindByName(name)
		if !ok {
			return nil, fmt.Errorf("data: unknown variant %q", name)
		}
		return decodeVariant(kind, body)
	}
	panic("unreachable")
}

func decodeVariant(kind DataKind, body []byte) (NodeData, error) {
	var err error
	switch kind {
	case KindSphere:
		var d Sphere
		err = decodeStrict(body, &d)
		return d, err
	case KindCylinder:
		var d Cylinder
		err = decodeStrict(body, &d)
		return d, err
	case KindTorus:
		var d Torus
		err = decodeStrict(body, &d)
		return d, err
	case KindBox:
		var d Box
		err = decodeStrict(body, &d)
		return d, err
	case KindCone:
		var d Cone
		err = decodeStrict(body, &d)
		return d, err
	case KindUnion:
		var d Union
		err = decodeStrict(body, &d)
		return d, err
	case KindIntersect:
		var d Intersect
		err = decodeStrict(body, &d)
		return d, err
	case KindSubtract:
		var d Subtract
		err = decodeStrict(body, &d)
		return d, err
	case KindTranslate:
		var d Translate
		err = decodeStrict(body, &d)
		return d, err
	case KindRotate:
		var d Rotate
		err = decodeStrict(body, &d)
		return d, err
	case KindScale:
		var d Scale
		err = decodeStrict(body, &d)
		return d, err
	case KindRgb:
		var d Rgb
		err = decodeStrict(body, &d)
		return d, err
	}
	return nil, fmt.Errorf("data: unknown variant %s", kind)
}

// decodeStrict decodes exactly one JSON value and rejects unknown fields.
func decodeStrict(b []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}

// MarshalSnapshot renders g as pretty-printed JSON.
func MarshalSnapshot(g *Graph) ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// UnmarshalSnapshot parses a snapshot and checks every graph invariant.
// Blank input is rejected.
func UnmarshalSnapshot(b []byte) (*Graph, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, fmt.Errorf("snapshot: empty document")
	}
	var g Graph
	if err := decodeStrict(b, &g); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if g.Nodes == nil {
		return nil, fmt.Errorf("snapshot: missing nodes")
	}
	if errs := Errors(Validate(&g)); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("snapshot: %w: %s", ErrInvariant, strings.Join(msgs, "; "))
	}
	if g.IDGenerator.ReturnedIDs == nil {
		g.IDGenerator.ReturnedIDs = []NodeID{}
	}
	return &g, nil
}
