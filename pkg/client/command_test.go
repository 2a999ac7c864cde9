package client_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/philpax/exoform-sub000/pkg/client"
	"github.com/philpax/exoform-sub000/pkg/graph"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want graph.Event
	}{
		{"add 0 sphere", graph.AddChild{Parent: 0, Data: graph.Sphere{Radius: 0.5}}},
		{"add #3 Box", graph.AddChild{Parent: 3, Data: graph.Box{HalfSize: graph.Vec3{X: 0.5, Y: 0.5, Z: 0.5}}}},
		{"remove 0 4", graph.RemoveChild{Parent: 0, Child: 4}},
		{"wrap 0 1 translate", graph.AddNewParent{Grandparent: 0, Child: 1, Data: graph.Translate{}}},
		{"replace 2 INTERSECT", graph.ReplaceData{Node: 2, Data: graph.Intersect{}}},
		{"move 1 1 -2 0.5", graph.SetTranslation{Node: 1, Translation: graph.Vec3{X: 1, Y: -2, Z: 0.5}}},
		{"  scale 1   2 ", graph.SetScale{Node: 1, Scale: 2}},
		{"colour 1 1 0 0", graph.SetColour{Node: 1, RGB: graph.RGB{R: 1}}},
		{"color 1 0 1 0", graph.SetColour{Node: 1, RGB: graph.RGB{G: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := client.ParseCommand(tt.line, nil)
			assert.Equal(t, err, nil)
			assert.Equal(t, got, tt.want)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"explode 1",
		"add 0",
		"add 0 blob",
		"add x sphere",
		"move 1 a b c",
		"scale -1 2",
		"remove 4",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := client.ParseCommand(line, nil)
			assert.NotEqual(t, err, nil)
		})
	}

	_, err := client.ParseCommand("explode 1", nil)
	assert.Equal(t, errors.Is(err, client.ErrUnknownCommand), true)

	_, err = client.ParseCommand("add 0 blob", nil)
	assert.Equal(t, strings.Contains(err.Error(), "sphere"), true)
}

func TestParseRemoveFindsParent(t *testing.T) {
	g := graph.NewDefault()
	sub, err := g.AddChild(g.RootNodeID, nil, graph.Subtract{})
	assert.Equal(t, err, nil)
	x, err := g.AddChild(sub, nil, graph.Sphere{Radius: 1})
	assert.Equal(t, err, nil)

	got, err := client.ParseCommand(fmt.Sprintf("remove %d", x), g)
	assert.Equal(t, err, nil)
	assert.Equal(t, got, graph.Event(graph.RemoveChild{Parent: sub, Child: x}))

	got, err = client.ParseCommand(fmt.Sprintf("remove 0 %d", sub), g)
	assert.Equal(t, err, nil)
	assert.Equal(t, got, graph.Event(graph.RemoveChild{Parent: 0, Child: sub}))

	for _, line := range []string{"remove 0", "remove 99", "remove x"} {
		_, err := client.ParseCommand(line, g)
		assert.NotEqual(t, err, nil)
	}
}
