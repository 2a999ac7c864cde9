package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/philpax/exoform-sub000/pkg/graph"
)

// ErrUnknownCommand is returned by ParseCommand for an unrecognised verb.
var ErrUnknownCommand = errors.New("client: unknown command")

// CommandHelp lists the line commands understood by ParseCommand.
const CommandHelp = `add <parent> <kind>
remove [<parent>] <child>
wrap <parent> <child> <kind>
replace <node> <kind>
move <node> <x> <y> <z>
scale <node> <s>
colour <node> <r> <g> <b>`

type commandParser struct {
	args []string
	err  error
}

// ParseCommand turns one line of user input into an event. Kinds are
// matched case-insensitively and start from their default payload. A
// remove naming only the child looks up its parent in g, which may be nil
// before the first Initialize.
func ParseCommand(line string, g *graph.Graph) (graph.Event, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}
	verb, p := fields[0], &commandParser{args: fields[1:]}

	arity := map[string]int{
		"add": 2, "remove": 2, "wrap": 3, "replace": 2,
		"move": 4, "scale": 2, "colour": 4, "color": 4,
	}
	n, ok := arity[verb]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
	}
	if verb == "remove" && len(p.args) == 1 {
		return removeChild(p, g)
	}
	if len(p.args) != n {
		return nil, fmt.Errorf("%s: want %d arguments, got %d", verb, n, len(p.args))
	}

	var e graph.Event
	switch verb {
	case "add":
		e = graph.AddChild{Parent: p.id(0), Data: p.data(1)}
	case "remove":
		e = graph.RemoveChild{Parent: p.id(0), Child: p.id(1)}
	case "wrap":
		e = graph.AddNewParent{Grandparent: p.id(0), Child: p.id(1), Data: p.data(2)}
	case "replace":
		e = graph.ReplaceData{Node: p.id(0), Data: p.data(1)}
	case "move":
		e = graph.SetTranslation{Node: p.id(0), Translation: graph.Vec3{X: p.float(1), Y: p.float(2), Z: p.float(3)}}
	case "scale":
		e = graph.SetScale{Node: p.id(0), Scale: p.float(1)}
	case "colour", "color":
		e = graph.SetColour{Node: p.id(0), RGB: graph.RGB{R: p.float(1), G: p.float(2), B: p.float(3)}}
	}
	if p.err != nil {
		return nil, fmt.Errorf("%s: %w", verb, p.err)
	}
	return e, nil
}

func removeChild(p *commandParser, g *graph.Graph) (graph.Event, error) {
	child := p.id(0)
	if p.err != nil {
		return nil, fmt.Errorf("remove: %w", p.err)
	}
	if g == nil {
		return nil, errors.New("remove: no scene yet; name the parent")
	}
	parent, ok := g.Parent(child)
	if !ok {
		return nil, fmt.Errorf("remove: node %s has no parent", child)
	}
	return graph.RemoveChild{Parent: parent.ID, Child: child}, nil
}

func (p *commandParser) id(i int) graph.NodeID {
	v, err := strconv.ParseUint(strings.TrimPrefix(p.args[i], "#"), 10, 32)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("bad node id %q", p.args[i])
	}
	return graph.NodeID(v)
}

func (p *commandParser) float(i int) float32 {
	v, err := strconv.ParseFloat(p.args[i], 32)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("bad number %q", p.args[i])
	}
	return float32(v)
}

func (p *commandParser) data(i int) graph.NodeData {
	var names []string
	for _, d := range graph.Defaults() {
		name := d.Kind().String()
		if strings.EqualFold(name, p.args[i]) {
			return d
		}
		names = append(names, strings.ToLower(name))
	}
	if p.err == nil {
		p.err = fmt.Errorf("unknown kind %q (want one of %s)", p.args[i], strings.Join(names, ", "))
	}
	return nil
}
