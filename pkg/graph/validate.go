package graph

import "fmt"

// ValidationSeverity indicates whether a validation finding makes a graph
// unusable or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // graph must not be loaded
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem
	Global   bool               // finding is about the graph rather than one node
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Global {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID, e.Message)
}

// Validate runs every structural check on g and returns the findings. An
// empty slice means g satisfies all graph invariants. It never mutates g.
func Validate(g *Graph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateRoot(g)...)
	errs = append(errs, validateReferences(g)...)
	errs = append(errs, validateDAG(g)...)
	errs = append(errs, validateShapes(g)...)
	errs = append(errs, validateValues(g)...)
	errs = append(errs, validateReachability(g)...)
	errs = append(errs, validateIDGenerator(g)...)
	return errs
}

// Errors filters findings down to the blocking ones.
func Errors(findings []ValidationError) []ValidationError {
	var out []ValidationError
	for _, f := range findings {
		if f.Severity == SeverityError {
			out = append(out, f)
		}
	}
	return out
}

func validateRoot(g *Graph) []ValidationError {
	if _, ok := g.Nodes[g.RootNodeID]; !ok {
		return []ValidationError{{
			Global:   true,
			Message:  fmt.Sprintf("root %s does not exist", g.RootNodeID),
			Severity: SeverityError,
		}}
	}
	return nil
}

// validateReferences checks every filled slot points at an existing node
// and every node is filed under its own id.
func validateReferences(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, id := range g.IDs() {
		node := g.Nodes[id]
		if node == nil {
			errs = append(errs, ValidationError{NodeID: id, Message: "nil node", Severity: SeverityError})
			continue
		}
		if node.ID != id {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("node filed under %s claims id %s", id, node.ID),
				Severity: SeverityError,
			})
		}
		for _, s := range node.Children {
			if !s.Filled {
				continue
			}
			if _, ok := g.Nodes[s.ID]; !ok {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Message:  fmt.Sprintf("child reference %s does not exist", s.ID),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateDAG checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = on the current path, black (2) = done.
func validateDAG(g *Graph) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: node %s is part of a cycle", id),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray
		node := g.Nodes[id]
		if node == nil {
			color[id] = black
			return false
		}
		for _, s := range node.Children {
			if s.Filled && visit(s.ID) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, id := range g.IDs() {
		if color[id] == white && visit(id) {
			break
		}
	}
	return errs
}

// validateShapes checks each node's slot count against its variant.
func validateShapes(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, id := range g.IDs() {
		node := g.Nodes[id]
		if node == nil || node.Data == nil {
			errs = append(errs, ValidationError{NodeID: id, Message: "missing node data", Severity: SeverityError})
			continue
		}
		max := node.Data.Kind().MaxChildren()
		if max != Unbounded && len(node.Children) > max {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("%s has %d children, admits at most %d", node.Data.Kind(), len(node.Children), max),
				Severity: SeverityError,
			})
		}
		if node.Data.Kind().Variadic() {
			for _, s := range node.Children {
				if !s.Filled {
					errs = append(errs, ValidationError{
						NodeID:   id,
						Message:  fmt.Sprintf("%s has an empty slot", node.Data.Kind()),
						Severity: SeverityWarning,
					})
					break
				}
			}
		}
	}
	return errs
}

func validateValues(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, id := range g.IDs() {
		node := g.Nodes[id]
		if node == nil || node.Data == nil {
			continue
		}
		checks := []error{
			node.Data.validate(),
			checkRGB(node.RGB),
			finiteVec("translation", node.Transform.Translation),
			checkQuat(node.Transform.Rotation),
			nonNegative("scale", node.Transform.Scale),
		}
		for _, err := range checks {
			if err != nil {
				errs = append(errs, ValidationError{NodeID: id, Message: err.Error(), Severity: SeverityError})
			}
		}
	}
	return errs
}

// validateReachability reports nodes that garbage collection would reap.
func validateReachability(g *Graph) []ValidationError {
	var errs []ValidationError
	reachable := g.reachable()
	for _, id := range g.IDs() {
		if !reachable[id] {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("node %s is not reachable from the root", id),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateIDGenerator checks that no live id can be issued again.
func validateIDGenerator(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, id := range g.IDs() {
		if id >= g.IDGenerator.LastID {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("id %s is not below last_id %d", id, g.IDGenerator.LastID),
				Severity: SeverityError,
			})
		}
	}
	for i, id := range g.IDGenerator.ReturnedIDs {
		if _, live := g.Nodes[id]; live {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("returned id %s is still in use", id),
				Severity: SeverityError,
			})
		}
		if id >= g.IDGenerator.LastID {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("returned id %s was never issued", id),
				Severity: SeverityError,
			})
		}
		if i > 0 && g.IDGenerator.ReturnedIDs[i-1] >= id {
			errs = append(errs, ValidationError{
				Global:   true,
				Message:  "returned ids are not strictly ascending",
				Severity: SeverityError,
			})
		}
	}
	return errs
}
