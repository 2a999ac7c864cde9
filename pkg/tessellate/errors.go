package tessellate

import (
	"errors"
	"fmt"

	"github.com/philpax/exoform-sub000/pkg/graph"
)

// ErrorKind classifies why a graph could not be meshed.
type ErrorKind int

const (
	NoRootNode ErrorKind = iota
	NoVolume
	InfiniteBounds
	NoChildren
	NegativeScale
	NegativeSize
	BackendError
)

func (k ErrorKind) String() string {
	switch k {
	case NoRootNode:
		return "no root node"
	case NoVolume:
		return "no volume"
	case InfiniteBounds:
		return "infinite bounds"
	case NoChildren:
		return "no children"
	case NegativeScale:
		return "negative scale"
	case NegativeSize:
		return "negative size"
	case BackendError:
		return "backend error"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// CompilationError reports why a graph could not be meshed. Two
// CompilationErrors match under errors.Is when their kinds are equal, so
// callers can test against the Err* values below.
type CompilationError struct {
	Kind ErrorKind
	Node graph.NodeID
	Err  error
}

func (e *CompilationError) Error() string {
	msg := fmt.Sprintf("tessellate: %s at node %s", e.Kind, e.Node)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompilationError) Unwrap() error { return e.Err }

func (e *CompilationError) Is(target error) bool {
	t, ok := target.(*CompilationError)
	return ok && t.Kind == e.Kind
}

var (
	ErrNoRootNode     = &CompilationError{Kind: NoRootNode}
	ErrNoVolume       = &CompilationError{Kind: NoVolume}
	ErrInfiniteBounds = &CompilationError{Kind: InfiniteBounds}
	ErrNoChildren     = &CompilationError{Kind: NoChildren}
	ErrNegativeScale  = &CompilationError{Kind: NegativeScale}
	ErrNegativeSize   = &CompilationError{Kind: NegativeSize}
	ErrBackend        = &CompilationError{Kind: BackendError}
)

var (
	errCycle       = errors.New("cycle in graph")
	errUnknownData = errors.New("unknown node data")
)
