package protocol

import (
	"errors"
	"fmt"

	"github.com/philpax/exoform-sub000/pkg/graph"
)

// DefaultPort is the TCP port servers listen on unless told otherwise.
const DefaultPort = 23421

// DefaultMaxFrameSize bounds a single frame's payload.
const DefaultMaxFrameSize = 16 << 20

var (
	// ErrFrameTooLarge is returned for frames whose declared length exceeds
	// the reader's limit, or whose payload does not fit a uint32.
	ErrFrameTooLarge = errors.New("protocol: frame too large")
	// ErrMalformed is returned when a payload does not decode to a Message.
	ErrMalformed = errors.New("protocol: malformed payload")
	// ErrUnexpectedMessage is returned by callers that receive a message
	// kind they do not accept in their current direction or state.
	ErrUnexpectedMessage = errors.New("protocol: unexpected message")
)

// MessageKind is the wire index of a Message variant.
type MessageKind uint32

const (
	KindRequestJoin MessageKind = iota
	KindGraphCommand
	KindGraphChange
)

func (k MessageKind) String() string {
	switch k {
	case KindRequestJoin:
		return "RequestJoin"
	case KindGraphCommand:
		return "GraphCommand"
	case KindGraphChange:
		return "GraphChange"
	}
	return fmt.Sprintf("MessageKind(%d)", uint32(k))
}

// Message is one frame's payload.
type Message interface {
	Kind() MessageKind
}

// RequestJoin asks the server to move the sending peer into Room.
type RequestJoin struct {
	Room string
}

// GraphCommand is an edit intention sent by a peer.
type GraphCommand struct {
	Event graph.Event
}

// GraphChange is an authoritative update sent to a peer.
type GraphChange struct {
	Change graph.Change
}

func (RequestJoin) Kind() MessageKind  { return KindRequestJoin }
func (GraphCommand) Kind() MessageKind { return KindGraphCommand }
func (GraphChange) Kind() MessageKind  { return KindGraphChange }

// Unexpected builds an error for a message that arrived where it is not
// accepted.
func Unexpected(m Message, where string) error {
	return fmt.Errorf("%w: %s on %s", ErrUnexpectedMessage, m.Kind(), where)
}
