package amqp

import "fmt"

// FrameKind identifies a lifecycle performative.
type FrameKind uint8

const (
	FrameOpen FrameKind = iota + 1
	FrameBegin
	FrameAttach
	FrameDetach
	FrameEnd
	FrameClose
)

func (kind FrameKind) String() string {
	switch kind {
	case FrameOpen:
		return "open"
	case FrameBegin:
		return "begin"
	case FrameAttach:
		return "attach"
	case FrameDetach:
		return "detach"
	case FrameEnd:
		return "end"
	case FrameClose:
		return "close"
	default:
		return fmt.Sprintf("frame(%d)", uint8(kind))
	}
}

// Frame is one lifecycle performative exchanged with the peer.
type Frame interface {
	Kind() FrameKind
}

// Role is the direction of a link from the point of view of the attaching side.
type Role bool

const (
	RoleSender   Role = false
	RoleReceiver Role = true
)

func (role Role) String() string {
	if role == RoleReceiver {
		return "receiver"
	}
	return "sender"
}

// OpenFrame negotiates connection parameters. A nil Properties map means no
// properties were sent, which is distinct from an empty map.
type OpenFrame struct {
	ContainerID         string
	Hostname            string
	Properties          map[Symbol]any
	OfferedCapabilities []Symbol
	DesiredCapabilities []Symbol
}

// BeginFrame starts a session on Channel, the sender's outgoing channel.
// RemoteChannel is set when the frame answers a begin from the other side.
type BeginFrame struct {
	Channel       uint16
	RemoteChannel *uint16
}

// AttachFrame attaches a link. Address is the node the link is bound to: the
// target for a sending role and the source for a receiving role. A nil address
// from a sender requests the anonymous relay.
type AttachFrame struct {
	Channel uint16
	Handle  uint32
	Name    string
	Role    Role
	Address *string
}

// DetachFrame detaches a link; Closed distinguishes a close from a plain detach.
type DetachFrame struct {
	Channel   uint16
	Handle    uint32
	Closed    bool
	Condition *ErrorCondition
}

// EndFrame ends the session on Channel.
type EndFrame struct {
	Channel   uint16
	Condition *ErrorCondition
}

// CloseFrame closes the connection.
type CloseFrame struct {
	Condition *ErrorCondition
}

func (*OpenFrame) Kind() FrameKind   { return FrameOpen }
func (*BeginFrame) Kind() FrameKind  { return FrameBegin }
func (*AttachFrame) Kind() FrameKind { return FrameAttach }
func (*DetachFrame) Kind() FrameKind { return FrameDetach }
func (*EndFrame) Kind() FrameKind    { return FrameEnd }
func (*CloseFrame) Kind() FrameKind  { return FrameClose }
