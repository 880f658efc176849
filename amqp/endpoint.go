package amqp

// EndpointState is the lifecycle position of a connection, session or link.
type EndpointState int

const (
	StateUninitialized EndpointState = iota
	StateLocalOpenPending
	StateRemoteOpenPending
	StateActive
	StateLocalClosePending
	StateRemoteClosed
	StateClosed
	StateDisconnected
)

func (state EndpointState) String() string {
	switch state {
	case StateUninitialized:
		return "uninitialized"
	case StateLocalOpenPending:
		return "local-open-pending"
	case StateRemoteOpenPending:
		return "remote-open-pending"
	case StateActive:
		return "active"
	case StateLocalClosePending:
		return "local-close-pending"
	case StateRemoteClosed:
		return "remote-closed"
	case StateClosed:
		return "closed"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// endpoint is the open/close state shared by every entity. All fields are
// guarded by the owning connection's lock.
type endpoint struct {
	localOpen   bool
	remoteOpen  bool
	localClose  bool
	remoteClose bool

	disconnected bool

	// openSuppressed is set when the open completion must never fire: the
	// entity was closed locally before the peer opened it, or it was a
	// remote-initiated entity rejected without a local open.
	openSuppressed   bool
	closedBeforeOpen bool

	openSent  bool
	closeSent bool

	condition       *ErrorCondition
	remoteCondition *ErrorCondition

	handlers handlerRegistry
}

// entity is implemented by Connection, Session and the link types. The
// schedule methods queue the typed handler invocation on the connection's
// execution context.
type entity interface {
	base() *endpoint
	scheduleOpen(cause error)
	scheduleClose(cause error)
	scheduleDisconnect()
}

func (ep *endpoint) state() EndpointState {
	switch {
	case ep.disconnected:
		return StateDisconnected
	case ep.localClose && ep.remoteClose:
		return StateClosed
	case ep.remoteClose:
		return StateRemoteClosed
	case ep.localClose:
		return StateLocalClosePending
	case ep.localOpen && ep.remoteOpen:
		return StateActive
	case ep.localOpen:
		return StateLocalOpenPending
	case ep.remoteOpen:
		return StateRemoteOpenPending
	default:
		return StateUninitialized
	}
}

func (ep *endpoint) finished() bool {
	return ep.localClose && ep.remoteClose
}

// owesOpen reports whether the open frame is still to be sent. An entity the
// peer closed without ever opening it is never put on the wire.
func (ep *endpoint) owesOpen() bool {
	return ep.localOpen && !ep.openSent && (ep.remoteOpen || !ep.remoteClose)
}

// retired reports whether the entity can be dropped from its parent.
func (ep *endpoint) retired() bool {
	return ep.finished() && (ep.closeSent || !ep.openSent)
}

func (ep *endpoint) openLocal() bool {
	if ep.disconnected || ep.localOpen || ep.localClose {
		return false
	}
	ep.localOpen = true
	return true
}

func (ep *endpoint) openRemote() bool {
	if ep.disconnected || ep.remoteOpen || ep.remoteClose {
		return false
	}
	ep.remoteOpen = true
	return true
}

func (ep *endpoint) closeLocal() bool {
	if ep.disconnected || ep.localClose {
		return false
	}
	if !ep.localOpen {
		if !ep.remoteOpen {
			return false
		}
		ep.localOpen = true
		ep.openSuppressed = true
	} else if !ep.remoteOpen && !ep.remoteClose {
		ep.openSuppressed = true
		ep.closedBeforeOpen = true
	}
	ep.localClose = true
	return true
}

func (ep *endpoint) closeRemote(condition *ErrorCondition) bool {
	if ep.disconnected || ep.remoteClose {
		return false
	}
	ep.remoteClose = true
	ep.remoteCondition = condition
	return true
}

// closeCause is the failure reported by the close completion, nil on a clean close.
func (ep *endpoint) closeCause() error {
	if ep.remoteCondition != nil {
		return conditionError(ep.remoteCondition)
	}
	if ep.closedBeforeOpen {
		return conditionError(NewCondition(ConditionClosedBeforeOpen, "closed before the remote open completed"))
	}
	return nil
}

// completeOpen fires the open completion once both sides are open.
func completeOpen(target entity) {
	ep := target.base()
	if !ep.localOpen || !ep.remoteOpen || ep.remoteClose || ep.openSuppressed || ep.disconnected {
		return
	}
	if ep.handlers.claim(eventOpen) {
		target.scheduleOpen(nil)
	}
}

// completeLocalOpen runs after a successful local open. An entity created
// under a parent the peer had already closed fails at once.
func completeLocalOpen(target entity) {
	if target.base().remoteClose {
		completeRemoteClose(target)
		return
	}
	completeOpen(target)
}

// bornRemoteClosed marks an entity created after the peer closed its parent.
func bornRemoteClosed(ep *endpoint, condition *ErrorCondition) {
	if condition == nil {
		condition = NewCondition(ConditionIllegalState, "parent closed by the peer")
	}
	ep.remoteClose = true
	ep.remoteCondition = condition.clone()
}

// completeRemoteClose fires the completions owed after the peer closed the
// entity: a failed open when the open never completed, then the close.
func completeRemoteClose(target entity) {
	ep := target.base()
	if ep.localOpen && !ep.openSuppressed && ep.handlers.claim(eventOpen) {
		cause := ep.closeCause()
		if cause == nil {
			cause = conditionError(NewCondition(ConditionClosedBeforeOpen, "peer closed before the open completed"))
		}
		target.scheduleOpen(cause)
	}
	if ep.handlers.claim(eventClose) {
		target.scheduleClose(ep.closeCause())
	}
}

// disconnectEntity forces target into the disconnected state, failing pending
// completions and firing its disconnect handler. It reports false when the
// entity was already disconnected.
func disconnectEntity(target entity, cause error) bool {
	ep := target.base()
	if ep.disconnected {
		return false
	}
	ep.disconnected = true
	failure := NewError(DisconnectedError, "connection disconnected")
	if cause != nil {
		failure = NewError(DisconnectedError, cause)
	}
	if ep.localOpen && !ep.openSuppressed && ep.handlers.claim(eventOpen) {
		target.scheduleOpen(failure)
	}
	if ep.localClose && ep.handlers.claim(eventClose) {
		target.scheduleClose(failure)
	}
	ep.handlers.claim(eventOpen)
	ep.handlers.claim(eventClose)
	if ep.handlers.claim(eventDisconnect) {
		target.scheduleDisconnect()
	}
	return true
}
