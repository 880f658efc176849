package amqp

// Link is the behavior shared by senders and receivers.
type Link interface {
	Name() string
	Role() Role
	Address() string
	RemoteAddress() string
	IsAnonymous() bool
	Session() *Session
	State() EndpointState
	Condition() *ErrorCondition
	RemoteCondition() *ErrorCondition
	IsDisconnected() bool
}

// linkEntity is what a session stores for each of its links.
type linkEntity interface {
	entity
	Link
	core() *link
}

// link holds the attach/detach state common to Sender and Receiver.
type link struct {
	endpoint

	session       *Session
	name          string
	role          Role
	address       *string
	remoteAddress *string
	handle        uint32
	remoteHandle  *uint32

	// detachOnly makes the local close a non-closing detach;
	// detachedRemotely records the same for the peer's detach.
	detachOnly       bool
	detachedRemotely bool
}

func (link *link) core() *link { return link }

func (link *link) base() *endpoint { return &link.endpoint }

func (link *link) conn() *Connection { return link.session.conn }

// Name returns the link name used to match attaches with the peer.
func (link *link) Name() string { return link.name }

// Role returns RoleSender for a Sender and RoleReceiver for a Receiver.
func (link *link) Role() Role { return link.role }

// Address returns the node address, or "" for an anonymous relay sender.
func (link *link) Address() string {
	if link.address == nil {
		return ""
	}
	return *link.address
}

// RemoteAddress returns the address the peer attached with, "" if none.
func (link *link) RemoteAddress() string {
	link.conn().lock.Lock()
	defer link.conn().lock.Unlock()
	if link.remoteAddress == nil {
		return ""
	}
	return *link.remoteAddress
}

// IsAnonymous reports whether the link has no address.
func (link *link) IsAnonymous() bool { return link.address == nil }

// Session returns the owning session.
func (link *link) Session() *Session { return link.session }

// State returns the link's lifecycle state.
func (link *link) State() EndpointState {
	link.conn().lock.Lock()
	defer link.conn().lock.Unlock()
	return link.state()
}

// Condition returns the local detach condition.
func (link *link) Condition() *ErrorCondition {
	link.conn().lock.Lock()
	defer link.conn().lock.Unlock()
	return link.condition
}

// RemoteCondition returns the condition the peer detached with.
func (link *link) RemoteCondition() *ErrorCondition {
	link.conn().lock.Lock()
	defer link.conn().lock.Unlock()
	return link.remoteCondition
}

// IsDisconnected reports whether the owning connection disconnected.
func (link *link) IsDisconnected() bool {
	link.conn().lock.Lock()
	defer link.conn().lock.Unlock()
	return link.disconnected
}

func (link *link) setCondition(condition *ErrorCondition) {
	link.conn().lock.Lock()
	defer link.conn().lock.Unlock()
	link.condition = condition.clone()
}

func (link *link) open(target linkEntity) {
	conn := link.conn()
	conn.lock.Lock()
	defer conn.lock.Unlock()
	if !link.openLocal() {
		conn.logger.Debug().Err(NewError(IllegalStateError, "link open ignored")).Str("link", link.name).Send()
		return
	}
	completeLocalOpen(target)
	conn.pump()
}

func (link *link) close(detachOnly bool) {
	conn := link.conn()
	conn.lock.Lock()
	defer conn.lock.Unlock()
	if !link.closeLocal() {
		conn.logger.Debug().Err(NewError(IllegalStateError, "link close ignored")).Str("link", link.name).Send()
		return
	}
	link.detachOnly = detachOnly
	conn.pump()
}

func (link *link) pump() {
	conn := link.conn()
	if link.owesOpen() {
		link.openSent = true
		conn.emit(&AttachFrame{
			Channel: link.session.channel,
			Handle:  link.handle,
			Name:    link.name,
			Role:    link.role,
			Address: link.address,
		})
	}
	if link.openSent && link.localClose && !link.closeSent {
		link.closeSent = true
		conn.emit(&DetachFrame{
			Channel:   link.session.channel,
			Handle:    link.handle,
			Closed:    !link.detachOnly,
			Condition: link.condition.clone(),
		})
	}
}

// scheduleLinkClose delivers a link's end to the detach handler when the peer
// only detached and a detach handler is registered, and to the close handler
// otherwise.
func scheduleLinkClose[T any](link *link, result AsyncResult[T]) {
	conn := link.conn()
	if !link.detachedRemotely {
		schedule(conn, &link.handlers, eventClose, result, nil)
		return
	}
	schedule(conn, &link.handlers, eventDetach, result, func(result AsyncResult[T]) {
		conn.lock.Lock()
		handler, _ := link.handlers.lookup(eventClose).(func(AsyncResult[T]))
		conn.lock.Unlock()
		if handler != nil {
			handler(result)
		}
	})
}
