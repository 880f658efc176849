package amqp

// Session groups links on one channel of a connection.
type Session struct {
	endpoint

	conn           *Connection
	channel        uint16
	remoteChannel  *uint16
	links          []linkEntity
	byRemoteHandle map[uint32]linkEntity
	nextHandle     uint32
}

func (session *Session) base() *endpoint { return &session.endpoint }

func (session *Session) scheduleOpen(cause error) {
	result := succeeded(session)
	if cause != nil {
		result = failed[*Session](cause)
	}
	schedule(session.conn, &session.handlers, eventOpen, result, nil)
}

func (session *Session) scheduleClose(cause error) {
	result := succeeded(session)
	if cause != nil {
		result = failed[*Session](cause)
	}
	schedule(session.conn, &session.handlers, eventClose, result, nil)
}

func (session *Session) scheduleDisconnect() {
	schedule(session.conn, &session.handlers, eventDisconnect, session, nil)
}

// Connection returns the owning connection.
func (session *Session) Connection() *Connection { return session.conn }

// Channel returns the local channel number.
func (session *Session) Channel() uint16 { return session.channel }

// Open requests the session begin. The begin frame is sent once the
// connection's open has been sent.
func (session *Session) Open() *Session {
	conn := session.conn
	conn.lock.Lock()
	defer conn.lock.Unlock()
	if !session.openLocal() {
		conn.logger.Debug().Err(NewError(IllegalStateError, "session open ignored")).Uint16("channel", session.channel).Send()
		return session
	}
	completeLocalOpen(session)
	conn.pump()
	return session
}

// Close requests the session end. On a session the peer began that was never
// opened locally, Close rejects it.
func (session *Session) Close() *Session {
	conn := session.conn
	conn.lock.Lock()
	defer conn.lock.Unlock()
	if !session.closeLocal() {
		conn.logger.Debug().Err(NewError(IllegalStateError, "session close ignored")).Uint16("channel", session.channel).Send()
		return session
	}
	conn.pump()
	return session
}

// SetCondition sets the condition sent with the end frame.
func (session *Session) SetCondition(condition *ErrorCondition) *Session {
	session.conn.lock.Lock()
	defer session.conn.lock.Unlock()
	session.condition = condition.clone()
	return session
}

// Condition returns the local end condition.
func (session *Session) Condition() *ErrorCondition {
	session.conn.lock.Lock()
	defer session.conn.lock.Unlock()
	return session.condition
}

// RemoteCondition returns the condition the peer ended the session with.
func (session *Session) RemoteCondition() *ErrorCondition {
	session.conn.lock.Lock()
	defer session.conn.lock.Unlock()
	return session.remoteCondition
}

// State returns the session's lifecycle state.
func (session *Session) State() EndpointState {
	session.conn.lock.Lock()
	defer session.conn.lock.Unlock()
	return session.state()
}

// IsDisconnected reports whether the owning connection disconnected.
func (session *Session) IsDisconnected() bool {
	session.conn.lock.Lock()
	defer session.conn.lock.Unlock()
	return session.disconnected
}

// CreateSender returns an unopened sender bound to address. An empty address
// requests the anonymous relay, which only succeeds when the peer supports it.
func (session *Session) CreateSender(address string) *Sender {
	session.conn.lock.Lock()
	defer session.conn.lock.Unlock()
	return session.newSender(optionalAddress(address))
}

// CreateReceiver returns an unopened receiver reading from address.
func (session *Session) CreateReceiver(address string) *Receiver {
	session.conn.lock.Lock()
	defer session.conn.lock.Unlock()
	return session.newReceiver(optionalAddress(address))
}

// Links returns the session's links in creation order.
func (session *Session) Links() []Link {
	session.conn.lock.Lock()
	defer session.conn.lock.Unlock()
	links := make([]Link, 0, len(session.links))
	for _, link := range session.links {
		links = append(links, link)
	}
	return links
}

// SetOpenHandler sets the handler fired once the begin handshake completes.
func (session *Session) SetOpenHandler(handler func(AsyncResult[*Session])) *Session {
	session.conn.setHandler(&session.handlers, eventOpen, handler)
	return session
}

// SetCloseHandler sets the handler fired once the peer ends the session.
func (session *Session) SetCloseHandler(handler func(AsyncResult[*Session])) *Session {
	session.conn.setHandler(&session.handlers, eventClose, handler)
	return session
}

// SetDisconnectHandler sets the handler fired once when the connection disconnects.
func (session *Session) SetDisconnectHandler(handler func(*Session)) *Session {
	session.conn.setHandler(&session.handlers, eventDisconnect, handler)
	return session
}

func (session *Session) newSender(address *string) *Sender {
	sender := &Sender{}
	session.initLink(&sender.link, RoleSender, address)
	session.links = append(session.links, sender)
	return sender
}

func (session *Session) newReceiver(address *string) *Receiver {
	receiver := &Receiver{}
	session.initLink(&receiver.link, RoleReceiver, address)
	session.links = append(session.links, receiver)
	return receiver
}

func (session *Session) initLink(link *link, role Role, address *string) {
	link.session = session
	link.role = role
	link.address = address
	link.handle = session.nextHandle
	link.name = newLinkName(session.conn.container, role)
	session.nextHandle++
	if session.disconnected {
		bornDisconnected(&link.endpoint)
	} else if session.remoteClose {
		bornRemoteClosed(&link.endpoint, session.remoteCondition)
	}
}

// pendingLink finds a locally created link awaiting the peer's attach.
func (session *Session) pendingLink(name string) linkEntity {
	for _, link := range session.links {
		core := link.core()
		if core.name == name && core.remoteHandle == nil && !core.remoteClose {
			return link
		}
	}
	return nil
}

// closeFromRemote applies a remote end, or the close of the connection, to
// the session and its links. Links cannot outlive their session.
func (session *Session) closeFromRemote(condition *ErrorCondition) {
	if !session.closeRemote(condition) {
		return
	}
	for _, link := range session.links {
		if link.core().closeRemote(condition) {
			completeRemoteClose(link)
		}
	}
	clear(session.byRemoteHandle)
	completeRemoteClose(session)
}

func (session *Session) pump() {
	conn := session.conn
	if session.owesOpen() {
		session.openSent = true
		conn.emit(&BeginFrame{Channel: session.channel, RemoteChannel: session.remoteChannel})
	}
	if !session.openSent || session.closeSent {
		return
	}
	survivors := session.links[:0]
	for _, link := range session.links {
		core := link.core()
		core.pump()
		if core.retired() {
			continue
		}
		survivors = append(survivors, link)
	}
	clear(session.links[len(survivors):])
	session.links = survivors
	if session.localClose && !session.closeSent {
		session.closeSent = true
		conn.emit(&EndFrame{Channel: session.channel, Condition: session.condition.clone()})
	}
}
