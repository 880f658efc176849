package amqp

import (
	"maps"
	"sync"

	"github.com/rs/zerolog"
)

const maxChannels = 1 << 16

// Connection is the top-level AMQP entity. It owns sessions, negotiates the
// open handshake with the peer and surfaces sessions and links the peer
// initiates. All state of a connection and its descendants is guarded by one
// lock; handlers run on the connection's execution context without it held.
type Connection struct {
	endpoint

	lock   sync.Mutex
	engine Engine
	loop   *executor

	// logger is baseLogger tagged with the current container id.
	baseLogger zerolog.Logger
	logger     zerolog.Logger

	hostname            string
	container           string
	properties          map[Symbol]any
	offeredCapabilities []Symbol
	desiredCapabilities []Symbol

	remoteContainer           string
	remoteHostname            string
	remoteProperties          map[Symbol]any
	remoteOfferedCapabilities []Symbol
	remoteDesiredCapabilities []Symbol
	anonymousRelaySupported   bool

	sessions        []*Session
	byRemoteChannel map[uint16]*Session
	nextChannel     uint16
	defaultSession  *Session

	outbound        []Frame
	flushScheduled  bool
	disconnectCause error
}

// NewConnection returns an unopened connection driving engine and starts its
// execution context. Nothing is sent to the peer until Open is called. The
// execution context exits after Disconnect, or after the engine reports
// transport loss.
func NewConnection(engine Engine) *Connection {
	conn := &Connection{
		engine:          engine,
		loop:            newExecutor(),
		baseLogger:      zerolog.Nop(),
		logger:          zerolog.Nop(),
		container:       newContainerID(),
		properties:      defaultProperties(),
		byRemoteChannel: make(map[uint16]*Session),
	}
	go conn.loop.run(conn.process)
	return conn
}

func (conn *Connection) base() *endpoint { return &conn.endpoint }

func (conn *Connection) scheduleOpen(cause error) {
	result := succeeded(conn)
	if cause != nil {
		result = failed[*Connection](cause)
	}
	schedule(conn, &conn.handlers, eventOpen, result, nil)
}

func (conn *Connection) scheduleClose(cause error) {
	result := succeeded(conn)
	if cause != nil {
		result = failed[*Connection](cause)
	}
	schedule(conn, &conn.handlers, eventClose, result, nil)
}

func (conn *Connection) scheduleDisconnect() {
	schedule(conn, &conn.handlers, eventDisconnect, conn, nil)
}

// SetLogger sets the logger used for frame and lifecycle tracing.
func (conn *Connection) SetLogger(logger zerolog.Logger) *Connection {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	conn.baseLogger = logger
	conn.tagLogger()
	return conn
}

func (conn *Connection) tagLogger() {
	conn.logger = conn.baseLogger.With().Str("container", conn.container).Logger()
}

// SetHostname sets the hostname sent in the open frame.
func (conn *Connection) SetHostname(hostname string) *Connection {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	conn.hostname = hostname
	return conn
}

// Hostname returns the hostname sent in the open frame.
func (conn *Connection) Hostname() string {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.hostname
}

// SetContainer sets the container id sent in the open frame.
func (conn *Connection) SetContainer(container string) *Connection {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	conn.container = container
	conn.tagLogger()
	return conn
}

// Container returns the local container id.
func (conn *Connection) Container() string {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.container
}

// SetCondition sets the condition sent when the connection is closed.
func (conn *Connection) SetCondition(condition *ErrorCondition) *Connection {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	conn.condition = condition.clone()
	return conn
}

// Condition returns the local close condition.
func (conn *Connection) Condition() *ErrorCondition {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.condition
}

// RemoteCondition returns the condition the peer sent with its close, if any.
func (conn *Connection) RemoteCondition() *ErrorCondition {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.remoteCondition
}

// RemoteContainer returns the peer's container id once its open was observed.
func (conn *Connection) RemoteContainer() string {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.remoteContainer
}

// RemoteHostname returns the hostname the peer sent in its open.
func (conn *Connection) RemoteHostname() string {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.remoteHostname
}

// SetProperties sets the properties map sent in the open frame. A non-nil map
// is copied and receives the default "product" and "version" entries unless
// the caller supplied them. A nil map means no properties are sent at all.
func (conn *Connection) SetProperties(properties map[Symbol]any) *Connection {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	if properties == nil {
		conn.properties = nil
		return conn
	}
	copied := maps.Clone(properties)
	for key, value := range defaultProperties() {
		if _, exists := copied[key]; !exists {
			copied[key] = value
		}
	}
	conn.properties = copied
	return conn
}

// Properties returns a copy of the properties that are sent at open, or nil
// when none are sent.
func (conn *Connection) Properties() map[Symbol]any {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return maps.Clone(conn.properties)
}

// RemoteProperties returns the properties map the peer sent in its open, or
// nil if it sent none. The map must not be modified.
func (conn *Connection) RemoteProperties() map[Symbol]any {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.remoteProperties
}

// SetOfferedCapabilities sets the capabilities offered in the open frame.
func (conn *Connection) SetOfferedCapabilities(capabilities ...Symbol) *Connection {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	conn.offeredCapabilities = cloneSymbols(capabilities)
	return conn
}

// SetDesiredCapabilities sets the capabilities desired in the open frame.
func (conn *Connection) SetDesiredCapabilities(capabilities ...Symbol) *Connection {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	conn.desiredCapabilities = cloneSymbols(capabilities)
	return conn
}

// RemoteOfferedCapabilities returns the capabilities the peer offered.
func (conn *Connection) RemoteOfferedCapabilities() []Symbol {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return cloneSymbols(conn.remoteOfferedCapabilities)
}

// RemoteDesiredCapabilities returns the capabilities the peer desired.
func (conn *Connection) RemoteDesiredCapabilities() []Symbol {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return cloneSymbols(conn.remoteDesiredCapabilities)
}

// IsAnonymousRelaySupported reports whether the peer advertised the anonymous
// relay. It is false until the peer's open has been observed.
func (conn *Connection) IsAnonymousRelaySupported() bool {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.anonymousRelaySupported
}

// State returns the connection's lifecycle state.
func (conn *Connection) State() EndpointState {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.state()
}

// IsDisconnected reports whether Disconnect was called or the transport was lost.
func (conn *Connection) IsDisconnected() bool {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.disconnected
}

// DisconnectCause returns the transport error that disconnected the
// connection, or nil after a local Disconnect.
func (conn *Connection) DisconnectCause() error {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.disconnectCause
}

// Done is closed once the execution context has exited after a disconnect
// and every pending handler has run.
func (conn *Connection) Done() <-chan struct{} {
	return conn.loop.done
}

// Sessions returns the connection's sessions in creation order.
func (conn *Connection) Sessions() []*Session {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return append([]*Session(nil), conn.sessions...)
}

// Open requests the connection be opened. Calling it again is a no-op.
func (conn *Connection) Open() *Connection {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	if !conn.openLocal() {
		conn.logger.Debug().Err(NewError(IllegalStateError, "connection open ignored")).Str("state", conn.state().String()).Send()
		return conn
	}
	completeLocalOpen(conn)
	conn.pump()
	return conn
}

// Close requests the connection be closed, sending the local condition if set.
func (conn *Connection) Close() *Connection {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	if !conn.closeLocal() {
		conn.logger.Debug().Err(NewError(IllegalStateError, "connection close ignored")).Str("state", conn.state().String()).Send()
		return conn
	}
	conn.pump()
	return conn
}

// CreateSession returns a new unopened session.
func (conn *Connection) CreateSession() *Session {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.newSession()
}

// CreateSender creates an unopened sender on the connection's default
// session, which is created and opened on first use. An empty address
// requests the anonymous relay.
func (conn *Connection) CreateSender(address string) *Sender {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.ensureDefaultSession().newSender(optionalAddress(address))
}

// CreateReceiver creates an unopened receiver on the default session.
func (conn *Connection) CreateReceiver(address string) *Receiver {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.ensureDefaultSession().newReceiver(optionalAddress(address))
}

// Disconnect tears the connection down immediately. Pending open and close
// completions of the connection and all its sessions and links fail with a
// DisconnectedError and every disconnect handler fires once. Frames queued
// before the call are still handed to the engine, which is then closed.
func (conn *Connection) Disconnect() {
	conn.disconnect(nil)
}

// Deliver queues a frame read from the peer. It is safe to call from any
// goroutine; frames arriving after a disconnect are dropped.
func (conn *Connection) Deliver(frame Frame) {
	if !conn.loop.enqueue(inboundEvent{frame: frame}) {
		conn.lock.Lock()
		conn.logger.Debug().Stringer("frame", frame.Kind()).Msg("frame dropped after disconnect")
		conn.lock.Unlock()
	}
}

// TransportClosed reports loss of the transport. Frames delivered before it
// are applied first; the connection then disconnects with err as its cause.
func (conn *Connection) TransportClosed(err error) {
	if err == nil {
		err = NewError(ConnectionError, "transport closed")
	}
	conn.loop.enqueue(inboundEvent{lost: true, transportErr: err})
}

// SetOpenHandler sets the handler fired once the open handshake completes.
func (conn *Connection) SetOpenHandler(handler func(AsyncResult[*Connection])) *Connection {
	conn.setHandler(&conn.handlers, eventOpen, handler)
	return conn
}

// SetCloseHandler sets the handler fired once the peer closes the connection.
func (conn *Connection) SetCloseHandler(handler func(AsyncResult[*Connection])) *Connection {
	conn.setHandler(&conn.handlers, eventClose, handler)
	return conn
}

// SetDisconnectHandler sets the handler fired once on disconnect.
func (conn *Connection) SetDisconnectHandler(handler func(*Connection)) *Connection {
	conn.setHandler(&conn.handlers, eventDisconnect, handler)
	return conn
}

// SetSessionOpenHandler sets the handler fired for each session the peer begins.
// Without one, such sessions are rejected.
func (conn *Connection) SetSessionOpenHandler(handler func(*Session)) *Connection {
	conn.setHandler(&conn.handlers, eventSessionOpen, handler)
	return conn
}

// SetSenderOpenHandler sets the handler fired for each sender surfaced by a
// receiving link the peer attached. Without one, such links are rejected.
func (conn *Connection) SetSenderOpenHandler(handler func(*Sender)) *Connection {
	conn.setHandler(&conn.handlers, eventSenderOpen, handler)
	return conn
}

// SetReceiverOpenHandler sets the handler fired for each receiver surfaced by
// a sending link the peer attached. Without one, such links are rejected.
func (conn *Connection) SetReceiverOpenHandler(handler func(*Receiver)) *Connection {
	conn.setHandler(&conn.handlers, eventReceiverOpen, handler)
	return conn
}

func (conn *Connection) setHandler(registry *handlerRegistry, kind eventKind, handler any) {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	registry.set(kind, handler)
}

func (conn *Connection) newSession() *Session {
	session := &Session{
		conn:           conn,
		channel:        conn.allocateChannel(),
		byRemoteHandle: make(map[uint32]linkEntity),
	}
	if conn.disconnected {
		bornDisconnected(&session.endpoint)
	} else if conn.remoteClose {
		bornRemoteClosed(&session.endpoint, conn.remoteCondition)
	}
	conn.sessions = append(conn.sessions, session)
	return session
}

// allocateChannel returns the next local channel not held by a live session.
func (conn *Connection) allocateChannel() uint16 {
	for range maxChannels {
		channel := conn.nextChannel
		conn.nextChannel++
		if conn.sessionByChannel(channel) == nil {
			return channel
		}
	}
	// Every channel is live.
	channel := conn.nextChannel
	conn.nextChannel++
	return channel
}

func (conn *Connection) ensureDefaultSession() *Session {
	if conn.defaultSession == nil || conn.defaultSession.localClose || conn.defaultSession.remoteClose {
		conn.defaultSession = conn.newSession()
		if conn.defaultSession.openLocal() {
			completeLocalOpen(conn.defaultSession)
			conn.pump()
		}
	}
	return conn.defaultSession
}

func (conn *Connection) sessionByChannel(channel uint16) *Session {
	for _, session := range conn.sessions {
		if session.channel == channel {
			return session
		}
	}
	return nil
}

// emit appends frame to the outbound queue and schedules a flush.
func (conn *Connection) emit(frame Frame) {
	conn.logger.Debug().Stringer("frame", frame.Kind()).Msg("frame queued")
	conn.outbound = append(conn.outbound, frame)
	if !conn.flushScheduled {
		conn.flushScheduled = true
		conn.loop.post(conn.flush)
	}
}

// pump emits the frames owed by local state changes anywhere in the tree,
// parents before children on open and children before parents on close.
func (conn *Connection) pump() {
	if conn.disconnected {
		return
	}
	if conn.localOpen && !conn.openSent {
		conn.openSent = true
		conn.emit(&OpenFrame{
			ContainerID:         conn.container,
			Hostname:            conn.hostname,
			Properties:          maps.Clone(conn.properties),
			OfferedCapabilities: cloneSymbols(conn.offeredCapabilities),
			DesiredCapabilities: cloneSymbols(conn.desiredCapabilities),
		})
	}
	if !conn.openSent || conn.closeSent {
		return
	}
	survivors := conn.sessions[:0]
	for _, session := range conn.sessions {
		session.pump()
		if session.retired() {
			conn.forgetSession(session)
			continue
		}
		survivors = append(survivors, session)
	}
	clear(conn.sessions[len(survivors):])
	conn.sessions = survivors
	if conn.localClose && !conn.closeSent {
		conn.closeSent = true
		conn.emit(&CloseFrame{Condition: conn.condition.clone()})
	}
}

func (conn *Connection) forgetSession(session *Session) {
	if session.remoteChannel != nil {
		delete(conn.byRemoteChannel, *session.remoteChannel)
	}
	if conn.defaultSession == session {
		conn.defaultSession = nil
	}
}

// flush hands queued frames to the engine. It runs on the execution context.
func (conn *Connection) flush() {
	conn.lock.Lock()
	frames := conn.outbound
	conn.outbound = nil
	conn.flushScheduled = false
	conn.lock.Unlock()

	for _, frame := range frames {
		if err := conn.engine.Send(frame); err != nil {
			conn.lock.Lock()
			conn.logger.Warn().Err(err).Stringer("frame", frame.Kind()).Msg("engine send failed")
			conn.lock.Unlock()
			conn.disconnect(NewError(ConnectionError, err))
			return
		}
	}
}

func (conn *Connection) disconnect(cause error) {
	conn.lock.Lock()
	if conn.disconnected {
		conn.lock.Unlock()
		return
	}
	conn.disconnectCause = cause
	if cause != nil {
		conn.outbound = nil
		conn.logger.Warn().Err(cause).Msg("connection lost")
	} else {
		conn.logger.Debug().Msg("connection disconnected")
	}
	for _, session := range conn.sessions {
		for _, link := range session.links {
			disconnectEntity(link, cause)
		}
		disconnectEntity(session, cause)
	}
	disconnectEntity(conn, cause)
	conn.lock.Unlock()

	conn.loop.post(func() {
		if err := conn.engine.Close(); err != nil {
			conn.lock.Lock()
			conn.logger.Debug().Err(err).Msg("engine close failed")
			conn.lock.Unlock()
		}
	})
	conn.loop.shutdown()
}

func (conn *Connection) process(event inboundEvent) {
	if event.lost {
		conn.disconnect(NewError(ConnectionError, event.transportErr))
		return
	}

	conn.lock.Lock()
	defer conn.lock.Unlock()
	if conn.disconnected {
		return
	}
	conn.logger.Debug().Stringer("frame", event.frame.Kind()).Msg("frame received")

	switch frame := event.frame.(type) {
	case *OpenFrame:
		conn.onRemoteOpen(frame)
	case *BeginFrame:
		conn.onRemoteBegin(frame)
	case *AttachFrame:
		conn.onRemoteAttach(frame)
	case *DetachFrame:
		conn.onRemoteDetach(frame)
	case *EndFrame:
		conn.onRemoteEnd(frame)
	case *CloseFrame:
		conn.onRemoteClose(frame)
	default:
		conn.logger.Warn().Msg("unsupported frame ignored")
	}
	conn.pump()
}

func (conn *Connection) onRemoteOpen(frame *OpenFrame) {
	if !conn.openRemote() {
		conn.logger.Debug().Msg("duplicate remote open ignored")
		return
	}
	conn.remoteContainer = frame.ContainerID
	conn.remoteHostname = frame.Hostname
	conn.remoteProperties = frame.Properties
	conn.remoteOfferedCapabilities = cloneSymbols(frame.OfferedCapabilities)
	conn.remoteDesiredCapabilities = cloneSymbols(frame.DesiredCapabilities)
	_, advertised := frame.Properties[SymbolAnonymousRelay]
	conn.anonymousRelaySupported = advertised || containsSymbol(frame.OfferedCapabilities, SymbolAnonymousRelay)
	completeOpen(conn)
}

func (conn *Connection) onRemoteClose(frame *CloseFrame) {
	if !conn.closeRemote(frame.Condition) {
		conn.logger.Debug().Msg("duplicate remote close ignored")
		return
	}
	for _, session := range conn.sessions {
		session.closeFromRemote(frame.Condition)
	}
	completeRemoteClose(conn)
}

func (conn *Connection) onRemoteBegin(frame *BeginFrame) {
	if frame.RemoteChannel != nil {
		session := conn.sessionByChannel(*frame.RemoteChannel)
		if session == nil || session.remoteChannel != nil {
			conn.logger.Warn().Uint16("channel", *frame.RemoteChannel).Msg("begin answers no pending session")
			return
		}
		channel := frame.Channel
		session.remoteChannel = &channel
		conn.byRemoteChannel[channel] = session
		if session.openRemote() {
			completeOpen(session)
		}
		return
	}

	if _, exists := conn.byRemoteChannel[frame.Channel]; exists {
		conn.logger.Warn().Uint16("channel", frame.Channel).Msg("begin on a channel already in use")
		return
	}
	session := conn.newSession()
	channel := frame.Channel
	session.remoteChannel = &channel
	conn.byRemoteChannel[channel] = session
	session.openRemote()
	schedule(conn, &conn.handlers, eventSessionOpen, session, func(session *Session) {
		session.SetCondition(NewCondition(ConditionNotImplemented, "remote sessions are not accepted")).Close()
	})
}

func (conn *Connection) onRemoteAttach(frame *AttachFrame) {
	session, ok := conn.byRemoteChannel[frame.Channel]
	if !ok {
		conn.logger.Warn().Uint16("channel", frame.Channel).Msg("attach on unknown channel")
		return
	}
	if existing := session.pendingLink(frame.Name); existing != nil {
		core := existing.core()
		handle := frame.Handle
		core.remoteHandle = &handle
		core.remoteAddress = frame.Address
		session.byRemoteHandle[handle] = existing
		if core.openRemote() {
			completeOpen(existing)
		}
		return
	}

	// The peer's sending link is a receiver here and vice versa.
	var created linkEntity
	if frame.Role == RoleSender {
		receiver := session.newReceiver(frame.Address)
		receiver.name = frame.Name
		created = receiver
		schedule(conn, &conn.handlers, eventReceiverOpen, receiver, func(receiver *Receiver) {
			receiver.SetCondition(NewCondition(ConditionNotImplemented, "remote links are not accepted")).Close()
		})
	} else {
		sender := session.newSender(frame.Address)
		sender.name = frame.Name
		created = sender
		schedule(conn, &conn.handlers, eventSenderOpen, sender, func(sender *Sender) {
			sender.SetCondition(NewCondition(ConditionNotImplemented, "remote links are not accepted")).Close()
		})
	}
	core := created.core()
	handle := frame.Handle
	core.remoteHandle = &handle
	core.remoteAddress = frame.Address
	session.byRemoteHandle[handle] = created
	core.openRemote()
}

func (conn *Connection) onRemoteDetach(frame *DetachFrame) {
	session, ok := conn.byRemoteChannel[frame.Channel]
	if !ok {
		conn.logger.Warn().Uint16("channel", frame.Channel).Msg("detach on unknown channel")
		return
	}
	link, ok := session.byRemoteHandle[frame.Handle]
	if !ok {
		conn.logger.Warn().Uint16("channel", frame.Channel).Uint32("handle", frame.Handle).Msg("detach of unknown handle")
		return
	}
	delete(session.byRemoteHandle, frame.Handle)
	core := link.core()
	if !frame.Closed {
		core.detachedRemotely = true
	}
	if core.closeRemote(frame.Condition) {
		completeRemoteClose(link)
	}
}

func (conn *Connection) onRemoteEnd(frame *EndFrame) {
	session, ok := conn.byRemoteChannel[frame.Channel]
	if !ok {
		conn.logger.Warn().Uint16("channel", frame.Channel).Msg("end on unknown channel")
		return
	}
	session.closeFromRemote(frame.Condition)
}

func bornDisconnected(ep *endpoint) {
	ep.disconnected = true
	ep.handlers.claim(eventOpen)
	ep.handlers.claim(eventClose)
	ep.handlers.claim(eventDisconnect)
}

func optionalAddress(address string) *string {
	if address == "" {
		return nil
	}
	return &address
}
