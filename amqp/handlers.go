package amqp

// eventKind names one handler slot of an entity.
type eventKind uint8

const (
	eventOpen eventKind = iota
	eventClose
	eventDetach
	eventDisconnect
	eventSessionOpen
	eventSenderOpen
	eventReceiverOpen
	eventKindCount
)

func (kind eventKind) String() string {
	switch kind {
	case eventOpen:
		return "open"
	case eventClose:
		return "close"
	case eventDetach:
		return "detach"
	case eventDisconnect:
		return "disconnect"
	case eventSessionOpen:
		return "session-open"
	case eventSenderOpen:
		return "sender-open"
	case eventReceiverOpen:
		return "receiver-open"
	default:
		return "unknown"
	}
}

// oneShot reports whether the kind completes at most once per entity.
// Remote-open notifications on a connection recur for every surfaced entity.
func (kind eventKind) oneShot() bool {
	switch kind {
	case eventSessionOpen, eventSenderOpen, eventReceiverOpen:
		return false
	default:
		return true
	}
}

// handlerRegistry holds one callback per event kind. Setting a slot replaces
// whatever was registered before. Callbacks are looked up when they fire, not
// when the triggering event was observed, so a handler registered from inside
// an earlier callback still sees the completion.
type handlerRegistry struct {
	slots   [eventKindCount]any
	claimed [eventKindCount]bool
}

func (registry *handlerRegistry) set(kind eventKind, handler any) {
	registry.slots[kind] = handler
}

func (registry *handlerRegistry) lookup(kind eventKind) any {
	return registry.slots[kind]
}

// claim marks a one-shot completion as delivered and reports whether this was
// the first claim. Detach shares the close claim: a link ends once.
func (registry *handlerRegistry) claim(kind eventKind) bool {
	if kind == eventDetach {
		kind = eventClose
	}
	if !kind.oneShot() {
		return true
	}
	if registry.claimed[kind] {
		return false
	}
	registry.claimed[kind] = true
	return true
}

func (registry *handlerRegistry) isClaimed(kind eventKind) bool {
	if kind == eventDetach {
		kind = eventClose
	}
	return registry.claimed[kind]
}

// schedule queues the invocation of the handler in slot kind with arg. When the
// slot is empty at invocation time, fallback runs instead (if any).
func schedule[T any](conn *Connection, registry *handlerRegistry, kind eventKind, arg T, fallback func(T)) {
	conn.loop.post(func() {
		conn.lock.Lock()
		handler, _ := registry.lookup(kind).(func(T))
		conn.lock.Unlock()
		switch {
		case handler != nil:
			handler(arg)
		case fallback != nil:
			fallback(arg)
		}
	})
}
