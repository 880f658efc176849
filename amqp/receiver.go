package amqp

// Receiver is a link that consumes messages from its source address.
type Receiver struct {
	link
}

func (receiver *Receiver) scheduleOpen(cause error) {
	result := succeeded(receiver)
	if cause != nil {
		result = failed[*Receiver](cause)
	}
	schedule(receiver.conn(), &receiver.handlers, eventOpen, result, nil)
}

func (receiver *Receiver) scheduleClose(cause error) {
	result := succeeded(receiver)
	if cause != nil {
		result = failed[*Receiver](cause)
	}
	scheduleLinkClose(&receiver.link, result)
}

func (receiver *Receiver) scheduleDisconnect() {
	schedule(receiver.conn(), &receiver.handlers, eventDisconnect, receiver, nil)
}

// Open requests the link attach. The attach frame is sent once the session's
// begin has been sent.
func (receiver *Receiver) Open() *Receiver {
	receiver.open(receiver)
	return receiver
}

// Close requests the link be closed.
func (receiver *Receiver) Close() *Receiver {
	receiver.close(false)
	return receiver
}

// Detach detaches the link without closing it.
func (receiver *Receiver) Detach() *Receiver {
	receiver.close(true)
	return receiver
}

// SetCondition sets the condition sent with the detach frame.
func (receiver *Receiver) SetCondition(condition *ErrorCondition) *Receiver {
	receiver.setCondition(condition)
	return receiver
}

// SetOpenHandler sets the handler fired once the attach handshake completes.
func (receiver *Receiver) SetOpenHandler(handler func(AsyncResult[*Receiver])) *Receiver {
	receiver.conn().setHandler(&receiver.handlers, eventOpen, handler)
	return receiver
}

// SetCloseHandler sets the handler fired once the peer closes the link.
func (receiver *Receiver) SetCloseHandler(handler func(AsyncResult[*Receiver])) *Receiver {
	receiver.conn().setHandler(&receiver.handlers, eventClose, handler)
	return receiver
}

// SetDetachHandler sets the handler fired when the peer detaches the link
// without closing it. Without one the close handler fires instead.
func (receiver *Receiver) SetDetachHandler(handler func(AsyncResult[*Receiver])) *Receiver {
	receiver.conn().setHandler(&receiver.handlers, eventDetach, handler)
	return receiver
}

// SetDisconnectHandler sets the handler fired once when the connection disconnects.
func (receiver *Receiver) SetDisconnectHandler(handler func(*Receiver)) *Receiver {
	receiver.conn().setHandler(&receiver.handlers, eventDisconnect, handler)
	return receiver
}
