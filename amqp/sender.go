package amqp

// Sender is a link that sends messages to its target address. A Sender without an address
// is attached to the peer's anonymous relay.
type Sender struct {
	link
}

func (sender *Sender) scheduleOpen(cause error) {
	result := succeeded(sender)
	if cause != nil {
		result = failed[*Sender](cause)
	}
	schedule(sender.conn(), &sender.handlers, eventOpen, result, nil)
}

func (sender *Sender) scheduleClose(cause error) {
	result := succeeded(sender)
	if cause != nil {
		result = failed[*Sender](cause)
	}
	scheduleLinkClose(&sender.link, result)
}

func (sender *Sender) scheduleDisconnect() {
	schedule(sender.conn(), &sender.handlers, eventDisconnect, sender, nil)
}

// Open requests the link attach. The attach frame is sent once the session's
// begin has been sent.
func (sender *Sender) Open() *Sender {
	sender.open(sender)
	return sender
}

// Close requests the link be closed.
func (sender *Sender) Close() *Sender {
	sender.close(false)
	return sender
}

// Detach detaches the link without closing it.
func (sender *Sender) Detach() *Sender {
	sender.close(true)
	return sender
}

// SetCondition sets the condition sent with the detach frame.
func (sender *Sender) SetCondition(condition *ErrorCondition) *Sender {
	sender.setCondition(condition)
	return sender
}

// SetOpenHandler sets the handler fired once the attach handshake completes.
func (sender *Sender) SetOpenHandler(handler func(AsyncResult[*Sender])) *Sender {
	sender.conn().setHandler(&sender.handlers, eventOpen, handler)
	return sender
}

// SetCloseHandler sets the handler fired once the peer closes the link.
func (sender *Sender) SetCloseHandler(handler func(AsyncResult[*Sender])) *Sender {
	sender.conn().setHandler(&sender.handlers, eventClose, handler)
	return sender
}

// SetDetachHandler sets the handler fired when the peer detaches the link
// without closing it. Without one the close handler fires instead.
func (sender *Sender) SetDetachHandler(handler func(AsyncResult[*Sender])) *Sender {
	sender.conn().setHandler(&sender.handlers, eventDetach, handler)
	return sender
}

// SetDisconnectHandler sets the handler fired once when the connection disconnects.
func (sender *Sender) SetDisconnectHandler(handler func(*Sender)) *Sender {
	sender.conn().setHandler(&sender.handlers, eventDisconnect, handler)
	return sender
}
