package amqp

// Engine moves lifecycle frames between a Connection and its peer. Send is
// always called from the connection's execution context, one frame at a time
// and in order. Close tears the transport down and is called once when the
// connection disconnects.
type Engine interface {
	Send(frame Frame) error
	Close() error
}

// FrameSink receives what an Engine reads from the peer. *Connection
// implements it; both methods are safe to call from any goroutine.
type FrameSink interface {
	Deliver(frame Frame)
	TransportClosed(err error)
}
