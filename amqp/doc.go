// Package amqp implements the connection, session and link lifecycle of an
// AMQP 1.0 client on top of an Engine that moves lifecycle frames to and from
// the peer.
//
// The primary lifecycle is:
//   - construct a Connection with NewConnection around an Engine
//   - register handlers and call Open
//   - create sessions with CreateSession and links with CreateSender or
//     CreateReceiver, then Open each of them
//   - Close entities when finished, then Disconnect
//
// Every entity keeps independent local and remote open/close state. Open and
// close completions are reported exactly once through the entity's handlers;
// sessions and links the peer initiates are surfaced through the connection's
// session, sender and receiver open handlers.
//
// Each connection owns one execution context. Frames delivered by the engine
// are applied there in order and all handlers run there, never inside the
// call that caused them. Handlers may call any method of the package.
//
// Disconnect is immediate: pending completions fail with a DisconnectedError
// and every entity's disconnect handler fires once.
package amqp
