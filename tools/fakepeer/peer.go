package main

import (
	"sync"

	"github.com/Thejuampi/amqp-client-go/amqp"
	"github.com/rs/zerolog"
)

// peer answers every connection the handler accepts. It opens what the
// client opens, closes what the client closes and rejects links per Config.
type peer struct {
	config Config
	logger zerolog.Logger

	lock  sync.Mutex
	conns map[*amqp.Connection]struct{}
}

func newPeer(config Config, logger zerolog.Logger) *peer {
	return &peer{
		config: config,
		logger: logger,
		conns:  make(map[*amqp.Connection]struct{}),
	}
}

func (p *peer) accept(conn *amqp.Connection) {
	conn.SetContainer(p.config.Container).SetLogger(p.logger)
	if p.config.AnonymousRelay {
		if p.config.RelayAsProperty {
			conn.SetProperties(map[amqp.Symbol]any{amqp.SymbolAnonymousRelay: true})
		} else {
			conn.SetOfferedCapabilities(amqp.SymbolAnonymousRelay)
		}
	}

	conn.SetOpenHandler(func(result amqp.AsyncResult[*amqp.Connection]) {
		if result.Failed() {
			return
		}
		p.logger.Info().Str("client", conn.RemoteContainer()).Msg("connection opened")
	})
	conn.SetCloseHandler(func(amqp.AsyncResult[*amqp.Connection]) {
		conn.Close()
	})
	conn.SetDisconnectHandler(func(conn *amqp.Connection) {
		p.lock.Lock()
		delete(p.conns, conn)
		p.lock.Unlock()
		p.logger.Info().Err(conn.DisconnectCause()).Msg("connection gone")
	})
	if p.config.AcceptSessions {
		conn.SetSessionOpenHandler(p.acceptSession)
	}
	if p.config.AcceptLinks {
		conn.SetSenderOpenHandler(func(sender *amqp.Sender) {
			p.acceptLink(sender, func() { sender.Open() }, func(condition *amqp.ErrorCondition) { sender.SetCondition(condition).Close() })
			sender.SetCloseHandler(func(amqp.AsyncResult[*amqp.Sender]) { sender.Close() })
		})
		conn.SetReceiverOpenHandler(func(receiver *amqp.Receiver) {
			p.acceptLink(receiver, func() { receiver.Open() }, func(condition *amqp.ErrorCondition) { receiver.SetCondition(condition).Close() })
			receiver.SetCloseHandler(func(amqp.AsyncResult[*amqp.Receiver]) { receiver.Close() })
		})
	}

	p.lock.Lock()
	p.conns[conn] = struct{}{}
	p.lock.Unlock()
	conn.Open()
}

func (p *peer) acceptSession(session *amqp.Session) {
	session.SetCloseHandler(func(amqp.AsyncResult[*amqp.Session]) { session.Close() })
	session.Open()
}

// acceptLink opens link, then immediately closes it with amqp:not-found when
// the client attached a sender without address and the peer offers no
// anonymous relay, or when the address is rejected. The peer attaches before
// detaching, as a broker does.
func (p *peer) acceptLink(link amqp.Link, open func(), reject func(*amqp.ErrorCondition)) {
	open()
	address := link.RemoteAddress()
	switch {
	case link.Role() == amqp.RoleReceiver && link.IsAnonymous() && !p.config.AnonymousRelay:
		p.logger.Info().Str("link", link.Name()).Msg("anonymous relay refused")
		reject(amqp.NewCondition(amqp.ConditionNotFound, "anonymous relay not supported"))
	case address != "" && p.config.rejects(address):
		p.logger.Info().Str("link", link.Name()).Str("address", address).Msg("address refused")
		reject(amqp.NewCondition(amqp.ConditionNotFound, "no such node: "+address))
	default:
		p.logger.Debug().Str("link", link.Name()).Str("address", address).Msg("link attached")
	}
}

// disconnectAll drops every live connection.
func (p *peer) disconnectAll() {
	p.lock.Lock()
	conns := make([]*amqp.Connection, 0, len(p.conns))
	for conn := range p.conns {
		conns = append(conns, conn)
	}
	p.lock.Unlock()
	for _, conn := range conns {
		conn.Disconnect()
	}
	for _, conn := range conns {
		<-conn.Done()
	}
}

func (p *peer) connectionCount() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.conns)
}
