package wsengine

import (
	"context"
	"net/http"
	"time"

	"github.com/Thejuampi/amqp-client-go/amqp"
	"github.com/gorilla/websocket"
)

const handshakeTimeout = 10 * time.Second

// Dial opens a websocket to url and returns an engine that has not started
// reading yet.
func Dial(ctx context.Context, url string, options Options) (*Engine, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		Subprotocols:     []string{Subprotocol},
	}
	conn, response, err := dialer.DialContext(ctx, url, nil)
	if response != nil && response.Body != nil {
		_ = response.Body.Close()
	}
	if err != nil {
		return nil, amqp.NewError(amqp.ConnectionError, err)
	}
	engine, err := NewEngine(conn, options)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return engine, nil
}

// Connect dials url and returns an unopened connection driven by the new
// engine. configure, when not nil, runs before the engine starts reading so
// handlers are in place before the first frame from the peer is applied.
func Connect(ctx context.Context, url string, options Options, configure func(*amqp.Connection)) (*amqp.Connection, error) {
	engine, err := Dial(ctx, url, options)
	if err != nil {
		return nil, err
	}
	conn := amqp.NewConnection(engine)
	if options.Logger != nil {
		conn.SetLogger(*options.Logger)
	}
	if configure != nil {
		configure(conn)
	}
	engine.Start(conn)
	return conn, nil
}

// Handler upgrades HTTP requests to websocket connections and hands each one
// to accept as an unopened amqp.Connection.
type Handler struct {
	upgrader websocket.Upgrader
	options  Options
	accept   func(*amqp.Connection)
}

// NewHandler returns a handler calling accept for every upgraded connection.
// accept runs before the engine starts reading.
func NewHandler(accept func(*amqp.Connection), options Options) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			Subprotocols:     []string{Subprotocol},
		},
		options: options,
		accept:  accept,
	}
}

func (handler *Handler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	logger := handler.options.logger()
	conn, err := handler.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	engine, err := NewEngine(conn, handler.options)
	if err != nil {
		logger.Warn().Err(err).Msg("engine setup failed")
		_ = conn.Close()
		return
	}
	amqpConn := amqp.NewConnection(engine)
	if handler.options.Logger != nil {
		amqpConn.SetLogger(*handler.options.Logger)
	}
	handler.accept(amqpConn)
	engine.Start(amqpConn)
}
