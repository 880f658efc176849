package wsengine

import (
	"errors"
	"sync"
	"time"

	"github.com/Thejuampi/amqp-client-go/amqp"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Subprotocol is negotiated during the websocket handshake.
const Subprotocol = "amqp-lifecycle.cbor"

const (
	defaultWriteTimeout = 5 * time.Second
	defaultReadLimit    = 1 << 20
)

// Options tune an Engine. The zero value is usable.
type Options struct {
	// WriteTimeout bounds each frame write. Zero means five seconds.
	WriteTimeout time.Duration
	// ReadLimit is the largest accepted message in bytes. Zero means 1 MiB.
	ReadLimit int64
	// Logger traces frames at debug level. Nil disables logging.
	Logger *zerolog.Logger
}

func (options Options) writeTimeout() time.Duration {
	if options.WriteTimeout <= 0 {
		return defaultWriteTimeout
	}
	return options.WriteTimeout
}

func (options Options) readLimit() int64 {
	if options.ReadLimit <= 0 {
		return defaultReadLimit
	}
	return options.ReadLimit
}

func (options Options) logger() zerolog.Logger {
	if options.Logger == nil {
		return zerolog.Nop()
	}
	return *options.Logger
}

// Engine carries lifecycle frames over one websocket connection, one frame
// per binary message. It implements amqp.Engine.
type Engine struct {
	conn         *websocket.Conn
	codec        *Codec
	logger       zerolog.Logger
	writeTimeout time.Duration

	writeLock sync.Mutex
	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
	started   sync.Once
	closeErr  error
}

// NewEngine wraps an established websocket connection. Frames are not read
// until Start is called.
func NewEngine(conn *websocket.Conn, options Options) (*Engine, error) {
	codec, err := NewCodec()
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(options.readLimit())
	return &Engine{
		conn:         conn,
		codec:        codec,
		logger:       options.logger().With().Str("remote", conn.RemoteAddr().String()).Logger(),
		writeTimeout: options.writeTimeout(),
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

// Start begins reading frames and handing them to sink. Transport loss and
// undecodable messages are reported through sink.TransportClosed, unless the
// engine was closed locally first.
func (engine *Engine) Start(sink amqp.FrameSink) {
	engine.started.Do(func() {
		go engine.readLoop(sink)
	})
}

// Done is closed once the read loop has exited.
func (engine *Engine) Done() <-chan struct{} {
	return engine.done
}

func (engine *Engine) readLoop(sink amqp.FrameSink) {
	defer close(engine.done)
	for {
		messageType, data, err := engine.conn.ReadMessage()
		if err != nil {
			engine.lost(sink, amqp.NewError(amqp.ConnectionError, err))
			return
		}
		if messageType != websocket.BinaryMessage {
			engine.lost(sink, amqp.NewError(amqp.ProtocolError, "unexpected text message"))
			return
		}
		frame, err := engine.codec.Unmarshal(data)
		if err != nil {
			engine.lost(sink, err)
			return
		}
		engine.logger.Debug().Stringer("frame", frame.Kind()).Msg("frame read")
		sink.Deliver(frame)
	}
}

func (engine *Engine) lost(sink amqp.FrameSink, cause error) {
	select {
	case <-engine.closing:
		return
	default:
	}
	engine.logger.Debug().Err(cause).Msg("transport lost")
	sink.TransportClosed(cause)
	_ = engine.shutdown(websocket.CloseProtocolError)
}

// Send writes frame as one binary message.
func (engine *Engine) Send(frame amqp.Frame) error {
	data, err := engine.codec.Marshal(frame)
	if err != nil {
		return err
	}
	engine.writeLock.Lock()
	defer engine.writeLock.Unlock()
	select {
	case <-engine.closing:
		return amqp.NewError(amqp.ConnectionError, "engine closed")
	default:
	}
	if err := engine.conn.SetWriteDeadline(time.Now().Add(engine.writeTimeout)); err != nil {
		return err
	}
	if err := engine.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return err
	}
	engine.logger.Debug().Stringer("frame", frame.Kind()).Msg("frame written")
	return nil
}

// Close sends a websocket close message and closes the connection. It is
// safe to call more than once.
func (engine *Engine) Close() error {
	return engine.shutdown(websocket.CloseNormalClosure)
}

func (engine *Engine) shutdown(code int) error {
	engine.closeOnce.Do(func() {
		close(engine.closing)
		engine.writeLock.Lock()
		message := websocket.FormatCloseMessage(code, "")
		err := engine.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(engine.writeTimeout))
		engine.writeLock.Unlock()
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			engine.logger.Debug().Err(err).Msg("close message not sent")
		}
		engine.closeErr = engine.conn.Close()
	})
	return engine.closeErr
}
