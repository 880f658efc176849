package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/Thejuampi/amqp-client-go/amqp"
)

// Engine is a scripted amqp.Engine. It records every frame the connection
// sends; tests play the peer by delivering frames to the connection.
type Engine struct {
	lock    sync.Mutex
	frames  []amqp.Frame
	notify  chan struct{}
	closed  bool
	sendErr error
}

// NewEngine returns an engine that accepts every frame.
func NewEngine() *Engine {
	return &Engine{notify: make(chan struct{}, 1)}
}

// Send records frame, or fails with the error set by FailSends.
func (engine *Engine) Send(frame amqp.Frame) error {
	engine.lock.Lock()
	if engine.sendErr != nil {
		err := engine.sendErr
		engine.lock.Unlock()
		return err
	}
	engine.frames = append(engine.frames, frame)
	engine.lock.Unlock()
	engine.signal()
	return nil
}

// Close marks the engine closed.
func (engine *Engine) Close() error {
	engine.lock.Lock()
	engine.closed = true
	engine.lock.Unlock()
	engine.signal()
	return nil
}

func (engine *Engine) signal() {
	select {
	case engine.notify <- struct{}{}:
	default:
	}
}

// FailSends makes every later Send return err.
func (engine *Engine) FailSends(err error) {
	engine.lock.Lock()
	defer engine.lock.Unlock()
	engine.sendErr = err
}

// Closed reports whether Close was called.
func (engine *Engine) Closed() bool {
	engine.lock.Lock()
	defer engine.lock.Unlock()
	return engine.closed
}

// Frames returns the frames sent so far.
func (engine *Engine) Frames() []amqp.Frame {
	engine.lock.Lock()
	defer engine.lock.Unlock()
	return append([]amqp.Frame(nil), engine.frames...)
}

// Kinds returns the kinds of the frames sent so far.
func (engine *Engine) Kinds() []amqp.FrameKind {
	frames := engine.Frames()
	kinds := make([]amqp.FrameKind, 0, len(frames))
	for _, frame := range frames {
		kinds = append(kinds, frame.Kind())
	}
	return kinds
}

// WaitFrames blocks until at least count frames were sent and returns them.
func (engine *Engine) WaitFrames(t testing.TB, count int) []amqp.Frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if frames := engine.Frames(); len(frames) >= count {
			return frames
		}
		select {
		case <-engine.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d frames, have %v", count, engine.Kinds())
			return nil
		}
	}
}

// WaitClosed blocks until Close was called.
func (engine *Engine) WaitClosed(t testing.TB) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !engine.Closed() {
		select {
		case <-engine.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for engine close")
			return
		}
	}
}

// Channel returns a pointer to channel, for BeginFrame.RemoteChannel.
func Channel(channel uint16) *uint16 { return &channel }

// Address returns a pointer to address, for AttachFrame.Address.
func Address(address string) *string { return &address }
