package amqp

import (
	"sync"

	"github.com/eapache/queue"
)

// inboundEvent is one item read from the engine: a frame or transport loss.
type inboundEvent struct {
	frame        Frame
	transportErr error
	lost         bool
}

// executor is a connection's single execution context. It drains two FIFOs
// on one goroutine: callbacks (handler invocations, outbound flushes) and
// inbound events. Callbacks always drain before the next event is applied, so
// the handlers produced by one event run before the peer's next frame.
type executor struct {
	lock      sync.Mutex
	callbacks *queue.Queue
	events    *queue.Queue
	wake      chan struct{}
	done      chan struct{}
	draining  bool
	exited    bool
}

func newExecutor() *executor {
	return &executor{
		callbacks: queue.New(),
		events:    queue.New(),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (ex *executor) signal() {
	select {
	case ex.wake <- struct{}{}:
	default:
	}
}

// post queues fn behind any callbacks already queued. It reports false once
// the executor has exited.
func (ex *executor) post(fn func()) bool {
	ex.lock.Lock()
	if ex.exited {
		ex.lock.Unlock()
		return false
	}
	ex.callbacks.Add(fn)
	ex.lock.Unlock()
	ex.signal()
	return true
}

// enqueue queues an inbound event. Events are refused once draining started.
func (ex *executor) enqueue(event inboundEvent) bool {
	ex.lock.Lock()
	if ex.draining || ex.exited {
		ex.lock.Unlock()
		return false
	}
	ex.events.Add(event)
	ex.lock.Unlock()
	ex.signal()
	return true
}

// shutdown stops accepting events and lets the loop exit once every queued
// callback has run. Events still queued are discarded.
func (ex *executor) shutdown() {
	ex.lock.Lock()
	ex.draining = true
	for ex.events.Length() > 0 {
		ex.events.Remove()
	}
	ex.lock.Unlock()
	ex.signal()
}

func (ex *executor) next() (func(), *inboundEvent, bool) {
	ex.lock.Lock()
	defer ex.lock.Unlock()
	if ex.callbacks.Length() > 0 {
		return ex.callbacks.Remove().(func()), nil, true
	}
	if ex.events.Length() > 0 {
		event := ex.events.Remove().(inboundEvent)
		return nil, &event, true
	}
	if ex.draining {
		ex.exited = true
	}
	return nil, nil, false
}

func (ex *executor) run(process func(inboundEvent)) {
	defer close(ex.done)
	for {
		for {
			callback, event, ok := ex.next()
			if !ok {
				break
			}
			if callback != nil {
				callback()
				continue
			}
			process(*event)
		}
		ex.lock.Lock()
		exited := ex.exited
		ex.lock.Unlock()
		if exited {
			return
		}
		<-ex.wake
	}
}
