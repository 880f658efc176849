package amqp_test

import (
	"testing"
	"time"

	"github.com/Thejuampi/amqp-client-go/amqp"
	"github.com/Thejuampi/amqp-client-go/amqp/internal/testutil"
)

func newTestConnection(t *testing.T) (*amqp.Connection, *testutil.Engine) {
	t.Helper()
	engine := testutil.NewEngine()
	conn := amqp.NewConnection(engine).SetContainer("test-container")
	t.Cleanup(func() { shutdown(t, conn) })
	return conn, engine
}

// openedConnection returns a connection whose open handshake has completed.
func openedConnection(t *testing.T, peer *amqp.OpenFrame) (*amqp.Connection, *testutil.Engine) {
	t.Helper()
	conn, engine := newTestConnection(t)
	opened := make(chan struct{})
	conn.SetOpenHandler(func(result amqp.AsyncResult[*amqp.Connection]) {
		if result.Failed() {
			t.Errorf("connection open failed: %v", result.Cause())
		}
		close(opened)
	})
	conn.Open()
	if peer == nil {
		peer = &amqp.OpenFrame{ContainerID: "peer"}
	}
	conn.Deliver(peer)
	waitClosed(t, opened, "connection open")
	return conn, engine
}

func shutdown(t *testing.T, conn *amqp.Connection) {
	t.Helper()
	conn.Disconnect()
	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("connection execution context did not exit")
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func frameAt[T amqp.Frame](t *testing.T, frames []amqp.Frame, index int) T {
	t.Helper()
	if index >= len(frames) {
		t.Fatalf("frame %d missing, have %d frames", index, len(frames))
	}
	frame, ok := frames[index].(T)
	if !ok {
		t.Fatalf("frame %d is %v, unexpected type %T", index, frames[index].Kind(), frames[index])
	}
	return frame
}
