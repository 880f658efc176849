package main

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/Thejuampi/amqp-client-go/amqp"
	"github.com/Thejuampi/amqp-client-go/amqp/wsengine"
	"github.com/rs/zerolog"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type runningPeer struct {
	url    string
	cancel context.CancelFunc
	result chan error
}

func startPeer(t *testing.T, config Config) *runningPeer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	running := &runningPeer{
		url:    "ws://" + listener.Addr().String() + config.Path,
		cancel: cancel,
		result: make(chan error, 1),
	}
	go func() { running.result <- serve(ctx, listener, config, zerolog.Nop()) }()
	t.Cleanup(func() { running.stop(t) })
	return running
}

func (running *runningPeer) stop(t *testing.T) error {
	t.Helper()
	running.cancel()
	select {
	case err, ok := <-running.result:
		if ok {
			close(running.result)
		}
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("fakepeer did not stop")
		return nil
	}
}

// dialPeer returns an opened client connection. It is disconnected when the
// test ends.
func dialPeer(t *testing.T, running *runningPeer) *amqp.Connection {
	t.Helper()
	opened := make(chan amqp.AsyncResult[*amqp.Connection], 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := wsengine.Connect(ctx, running.url, wsengine.Options{}, func(conn *amqp.Connection) {
		conn.SetOpenHandler(func(result amqp.AsyncResult[*amqp.Connection]) { opened <- result })
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		conn.Disconnect()
		<-conn.Done()
	})
	conn.Open()
	select {
	case result := <-opened:
		if result.Failed() {
			t.Fatalf("open failed: %v", result.Cause())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("connection did not open")
	}
	return conn
}

type linkOutcome struct {
	opened bool
	closed *amqp.ErrorCondition
}

// attachSender opens a sender to address and reports how the peer answered.
func attachSender(t *testing.T, conn *amqp.Connection, address string, expectClose bool) linkOutcome {
	t.Helper()
	opened := make(chan bool, 1)
	closed := make(chan amqp.AsyncResult[*amqp.Sender], 1)
	conn.CreateSender(address).
		SetOpenHandler(func(result amqp.AsyncResult[*amqp.Sender]) { opened <- result.Succeeded() }).
		SetCloseHandler(func(result amqp.AsyncResult[*amqp.Sender]) { closed <- result }).
		Open()

	var outcome linkOutcome
	select {
	case outcome.opened = <-opened:
	case <-time.After(5 * time.Second):
		t.Fatalf("sender open never completed")
	}
	if !expectClose {
		return outcome
	}
	select {
	case result := <-closed:
		outcome.closed = result.Condition()
	case <-time.After(5 * time.Second):
		t.Fatalf("sender was never closed by the peer")
	}
	return outcome
}

func TestPeerRefusesAnonymousSenderWithoutRelay(t *testing.T) {
	running := startPeer(t, DefaultConfig())
	conn := dialPeer(t, running)
	if conn.IsAnonymousRelaySupported() {
		t.Fatalf("default peer must not offer the anonymous relay")
	}
	if conn.RemoteContainer() != "fakepeer" {
		t.Fatalf("unexpected remote container %q", conn.RemoteContainer())
	}

	outcome := attachSender(t, conn, "", true)
	if !outcome.opened {
		t.Fatalf("peer attaches before refusing")
	}
	if outcome.closed == nil || outcome.closed.Name != amqp.ConditionNotFound {
		t.Fatalf("expected amqp:not-found, got %v", outcome.closed)
	}
	if conn.State() != amqp.StateActive {
		t.Fatalf("a refused link must not close the connection, state %v", conn.State())
	}
}

func TestPeerAcceptsAnonymousSenderWithRelay(t *testing.T) {
	for _, asProperty := range []bool{false, true} {
		config := DefaultConfig()
		config.AnonymousRelay = true
		config.RelayAsProperty = asProperty
		running := startPeer(t, config)
		conn := dialPeer(t, running)
		if !conn.IsAnonymousRelaySupported() {
			t.Fatalf("relay not detected (as property: %v)", asProperty)
		}
		if outcome := attachSender(t, conn, "", false); !outcome.opened {
			t.Fatalf("anonymous sender must open when the relay is offered")
		}
	}
}

func TestPeerRefusesConfiguredAddress(t *testing.T) {
	config := DefaultConfig()
	config.RejectAddresses = []string{"forbidden"}
	running := startPeer(t, config)
	conn := dialPeer(t, running)

	outcome := attachSender(t, conn, "forbidden", true)
	if outcome.closed == nil || outcome.closed.Name != amqp.ConditionNotFound {
		t.Fatalf("expected amqp:not-found, got %v", outcome.closed)
	}
	if outcome := attachSender(t, conn, "allowed", false); !outcome.opened {
		t.Fatalf("other addresses must be accepted")
	}
}

func TestPeerClosesWhatTheClientCloses(t *testing.T) {
	running := startPeer(t, DefaultConfig())
	conn := dialPeer(t, running)
	closed := make(chan amqp.AsyncResult[*amqp.Connection], 1)
	conn.SetCloseHandler(func(result amqp.AsyncResult[*amqp.Connection]) { closed <- result })
	conn.Close()
	select {
	case result := <-closed:
		if result.Failed() {
			t.Fatalf("clean close expected, got %v", result.Cause())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("peer never answered the close")
	}
}

func TestPeerShutdownDisconnectsClients(t *testing.T) {
	running := startPeer(t, DefaultConfig())
	conn := dialPeer(t, running)
	disconnected := make(chan error, 1)
	conn.SetDisconnectHandler(func(conn *amqp.Connection) { disconnected <- conn.DisconnectCause() })

	if err := running.stop(t); err != nil {
		t.Fatalf("serve returned %v", err)
	}
	select {
	case cause := <-disconnected:
		if !errors.Is(cause, amqp.ErrConnection) {
			t.Fatalf("unexpected disconnect cause %v", cause)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("client did not observe the shutdown")
	}
}
