package amqp

import (
	"testing"
	"time"
)

func TestHandlerRegistryClaimsOneShotSlotsOnce(t *testing.T) {
	var registry handlerRegistry
	for _, kind := range []eventKind{eventOpen, eventClose, eventDisconnect} {
		if !registry.claim(kind) {
			t.Fatalf("first %v claim must succeed", kind)
		}
		if registry.claim(kind) {
			t.Fatalf("second %v claim must fail", kind)
		}
	}
}

func TestHandlerRegistryDetachSharesCloseClaim(t *testing.T) {
	var registry handlerRegistry
	if !registry.claim(eventDetach) {
		t.Fatalf("first detach claim must succeed")
	}
	if registry.claim(eventClose) || !registry.isClaimed(eventDetach) {
		t.Fatalf("a detached link must not close again")
	}
}

func TestHandlerRegistryRemoteOpenSlotsRecur(t *testing.T) {
	var registry handlerRegistry
	for range 3 {
		if !registry.claim(eventSessionOpen) || !registry.claim(eventSenderOpen) || !registry.claim(eventReceiverOpen) {
			t.Fatalf("remote-open notifications must fire for every surfaced entity")
		}
	}
}

func TestHandlerRegistryLastWriteWins(t *testing.T) {
	var registry handlerRegistry
	registry.set(eventOpen, func(int) {})
	registry.set(eventOpen, func(string) {})
	if _, ok := registry.lookup(eventOpen).(func(string)); !ok {
		t.Fatalf("the last registered handler must win")
	}
	if registry.lookup(eventClose) != nil {
		t.Fatalf("unset slot must be empty")
	}
}

func TestScheduleLooksUpHandlerAtInvocation(t *testing.T) {
	conn := &Connection{loop: newExecutor()}
	var registry handlerRegistry
	got := make(chan string, 2)

	release := make(chan struct{})
	conn.loop.post(func() { <-release })
	schedule(conn, &registry, eventOpen, "first", func(string) { got <- "fallback" })
	registry.set(eventOpen, func(value string) { got <- value })
	close(release)

	go conn.loop.run(func(inboundEvent) {})
	select {
	case value := <-got:
		if value != "first" {
			t.Fatalf("handler registered before invocation must run, got %q", value)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduled handler never ran")
	}

	schedule(conn, &registry, eventClose, "second", func(value string) { got <- "fallback:" + value })
	if value := <-got; value != "fallback:second" {
		t.Fatalf("empty slot must run the fallback, got %q", value)
	}
	conn.loop.shutdown()
	<-conn.loop.done
}
