package amqp

import (
	"errors"
	"testing"
)

func TestEndpointStateTable(t *testing.T) {
	tests := []struct {
		name     string
		endpoint endpoint
		want     EndpointState
	}{
		{name: "fresh", want: StateUninitialized},
		{name: "local open", endpoint: endpoint{localOpen: true}, want: StateLocalOpenPending},
		{name: "remote open", endpoint: endpoint{remoteOpen: true}, want: StateRemoteOpenPending},
		{name: "both open", endpoint: endpoint{localOpen: true, remoteOpen: true}, want: StateActive},
		{name: "local close", endpoint: endpoint{localOpen: true, remoteOpen: true, localClose: true}, want: StateLocalClosePending},
		{name: "remote close", endpoint: endpoint{localOpen: true, remoteOpen: true, remoteClose: true}, want: StateRemoteClosed},
		{name: "closed", endpoint: endpoint{localOpen: true, remoteOpen: true, localClose: true, remoteClose: true}, want: StateClosed},
		{name: "disconnected wins", endpoint: endpoint{localOpen: true, disconnected: true}, want: StateDisconnected},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.endpoint.state(); got != test.want {
				t.Fatalf("state() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestEndpointTransitionsAreIdempotent(t *testing.T) {
	var ep endpoint
	if !ep.openLocal() || ep.openLocal() {
		t.Fatalf("openLocal must succeed exactly once")
	}
	if !ep.openRemote() || ep.openRemote() {
		t.Fatalf("openRemote must succeed exactly once")
	}
	if !ep.closeLocal() || ep.closeLocal() {
		t.Fatalf("closeLocal must succeed exactly once")
	}
	if ep.openLocal() {
		t.Fatalf("open after close must be refused")
	}
	condition := NewCondition(ConditionInternalError, "boom")
	if !ep.closeRemote(condition) || ep.closeRemote(nil) {
		t.Fatalf("closeRemote must succeed exactly once")
	}
	if ep.remoteCondition != condition {
		t.Fatalf("duplicate remote close replaced the condition")
	}
	if !ep.finished() {
		t.Fatalf("entity closed on both sides must be finished")
	}
}

func TestEndpointCloseLocalRules(t *testing.T) {
	var untouched endpoint
	if untouched.closeLocal() {
		t.Fatalf("closing an untouched entity must be a no-op")
	}

	var early endpoint
	early.openLocal()
	early.closeLocal()
	if !early.openSuppressed || !early.closedBeforeOpen {
		t.Fatalf("close before remote open must suppress the open completion")
	}
	if condition := conditionOf(early.closeCause()); condition == nil || condition.Name != ConditionClosedBeforeOpen {
		t.Fatalf("unexpected close cause %v", early.closeCause())
	}

	var rejected endpoint
	rejected.openRemote()
	if !rejected.closeLocal() {
		t.Fatalf("closing a remote-opened entity must reject it")
	}
	if !rejected.localOpen || !rejected.openSuppressed || rejected.closedBeforeOpen {
		t.Fatalf("rejection must open locally without an open completion: %+v", rejected)
	}
}

func TestEndpointCloseCausePrefersRemoteCondition(t *testing.T) {
	ep := endpoint{closedBeforeOpen: true, remoteCondition: NewCondition(ConditionNotFound, "gone")}
	cause := ep.closeCause()
	if !errors.Is(cause, ErrRemoteCondition) {
		t.Fatalf("expected remote condition error, got %v", cause)
	}
	if condition := conditionOf(cause); condition.Name != ConditionNotFound {
		t.Fatalf("unexpected condition %v", condition)
	}

	var clean endpoint
	if clean.closeCause() != nil {
		t.Fatalf("close without condition must succeed")
	}
}

func TestEndpointRefusesTransitionsAfterDisconnect(t *testing.T) {
	ep := endpoint{disconnected: true}
	if ep.openLocal() || ep.openRemote() || ep.closeLocal() || ep.closeRemote(nil) {
		t.Fatalf("disconnected entities must refuse every transition")
	}
}

func TestErrorCodesMatchUnderErrorsIs(t *testing.T) {
	err := NewError(DisconnectedError, "gone")
	if err.Error() != "DisconnectedError: gone" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrDisconnected) || errors.Is(err, ErrConnection) {
		t.Fatalf("errors.Is must match by code")
	}
	if NewError(IllegalStateError).Error() != "IllegalStateError" {
		t.Fatalf("unexpected message for bare error")
	}
	if NewError(42).Error() != "UnknownError" {
		t.Fatalf("unregistered codes must be named UnknownError")
	}
}

func TestEndpointBornRemoteClosedNeverReachesTheWire(t *testing.T) {
	ep := endpoint{}
	bornRemoteClosed(&ep, nil)
	if ep.remoteCondition == nil || ep.remoteCondition.Name != ConditionIllegalState {
		t.Fatalf("expected an illegal-state condition, got %v", ep.remoteCondition)
	}
	if !ep.openLocal() || ep.owesOpen() {
		t.Fatalf("an entity the peer never opened must not send its open")
	}
	if !ep.closeLocal() || !ep.retired() {
		t.Fatalf("a closed entity that was never sent must retire")
	}
	if ep.closeCause() == nil {
		t.Fatalf("close of a born-closed entity must fail")
	}

	answered := endpoint{localOpen: true, remoteOpen: true, remoteClose: true}
	if !answered.owesOpen() {
		t.Fatalf("an entity the peer opened and closed is still answered")
	}
	answered.openSent = true
	answered.localClose = true
	if answered.retired() {
		t.Fatalf("an entity with its close unsent must not retire")
	}
}

func TestConnectionAllocateChannelSkipsLiveSessions(t *testing.T) {
	conn := &Connection{nextChannel: 65535}
	for _, channel := range []uint16{65535, 0, 1} {
		conn.sessions = append(conn.sessions, &Session{conn: conn, channel: channel})
	}
	if channel := conn.allocateChannel(); channel != 2 {
		t.Fatalf("expected channel 2 after wrapping past live sessions, got %d", channel)
	}
	if conn.nextChannel != 3 {
		t.Fatalf("unexpected next channel %d", conn.nextChannel)
	}
}

func conditionOf(err error) *ErrorCondition {
	var conditionErr *ConditionError
	if errors.As(err, &conditionErr) {
		return conditionErr.Condition
	}
	return nil
}
