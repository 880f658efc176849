package wsengine

import (
	"errors"
	"testing"

	"github.com/Thejuampi/amqp-client-go/amqp"
	cbor "github.com/fxamacker/cbor/v2"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

func TestCodecPreservesNilVersusEmptyProperties(t *testing.T) {
	codec := newTestCodec(t)
	for _, properties := range []map[amqp.Symbol]any{nil, {}} {
		data, err := codec.Marshal(&amqp.OpenFrame{ContainerID: "c", Properties: properties})
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		frame, err := codec.Unmarshal(data)
		if err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		open, ok := frame.(*amqp.OpenFrame)
		if !ok {
			t.Fatalf("decoded %T", frame)
		}
		if (open.Properties == nil) != (properties == nil) {
			t.Fatalf("nil-ness changed: sent nil=%v, got nil=%v", properties == nil, open.Properties == nil)
		}
	}
}

func TestCodecKeepsAnonymousAddressAndConditionInfo(t *testing.T) {
	codec := newTestCodec(t)
	condition := amqp.NewCondition(amqp.ConditionNotFound, "no relay")
	condition.Info = map[amqp.Symbol]any{"hint": map[string]any{"retry": "later"}}

	data, err := codec.Marshal(&amqp.AttachFrame{Channel: 2, Handle: 7, Name: "l", Role: amqp.RoleSender})
	if err != nil {
		t.Fatalf("Marshal attach: %v", err)
	}
	frame, err := codec.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal attach: %v", err)
	}
	if attach := frame.(*amqp.AttachFrame); attach.Address != nil || attach.Handle != 7 || attach.Role != amqp.RoleSender {
		t.Fatalf("unexpected attach %+v", attach)
	}

	data, err = codec.Marshal(&amqp.DetachFrame{Channel: 2, Handle: 7, Closed: true, Condition: condition})
	if err != nil {
		t.Fatalf("Marshal detach: %v", err)
	}
	frame, err = codec.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal detach: %v", err)
	}
	detach := frame.(*amqp.DetachFrame)
	if !detach.Closed || detach.Condition.Name != amqp.ConditionNotFound || detach.Condition.Description != "no relay" {
		t.Fatalf("unexpected detach %+v", detach)
	}
	hint, ok := detach.Condition.Info["hint"].(map[string]any)
	if !ok || hint["retry"] != "later" {
		t.Fatalf("nested info not decoded as map[string]any: %#v", detach.Condition.Info)
	}
}

func TestCodecRejectsUnknownKind(t *testing.T) {
	codec := newTestCodec(t)
	data, err := codec.enc.Marshal(envelope{Kind: amqp.FrameKind(99)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := codec.Unmarshal(data); !errors.Is(err, &amqp.Error{Code: amqp.ProtocolError}) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if _, err := codec.Unmarshal([]byte{0xff}); err == nil {
		t.Fatalf("garbage must not decode")
	}
	if _, err := codec.Marshal(nil); err == nil {
		t.Fatalf("nil frame must not encode")
	}
}

func TestCodecIsDeterministic(t *testing.T) {
	codec := newTestCodec(t)
	frame := &amqp.OpenFrame{
		ContainerID: "c",
		Properties:  map[amqp.Symbol]any{"b": "2", "a": "1", "c": "3"},
	}
	first, err := codec.Marshal(frame)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 8 {
		again, err := codec.Marshal(frame)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if string(again) != string(first) {
			t.Fatalf("encoding is not deterministic")
		}
	}
	if err := cbor.Wellformed(first); err != nil {
		t.Fatalf("encoded frame is not well-formed CBOR: %v", err)
	}
}

func BenchmarkCodecAttachRoundTrip(b *testing.B) {
	codec, err := NewCodec()
	if err != nil {
		b.Fatalf("NewCodec: %v", err)
	}
	address := "queue"
	frame := &amqp.AttachFrame{Channel: 1, Handle: 2, Name: "sender-1", Role: amqp.RoleSender, Address: &address}
	b.ReportAllocs()
	for range b.N {
		data, err := codec.Marshal(frame)
		if err != nil {
			b.Fatalf("Marshal: %v", err)
		}
		if _, err := codec.Unmarshal(data); err != nil {
			b.Fatalf("Unmarshal: %v", err)
		}
	}
}
