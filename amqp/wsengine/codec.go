package wsengine

import (
	"reflect"

	"github.com/Thejuampi/amqp-client-go/amqp"
	cbor "github.com/fxamacker/cbor/v2"
)

// envelope is the wire form of one frame: the performative kind followed by
// its CBOR-encoded body.
type envelope struct {
	Kind amqp.FrameKind  `cbor:"1,keyasint"`
	Body cbor.RawMessage `cbor:"2,keyasint"`
}

// Codec encodes lifecycle frames as deterministic CBOR.
type Codec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCodec returns a codec using the canonical CBOR encoding. Nested maps in
// properties and condition info decode as map[string]any.
func NewCodec() (*Codec, error) {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		return nil, err
	}
	return &Codec{enc: enc, dec: dec}, nil
}

// ContentType names the payload format.
func (codec *Codec) ContentType() string { return "application/cbor" }

// Marshal encodes frame into one websocket message.
func (codec *Codec) Marshal(frame amqp.Frame) ([]byte, error) {
	if frame == nil {
		return nil, amqp.NewError(amqp.ProtocolError, "nil frame")
	}
	body, err := codec.enc.Marshal(frame)
	if err != nil {
		return nil, err
	}
	return codec.enc.Marshal(envelope{Kind: frame.Kind(), Body: body})
}

// Unmarshal decodes one websocket message into a frame.
func (codec *Codec) Unmarshal(data []byte) (amqp.Frame, error) {
	var wire envelope
	if err := codec.dec.Unmarshal(data, &wire); err != nil {
		return nil, amqp.NewError(amqp.ProtocolError, err)
	}
	frame := newFrame(wire.Kind)
	if frame == nil {
		return nil, amqp.NewError(amqp.ProtocolError, "unknown frame kind "+wire.Kind.String())
	}
	if err := codec.dec.Unmarshal(wire.Body, frame); err != nil {
		return nil, amqp.NewError(amqp.ProtocolError, err)
	}
	return frame, nil
}

func newFrame(kind amqp.FrameKind) amqp.Frame {
	switch kind {
	case amqp.FrameOpen:
		return &amqp.OpenFrame{}
	case amqp.FrameBegin:
		return &amqp.BeginFrame{}
	case amqp.FrameAttach:
		return &amqp.AttachFrame{}
	case amqp.FrameDetach:
		return &amqp.DetachFrame{}
	case amqp.FrameEnd:
		return &amqp.EndFrame{}
	case amqp.FrameClose:
		return &amqp.CloseFrame{}
	default:
		return nil
	}
}
