package bridge

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/librescoot/iccom-engine/pkg/iccom"
)

// TelemetryChannel is the reserved ICCom channel for envelope-wrapped
// telemetry: PostTelemetry posts on it, and the demo daemon registers its
// inbound bridge callback on it; the daemon does not post telemetry
// itself. The engine core treats this like any
// other channel - messages are opaque bytes (spec.md §3) - the envelope is
// purely an integrator-boundary convention, the same layering the teacher
// keeps between USOCK (byte-oriented) and pkg/service (where CBOR
// encoding/decoding actually happens).
const TelemetryChannel iccom.Channel = 1

// Envelope wraps a telemetry payload with a sequence number and a kind tag,
// CBOR-encoded the same way the teacher's writeUARTMessage/
// HandleUSockMessage wrap their CBOR-encoded maps.
type Envelope struct {
	Seq     uint32 `cbor:"seq"`
	Kind    string `cbor:"kind"`
	Payload []byte `cbor:"payload"`
}

// EncodeEnvelope CBOR-encodes an envelope ready to post on TelemetryChannel.
func EncodeEnvelope(seq uint32, kind string, payload []byte) ([]byte, error) {
	b, err := cbor.Marshal(Envelope{Seq: seq, Kind: kind, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("bridge: encode envelope: %w", err)
	}
	return b, nil
}

// DecodeEnvelope parses a CBOR-encoded envelope received from
// TelemetryChannel.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := cbor.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("bridge: decode envelope: %w", err)
	}
	return e, nil
}

// PostTelemetry encodes and posts one envelope on TelemetryChannel.
func (b *Bridge) PostTelemetry(seq uint32, kind string, payload []byte) error {
	data, err := EncodeEnvelope(seq, kind, payload)
	if err != nil {
		return err
	}
	return b.engine.Post(TelemetryChannel, data)
}
