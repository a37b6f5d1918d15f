package bridge

import (
	"testing"

	"github.com/librescoot/iccom-engine/pkg/iccom"
)

func TestParseOutboundEntryRoundTrip(t *testing.T) {
	channel, payload, err := parseOutboundEntry("42:68656c6c6f")
	if err != nil {
		t.Fatalf("parseOutboundEntry: %v", err)
	}
	if channel != 42 {
		t.Fatalf("got channel %d, want 42", channel)
	}
	if string(payload) != "hello" {
		t.Fatalf("got payload %q, want %q", payload, "hello")
	}
}

func TestParseOutboundEntryRejectsMissingSeparator(t *testing.T) {
	if _, _, err := parseOutboundEntry("nosep"); err == nil {
		t.Fatalf("expected an error for an entry without a ':' separator")
	}
}

func TestParseOutboundEntryRejectsBadChannel(t *testing.T) {
	if _, _, err := parseOutboundEntry("notanumber:68656c6c6f"); err == nil {
		t.Fatalf("expected an error for a non-numeric channel")
	}
}

func TestParseOutboundEntryRejectsBadHex(t *testing.T) {
	if _, _, err := parseOutboundEntry("1:zzzz"); err == nil {
		t.Fatalf("expected an error for invalid hex payload")
	}
}

func TestInboundChannelKeyNamesByChannel(t *testing.T) {
	got := InboundChannelKey(iccom.Channel(7))
	want := "iccom:inbound:7"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEnvelopeEncodeDecodeRoundTrip(t *testing.T) {
	data, err := EncodeEnvelope(5, "status", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	got, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if got.Seq != 5 || got.Kind != "status" || string(got.Payload) != "\x01\x02\x03" {
		t.Fatalf("got %+v, want Seq=5 Kind=status Payload=[1 2 3]", got)
	}
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := DecodeEnvelope([]byte{0xFF, 0xFF, 0xFF}); err == nil {
		t.Fatalf("expected an error decoding non-CBOR garbage")
	}
}
