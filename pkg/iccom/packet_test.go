package iccom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestWriteParsePacketRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		channel Channel
		final   bool
		payload []byte
	}{
		{"single-byte", 5, true, []byte{0xAB}},
		{"empty-payload", 0, false, []byte{}},
		{"max-channel-final", MaxChannel, true, []byte("hello world")},
		{"lun-only", joinChannel(0x20, 0), false, []byte{1, 2, 3, 4}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dst := make([]byte, packetHeaderSize+len(c.payload))
			n := writePacket(dst, c.channel, c.final, c.payload)
			if n != len(dst) {
				t.Fatalf("writePacket wrote %d bytes, want %d", n, len(dst))
			}
			got, consumed, err := parsePacket(dst)
			if err != nil {
				t.Fatalf("parsePacket: %v", err)
			}
			if consumed != n {
				t.Fatalf("parsePacket consumed %d, want %d", consumed, n)
			}
			want := Packet{Channel: c.channel, Final: c.final, Payload: c.payload}
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("parsePacket mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParsePacketTruncatedHeader(t *testing.T) {
	_, _, err := parsePacket([]byte{0, 1, 2})
	if err != ErrTruncatedPacket {
		t.Fatalf("got err %v, want ErrTruncatedPacket", err)
	}
}

func TestParsePacketTruncatedPayload(t *testing.T) {
	// Header declares a 5-byte payload but only 2 bytes actually follow.
	src := []byte{0x00, 0x05, 0x00, 0x00, 0xAA, 0xBB}
	_, _, err := parsePacket(src)
	if err != ErrTruncatedPacket {
		t.Fatalf("got err %v, want ErrTruncatedPacket", err)
	}
}

func TestParseAllPacketsCleanStop(t *testing.T) {
	var payload []byte
	p1 := make([]byte, packetHeaderSize+3)
	writePacket(p1, 1, false, []byte{1, 2, 3})
	p2 := make([]byte, packetHeaderSize+2)
	writePacket(p2, 2, true, []byte{9, 9})
	payload = append(payload, p1...)
	payload = append(payload, p2...)

	packets, err := parseAllPackets(payload)
	if err != nil {
		t.Fatalf("parseAllPackets: %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("got %d packets, want 2", len(packets))
	}
	if packets[0].Channel != 1 || packets[0].Final {
		t.Fatalf("packet 0 mismatch: %+v", packets[0])
	}
	if packets[1].Channel != 2 || !packets[1].Final {
		t.Fatalf("packet 1 mismatch: %+v", packets[1])
	}
}

func TestParseAllPacketsEmptyPayloadIsCleanStop(t *testing.T) {
	packets, err := parseAllPackets(nil)
	if err != nil {
		t.Fatalf("parseAllPackets(nil): %v", err)
	}
	if len(packets) != 0 {
		t.Fatalf("got %d packets, want 0", len(packets))
	}
}

func TestParseAllPacketsShortLeftoverIsError(t *testing.T) {
	p1 := make([]byte, packetHeaderSize+3)
	writePacket(p1, 1, true, []byte{1, 2, 3})
	payload := append(p1, 0x01, 0x02) // 2 leftover bytes, shorter than a header

	_, err := parseAllPackets(payload)
	if err != ErrTruncatedPacket {
		t.Fatalf("got err %v, want ErrTruncatedPacket", err)
	}
}
