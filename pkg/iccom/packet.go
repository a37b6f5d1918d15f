package iccom

import "encoding/binary"

// Packet codec (C3). A packet is the variable-length sub-record carried
// inside a package's payload area: a 4-byte header followed by the packet's
// own payload bytes.
//
//	u16 BE payload_length
//	u8     LUN
//	u8     (complete:1 high bit) | (CID:7 low bits)
//	bytes  payload

const packetHeaderSize = 4

// minPacketSize is a header plus one payload byte (spec.md §4.3):
// parseAllPackets treats a shorter leftover as a parse error. A packet
// whose header declares a zero-length payload is still parsed when at
// least this many bytes remain.
const minPacketSize = packetHeaderSize + 1

// Packet is a parsed view into a package's payload buffer; Payload aliases
// the source slice and must be copied before the source buffer is reused.
type Packet struct {
	Channel Channel
	Final   bool
	Payload []byte
}

// writePacket writes a packet header + payload into dst and returns the
// number of bytes written. dst must have at least packetHeaderSize+len(payload)
// bytes of room; callers size their destination slice accordingly.
func writePacket(dst []byte, channel Channel, final bool, payload []byte) int {
	total := packetHeaderSize + len(payload)
	binary.BigEndian.PutUint16(dst[0:2], uint16(len(payload)))
	lun, cid := splitChannel(channel)
	dst[2] = lun
	completeBit := byte(0)
	if final {
		completeBit = 0x80
	}
	dst[3] = completeBit | (cid & 0x7F)
	copy(dst[packetHeaderSize:total], payload)
	return total
}

// parsePacket reads one packet from the front of src. It returns the
// number of bytes consumed. src must hold at least packetHeaderSize bytes;
// callers apply the package-payload stop rule (spec.md §4.6) before calling.
func parsePacket(src []byte) (Packet, int, error) {
	if len(src) < packetHeaderSize {
		return Packet{}, 0, ErrTruncatedPacket
	}
	payloadLen := int(binary.BigEndian.Uint16(src[0:2]))
	total := packetHeaderSize + payloadLen
	if total > len(src) {
		return Packet{}, 0, ErrTruncatedPacket
	}
	lun := src[2]
	b := src[3]
	final := b&0x80 != 0
	cid := b & 0x7F
	p := Packet{
		Channel: joinChannel(lun, cid),
		Final:   final,
		Payload: src[packetHeaderSize:total],
	}
	return p, total, nil
}

// parseAllPackets parses every packet in a package's payload, applying the
// stop rule from spec.md §4.6: parsing ends cleanly when exactly zero
// bytes remain; any shorter leftover is a parse error.
func parseAllPackets(payload []byte) ([]Packet, error) {
	var packets []Packet
	offset := 0
	for offset < len(payload) {
		remaining := payload[offset:]
		if len(remaining) < minPacketSize {
			return nil, ErrTruncatedPacket
		}
		p, n, err := parsePacket(remaining)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
		offset += n
	}
	return packets, nil
}
