package iccom

import "testing"

const testFrameSize = 32

func TestNewEmptyPackageIsValid(t *testing.T) {
	pkg, err := newEmptyPackage(1, testFrameSize)
	if err != nil {
		t.Fatalf("newEmptyPackage: %v", err)
	}
	payloadLen, ok := validatePackage(pkg.bytes())
	if !ok {
		t.Fatalf("freshly built empty package failed validation")
	}
	if payloadLen != 0 {
		t.Fatalf("got payload length %d, want 0", payloadLen)
	}
	if pkg.id() != 1 {
		t.Fatalf("got id %d, want 1", pkg.id())
	}
}

func TestNewEmptyPackageTooSmallFrame(t *testing.T) {
	_, err := newEmptyPackage(1, packageOverhead)
	if err != ErrFrameTooSmall {
		t.Fatalf("got err %v, want ErrFrameTooSmall", err)
	}
}

func TestAppendRawAndFinalizeRoundTrip(t *testing.T) {
	pkg, err := newEmptyPackage(7, testFrameSize)
	if err != nil {
		t.Fatalf("newEmptyPackage: %v", err)
	}
	data := []byte("hello, iccom")
	n := pkg.appendRaw(data)
	if n != len(data) {
		t.Fatalf("appendRaw wrote %d, want %d", n, len(data))
	}
	pkg.finalize()

	payloadLen, ok := validatePackage(pkg.bytes())
	if !ok {
		t.Fatalf("package failed validation after finalize")
	}
	if payloadLen != len(data) {
		t.Fatalf("got payload length %d, want %d", payloadLen, len(data))
	}
	if string(pkg.payloadBytes()) != string(data) {
		t.Fatalf("got payload %q, want %q", pkg.payloadBytes(), data)
	}
	if got := packageFrameID(pkg.bytes()); got != 7 {
		t.Fatalf("got frame id %d, want 7", got)
	}
}

func TestAppendRawTruncatesAtCapacity(t *testing.T) {
	pkg, _ := newEmptyPackage(1, testFrameSize)
	cap := pkg.capacity()
	data := make([]byte, cap+10)
	for i := range data {
		data[i] = byte(i)
	}
	n := pkg.appendRaw(data)
	if n != cap {
		t.Fatalf("appendRaw wrote %d, want %d (capacity)", n, cap)
	}
	if pkg.freeSpace() != 0 {
		t.Fatalf("got free space %d, want 0", pkg.freeSpace())
	}
	if n2 := pkg.appendRaw([]byte{1}); n2 != 0 {
		t.Fatalf("appendRaw into a full package wrote %d, want 0", n2)
	}
}

func TestValidatePackageRejectsCorruptedFillByte(t *testing.T) {
	pkg, _ := newEmptyPackage(1, testFrameSize)
	pkg.appendRaw([]byte{1, 2, 3})
	pkg.finalize()

	frame := pkg.bytes()
	frame[packageHeaderSize+3] = 0x00 // corrupt a fill byte without fixing the CRC

	if _, ok := validatePackage(frame); ok {
		t.Fatalf("validatePackage accepted a frame with a corrupted fill byte")
	}
}

func TestValidatePackageRejectsBadCRC(t *testing.T) {
	pkg, _ := newEmptyPackage(1, testFrameSize)
	pkg.appendRaw([]byte("payload"))
	pkg.finalize()

	frame := pkg.bytes()
	frame[len(frame)-1] ^= 0xFF

	if _, ok := validatePackage(frame); ok {
		t.Fatalf("validatePackage accepted a frame with a corrupted CRC")
	}
}

func TestValidatePackageRejectsOversizedDeclaredLength(t *testing.T) {
	pkg, _ := newEmptyPackage(1, testFrameSize)
	pkg.finalize()
	frame := pkg.bytes()
	frame[0] = 0xFF
	frame[1] = 0xFF

	if _, ok := validatePackage(frame); ok {
		t.Fatalf("validatePackage accepted an oversized declared payload length")
	}
}

func TestValidatePackageRejectsTooShortFrame(t *testing.T) {
	if _, ok := validatePackage(make([]byte, packageOverhead-1)); ok {
		t.Fatalf("validatePackage accepted a frame shorter than the overhead")
	}
}

func TestAckNackFrames(t *testing.T) {
	ack := buildAck(1)
	nack := buildNack(1)

	if !isAckFrame(ack, 1) || !isPositiveAck(ack) {
		t.Fatalf("buildAck did not produce a recognized positive ack")
	}
	if !isAckFrame(nack, 1) || isPositiveAck(nack) {
		t.Fatalf("buildNack produced a frame that reads as a positive ack")
	}
	if isAckFrame(ack, 2) {
		t.Fatalf("isAckFrame should reject a size mismatch")
	}
}
