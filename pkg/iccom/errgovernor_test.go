package iccom

import "testing"

// fakeClockEpoch stands in for a realistic wall-clock millisecond value.
// Record treats a zero lastReportMs as "never reported"; starting the fake
// clock at 0 would collide with that sentinel and make the first record on
// a fresh governor look throttled instead of novel, which a real
// time.Now().UnixMilli() clock never does.
const fakeClockEpoch = 1_700_000_000_000

func newFakeClock(startOffset int64) (func() int64, func(delta int64)) {
	now := fakeClockEpoch + startOffset
	clock := func() int64 { return now }
	advance := func(delta int64) { now += delta }
	return clock, advance
}

func TestErrorGovernorFirstRecordAlwaysEmits(t *testing.T) {
	clock, _ := newFakeClock(0)
	g := NewErrorGovernor(clock)
	r := g.Record(ErrKindBadData)
	if !r.Emit {
		t.Fatalf("the first record of a kind should always emit")
	}
	if r.Total != 1 {
		t.Fatalf("got total %d, want 1", r.Total)
	}
}

func TestErrorGovernorThrottlesBurstsWithinMinInterval(t *testing.T) {
	clock, advance := newFakeClock(0)
	g := NewErrorGovernor(clock)
	g.Record(ErrKindBadData)

	advance(10) // well within MinReportIntervalMs
	r := g.Record(ErrKindBadData)
	if r.Emit {
		t.Fatalf("a burst within MinReportIntervalMs should not emit unless the rate crosses the threshold")
	}
	if r.Total != 2 {
		t.Fatalf("got total %d, want 2 (throttled reports are still counted)", r.Total)
	}
}

func TestErrorGovernorEmitsAfterMinInterval(t *testing.T) {
	clock, advance := newFakeClock(0)
	g := NewErrorGovernor(clock)
	g.Record(ErrKindBadData)

	advance(MinReportIntervalMs + 1)
	r := g.Record(ErrKindBadData)
	if !r.Emit {
		t.Fatalf("a record after MinReportIntervalMs has elapsed should emit")
	}
}

func TestErrorGovernorSeverityEscalatesAboveThreshold(t *testing.T) {
	clock, advance := newFakeClock(0)
	// TransportFault has a low threshold (5/s), easy to cross with tight spacing.
	g := NewErrorGovernor(clock)
	g.Record(ErrKindTransportFault)
	var last Report
	for i := 0; i < 20; i++ {
		advance(50) // 20 events/sec, above the 5/s threshold
		last = g.Record(ErrKindTransportFault)
	}
	if last.Severity != "error" {
		t.Fatalf("got severity %q after sustained high rate, want %q", last.Severity, "error")
	}
}

func TestErrorGovernorUnknownKindStillRecords(t *testing.T) {
	clock, _ := newFakeClock(0)
	g := NewErrorGovernor(clock)
	r := g.Record(ErrorKind(999))
	if !r.Emit {
		t.Fatalf("the first record of even an unregistered kind should emit")
	}
}
