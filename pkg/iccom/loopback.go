package iccom

import (
	"sync/atomic"
	"time"
)

// loopbackKeepalive is how long an idle loop waits for a Kick before it
// runs a keepalive xfer anyway. The two halves idle independently, so this
// is also what lets one side finish an exchange its idle peer has not
// been kicked into.
const loopbackKeepalive = 10 * time.Millisecond

// loopback.go implements an in-memory, perfectly-synchronous Transport for
// two engines on the same process. spec.md treats the real SymSPI driver
// as out of scope, specified only by its contract (§1); this is the test
// and demo double that contract needs, modeled on the teacher's
// pkg/usock.USOCK in spirit (a dedicated goroutine loop, a done channel,
// a WaitGroup join on Close) but built around a rendezvous bus instead of
// a byte-stream read loop, since the link here is synchronous full-duplex
// rather than an asynchronous UART.

// loopbackBus is the shared rendezvous point between the two halves of a
// loopback pair. Each direction is a one-slot buffered channel: a side's
// send completes at once, and its receive blocks until the peer performs
// the matching step - the lockstep a real symmetric full-duplex link
// enforces in hardware.
type loopbackBus struct {
	toA chan []byte
	toB chan []byte
}

// NewLoopbackPair returns two Transports wired to each other. Use one as
// each side's transport when calling Init on a pair of engines to test or
// demo them talking to each other without real hardware.
func NewLoopbackPair() (a, b *LoopbackTransport) {
	bus := &loopbackBus{toA: make(chan []byte, 1), toB: make(chan []byte, 1)}
	a = &LoopbackTransport{bus: bus, isA: true, kick: make(chan struct{}, 1), done: make(chan struct{})}
	b = &LoopbackTransport{bus: bus, isA: false, kick: make(chan struct{}, 1), done: make(chan struct{})}
	return a, b
}

// LoopbackTransport is one half of an in-memory symmetric duplex link.
type LoopbackTransport struct {
	bus     *loopbackBus
	isA     bool
	handler TransportHandler
	kick    chan struct{}
	done    chan struct{}
	running int32
}

// Init implements Transport.
func (t *LoopbackTransport) Init(h TransportHandler, initial []byte) error {
	t.handler = h
	atomic.StoreInt32(&t.running, 1)
	go t.loop(initial)
	return nil
}

func (t *LoopbackTransport) loop(initial []byte) {
	out := initial
	startImmediately := true
	for {
		if !startImmediately {
			select {
			case <-t.kick:
			case <-time.After(loopbackKeepalive):
			case <-t.done:
				return
			}
		}
		select {
		case <-t.done:
			return
		default:
		}

		in, ok := t.exchangeOnce(out)
		if !ok {
			return
		}
		next, si := t.handler.OnXferDone(in)
		if next == nil {
			return
		}
		out = next
		startImmediately = si
	}
}

func (t *LoopbackTransport) exchangeOnce(out []byte) ([]byte, bool) {
	outCh, inCh := t.bus.toB, t.bus.toA
	if !t.isA {
		outCh, inCh = t.bus.toA, t.bus.toB
	}
	select {
	case outCh <- out:
	case <-t.done:
		return nil, false
	}
	select {
	case in := <-inCh:
		return in, true
	case <-t.done:
		return nil, false
	}
}

// Kick implements Transport. It resumes the exchange loop when it is idle
// waiting after a "no hurry" xfer (start_immediately = false); the engine
// calls this from Post/Flush to push newly queued data out right away
// instead of waiting for the next keepalive cycle.
func (t *LoopbackTransport) Kick() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// Reset implements Transport. A loopback link never wedges, so this is a
// no-op.
func (t *LoopbackTransport) Reset() error { return nil }

// Close implements Transport.
func (t *LoopbackTransport) Close() {
	if !atomic.CompareAndSwapInt32(&t.running, 1, 0) {
		return
	}
	close(t.done)
}

// IsRunning implements Transport.
func (t *LoopbackTransport) IsRunning() bool {
	return atomic.LoadInt32(&t.running) == 1
}
