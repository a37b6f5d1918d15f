package iccom

// Transport is the capability set an integrator injects into the engine
// (spec.md §6). It models a symmetric full-duplex device typified by
// SymSPI: both sides issue exactly the same sequence, one data-sized xfer
// then one ack-sized xfer, repeat. The transport itself is out of scope
// for this repo (spec.md §1) - only its contract is specified here; see
// pkg/iccom/loopback.go for an in-memory double used by tests and the
// demo daemon.
type Transport interface {
	// Init starts the exchange loop, handing the driver its first
	// outbound buffer and the handler the engine uses to decide what
	// goes out next. The driver owns looping; it calls back into h for
	// every completed or failed xfer.
	Init(h TransportHandler, initialXfer []byte) error

	// Reset recovers a wedged link without tearing down the engine.
	Reset() error

	// Close stops the exchange loop. Idempotent.
	Close()

	// IsRunning reports whether the exchange loop is still active.
	IsRunning() bool

	// Kick resumes an idle exchange loop that is waiting after a xfer
	// whose handler returned startImmediately=false. The engine calls
	// this from Post/Flush so newly queued data doesn't sit behind an
	// idle-settled link waiting for its next keepalive cycle. Drivers
	// with no such idle wait (or no way to honor it) may implement this
	// as a no-op.
	Kick()
}

// TransportHandler is implemented by the frame state machine and invoked
// by the transport from its own serialized callback context (spec.md §5:
// "Transport callback context ... never reenters").
type TransportHandler interface {
	// OnXferDone is called once a full-duplex xfer completes, with the
	// bytes the peer sent during that xfer. It returns the next buffer
	// to xfer and whether the driver should start it immediately or wait
	// for an explicit Kick. Returning a nil next buffer tells the driver
	// to stop (used on engine close).
	OnXferDone(done []byte) (next []byte, startImmediately bool)

	// OnXferFailed is called when the underlying device reports a
	// transport-level failure instead of completing the xfer.
	OnXferFailed(failed []byte, err error) (next []byte)
}
