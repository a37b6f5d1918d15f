package iccom

import (
	"fmt"
	"sync/atomic"
)

// Engine façade (C9): lifecycle and the consumer-facing API from spec.md
// §6, wired to an injected Transport.

// Config fixes the two frame sizes the link's underlying transport
// negotiates out of band.
type Config struct {
	// DataXferSize is the fixed size of a data half-frame in bytes
	// (DATA_XFER_SIZE_BYTES). Must be large enough to hold the package
	// header/trailer plus at least one packet.
	DataXferSize int
	// AckXferSize is the fixed size of an ack half-frame in bytes
	// (ACK_XFER_SIZE_BYTES). Normally 1.
	AckXferSize int
}

// Engine is the ICCom protocol engine handle. All public methods are safe
// for concurrent use from any number of consumer goroutines.
type Engine struct {
	cfg        Config
	txq        *TXQueue
	rx         *RXStore
	sm         *FrameSM
	dispatcher *Dispatcher
	transport  Transport
	stats      *Stats
	gov        *ErrorGovernor

	closing int32
}

// Init creates the engine, wires it to transport, and starts the exchange
// loop. transport.Init is called before Init returns; the first data xfer
// begins as soon as the transport's own loop starts.
func Init(transport Transport, cfg Config) (*Engine, error) {
	if transport == nil {
		return nil, fmt.Errorf("iccom: init: %w", ErrInvalidArgument)
	}
	if cfg.AckXferSize < 1 {
		return nil, fmt.Errorf("iccom: init: %w", ErrInvalidArgument)
	}

	txq, err := NewTXQueue(cfg.DataXferSize)
	if err != nil {
		return nil, fmt.Errorf("iccom: init: %w", err)
	}
	rx := NewRXStore()
	stats := NewStats()
	stats.setDepthFn(txq.Depth)
	gov := NewErrorGovernor(nil)
	dispatcher := NewDispatcher(rx)
	sm := newFrameSM(txq, rx, cfg.AckXferSize, gov, dispatcher, stats)

	e := &Engine{
		cfg:        cfg,
		txq:        txq,
		rx:         rx,
		sm:         sm,
		dispatcher: dispatcher,
		transport:  transport,
		stats:      stats,
		gov:        gov,
	}

	if err := transport.Init(sm, txq.Head()); err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("iccom: transport init: %w", err)
	}
	return e, nil
}

func (e *Engine) isClosing() bool {
	return atomic.LoadInt32(&e.closing) != 0
}

// Post appends bytes as a new message on channel, fragmenting it across
// the TX queue's packets/packages as needed.
func (e *Engine) Post(channel Channel, data []byte) error {
	if e.isClosing() {
		return ErrClosing
	}
	if channel > MaxChannel {
		return ErrInvalidChannel
	}
	if len(data) == 0 {
		return ErrInvalidArgument
	}
	if err := e.txq.AppendMessage(data, channel); err != nil {
		return err
	}
	e.transport.Kick()
	return nil
}

// Flush wakes a transport that has settled idle (spec.md §6) so anything
// already queued doesn't wait for the next keepalive cycle. It does not
// touch the TX queue: AppendMessage already leaves the tail finalized
// after every successful call.
func (e *Engine) Flush() error {
	if e.isClosing() {
		return ErrClosing
	}
	e.transport.Kick()
	return nil
}

// Read returns the oldest ready message on channel, if any, transferring
// ownership to the caller.
func (e *Engine) Read(channel Channel) (data []byte, id MessageID, ok bool, err error) {
	if e.isClosing() {
		return nil, 0, false, ErrClosing
	}
	if channel > MaxChannel {
		return nil, 0, false, ErrInvalidChannel
	}
	msg, ok := e.rx.PopFirstReady(channel)
	if !ok {
		return nil, 0, false, nil
	}
	return msg.Bytes, msg.ID, true, nil
}

// SetChannelCallback installs a per-channel ready-callback, or (passing
// AnyChannel) the global fallback used when no per-channel callback is
// set. Passing a nil cb clears the corresponding entry.
func (e *Engine) SetChannelCallback(channel Channel, cb ReadyCallback, opaque interface{}) error {
	if channel != AnyChannel && channel > MaxChannel {
		return ErrInvalidChannel
	}
	e.rx.SetChannelCallback(channel, cb, opaque)
	return nil
}

// RemoveChannelCallback clears a previously installed callback.
func (e *Engine) RemoveChannelCallback(channel Channel) error {
	return e.SetChannelCallback(channel, nil, nil)
}

// IsRunning reports whether the engine is still accepting work.
func (e *Engine) IsRunning() bool {
	return !e.isClosing()
}

// Stats returns a point-in-time snapshot of the introspection surface.
func (e *Engine) Stats() Snapshot {
	return e.stats.Snapshot()
}

// Collector returns a Prometheus collector over this engine's stats.
func (e *Engine) Collector() *Collector {
	return NewCollector(e.stats)
}

// Close is idempotent and atomic (a CAS gates re-entry per spec.md §5):
// it signals the frame state machine to stop, closes the transport, joins
// the dispatcher, and drops the TX queue and RX store.
func (e *Engine) Close() error {
	if !atomic.CompareAndSwapInt32(&e.closing, 0, 1) {
		return nil
	}
	e.sm.close()
	e.transport.Close()
	e.dispatcher.Close()
	e.txq.Drain()
	e.rx.Clear()
	return nil
}
