package iccom

import "sync"

// Frame state machine (C6). Alternates between a data half-frame and an
// ack half-frame, validating received packages, suppressing duplicates,
// and driving the TX queue and RX store. This is the direct generalization
// of the teacher's pkg/usock byte-at-a-time framing state machine to a
// fixed-size, full-duplex, two-half-frame cycle.

type stage int

const (
	dataStage stage = iota
	ackStage
)

// FrameSM implements TransportHandler; the injected Transport calls it
// back from its own serialized context (never reentrant, per spec.md §5).
type FrameSM struct {
	mu          sync.Mutex
	stage       stage
	lastRxID    byte
	hasLastRxID bool

	ackSize int

	txq        *TXQueue
	rx         *RXStore
	gov        *ErrorGovernor
	dispatcher *Dispatcher
	stats      *Stats

	closed bool
}

func newFrameSM(txq *TXQueue, rx *RXStore, ackSize int, gov *ErrorGovernor, dispatcher *Dispatcher, stats *Stats) *FrameSM {
	return &FrameSM{
		stage:   dataStage,
		ackSize: ackSize,
		txq:     txq,
		rx:      rx,
		gov:     gov,
		dispatcher: dispatcher,
		stats:   stats,
	}
}

// OnXferDone implements TransportHandler.
func (sm *FrameSM) OnXferDone(done []byte) (next []byte, startImmediately bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.closed {
		return nil, false
	}

	switch sm.stage {
	case dataStage:
		return sm.handleDataDoneLocked(done)
	default:
		return sm.handleAckDoneLocked(done)
	}
}

func (sm *FrameSM) handleDataDoneLocked(frame []byte) (next []byte, startImmediately bool) {
	sm.stats.incXfer(len(frame))

	payloadLen, ok := validatePackage(frame)
	if !ok {
		sm.report(ErrKindBadData)
		sm.stats.incPackagesBad()
		sm.stage = ackStage
		return buildNack(sm.ackSize), true
	}

	id := packageFrameID(frame)
	if sm.hasLastRxID && id == sm.lastRxID {
		sm.report(ErrKindDuplicate)
		sm.stats.incPackagesDuplicated()
		sm.stage = ackStage
		return buildAck(sm.ackSize), true
	}

	payload := frame[packageHeaderSize : packageHeaderSize+payloadLen]
	packets, err := parseAllPackets(payload)
	if err != nil {
		sm.rx.RollbackAll()
		sm.report(ErrKindParseFailed)
		sm.stats.incPackagesParseFailed()
		sm.stage = ackStage
		return buildNack(sm.ackSize), true
	}

	if err := sm.applyPackets(packets); err != nil {
		sm.rx.RollbackAll()
		sm.report(ErrKindParseFailed)
		sm.stats.incPackagesParseFailed()
		sm.stage = ackStage
		return buildNack(sm.ackSize), true
	}

	sm.rx.CommitAll()
	sm.lastRxID = id
	sm.hasLastRxID = true
	sm.stats.incPackagesOK()
	sm.stats.incPacketsReceived(len(packets))
	sm.stats.addConsumerBytes(sumPacketPayloads(packets))

	hadFinal := false
	for _, p := range packets {
		if p.Final {
			hadFinal = true
			sm.stats.incMessagesReady()
		}
	}
	if hadFinal {
		sm.dispatcher.Schedule()
	}

	sm.stage = ackStage
	return buildAck(sm.ackSize), true
}

func sumPacketPayloads(packets []Packet) int {
	n := 0
	for _, p := range packets {
		n += len(p.Payload)
	}
	return n
}

// applyPackets dispatches each parsed packet into the RX store. A failure
// partway through leaves the store with some uncommitted deltas; the
// caller rolls the whole batch back so the peer's retransmission applies
// cleanly (spec.md §4.4, property 3).
func (sm *FrameSM) applyPackets(packets []Packet) error {
	for _, p := range packets {
		msg := sm.rx.LastUnfinalized(p.Channel)
		if msg == nil {
			msg = sm.rx.CreateMessage(p.Channel)
		}
		if err := sm.rx.AppendToMessage(p.Channel, msg.ID, p.Payload, p.Final); err != nil {
			return err
		}
		sm.stats.incMessagesReceivedOK()
	}
	return nil
}

func (sm *FrameSM) handleAckDoneLocked(frame []byte) (next []byte, startImmediately bool) {
	sm.stats.incXfer(len(frame))
	if isAckFrame(frame, sm.ackSize) && isPositiveAck(frame) {
		hadMore := sm.txq.AdvanceOnAck()
		sm.stats.incPackagesXfered()
		sm.stage = dataStage
		return sm.txq.Head(), hadMore
	}

	sm.stats.incPackagesFailed()
	sm.stage = dataStage
	return sm.txq.Head(), true
}

// OnXferFailed implements TransportHandler.
func (sm *FrameSM) OnXferFailed(failed []byte, err error) (next []byte) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.closed {
		return nil
	}

	sm.report(ErrKindTransportFault)
	sm.stats.incTransportFault()
	sm.stage = ackStage
	return buildNack(sm.ackSize)
}

func (sm *FrameSM) report(kind ErrorKind) {
	r := sm.gov.Record(kind)
	if r.Emit {
		logGovernorReport(r)
	}
}

// close marks the SM closed; the next callback invocation returns a nil
// buffer, the sentinel the Transport contract uses to stop its loop.
func (sm *FrameSM) close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.closed = true
}
