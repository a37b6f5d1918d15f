package iccom

import "sync"

// TX package queue (C5). An ordered queue of packages awaiting
// transmission, with a packet-append engine that fragments outbound
// messages across packages.
//
// Invariant: the queue is never empty. All non-tail packages are
// finalized; the tail is either finalized (ready) or actively
// accumulating packets. When the queue has one element, it serves as both
// head (next xfer) and tail (accumulator).
//
// A single mutex guards all structural changes. Appending bytes into the
// tail is also done under this lock: the original driver this is modeled
// on (spec.md §5, §9) can skip locking the byte-copy because a real SymSPI
// link hands the head buffer to DMA hardware, which genuinely owns it for
// the duration of a transfer. A pure-software engine has no equivalent
// hardware ownership handoff to exploit, so this implementation folds the
// copy into the same critical section rather than chasing an invariant
// that only makes sense with real DMA.
type TXQueue struct {
	mu       sync.Mutex
	packages []*Package
	nextID   byte
	frame    int
}

// NewTXQueue creates a queue holding a single empty, finalized package
// with id 1, sized for frameSize-byte data xfers.
func NewTXQueue(frameSize int) (*TXQueue, error) {
	pkg, err := newEmptyPackage(1, frameSize)
	if err != nil {
		return nil, err
	}
	return &TXQueue{packages: []*Package{pkg}, nextID: 2, frame: frameSize}, nil
}

func (q *TXQueue) allocID() byte {
	id := q.nextID
	next := id + 1
	if next == 0 {
		next = 1
	}
	q.nextID = next
	return id
}

// enqueueNewEmptyLocked finalizes the current tail and appends a new,
// empty tail with the next id. Caller must hold q.mu.
func (q *TXQueue) enqueueNewEmptyLocked() error {
	tail := q.packages[len(q.packages)-1]
	tail.finalize()
	id := q.allocID()
	pkg, err := newEmptyPackage(id, q.frame)
	if err != nil {
		return err
	}
	q.packages = append(q.packages, pkg)
	return nil
}

// AppendMessage fragments data into packets appended to the queue's tail
// package(s), allocating new tail packages as the current one fills up.
// The tail is left finalized when this returns successfully.
func (q *TXQueue) AppendMessage(data []byte, channel Channel) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.packages) == 0 {
		return ErrClosing // drained by a concurrent engine Close
	}

	remaining := data
	for {
		tail := q.packages[len(q.packages)-1]
		free := tail.freeSpace()
		if free <= packetHeaderSize {
			if err := q.enqueueNewEmptyLocked(); err != nil {
				return err
			}
			continue
		}
		maxPayload := free - packetHeaderSize
		n := len(remaining)
		final := true
		if n > maxPayload {
			n = maxPayload
			final = false
		}
		buf := make([]byte, packetHeaderSize+n)
		writePacket(buf, channel, final, remaining[:n])
		written := tail.appendRaw(buf)
		if written == 0 {
			if err := q.enqueueNewEmptyLocked(); err != nil {
				return err
			}
			continue
		}
		remaining = remaining[n:]
		if len(remaining) == 0 {
			break
		}
	}

	tail := q.packages[len(q.packages)-1]
	tail.finalize()
	return nil
}

// AdvanceOnAck drops the head package once it has been positively
// acknowledged, or - if it was the only element - reuses it with a fresh
// id and an empty payload. It reports whether the queue held data beyond
// the reused empty placeholder (i.e. more than one element before
// advancing).
func (q *TXQueue) AdvanceOnAck() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.packages) > 1 {
		q.packages = q.packages[1:]
		return true
	}

	pkg := q.packages[0]
	id := q.allocID()
	pkg.setID(id)
	pkg.setPayloadLength(0)
	pkg.finalize()
	return false
}

// Head returns the current head package's wire bytes - the package
// currently handed to the transport for the next data xfer.
func (q *TXQueue) Head() []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.packages[0].bytes()
}

// HeadID reports the head package's current id.
func (q *TXQueue) HeadID() byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.packages[0].id()
}

// Depth reports the number of packages currently queued, for the
// introspection surface (spec.md §6).
func (q *TXQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.packages)
}

// Drain releases every queued package; used on engine close.
func (q *TXQueue) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.packages = nil
}
