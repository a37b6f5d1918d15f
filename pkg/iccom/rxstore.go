package iccom

import "sync"

// RX message store (C4). A per-channel ordered list of messages under
// construction and finalized, with commit/rollback of uncommitted deltas
// and a per-channel/global ready-callback registry.

// Message is a variable-length byte sequence under construction or
// finalized on one channel. Bytes is never mutated by anything but the
// transport context while UncommittedLength > 0; see spec.md §5 and the
// RXStore doc comment for the unlocked-copy invariant this depends on.
type Message struct {
	Channel           Channel
	ID                MessageID
	Finalized         bool
	UncommittedLength int
	Bytes             []byte
}

func (m *Message) ready() bool {
	return m.Finalized && m.UncommittedLength == 0
}

// ReadyCallback delivers a finalized message to a consumer. It returns
// true if the consumer took ownership of data (the store drops its
// reference without any further action - Go's GC reclaims it once
// unreferenced) or false if the consumer only borrowed it.
type ReadyCallback func(channel Channel, data []byte, opaque interface{}) (tookOwnership bool)

type channelRecord struct {
	messages    []*Message
	nextID      MessageID
	callback    ReadyCallback
	opaque      interface{}
	hasCallback bool
}

func (rec *channelRecord) allocID() MessageID {
	id := rec.nextID + 1
	if id == 0 {
		id = 1
	}
	rec.nextID = id
	return id
}

// RXStore holds every channel's message lists plus the ready-callback
// registry. A single mutex protects the channel map and message lists;
// byte-copy work for a single append is done outside the lock under the
// invariant that the transport context is the sole mutator of in-progress
// messages (spec.md §5, §9).
type RXStore struct {
	mu                   sync.Mutex
	channels             map[Channel]*channelRecord
	globalCallback       ReadyCallback
	globalOpaque         interface{}
	hasGlobalCallback    bool
	finalizedSinceCommit int
}

func NewRXStore() *RXStore {
	return &RXStore{channels: make(map[Channel]*channelRecord)}
}

func (s *RXStore) recordFor(channel Channel) *channelRecord {
	rec, ok := s.channels[channel]
	if !ok {
		rec = &channelRecord{}
		s.channels[channel] = rec
	}
	return rec
}

// CreateMessage allocates a new message on channel with the next
// per-channel id (wrapping from the max non-zero value back to 1).
func (s *RXStore) CreateMessage(channel Channel) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordFor(channel)
	msg := &Message{Channel: channel, ID: rec.allocID()}
	rec.messages = append(rec.messages, msg)
	return msg
}

// LastUnfinalized returns the channel's tail message if it exists and is
// not yet finalized, else nil.
func (s *RXStore) LastUnfinalized(channel Channel) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.channels[channel]
	if !ok || len(rec.messages) == 0 {
		return nil
	}
	tail := rec.messages[len(rec.messages)-1]
	if tail.Finalized {
		return nil
	}
	return tail
}

// AppendToMessage appends data to the named message, bumping its
// uncommitted length and setting Finalized if final is set. The byte copy
// itself happens outside the store lock.
func (s *RXStore) AppendToMessage(channel Channel, id MessageID, data []byte, final bool) error {
	s.mu.Lock()
	rec, ok := s.channels[channel]
	if !ok {
		s.mu.Unlock()
		return ErrMessageNotFound
	}
	var msg *Message
	for _, m := range rec.messages {
		if m.ID == id {
			msg = m
			break
		}
	}
	if msg == nil {
		s.mu.Unlock()
		return ErrMessageNotFound
	}
	if msg.Finalized {
		s.mu.Unlock()
		return ErrMessageFinalized
	}
	s.mu.Unlock()

	msg.Bytes = append(msg.Bytes, data...)
	msg.UncommittedLength += len(data)
	if final {
		msg.Finalized = true
		s.mu.Lock()
		s.finalizedSinceCommit++
		s.mu.Unlock()
	}
	return nil
}

// CommitAll clears uncommitted-length bookkeeping for every message,
// making this round's appends permanent.
func (s *RXStore) CommitAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.channels {
		for _, m := range rec.messages {
			m.UncommittedLength = 0
		}
	}
	s.finalizedSinceCommit = 0
}

// RollbackAll undoes every uncommitted append, giving the appearance of an
// atomic per-package apply so the peer can retransmit the whole package.
func (s *RXStore) RollbackAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.channels {
		for _, m := range rec.messages {
			if m.UncommittedLength > 0 {
				m.Bytes = m.Bytes[:len(m.Bytes)-m.UncommittedLength]
				m.Finalized = false
				m.UncommittedLength = 0
			}
		}
	}
	s.finalizedSinceCommit = 0
}

// HasFinalizedSinceCommit reports whether any message finalized during the
// current (uncommitted) round, i.e. since the last CommitAll or
// RollbackAll.
func (s *RXStore) HasFinalizedSinceCommit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizedSinceCommit > 0
}

// PopFirstReady returns and removes the oldest ready (finalized,
// fully-committed) message on channel, transferring ownership to the
// caller. Used by the engine's synchronous Read API.
func (s *RXStore) PopFirstReady(channel Channel) (*Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.channels[channel]
	if !ok || len(rec.messages) == 0 {
		return nil, false
	}
	head := rec.messages[0]
	if !head.ready() {
		return nil, false
	}
	rec.messages = rec.messages[1:]
	return head, true
}

// SetChannelCallback installs a per-channel or (via AnyChannel) global
// ready-callback. Passing a nil callback clears the corresponding entry.
func (s *RXStore) SetChannelCallback(channel Channel, cb ReadyCallback, opaque interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel == AnyChannel {
		if cb == nil {
			s.hasGlobalCallback = false
			s.globalCallback = nil
			s.globalOpaque = nil
			return
		}
		s.hasGlobalCallback = true
		s.globalCallback = cb
		s.globalOpaque = opaque
		return
	}
	rec := s.recordFor(channel)
	if cb == nil {
		rec.hasCallback = false
		rec.callback = nil
		rec.opaque = nil
		return
	}
	rec.hasCallback = true
	rec.callback = cb
	rec.opaque = opaque
}

func (s *RXStore) lookupCallback(rec *channelRecord) (ReadyCallback, interface{}, bool) {
	if rec.hasCallback {
		return rec.callback, rec.opaque, true
	}
	if s.hasGlobalCallback {
		return s.globalCallback, s.globalOpaque, true
	}
	return nil, nil, false
}

type deliveryJob struct {
	channel Channel
	msg     *Message
	cb      ReadyCallback
	opaque  interface{}
}

// DeliverReadyToConsumers walks every channel in order, invoking the
// per-channel (or global) callback for each ready message and removing it
// once the callback returns. Within a channel, messages are delivered in
// the order they finalized; across channels, no order is guaranteed (Go
// map iteration order).
func (s *RXStore) DeliverReadyToConsumers() {
	s.mu.Lock()
	var jobs []deliveryJob
	for channel, rec := range s.channels {
		for _, msg := range rec.messages {
			if !msg.ready() {
				break
			}
			cb, opaque, ok := s.lookupCallback(rec)
			if !ok {
				break
			}
			jobs = append(jobs, deliveryJob{channel: channel, msg: msg, cb: cb, opaque: opaque})
		}
	}
	s.mu.Unlock()

	for _, j := range jobs {
		j.cb(j.channel, j.msg.Bytes, j.opaque)
		s.mu.Lock()
		if rec, ok := s.channels[j.channel]; ok && len(rec.messages) > 0 && rec.messages[0] == j.msg {
			rec.messages = rec.messages[1:]
		}
		s.mu.Unlock()
	}
}

// Clear drops every channel record; used on engine close.
func (s *RXStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = make(map[Channel]*channelRecord)
	s.hasGlobalCallback = false
	s.globalCallback = nil
}
