package kernel

// mailbox is a bounded FIFO of messages belonging to one actor. Capacity is
// rounded up to a power of two at creation. Enqueue never blocks: it fails
// and returns false when the ring is full. The runtime is the sole consumer;
// Send is called only from the runtime thread, so no internal locking is
// required (see spec §5: a runtime handle is confined to one thread).
type mailbox struct {
	ring []Message
	cap  uint32 // power of two
	mask uint32
	head uint32 // next slot to dequeue
	tail uint32 // next slot to enqueue
	n    uint32 // current count
}

// newMailbox allocates a mailbox with at least the requested capacity,
// rounded up to the next power of two (minimum 1).
func newMailbox(capacity uint32) *mailbox {
	c := nextPowerOfTwo(capacity)
	if c == 0 {
		c = 1
	}

	return &mailbox{
		ring: make([]Message, c),
		cap:  c,
		mask: c - 1,
	}
}

func nextPowerOfTwo(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++

	return v
}

// enqueue appends msg to the tail. Returns false without mutating state if
// the mailbox is at capacity.
func (m *mailbox) enqueue(msg Message) bool {
	if m.n == m.cap {
		return false
	}

	m.ring[m.tail] = msg
	m.tail = (m.tail + 1) & m.mask
	m.n++

	return true
}

// dequeue pops the head message. ok is false when the mailbox is empty.
func (m *mailbox) dequeue() (Message, bool) {
	if m.n == 0 {
		return Message{}, false
	}

	msg := m.ring[m.head]
	m.ring[m.head] = Message{} // release payload reference
	m.head = (m.head + 1) & m.mask
	m.n--

	return msg, true
}

// count returns the number of messages currently queued.
func (m *mailbox) count() uint32 {
	return m.n
}

// isEmpty reports whether the mailbox holds no messages.
func (m *mailbox) isEmpty() bool {
	return m.n == 0
}

// isFull reports whether the mailbox is at capacity.
func (m *mailbox) isFull() bool {
	return m.n == m.cap
}

// destroy drains and discards every remaining message, releasing payload
// references so they can be garbage collected.
func (m *mailbox) destroy() {
	for {
		if _, ok := m.dequeue(); !ok {
			break
		}
	}
}

// drainInto moves every queued message, in FIFO order, into dst. Used by hot
// reload to transfer undelivered messages to the replacement actor's
// mailbox. Messages that dst rejects (should not happen when dst has at
// least as much capacity as the source) are dropped.
func (m *mailbox) drainInto(dst *mailbox) (moved int) {
	for {
		msg, ok := m.dequeue()
		if !ok {
			break
		}
		if dst.enqueue(msg) {
			moved++
		}
	}

	return moved
}
