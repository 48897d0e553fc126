package kernel

import "fmt"

// ID is an actor identity: a 64-bit value composed of a 32-bit node
// identifier in the upper half and a 32-bit monotonically increasing local
// sequence number in the lower half. The zero value is the invalid sentinel
// and is never assigned to a live actor.
type ID uint64

// InvalidID is the sentinel returned by failed lookups and failed spawns.
const InvalidID ID = 0

// MakeID composes an identity from a node id and a local sequence number.
func MakeID(node, seq uint32) ID {
	return ID(uint64(node)<<32 | uint64(seq))
}

// NodeOf extracts the node portion of an identity.
func (id ID) NodeOf() uint32 {
	return uint32(id >> 32)
}

// SeqOf extracts the local sequence portion of an identity.
func (id ID) SeqOf() uint32 {
	return uint32(id)
}

// Valid reports whether id is anything other than the invalid sentinel.
func (id ID) Valid() bool {
	return id != InvalidID
}

// String renders the identity as node:seq for logs and diagnostics.
func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.NodeOf(), id.SeqOf())
}

// sequencer allocates strictly increasing local sequence numbers for one
// runtime's lifetime. Sequence zero is never handed out since it collides
// with the invalid sentinel when the node id is also zero; allocation starts
// at one. Wraparound at 32 bits is treated as fatal by the caller (Runtime),
// since identity reuse would break every downstream invariant.
type sequencer struct {
	next uint32
}

// newSequencer returns a sequencer primed to hand out 1 as its first value.
func newSequencer() *sequencer {
	return &sequencer{next: 1}
}

// allocate returns the next sequence number and whether the allocator has
// wrapped past its 32-bit range (ok is false on wrap; the caller must treat
// this as fatal per spec and refuse to spawn further actors).
func (s *sequencer) allocate() (seq uint32, ok bool) {
	if s.next == 0 {
		return 0, false
	}

	seq = s.next
	s.next++

	return seq, true
}
