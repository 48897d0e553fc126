package kernel

// Built-in message types live in the reserved range whose high byte is 0xFF.
// Application message types must stay below this range.
const (
	// MsgTypeReserved is the first built-in type value; application code
	// must never use a type at or above this value.
	MsgTypeReserved uint32 = 0xFF000001

	MsgTypeTimerFire   uint32 = 0xFF000001
	MsgTypeFDEvent     uint32 = 0xFF000002
	MsgTypeLog         uint32 = 0xFF000003
	MsgTypeChildExit   uint32 = 0xFF000004
	MsgTypeNameRegister uint32 = 0xFF000005
	MsgTypeNameUnregister uint32 = 0xFF000006
	MsgTypePathRegister uint32 = 0xFF000007
	MsgTypePathUnregister uint32 = 0xFF000008
)

// IsReserved reports whether a message type falls in the kernel/built-in
// reserved range (high byte 0xFF).
func IsReserved(msgType uint32) bool {
	return msgType>>24 == 0xFF
}

// Message is an immutable tuple: source identity, destination identity, a
// type discriminator, and an owned payload byte sequence. The runtime copies
// the payload on send and the copy is considered owned by the message from
// that point on; nothing else retains a reference to the sender's buffer.
type Message struct {
	Source  ID
	Dest    ID
	Type    uint32
	Payload []byte
}

// clonePayload returns a fresh copy of p, or nil if p is empty. Used on send
// so the message never aliases the caller's buffer.
func clonePayload(p []byte) []byte {
	if len(p) == 0 {
		return nil
	}

	cp := make([]byte, len(p))
	copy(cp, p)

	return cp
}

// NewMessage builds a message, copying payload so the caller's buffer may be
// reused or discarded immediately after the call returns.
func NewMessage(source, dest ID, msgType uint32, payload []byte) Message {
	return Message{
		Source:  source,
		Dest:    dest,
		Type:    msgType,
		Payload: clonePayload(payload),
	}
}

// ExitReason describes why a child actor terminated, carried in a child-exit
// message to its supervisor.
type ExitReason int

const (
	// ExitNormal means the behavior itself returned stop.
	ExitNormal ExitReason = iota
	// ExitKilled means the actor was stopped externally (e.g. by its
	// supervisor or an operator command).
	ExitKilled
)

// String renders the exit reason for logs.
func (r ExitReason) String() string {
	switch r {
	case ExitNormal:
		return "normal"
	case ExitKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// ChildExitPayload is the decoded form of a MsgTypeChildExit message's
// payload, used internally by the supervisor package. The wire payload is
// {child ID: 8 bytes}{reason: 1 byte}.
type ChildExitPayload struct {
	Child  ID
	Reason ExitReason
}

// EncodeChildExit serializes a ChildExitPayload to bytes.
func EncodeChildExit(p ChildExitPayload) []byte {
	buf := make([]byte, 9)
	putUint64(buf[0:8], uint64(p.Child))
	if p.Reason == ExitKilled {
		buf[8] = 1
	}

	return buf
}

// DecodeChildExit parses bytes produced by EncodeChildExit. ok is false if
// buf is too short.
func DecodeChildExit(buf []byte) (p ChildExitPayload, ok bool) {
	if len(buf) < 9 {
		return ChildExitPayload{}, false
	}

	p.Child = ID(getUint64(buf[0:8]))
	if buf[8] == 1 {
		p.Reason = ExitKilled
	} else {
		p.Reason = ExitNormal
	}

	return p, true
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}

	return v
}

// TimerFirePayload is the decoded form of a MsgTypeTimerFire message.
type TimerFirePayload struct {
	TimerID          uint32
	ExpirationsCount uint32
}

// FDEventPayload is the decoded form of a MsgTypeFDEvent message.
type FDEventPayload struct {
	FD              int
	ObservedEvents  PollEvents
}
