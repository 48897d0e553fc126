package ns

import "github.com/foundation42/microkernel/internal/kernel"

// Registry-sync payloads (spec §6): register carries {name, id}, unregister
// carries {name}. The name is length-prefixed (1 byte, since names are
// bounded to MaxNameLength/MaxPathLength, both under 256) rather than
// padded to a fixed 64-byte field, to avoid wasting bandwidth on short
// flat names while still accommodating the longest path.

func encodeRegister(name string, id kernel.ID) []byte {
	buf := make([]byte, 1+len(name)+8)
	buf[0] = byte(len(name))
	copy(buf[1:], name)
	off := 1 + len(name)
	for i := 0; i < 8; i++ {
		buf[off+i] = byte(uint64(id) >> (56 - 8*i))
	}

	return buf
}

func decodeRegister(buf []byte) (name string, id kernel.ID, ok bool) {
	if len(buf) < 1 {
		return "", kernel.InvalidID, false
	}

	nameLen := int(buf[0])
	if len(buf) < 1+nameLen+8 {
		return "", kernel.InvalidID, false
	}

	name = string(buf[1 : 1+nameLen])
	off := 1 + nameLen

	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(buf[off+i])
	}

	return name, kernel.ID(v), true
}

func encodeUnregister(name string) []byte {
	buf := make([]byte, 1+len(name))
	buf[0] = byte(len(name))
	copy(buf[1:], name)

	return buf
}

func decodeUnregister(buf []byte) (name string, ok bool) {
	if len(buf) < 1 {
		return "", false
	}

	nameLen := int(buf[0])
	if len(buf) < 1+nameLen {
		return "", false
	}

	return string(buf[1 : 1+nameLen]), true
}
