// Package wire implements the microkernel's bit-exact message framing: a
// fixed 28-byte header followed by an opaque payload, in either host or
// network (big-endian) byte order.
package wire

import (
	"encoding/binary"
	"errors"
	"unsafe"

	"github.com/foundation42/microkernel/internal/kernel"
)

// HeaderSize is the fixed wire header length in bytes (spec §3, §6).
const HeaderSize = 28

// ByteOrder selects host or network encoding for a wire codec.
type ByteOrder int

const (
	// HostOrder is used for same-machine links (Unix-domain sockets).
	HostOrder ByteOrder = iota
	// NetworkOrder is big-endian, used for TCP and UDP.
	NetworkOrder
)

// ErrShortBuffer is returned when a buffer is too small to hold a header or
// the payload its header declares.
var ErrShortBuffer = errors.New("wire: buffer shorter than declared length")

func order(bo ByteOrder) binary.ByteOrder {
	if bo == NetworkOrder {
		return binary.BigEndian
	}

	return hostByteOrder
}

// hostByteOrder is resolved once at init time by probing the machine's
// native endianness, since Go has no portable "native order" constant.
var hostByteOrder = detectHostOrder()

func detectHostOrder() binary.ByteOrder {
	var i uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 1 {
		return binary.LittleEndian
	}

	return binary.BigEndian
}

// Serialize allocates HeaderSize+len(payload) bytes: the 28-byte header per
// §3 (source, dest, type, payload length, reserved=0) followed by a copy of
// the payload, encoded with the given byte order.
func Serialize(msg kernel.Message, bo ByteOrder) []byte {
	ord := order(bo)

	buf := make([]byte, HeaderSize+len(msg.Payload))
	ord.PutUint64(buf[0:8], uint64(msg.Source))
	ord.PutUint64(buf[8:16], uint64(msg.Dest))
	ord.PutUint32(buf[16:20], msg.Type)
	ord.PutUint32(buf[20:24], uint32(len(msg.Payload)))
	ord.PutUint32(buf[24:28], 0) // reserved

	copy(buf[HeaderSize:], msg.Payload)

	return buf
}

// Header is the decoded fixed portion of a framed message, used by stream
// transports to know how much payload to keep reading before a full
// message is available.
type Header struct {
	Source        kernel.ID
	Dest          kernel.ID
	Type          uint32
	PayloadLength uint32
}

// DecodeHeader reads the first HeaderSize bytes of buf.
func DecodeHeader(buf []byte, bo ByteOrder) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortBuffer
	}

	ord := order(bo)

	return Header{
		Source:        kernel.ID(ord.Uint64(buf[0:8])),
		Dest:          kernel.ID(ord.Uint64(buf[8:16])),
		Type:          ord.Uint32(buf[16:20]),
		PayloadLength: ord.Uint32(buf[20:24]),
	}, nil
}

// Deserialize validates len(buf) >= HeaderSize, reads the header, requires
// len(buf) >= HeaderSize+payload_length, and returns a message holding a
// fresh copy of the payload (spec §4.8).
func Deserialize(buf []byte, bo ByteOrder) (kernel.Message, error) {
	hdr, err := DecodeHeader(buf, bo)
	if err != nil {
		return kernel.Message{}, err
	}

	end := HeaderSize + int(hdr.PayloadLength)
	if len(buf) < end {
		return kernel.Message{}, ErrShortBuffer
	}

	var payload []byte
	if hdr.PayloadLength > 0 {
		payload = make([]byte, hdr.PayloadLength)
		copy(payload, buf[HeaderSize:end])
	}

	return kernel.Message{
		Source:  hdr.Source,
		Dest:    hdr.Dest,
		Type:    hdr.Type,
		Payload: payload,
	}, nil
}
