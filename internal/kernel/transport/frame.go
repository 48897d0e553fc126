package transport

import (
	"net"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/foundation42/microkernel/internal/kernel"
	"github.com/foundation42/microkernel/internal/kernel/wire"
)

// frameAssembler implements the stream reassembly algorithm of spec §4.9 for
// any net.Conn-backed transport (Unix, TCP): a read buffer, a filled
// cursor, and a target length that starts at the header size and grows
// once the payload length is known.
type frameAssembler struct {
	order  wire.ByteOrder
	buf    []byte
	filled int
	target int
}

func newFrameAssembler(order wire.ByteOrder) *frameAssembler {
	return &frameAssembler{
		order:  order,
		buf:    make([]byte, wire.HeaderSize),
		target: wire.HeaderSize,
	}
}

// pollOnce performs one non-blocking read attempt against conn and advances
// the assembler. The result composes "a message, nothing yet, or a hard
// failure" as a single fn.Result[fn.Option[Message]] per spec §7: Ok(Some)
// is a complete message, Ok(None) is an EAGAIN-equivalent (more data
// needed), Err means the connection is no longer usable (EOF or a hard
// error) and the caller should mark the transport disconnected. Recv
// projects this down to the (Message, bool) public contract.
func (f *frameAssembler) pollOnce(conn net.Conn) fn.Result[fn.Option[kernel.Message]] {
	// Use a 1ms read deadline to emulate a non-blocking read: a conn with
	// no data ready returns a timeout error, which we treat as "nothing to
	// read yet" rather than a hard failure. A deadline already in the past
	// would fail every read, even with data buffered.
	_ = conn.SetReadDeadline(time.Now().Add(time.Millisecond))

	for f.filled < f.target {
		n, err := conn.Read(f.buf[f.filled:f.target])
		if n > 0 {
			f.filled += n
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return fn.Ok(fn.None[kernel.Message]())
			}

			return fn.Err[fn.Option[kernel.Message]](err)
		}
		if n == 0 {
			// No data and no error: treat as would-block.
			return fn.Ok(fn.None[kernel.Message]())
		}
	}

	if f.target == wire.HeaderSize {
		hdr, err := wire.DecodeHeader(f.buf, f.order)
		if err != nil {
			return fn.Err[fn.Option[kernel.Message]](err)
		}

		if hdr.PayloadLength == 0 {
			msg, _ := wire.Deserialize(f.buf, f.order)
			f.reset()
			return fn.Ok(fn.Some(msg))
		}

		grown := make([]byte, wire.HeaderSize+int(hdr.PayloadLength))
		copy(grown, f.buf)
		f.buf = grown
		f.target = len(grown)

		return fn.Ok(fn.None[kernel.Message]())
	}

	msg, err := wire.Deserialize(f.buf, f.order)
	f.reset()
	if err != nil {
		return fn.Err[fn.Option[kernel.Message]](err)
	}

	return fn.Ok(fn.Some(msg))
}

func (f *frameAssembler) reset() {
	f.buf = make([]byte, wire.HeaderSize)
	f.filled = 0
	f.target = wire.HeaderSize
}
