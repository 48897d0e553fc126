// Package transport implements the microkernel's remote links: Unix-domain
// and TCP stream transports with frame reassembly, and a UDP datagram
// transport, all satisfying kernel.Transport.
package transport

import (
	"net"
	"os"
	"time"

	"github.com/sony/gobreaker"

	"github.com/foundation42/microkernel/internal/kernel"
	"github.com/foundation42/microkernel/internal/kernel/wire"
)

// streamTransport backs both Unix and TCP links: both are net.Conn-based
// stream sockets that reassemble frames identically, differing only in how
// they bind/accept/connect and which byte order they use on the wire
// (host for Unix, network for TCP per spec §6).
type streamTransport struct {
	peerNode uint32
	order    wire.ByteOrder

	listener net.Listener // non-nil only for a server transport pre-accept
	conn     net.Conn     // nil until accepted/connected

	assembler   *frameAssembler
	connected   bool
	unlinkOnClose string // Unix socket path to remove on Destroy, if any

	breaker *gobreaker.CircuitBreaker[bool]
}

// breakerSettings returns gobreaker settings implementing §4.9a: open after
// 5 consecutive send failures, half-open retry after a 2s cooldown.
func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     2 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

// DialUnix connects to a Unix-domain socket at path.
func DialUnix(peerNode uint32, path string) (kernel.Transport, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, err
	}

	return newStreamTransport(peerNode, conn, nil, "", wire.HostOrder), nil
}

// ListenUnix binds a Unix-domain socket at path and returns a server
// transport that lazily accepts its single peer (spec §4.9: the readiness
// fd is the listen socket until the first accept succeeds).
func ListenUnix(peerNode uint32, path string) (kernel.Transport, error) {
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}

	return newStreamTransport(peerNode, nil, l, path, wire.HostOrder), nil
}

// DialTCP connects to a host:port TCP address.
func DialTCP(peerNode uint32, addr string) (kernel.Transport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	return newStreamTransport(peerNode, conn, nil, "", wire.NetworkOrder), nil
}

// ListenTCP binds a TCP listener and returns a server transport that
// lazily accepts its single peer.
func ListenTCP(peerNode uint32, addr string) (kernel.Transport, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	return newStreamTransport(peerNode, nil, l, "", wire.NetworkOrder), nil
}

func newStreamTransport(peerNode uint32, conn net.Conn, listener net.Listener,
	unlinkPath string, order wire.ByteOrder) *streamTransport {

	name := "transport"
	if conn != nil {
		name = conn.RemoteAddr().String()
	}

	return &streamTransport{
		peerNode:      peerNode,
		order:         order,
		conn:          conn,
		listener:      listener,
		connected:     conn != nil,
		unlinkOnClose: unlinkPath,
		assembler:     newFrameAssembler(order),
		breaker:       gobreaker.NewCircuitBreaker[bool](breakerSettings(name)),
	}
}

func (t *streamTransport) PeerNode() uint32 { return t.peerNode }

// FD returns -1: this transport is driven by direct, per-poll non-blocking
// Recv calls from the runtime's event loop rather than a pollable
// descriptor registered with the generic fd watcher.
func (t *streamTransport) FD() int { return -1 }

func (t *streamTransport) IsConnected() bool { return t.connected }

// tryAccept performs the lazy accept for a server transport that has not
// yet seen its peer. Non-blocking: returns immediately if no connection is
// pending.
func (t *streamTransport) tryAccept() {
	if t.conn != nil || t.listener == nil {
		return
	}

	type deadliner interface {
		SetDeadline(time.Time) error
	}
	if dl, ok := t.listener.(deadliner); ok {
		_ = dl.SetDeadline(time.Now().Add(time.Millisecond))
	}

	conn, err := t.listener.Accept()
	if err != nil {
		return
	}

	t.conn = conn
	t.connected = true
}

// Recv attempts a framed, non-blocking receive. Returns (msg, true) for a
// complete message, (zero, false) if nothing is ready yet or the transport
// has not accepted a peer.
func (t *streamTransport) Recv() (kernel.Message, bool) {
	t.tryAccept()
	if t.conn == nil {
		return kernel.Message{}, false
	}

	opt, err := t.assembler.pollOnce(t.conn).Unpack()
	if err != nil {
		t.connected = false
		return kernel.Message{}, false
	}

	return opt.UnwrapOr(kernel.Message{}), opt.IsSome()
}

// Send frames msg and writes it, short-circuited by a circuit breaker that
// opens after repeated failures (spec §4.9a): while open, Send returns
// false immediately without attempting I/O.
func (t *streamTransport) Send(msg kernel.Message) bool {
	if t.conn == nil {
		return false
	}

	accepted, _ := t.breaker.Execute(func() (bool, error) {
		buf := wire.Serialize(msg, t.order)

		_ = t.conn.SetWriteDeadline(time.Now().Add(time.Second))
		if _, err := t.conn.Write(buf); err != nil {
			t.connected = false
			return false, err
		}

		return true, nil
	})

	return accepted
}

func (t *streamTransport) Destroy() {
	if t.conn != nil {
		_ = t.conn.Close()
	}
	if t.listener != nil {
		_ = t.listener.Close()
	}
	if t.unlinkOnClose != "" {
		_ = os.Remove(t.unlinkOnClose)
	}
	t.connected = false
}
