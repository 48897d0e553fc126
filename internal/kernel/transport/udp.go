package transport

import (
	"net"
	"time"

	"github.com/sony/gobreaker"

	"github.com/foundation42/microkernel/internal/kernel"
	"github.com/foundation42/microkernel/internal/kernel/wire"
)

// maxDatagramSize is the largest UDP datagram this transport will read or
// send (spec §4.9's "typical 65 507 bytes").
const maxDatagramSize = 65507

// udpTransport is a datagram transport: each Recv reads at most one
// datagram and deserializes it directly, with no frame reassembly state.
type udpTransport struct {
	peerNode uint32
	conn     *net.UDPConn
	peerAddr *net.UDPAddr // set once learned (listener) or fixed (connect)
	locked   bool
	buf      []byte

	breaker *gobreaker.CircuitBreaker[bool]
}

// ListenUDP binds a UDP socket that learns its peer from the first
// datagram received and locks it in thereafter.
func ListenUDP(peerNode uint32, addr string) (kernel.Transport, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}

	return newUDPTransport(peerNode, conn, nil), nil
}

// DialUDP fixes the peer address at construction.
func DialUDP(peerNode uint32, addr string) (kernel.Transport, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}

	return newUDPTransport(peerNode, conn, raddr), nil
}

func newUDPTransport(peerNode uint32, conn *net.UDPConn, fixedPeer *net.UDPAddr) *udpTransport {
	return &udpTransport{
		peerNode: peerNode,
		conn:     conn,
		peerAddr: fixedPeer,
		locked:   fixedPeer != nil,
		buf:      make([]byte, maxDatagramSize),
		breaker:  gobreaker.NewCircuitBreaker[bool](breakerSettings("udp-" + conn.LocalAddr().String())),
	}
}

func (t *udpTransport) PeerNode() uint32  { return t.peerNode }
func (t *udpTransport) FD() int           { return -1 }
func (t *udpTransport) IsConnected() bool { return true }

// Recv reads at most one pending datagram, non-blocking.
func (t *udpTransport) Recv() (kernel.Message, bool) {
	_ = t.conn.SetReadDeadline(time.Now().Add(time.Millisecond))

	n, addr, err := t.conn.ReadFromUDP(t.buf)
	if err != nil {
		return kernel.Message{}, false
	}

	if !t.locked {
		t.peerAddr = addr
		t.locked = true
	}

	msg, err := wire.Deserialize(t.buf[:n], wire.NetworkOrder)
	if err != nil {
		return kernel.Message{}, false
	}

	return msg, true
}

// Send rejects any message whose framed size exceeds the datagram limit.
func (t *udpTransport) Send(msg kernel.Message) bool {
	framed := wire.Serialize(msg, wire.NetworkOrder)
	if len(framed) > maxDatagramSize {
		return false
	}

	accepted, _ := t.breaker.Execute(func() (bool, error) {
		var err error
		// A dialed socket is already connected and rejects WriteToUDP.
		if t.conn.RemoteAddr() == nil && t.peerAddr != nil {
			_, err = t.conn.WriteToUDP(framed, t.peerAddr)
		} else {
			_, err = t.conn.Write(framed)
		}
		if err != nil {
			return false, err
		}

		return true, nil
	})

	return accepted
}

func (t *udpTransport) Destroy() {
	_ = t.conn.Close()
}
