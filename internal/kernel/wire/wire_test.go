package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/foundation42/microkernel/internal/kernel"
)

func TestSerializeHeaderLayoutNetworkOrder(t *testing.T) {
	t.Parallel()

	msg := kernel.Message{
		Source:  kernel.MakeID(1, 2),
		Dest:    kernel.MakeID(3, 4),
		Type:    0x0A0B0C0D,
		Payload: []byte("hi"),
	}

	buf := Serialize(msg, NetworkOrder)
	require.Len(t, buf, HeaderSize+2)

	require.Equal(t, uint64(msg.Source), beUint64(buf[0:8]))
	require.Equal(t, uint64(msg.Dest), beUint64(buf[8:16]))
	require.Equal(t, msg.Type, beUint32(buf[16:20]))
	require.Equal(t, uint32(2), beUint32(buf[20:24]))
	require.Equal(t, uint32(0), beUint32(buf[24:28]))
	require.Equal(t, "hi", string(buf[HeaderSize:]))
}

func beUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func beUint32(b []byte) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v = v<<8 | uint32(b[i])
	}
	return v
}

func TestDeserializeRoundtripBothOrders(t *testing.T) {
	t.Parallel()

	for _, bo := range []ByteOrder{HostOrder, NetworkOrder} {
		msg := kernel.Message{
			Source:  kernel.MakeID(7, 8),
			Dest:    kernel.MakeID(9, 10),
			Type:    42,
			Payload: []byte("payload bytes"),
		}

		buf := Serialize(msg, bo)
		got, err := Deserialize(buf, bo)
		require.NoError(t, err)
		require.Equal(t, msg.Source, got.Source)
		require.Equal(t, msg.Dest, got.Dest)
		require.Equal(t, msg.Type, got.Type)
		require.Equal(t, msg.Payload, got.Payload)
	}
}

func TestDeserializeEmptyPayload(t *testing.T) {
	t.Parallel()

	msg := kernel.Message{Source: kernel.MakeID(1, 1), Dest: kernel.MakeID(1, 2), Type: 1}
	buf := Serialize(msg, NetworkOrder)

	got, err := Deserialize(buf, NetworkOrder)
	require.NoError(t, err)
	require.Empty(t, got.Payload)
}

func TestDeserializeShortBufferErrors(t *testing.T) {
	t.Parallel()

	_, err := Deserialize(make([]byte, HeaderSize-1), NetworkOrder)
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestDeserializeTruncatedPayloadErrors(t *testing.T) {
	t.Parallel()

	msg := kernel.Message{Source: kernel.MakeID(1, 1), Dest: kernel.MakeID(1, 2), Type: 1, Payload: []byte("12345")}
	buf := Serialize(msg, NetworkOrder)

	_, err := Deserialize(buf[:len(buf)-2], NetworkOrder)
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecodeHeaderMatchesSerializedFields(t *testing.T) {
	t.Parallel()

	msg := kernel.Message{
		Source:  kernel.MakeID(1, 2),
		Dest:    kernel.MakeID(3, 4),
		Type:    99,
		Payload: []byte("xyz"),
	}
	buf := Serialize(msg, HostOrder)

	hdr, err := DecodeHeader(buf, HostOrder)
	require.NoError(t, err)
	require.Equal(t, msg.Source, hdr.Source)
	require.Equal(t, msg.Dest, hdr.Dest)
	require.Equal(t, msg.Type, hdr.Type)
	require.Equal(t, uint32(len(msg.Payload)), hdr.PayloadLength)
}

// TestSerializeDeserializeRoundtripProperty checks that any message
// survives a serialize/deserialize cycle, in both byte orders.
func TestSerializeDeserializeRoundtripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		msg := kernel.Message{
			Source: kernel.ID(rapid.Uint64().Draw(rt, "source")),
			Dest:   kernel.ID(rapid.Uint64().Draw(rt, "dest")),
			Type:   rapid.Uint32().Draw(rt, "type"),
			Payload: []byte(rapid.StringN(0, 256, -1).Draw(rt, "payload")),
		}

		bo := HostOrder
		if rapid.Boolean().Draw(rt, "network") {
			bo = NetworkOrder
		}

		buf := Serialize(msg, bo)
		got, err := Deserialize(buf, bo)
		require.NoError(rt, err)
		require.Equal(rt, msg.Source, got.Source)
		require.Equal(rt, msg.Dest, got.Dest)
		require.Equal(rt, msg.Type, got.Type)
		if len(msg.Payload) == 0 {
			require.Empty(rt, got.Payload)
		} else {
			require.Equal(rt, msg.Payload, got.Payload)
		}
	})
}
