package transport

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foundation42/microkernel/internal/kernel"
	"github.com/foundation42/microkernel/internal/kernel/wire"
)

// TestFrameAssemblerReassemblesSplitWrites verifies the reassembler copes
// with a message delivered across several partial writes, each arriving as
// its own OS-level read.
func TestFrameAssemblerReassemblesSplitWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sockPath := filepath.Join(dir, "frame.sock")

	server, err := ListenUnix(2, sockPath)
	require.NoError(t, err)
	defer server.Destroy()

	client, err := DialUnix(1, sockPath)
	require.NoError(t, err)
	defer client.Destroy()

	msg := kernel.NewMessage(kernel.MakeID(1, 1), kernel.MakeID(2, 1), 3, []byte("split-payload"))
	framed := wire.Serialize(msg, wire.HostOrder)

	streamClient := client.(*streamTransport)
	for i, b := range framed {
		_, werr := streamClient.conn.Write([]byte{b})
		require.NoError(t, werr)
		if i%4 == 0 {
			time.Sleep(time.Millisecond)
		}
	}

	var got kernel.Message
	require.Eventually(t, func() bool {
		m, ok := server.Recv()
		if ok {
			got = m
		}
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, msg.Type, got.Type)
	require.Equal(t, msg.Payload, got.Payload)
}
