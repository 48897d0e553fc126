package ns

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foundation42/microkernel/internal/kernel"
)

func newTestRuntime() *kernel.Runtime {
	return kernel.NewRuntime(kernel.Config{NodeID: 1})
}

func TestRegisterAndLookupFlatName(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime()
	n := New(rt, 16, 16)

	id := kernel.MakeID(1, 1)
	require.True(t, n.Register("worker", id))

	got, ok := n.Lookup("worker")
	require.True(t, ok)
	require.Equal(t, id, got)
}

func TestRegisterDuplicateNameFails(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime()
	n := New(rt, 16, 16)

	require.True(t, n.Register("worker", kernel.MakeID(1, 1)))
	require.False(t, n.Register("worker", kernel.MakeID(1, 2)))
}

func TestRegisterNameTooLongFails(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime()
	n := New(rt, 16, 16)

	long := make([]byte, MaxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}

	require.False(t, n.Register(string(long), kernel.MakeID(1, 1)))
}

func TestFlatRegistryFullRejects(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime()
	n := New(rt, 2, 16) // rounds to next pow2 = 2

	require.True(t, n.Register("a", kernel.MakeID(1, 1)))
	require.True(t, n.Register("b", kernel.MakeID(1, 2)))
	require.False(t, n.Register("c", kernel.MakeID(1, 3)))
}

func TestPathRegisterAndLookup(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime()
	n := New(rt, 16, 16)

	id := kernel.MakeID(1, 1)
	require.Equal(t, Ok, n.RegisterPath("/sys/log", id))

	got, ok := n.LookupPath("/sys/log")
	require.True(t, ok)
	require.Equal(t, id, got)
}

func TestPathRegisterDuplicateIsExists(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime()
	n := New(rt, 16, 16)

	require.Equal(t, Ok, n.RegisterPath("/a", kernel.MakeID(1, 1)))
	require.Equal(t, Exists, n.RegisterPath("/a", kernel.MakeID(1, 2)))
}

func TestMountTakesPrecedenceOverLeaf(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime()
	n := New(rt, 16, 16)

	leaf := kernel.MakeID(1, 1)
	delegate := kernel.MakeID(1, 2)

	require.Equal(t, Ok, n.RegisterPath("/remote/worker", leaf))
	require.Equal(t, Ok, n.Mount("/remote", delegate))

	got, ok := n.LookupPath("/remote/worker")
	require.True(t, ok)
	require.Equal(t, delegate, got, "mount point is a proper ancestor, so it wins over the leaf")
}

func TestMountExactPathMatch(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime()
	n := New(rt, 16, 16)

	delegate := kernel.MakeID(1, 2)
	require.Equal(t, Ok, n.Mount("/remote", delegate))

	got, ok := n.LookupPath("/remote")
	require.True(t, ok)
	require.Equal(t, delegate, got)
}

func TestUnregisterOnActorStopRemovesAllNames(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime()
	n := New(rt, 16, 16)

	id := rt.Spawn(kernel.SpawnSpec{
		Behavior: kernel.BehaviorFunc(func(ctx *kernel.Context, msg kernel.Message) bool { return true }),
	})

	require.True(t, n.Register("worker", id))
	require.Equal(t, Ok, n.RegisterPath("/actors/worker", id))

	rt.Stop(id)
	rt.Step()

	_, ok := n.Lookup("worker")
	require.False(t, ok)
	_, ok = n.LookupPath("/actors/worker")
	require.False(t, ok)
}

func TestReverseLookupReturnsFlatAndPathNames(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime()
	n := New(rt, 16, 16)

	id := kernel.MakeID(1, 1)
	require.True(t, n.Register("worker", id))
	require.Equal(t, Ok, n.RegisterPath("/actors/worker", id))

	names := n.ReverseLookup(id)
	require.ElementsMatch(t, []string{"worker", "/actors/worker"}, names)
}

func TestTransferNamesMovesBindings(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime()
	n := New(rt, 16, 16)

	oldID := kernel.MakeID(1, 1)
	newID := kernel.MakeID(1, 2)

	require.True(t, n.Register("worker", oldID))
	require.Equal(t, Ok, n.RegisterPath("/actors/worker", oldID))

	n.TransferNames(oldID, newID)

	got, ok := n.Lookup("worker")
	require.True(t, ok)
	require.Equal(t, newID, got)

	got, ok = n.LookupPath("/actors/worker")
	require.True(t, ok)
	require.Equal(t, newID, got)
}

func TestUmountRemovesMountPrecedence(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime()
	n := New(rt, 16, 16)

	leaf := kernel.MakeID(1, 1)
	delegate := kernel.MakeID(1, 2)
	require.Equal(t, Ok, n.RegisterPath("/remote/worker", leaf))
	require.Equal(t, Ok, n.Mount("/remote", delegate))
	require.Equal(t, Ok, n.Umount("/remote"))

	got, ok := n.LookupPath("/remote/worker")
	require.True(t, ok)
	require.Equal(t, leaf, got)
}

func TestWireRegisterRoundtrip(t *testing.T) {
	t.Parallel()

	id := kernel.MakeID(3, 44)
	buf := encodeRegister("/sys/log", id)

	name, got, ok := decodeRegister(buf)
	require.True(t, ok)
	require.Equal(t, "/sys/log", name)
	require.Equal(t, id, got)
}

func TestWireUnregisterRoundtrip(t *testing.T) {
	t.Parallel()

	buf := encodeUnregister("worker")

	name, ok := decodeUnregister(buf)
	require.True(t, ok)
	require.Equal(t, "worker", name)
}
