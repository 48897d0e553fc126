package reload

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foundation42/microkernel/internal/kernel"
	"github.com/foundation42/microkernel/internal/kernel/guest"
	"github.com/foundation42/microkernel/internal/kernel/supervisor"
)

// echoModule is a trivial guest module used to exercise Reload; it records
// every message type it sees.
type echoModule struct {
	tag      string
	received *[]string
}

func (m *echoModule) HandleMessage(imports *guest.HostImports, msgType uint32,
	source kernel.ID, payload []byte) bool {

	*m.received = append(*m.received, fmt.Sprintf("%s:%d", m.tag, msgType))
	return true
}

func parserFor(tag string, received *[]string) Parser {
	return func(bytecode []byte) (guest.Module, error) {
		if string(bytecode) == "bad" {
			return nil, fmt.Errorf("invalid bytecode")
		}
		return &echoModule{tag: tag, received: received}, nil
	}
}

// fakeNames is a minimal NameTransferer recording the moves it was asked
// to perform.
type fakeNames struct {
	moves []struct{ old, new kernel.ID }
}

func (f *fakeNames) TransferNames(oldID, newID kernel.ID) {
	f.moves = append(f.moves, struct{ old, new kernel.ID }{oldID, newID})
}

func TestReloadPreservesMailboxAndParent(t *testing.T) {
	t.Parallel()

	rt := kernel.NewRuntime(kernel.Config{NodeID: 1})

	var parentGot []string
	parent := guest.Spawn(rt, &echoModule{tag: "parent", received: &parentGot}, false, 8)

	var oldReceived []string
	oldID := guest.Spawn(rt, &echoModule{tag: "old", received: &oldReceived}, false, 4)
	require.True(t, rt.SetParent(oldID, parent))

	// Queue a message before reload; it must survive the swap.
	require.True(t, rt.Send(oldID, 5, nil))

	var newReceived []string
	newID, outcome := Reload(rt, Request{
		Actor:       oldID,
		NewBytecode: []byte("good"),
		Parser:      parserFor("new", &newReceived),
	})
	require.Equal(t, Ok, outcome)
	require.NotEqual(t, oldID, newID)

	rt.Step() // dispatches the transferred backlog message to the new actor

	require.Empty(t, oldReceived)
	require.Equal(t, []string{"new:5"}, newReceived)

	gotParent, ok := rt.ParentOf(newID)
	require.True(t, ok)
	require.Equal(t, parent, gotParent)

	_, ok = rt.Status(oldID)
	require.False(t, ok, "old actor must be stopped")
}

func TestReloadTransfersNamesAndSupervisorLink(t *testing.T) {
	t.Parallel()

	rt := kernel.NewRuntime(kernel.Config{NodeID: 1})

	var received []string
	actor := guest.NewActor(&echoModule{tag: "orig", received: &received}, false)
	sup := supervisor.Start(rt, supervisor.OneForOne, 10, time.Minute, []supervisor.ChildSpec{
		{
			Name:         "worker",
			Behavior:     actor,
			StateFactory: func(any) any { return actor },
			Restart:      supervisor.Permanent,
		},
	})

	childID, ok := sup.GetChild(0)
	require.True(t, ok)

	names := &fakeNames{}

	var newReceived []string
	newID, outcome := Reload(rt, Request{
		Actor:       childID,
		NewBytecode: []byte("good"),
		Parser:      parserFor("replacement", &newReceived),
		Names:       names,
		Supervised:  &SupervisorLink{Supervisor: sup, ChildIndex: 0},
	})
	require.Equal(t, Ok, outcome)

	require.Len(t, names.moves, 1)
	require.Equal(t, childID, names.moves[0].old)
	require.Equal(t, newID, names.moves[0].new)

	got, ok := sup.GetChild(0)
	require.True(t, ok)
	require.Equal(t, newID, got)
}

func TestReloadRejectsBadBytecode(t *testing.T) {
	t.Parallel()

	rt := kernel.NewRuntime(kernel.Config{NodeID: 1})

	var received []string
	id := guest.Spawn(rt, &echoModule{tag: "a", received: &received}, false, 4)

	_, outcome := Reload(rt, Request{
		Actor:       id,
		NewBytecode: []byte("bad"),
		Parser:      parserFor("a", &received),
	})
	require.Equal(t, ModuleLoadError, outcome)

	status, ok := rt.Status(id)
	require.True(t, ok)
	require.NotEqual(t, kernel.StatusStopped, status, "a failed reload must not touch the original actor")
}

// blockingRecvModule suspends forever waiting for a message, so HasActiveSuspension
// reports true for as long as the test holds it there.
type blockingRecvModule struct{}

func (blockingRecvModule) HandleMessage(imports *guest.HostImports, msgType uint32,
	source kernel.ID, payload []byte) bool {

	imports.Recv()
	return true
}

func TestReloadRejectsActorWithActiveFiberSuspension(t *testing.T) {
	t.Parallel()

	rt := kernel.NewRuntime(kernel.Config{NodeID: 1})

	id := guest.Spawn(rt, blockingRecvModule{}, true, 4)
	require.True(t, rt.Send(id, 1, nil))
	rt.Step() // dispatch suspends the fiber on recv

	_, outcome := Reload(rt, Request{
		Actor:       id,
		NewBytecode: []byte("good"),
		Parser:      parserFor("x", &[]string{}),
	})
	require.Equal(t, FiberActive, outcome)
}

func TestReloadUnknownActorFails(t *testing.T) {
	t.Parallel()

	rt := kernel.NewRuntime(kernel.Config{NodeID: 1})

	_, outcome := Reload(rt, Request{
		Actor:       kernel.MakeID(1, 999),
		NewBytecode: []byte("good"),
		Parser:      parserFor("x", &[]string{}),
	})
	require.Equal(t, ModuleLoadError, outcome)
}

func TestWatcherTriggersReloadOnBytecodeFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	rt := kernel.NewRuntime(kernel.Config{NodeID: 1})

	var oldReceived []string
	oldID := guest.Spawn(rt, &echoModule{tag: "old", received: &oldReceived}, false, 4)

	resolve := func(name string) (kernel.ID, bool) {
		if name != "worker" {
			return kernel.InvalidID, false
		}
		return oldID, true
	}

	var newReceived []string
	watcher, err := NewWatcher(rt, dir, resolve, parserFor("hot", &newReceived), false, nil)
	require.NoError(t, err)
	defer watcher.Close()

	path := filepath.Join(dir, "worker.bytecode")
	require.NoError(t, os.WriteFile(path, []byte("good"), 0o644))

	// The watcher applies the reload on its own goroutine; poll until the
	// old actor has been stopped and a replacement now exists.
	require.Eventually(t, func() bool {
		_, ok := rt.Status(oldID)
		return !ok && !rt.IsEmpty()
	}, 2*time.Second, 10*time.Millisecond)
}
