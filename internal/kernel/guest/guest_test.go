package guest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foundation42/microkernel/internal/kernel"
)

// countingModule is a non-fiber guest module that counts messages and
// stops once it sees a sentinel type.
type countingModule struct {
	received *int
	stopOn   uint32
}

func (m *countingModule) HandleMessage(imports *HostImports, msgType uint32,
	source kernel.ID, payload []byte) bool {

	*m.received++
	return msgType != m.stopOn
}

func TestGuestActorWithoutFiberDispatchesSynchronously(t *testing.T) {
	t.Parallel()

	rt := kernel.NewRuntime(kernel.Config{NodeID: 1})

	var count int
	id := Spawn(rt, &countingModule{received: &count, stopOn: 99}, false, 8)
	require.True(t, id.Valid())

	require.True(t, rt.Send(id, 1, nil))
	rt.Step()
	require.Equal(t, 1, count)

	require.True(t, rt.Send(id, 99, nil))
	rt.Step()
	require.Equal(t, 2, count)

	_, ok := rt.Status(id)
	require.False(t, ok, "module returning false must stop the actor")
}

// sleepingModule sleeps once then reports back on a control channel.
type sleepingModule struct {
	awake chan struct{}
}

func (m *sleepingModule) HandleMessage(imports *HostImports, msgType uint32,
	source kernel.ID, payload []byte) bool {

	if msgType == 1 {
		ok := imports.SleepMS(50)
		if ok {
			close(m.awake)
		}
		return true
	}

	return true
}

func TestGuestFiberSleepSuspendsAndResumesOnTimer(t *testing.T) {
	t.Parallel()

	clock := &sleepFakeClock{now: time.Unix(0, 0)}
	rt := kernel.NewRuntime(kernel.Config{NodeID: 1, Clock: clock})

	mod := &sleepingModule{awake: make(chan struct{})}
	id := Spawn(rt, mod, true, 8)

	require.True(t, rt.Send(id, 1, nil))
	rt.Step() // dispatches; the guest goroutine suspends on sleep

	status, ok := rt.Status(id)
	require.True(t, ok)
	require.Equal(t, kernel.StatusIdle, status, "suspended actor is idle until its timer fires")

	clock.now = clock.now.Add(100 * time.Millisecond)
	rt.Step() // poll pass: synthesizes the timer-fire message
	rt.Step() // dispatch pass: resumes the fiber

	select {
	case <-mod.awake:
	case <-time.After(time.Second):
		t.Fatal("fiber never resumed")
	}
}

type sleepFakeClock struct{ now time.Time }

func (c *sleepFakeClock) Now() time.Time { return c.now }

// recvModule suspends waiting for a message and records what it receives.
type recvModule struct {
	gotType *uint32
}

func (m *recvModule) HandleMessage(imports *HostImports, msgType uint32,
	source kernel.ID, payload []byte) bool {

	if msgType == 1 {
		t, _, _, ok := imports.Recv()
		if ok {
			*m.gotType = t
		}
		return true
	}

	return true
}

func TestGuestFiberRecvSuspendsUntilNextMessage(t *testing.T) {
	t.Parallel()

	rt := kernel.NewRuntime(kernel.Config{NodeID: 1})

	var got uint32
	id := Spawn(rt, &recvModule{gotType: &got}, true, 8)

	require.True(t, rt.Send(id, 1, nil))
	rt.Step() // triggers the suspend-on-recv

	require.True(t, rt.Send(id, 77, []byte("payload")))
	rt.Step() // delivers the waited-for message to the suspended fiber

	require.Equal(t, uint32(77), got)
}

func TestGuestActorDestructorWakesSuspensionOnKill(t *testing.T) {
	t.Parallel()

	rt := kernel.NewRuntime(kernel.Config{NodeID: 1})

	done := make(chan struct{})
	mod := &killAwareModule{done: done}
	id := Spawn(rt, mod, true, 8)

	require.True(t, rt.Send(id, 1, nil))
	rt.Step() // suspends on recv

	rt.Stop(id)
	rt.Step() // sweep runs the destructor, which wakes the fiber with failure

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("destructor never woke the suspended fiber")
	}
}

type killAwareModule struct {
	done chan struct{}
}

func (m *killAwareModule) HandleMessage(imports *HostImports, msgType uint32,
	source kernel.ID, payload []byte) bool {

	if msgType == 1 {
		_, _, _, ok := imports.Recv()
		if !ok {
			close(m.done)
		}
		return true
	}

	return true
}

func TestHostImportsWithoutFiberStackAlwaysFail(t *testing.T) {
	t.Parallel()

	rt := kernel.NewRuntime(kernel.Config{NodeID: 1})

	var sawFailure bool
	id := Spawn(rt, &noFiberCheckModule{sawFailure: &sawFailure}, false, 8)
	require.True(t, rt.Send(id, 1, nil))
	rt.Step()

	require.True(t, sawFailure)
}

type noFiberCheckModule struct {
	sawFailure *bool
}

func (m *noFiberCheckModule) HandleMessage(imports *HostImports, msgType uint32,
	source kernel.ID, payload []byte) bool {

	if !imports.SleepMS(10) {
		*m.sawFailure = true
	}

	return true
}
