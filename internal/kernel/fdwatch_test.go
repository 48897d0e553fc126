package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptedPoller reports readiness according to a fixed map, set up by the
// test before calling poll.
type scriptedPoller struct {
	ready map[int]PollEvents
}

func (p *scriptedPoller) Poll(fd int, interested PollEvents) (PollEvents, bool) {
	observed, ok := p.ready[fd]
	if !ok {
		return 0, false
	}

	return observed & interested, true
}

func TestFDWatcherWatchAndPoll(t *testing.T) {
	t.Parallel()

	poller := &scriptedPoller{ready: map[int]PollEvents{3: PollReadable}}
	w := newFDWatcher(poller)

	owner := MakeID(1, 1)
	require.True(t, w.watch(3, PollReadable, owner))

	fired := w.poll()
	require.Len(t, fired, 1)
	require.Equal(t, 3, fired[0].fd)
	require.Equal(t, owner, fired[0].owner)
	require.Equal(t, PollReadable, fired[0].events)
}

func TestFDWatcherOwnershipExclusive(t *testing.T) {
	t.Parallel()

	w := newFDWatcher(&scriptedPoller{ready: map[int]PollEvents{}})

	owner := MakeID(1, 1)
	stranger := MakeID(1, 2)

	require.True(t, w.watch(5, PollReadable, owner))
	require.False(t, w.watch(5, PollReadable, stranger))

	// The owner may re-register (idempotent update of its own watch).
	require.True(t, w.watch(5, PollWritable, owner))
}

func TestFDWatcherUnwatchRequiresOwnership(t *testing.T) {
	t.Parallel()

	w := newFDWatcher(&scriptedPoller{ready: map[int]PollEvents{}})

	owner := MakeID(1, 1)
	stranger := MakeID(1, 2)
	w.watch(7, PollReadable, owner)

	require.False(t, w.unwatch(7, stranger))
	require.True(t, w.unwatch(7, owner))
	require.False(t, w.unwatch(7, owner))
}

func TestFDWatcherRevokeOwnedBy(t *testing.T) {
	t.Parallel()

	w := newFDWatcher(&scriptedPoller{ready: map[int]PollEvents{}})

	owner := MakeID(1, 1)
	other := MakeID(1, 2)
	w.watch(1, PollReadable, owner)
	w.watch(2, PollReadable, owner)
	w.watch(3, PollReadable, other)

	w.revokeOwnedBy(owner)

	require.Len(t, w.watches, 1)
	_, ok := w.watches[3]
	require.True(t, ok)
}

func TestFDWatcherPollSkipsNotReady(t *testing.T) {
	t.Parallel()

	poller := &scriptedPoller{ready: map[int]PollEvents{}}
	w := newFDWatcher(poller)
	w.watch(9, PollReadable, MakeID(1, 1))

	require.Empty(t, w.poll())
}
