package kernel

// PollEvents is the classical poll(2) flag set used by FD watches.
type PollEvents uint32

const (
	PollReadable PollEvents = 1 << iota
	PollWritable
	PollError
	PollHangup
)

// fdWatch is one {fd, event mask, owner} tuple. Only the owning actor
// receives events for its watched descriptors, and a given fd is watched by
// at most one actor at a time (enforced by the fdWatcher on registration).
type fdWatch struct {
	fd     int
	events PollEvents
	owner  ID
}

// Poller abstracts the platform readiness check for one fd so fdWatcher
// stays testable without real sockets. An implementation returns the subset
// of requested events currently observed as ready.
type Poller interface {
	Poll(fd int, interested PollEvents) (observed PollEvents, ready bool)
}

// fdWatcher tracks the set of watched descriptors and, each event-loop poll
// pass, asks a Poller which ones fired.
type fdWatcher struct {
	poller  Poller
	watches map[int]*fdWatch
}

func newFDWatcher(p Poller) *fdWatcher {
	return &fdWatcher{
		poller:  p,
		watches: make(map[int]*fdWatch),
	}
}

// watch registers interest in fd on behalf of owner. Fails if fd is already
// watched by a different actor.
func (w *fdWatcher) watch(fd int, events PollEvents, owner ID) bool {
	if existing, ok := w.watches[fd]; ok && existing.owner != owner {
		return false
	}

	w.watches[fd] = &fdWatch{fd: fd, events: events, owner: owner}

	return true
}

// unwatch removes the watch for fd if owned by owner. Returns false if no
// such watch exists, or it belongs to another actor.
func (w *fdWatcher) unwatch(fd int, owner ID) bool {
	existing, ok := w.watches[fd]
	if !ok || existing.owner != owner {
		return false
	}

	delete(w.watches, fd)

	return true
}

// revokeOwnedBy removes every watch owned by id, used during actor
// destruction.
func (w *fdWatcher) revokeOwnedBy(id ID) {
	for fd, watch := range w.watches {
		if watch.owner == id {
			delete(w.watches, fd)
		}
	}
}

// poll checks every watched descriptor once and returns the fired ones. The
// owner is responsible for idempotent re-arming or unwatching on the next
// message it receives; the watch itself is not removed here.
func (w *fdWatcher) poll() []fdWatch {
	var fired []fdWatch
	for _, watch := range w.watches {
		observed, ready := w.poller.Poll(watch.fd, watch.events)
		if !ready {
			continue
		}

		fired = append(fired, fdWatch{
			fd:     watch.fd,
			events: observed,
			owner:  watch.owner,
		})
	}

	return fired
}
