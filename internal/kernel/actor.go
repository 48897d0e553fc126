package kernel

import "context"

// actorEntry is one slot in the runtime's actor table. Per spec §9, this is
// the root of truth: every other structure (scheduler, timers, fd watches,
// transports) references actors only by ID, never by pointer, so a single
// destruction pass is enough to clear all downstream references.
type actorEntry struct {
	id         ID
	behavior   Behavior
	state      any
	destructor StateDestructor
	mbox       *mailbox
	status     Status
	parent     ID // InvalidID if none
	names      []string
}

// pendingExit pairs an id marked for destruction with the reason it
// stopped, so a single sweep can correctly tag child-exit messages even
// when several actors stop within the same step for different reasons.
type pendingExit struct {
	id     ID
	reason ExitReason
}

// table is the runtime's dense actor registry, keyed by ID.
type table struct {
	entries map[ID]*actorEntry
	// pendingStop holds ids marked stopped during the current step,
	// swept at the end of it so callers' references remain valid for the
	// rest of the step (spec §4.5).
	pendingStop []pendingExit
}

func newTable() *table {
	return &table{
		entries: make(map[ID]*actorEntry),
	}
}

func (t *table) get(id ID) (*actorEntry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

func (t *table) insert(e *actorEntry) {
	t.entries[e.id] = e
}

func (t *table) markPendingStop(id ID, reason ExitReason) {
	t.pendingStop = append(t.pendingStop, pendingExit{id: id, reason: reason})
}

func (t *table) isEmpty() bool {
	return len(t.entries) == 0
}

// SpawnSpec bundles the parameters of a spawn call.
type SpawnSpec struct {
	Behavior        Behavior
	State           any
	Destructor      StateDestructor
	MailboxCapacity uint32
}

// Spawn allocates a new actor: assigns the next local sequence, records the
// behavior/state/destructor, creates its mailbox, and returns its id.
// Returns InvalidID on sequence exhaustion. The actor starts idle; it is not
// enqueued until its first message arrives.
func (rt *Runtime) Spawn(spec SpawnSpec) ID {
	seq, ok := rt.seq.allocate()
	if !ok {
		rt.logFatalSeqWrap()
		return InvalidID
	}

	id := MakeID(rt.nodeID, seq)
	capacity := spec.MailboxCapacity
	if capacity == 0 {
		capacity = rt.defaultMailboxCapacity
	}

	entry := &actorEntry{
		id:         id,
		behavior:   spec.Behavior,
		state:      spec.State,
		destructor: spec.Destructor,
		mbox:       newMailbox(capacity),
		status:     StatusIdle,
	}
	rt.table.insert(entry)

	log.DebugS(context.Background(), "Actor spawned", "actor_id", id,
		"mailbox_capacity", entry.mbox.cap)

	return id
}

// SetParent establishes a supervision link: child's child-exit messages will
// be delivered to parent. A child may have at most one parent; calling this
// again overwrites the previous link.
func (rt *Runtime) SetParent(child, parent ID) bool {
	entry, ok := rt.table.get(child)
	if !ok {
		return false
	}

	entry.parent = parent

	return true
}

// Stop marks id stopped as an externally-killed exit. Actual destruction
// (draining the mailbox, running the destructor, releasing timers/fd
// watches, unregistering names, posting child-exit) is deferred to the
// sweep at the end of the current step, so the caller's references remain
// valid for the remainder of the step.
func (rt *Runtime) Stop(id ID) bool {
	return rt.stopWithReason(id, ExitKilled)
}

// stopBehaviorReturn marks id stopped because its own behavior returned
// false, i.e. a normal exit rather than an external kill.
func (rt *Runtime) stopBehaviorReturn(id ID) bool {
	return rt.stopWithReason(id, ExitNormal)
}

func (rt *Runtime) stopWithReason(id ID, reason ExitReason) bool {
	entry, ok := rt.table.get(id)
	if !ok || entry.status == StatusStopped {
		return false
	}

	wasReady := entry.status == StatusReady
	entry.status = StatusStopped
	if wasReady {
		rt.scheduler.remove(id)
	}
	rt.table.markPendingStop(id, reason)

	return true
}

// sweep destroys every actor marked pending-stop during the step that just
// finished, each tagged with the reason recorded when it was marked.
func (rt *Runtime) sweep() {
	pending := rt.table.pendingStop
	rt.table.pendingStop = nil

	for _, p := range pending {
		rt.destroyActor(p.id, p.reason)
	}
}

// destroyActor runs the full teardown sequence for one actor: drain
// mailbox, run destructor, release timers/fd watches, unregister names,
// notify stop hooks (namespace sync, supervisor bookkeeping), and deliver
// child-exit to the parent if any.
func (rt *Runtime) destroyActor(id ID, reason ExitReason) {
	entry, ok := rt.table.get(id)
	if !ok {
		return
	}

	entry.mbox.destroy()

	if entry.destructor != nil {
		entry.destructor(entry.state)
	}

	rt.timers.revokeOwnedBy(id)
	rt.fdWatcher.revokeOwnedBy(id)

	for _, hook := range rt.stopHooks {
		hook(id)
	}

	delete(rt.table.entries, id)

	log.DebugS(context.Background(), "Actor destroyed", "actor_id", id,
		"reason", reason)

	if entry.parent.Valid() {
		payload := EncodeChildExit(ChildExitPayload{Child: id, Reason: reason})
		rt.Send(entry.parent, MsgTypeChildExit, payload)
	}
}

// Status returns the current lifecycle status of id, or StatusStopped with
// ok=false if the id is unknown (already fully destroyed).
func (rt *Runtime) Status(id ID) (status Status, ok bool) {
	entry, found := rt.table.get(id)
	if !found {
		return StatusStopped, false
	}

	return entry.status, true
}

// MailboxCapacityOf returns the mailbox capacity of id, for reload to size
// a replacement actor identically.
func (rt *Runtime) MailboxCapacityOf(id ID) (uint32, bool) {
	entry, ok := rt.table.get(id)
	if !ok {
		return 0, false
	}

	return entry.mbox.cap, true
}

// ParentOf returns the parent identity recorded for id, if any.
func (rt *Runtime) ParentOf(id ID) (ID, bool) {
	entry, ok := rt.table.get(id)
	if !ok {
		return InvalidID, false
	}

	return entry.parent, true
}

// StateOf returns the opaque state value currently held by id. Unlike
// Context.State, this may be called from outside a running behavior (e.g.
// by the reload package, to inspect a guest actor's fiber status).
func (rt *Runtime) StateOf(id ID) (any, bool) {
	entry, ok := rt.table.get(id)
	if !ok {
		return nil, false
	}

	return entry.state, true
}

// TransferMailbox moves every undelivered message from one actor's mailbox
// to another's, in FIFO order, used by hot reload to preserve a pending
// backlog across a bytecode swap. Returns the number of messages moved.
func (rt *Runtime) TransferMailbox(from, to ID) int {
	fromEntry, ok := rt.table.get(from)
	if !ok {
		return 0
	}
	toEntry, ok := rt.table.get(to)
	if !ok {
		return 0
	}

	moved := fromEntry.mbox.drainInto(toEntry.mbox)
	if moved > 0 {
		rt.markReady(toEntry)
	}

	return moved
}

// RegisterStopHook adds a callback invoked, with the actor's id, during the
// destruction sweep for every stopped actor. This is the extension point the
// namespace package uses to unregister names without kernel depending on it.
func (rt *Runtime) RegisterStopHook(hook func(ID)) {
	rt.stopHooks = append(rt.stopHooks, hook)
}

// AddName records that id owns the given name, for bookkeeping (used by the
// namespace package); the kernel does not interpret name contents.
func (rt *Runtime) AddName(id ID, name string) bool {
	entry, ok := rt.table.get(id)
	if !ok {
		return false
	}

	entry.names = append(entry.names, name)

	return true
}

// Names returns the names currently recorded against id.
func (rt *Runtime) Names(id ID) []string {
	entry, ok := rt.table.get(id)
	if !ok {
		return nil
	}

	return entry.names
}
