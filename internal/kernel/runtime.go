package kernel

import "context"

// Transport is the minimal surface the kernel needs from a remote link. The
// transport package provides concrete Unix/TCP/UDP implementations; kernel
// depends only on this interface so it never imports transport (avoiding a
// cycle, since transport imports kernel for Message/ID).
type Transport interface {
	// PeerNode is the node id this transport serves.
	PeerNode() uint32
	// FD is the descriptor to poll for incoming readiness.
	FD() int
	// Send frames and writes msg, returning whether it was accepted.
	Send(msg Message) bool
	// Recv returns the next complete message, if any is available without
	// blocking.
	Recv() (Message, bool)
	// IsConnected reports whether the transport's link is currently live.
	IsConnected() bool
	// Destroy releases any resources held by the transport.
	Destroy()
}

const maxTransports = 8

// Runtime is one node's microkernel instance: the actor table, ready queue,
// timer pool, fd watcher, and transport set, all owned and mutated only on
// the thread that calls Step/Run (spec §5: a runtime handle is confined to
// one thread; no locking between actors is required).
type Runtime struct {
	nodeID                 uint32
	seq                    *sequencer
	table                  *table
	scheduler              *scheduler
	timers                 *timerPool
	fdWatcher              *fdWatcher
	transports             []Transport
	defaultMailboxCapacity uint32

	stopHooks  []func(ID)
	intercepts []func(Message) bool

	stopped bool

	current *Context // set only while a behavior is running
}

// Config bundles the construction parameters for a Runtime.
type Config struct {
	NodeID                 uint32
	DefaultMailboxCapacity uint32
	TimerPoolCapacity      int
	Clock                  Clock
	Poller                 Poller
}

// NewRuntime constructs a runtime for one node.
func NewRuntime(cfg Config) *Runtime {
	if cfg.DefaultMailboxCapacity == 0 {
		cfg.DefaultMailboxCapacity = 64
	}
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}
	poller := cfg.Poller
	if poller == nil {
		poller = noopPoller{}
	}

	return &Runtime{
		nodeID:                 cfg.NodeID,
		seq:                    newSequencer(),
		table:                  newTable(),
		scheduler:              newScheduler(),
		timers:                 newTimerPool(clock, cfg.TimerPoolCapacity),
		fdWatcher:              newFDWatcher(poller),
		defaultMailboxCapacity: cfg.DefaultMailboxCapacity,
	}
}

// noopPoller reports nothing ready; used when no platform poller is wired
// (pure-timer/unit-test runtimes).
type noopPoller struct{}

func (noopPoller) Poll(int, PollEvents) (PollEvents, bool) { return 0, false }

// NodeID returns this runtime's node identifier.
func (rt *Runtime) NodeID() uint32 {
	return rt.nodeID
}

func (rt *Runtime) logFatalSeqWrap() {
	log.ErrorS(context.Background(), "local sequence counter wrapped; "+
		"refusing further spawns", "node_id", rt.nodeID)
}

// Send delivers a message to dest. If dest is local (same node), it is
// enqueued directly; if remote, it is handed to a transport serving that
// peer node. Returns whether the send was accepted, per spec §4.5.
func (rt *Runtime) Send(dest ID, msgType uint32, payload []byte) bool {
	if dest.NodeOf() == rt.nodeID {
		return rt.sendLocal(dest, msgType, payload)
	}

	return rt.sendRemote(dest, msgType, payload)
}

func (rt *Runtime) sendLocal(dest ID, msgType uint32, payload []byte) bool {
	entry, ok := rt.table.get(dest)
	if !ok || entry.status == StatusStopped {
		return false
	}

	var source ID
	if rt.current != nil {
		source = rt.current.Self()
	}

	msg := NewMessage(source, dest, msgType, payload)
	if !entry.mbox.enqueue(msg) {
		return false
	}

	rt.markReady(entry)

	return true
}

func (rt *Runtime) sendRemote(dest ID, msgType uint32, payload []byte) bool {
	t := rt.transportFor(dest.NodeOf())
	if t == nil {
		return false
	}

	var source ID
	if rt.current != nil {
		source = rt.current.Self()
	}

	msg := NewMessage(source, dest, msgType, payload)

	return t.Send(msg)
}

func (rt *Runtime) transportFor(node uint32) Transport {
	for _, t := range rt.transports {
		if t.PeerNode() == node {
			return t
		}
	}

	return nil
}

// markReady moves an idle actor into the ready queue. No-op if already
// ready/running/stopped.
func (rt *Runtime) markReady(entry *actorEntry) {
	if entry.status == StatusReady || entry.status == StatusRunning ||
		entry.status == StatusStopped {

		return
	}

	entry.status = StatusReady
	rt.scheduler.enqueue(entry.id)
}

// RegisterTransport adds t to the runtime's transport set. Fails once the
// bounded slot count (8, per spec §3) is reached.
func (rt *Runtime) RegisterTransport(t Transport) bool {
	if len(rt.transports) >= maxTransports {
		return false
	}

	rt.transports = append(rt.transports, t)

	return true
}

// Transports returns the runtime's current transport set, for iteration by
// callers (e.g. the namespace package's mount-connect snapshot sync).
func (rt *Runtime) Transports() []Transport {
	return rt.transports
}

// RegisterIntercept adds a hook consulted for every message produced by a
// transport's Recv, before normal dispatch. If the hook returns true the
// message is considered consumed (e.g. registry-sync messages, spec §4.7)
// and is not delivered further.
func (rt *Runtime) RegisterIntercept(hook func(Message) bool) {
	rt.intercepts = append(rt.intercepts, hook)
}

// SetTimer allocates a timer for the actor currently running. Must be
// called from within a behavior (spec §4.1); panics otherwise, matching the
// spec's "calling them outside a behavior is an error".
func (rt *Runtime) SetTimer(intervalMS uint32, periodic bool) TimerID {
	rt.requireCurrent("SetTimer")
	return rt.timers.set(rt.current.Self(), intervalMS, periodic)
}

// CancelTimer cancels a timer owned by the currently running actor.
func (rt *Runtime) CancelTimer(id TimerID) bool {
	rt.requireCurrent("CancelTimer")
	return rt.timers.cancel(id, rt.current.Self())
}

// WatchFD registers interest in fd on behalf of the currently running
// actor.
func (rt *Runtime) WatchFD(fd int, events PollEvents) bool {
	rt.requireCurrent("WatchFD")
	return rt.fdWatcher.watch(fd, events, rt.current.Self())
}

// UnwatchFD removes a watch owned by the currently running actor.
func (rt *Runtime) UnwatchFD(fd int) bool {
	rt.requireCurrent("UnwatchFD")
	return rt.fdWatcher.unwatch(fd, rt.current.Self())
}

func (rt *Runtime) requireCurrent(op string) {
	if rt.current == nil {
		panic("kernel: " + op + " called outside a running actor's behavior")
	}
}

// Self returns the identity of the actor currently running, or InvalidID
// with ok=false outside a behavior invocation.
func (rt *Runtime) Self() (ID, bool) {
	if rt.current == nil {
		return InvalidID, false
	}

	return rt.current.Self(), true
}

// Stopped reports whether StopRuntime() (runtime-wide shutdown) has been called.
func (rt *Runtime) Stopped() bool {
	return rt.stopped
}

// StopRuntime requests that Run's loop terminate after the current step.
func (rt *Runtime) StopRuntime() {
	rt.stopped = true
}

// IsEmpty reports whether the actor table holds no actors.
func (rt *Runtime) IsEmpty() bool {
	return rt.table.isEmpty()
}

// HasEventSources reports whether any timer, fd watch, or transport is
// currently registered; Run treats "no ready actor and no event sources" as
// a termination condition (spec §4.4).
func (rt *Runtime) HasEventSources() bool {
	if rt.timers.count > 0 {
		return true
	}
	if len(rt.fdWatcher.watches) > 0 {
		return true
	}

	return len(rt.transports) > 0
}

// Step performs at most one unit of work, per spec §4.4:
//
//  1. If the ready queue is non-empty, dequeue one actor, dispatch one
//     message, and re-enqueue or idle it.
//  2. Otherwise, poll timers, fd watches, and transports once, synthesizing
//     messages for whatever fired.
//
// Returns true if it performed work (a dispatch or at least one fired
// event), false if the poll pass was a no-op.
func (rt *Runtime) Step() bool {
	if id, ok := rt.scheduler.dequeue(); ok {
		rt.dispatchOne(id)
		return true
	}

	didWork := rt.pollEventSources()
	rt.sweep()

	return didWork
}

// dispatchOne delivers exactly one message to id's behavior, then
// re-enqueues the actor if more messages remain, or marks it idle.
func (rt *Runtime) dispatchOne(id ID) {
	entry, ok := rt.table.get(id)
	if !ok || entry.status == StatusStopped {
		return
	}

	msg, ok := entry.mbox.dequeue()
	if !ok {
		entry.status = StatusIdle
		return
	}

	entry.status = StatusRunning

	ctx := &Context{rt: rt, actor: entry}
	prevCurrent := rt.current
	rt.current = ctx

	alive := entry.behavior.Receive(ctx, msg)

	rt.current = prevCurrent

	if !alive && entry.status != StatusStopped {
		rt.stopBehaviorReturn(id)
	}

	if entry.status != StatusStopped {
		entry.status = StatusIdle
		if !entry.mbox.isEmpty() {
			rt.markReady(entry)
		}
	}

	// Sweep runs at the end of every step, whether the dispatched actor
	// stopped itself, was stopped externally during Receive (e.g. by a
	// supervisor), or stopped some other actor.
	rt.sweep()
}

const pollTimeoutMS = 5

// pollEventSources polls timers, fd watches, and transports once. For every
// fired source it synthesizes the corresponding message and enqueues it into
// the owner's mailbox; if the owner's mailbox is full the event is dropped
// for this tick (spec §4.4 backpressure). An fd watch stays armed and fires
// again on the next poll; a periodic timer stays armed for its next
// interval; a one-shot timer is released by the poll, so its dropped fire
// is not retried.
func (rt *Runtime) pollEventSources() bool {
	didWork := false

	for _, fired := range rt.timers.poll() {
		didWork = true
		payload := encodeTimerFire(fired.id, fired.expirations)
		rt.Send(fired.owner, MsgTypeTimerFire, payload)
	}

	for _, fired := range rt.fdWatcher.poll() {
		didWork = true
		payload := encodeFDEvent(fired.fd, fired.events)
		rt.Send(fired.owner, MsgTypeFDEvent, payload)
	}

	for _, t := range rt.transports {
		for {
			msg, ok := t.Recv()
			if !ok {
				break
			}
			didWork = true

			if rt.interceptMessage(msg) {
				continue
			}

			rt.deliverFromTransport(msg)
		}
	}

	return didWork
}

func (rt *Runtime) interceptMessage(msg Message) bool {
	for _, hook := range rt.intercepts {
		if hook(msg) {
			return true
		}
	}

	return false
}

// deliverFromTransport enqueues a message that arrived already framed off
// the wire, bypassing re-serialization, as spec §4.4 requires.
func (rt *Runtime) deliverFromTransport(msg Message) {
	entry, ok := rt.table.get(msg.Dest)
	if !ok || entry.status == StatusStopped {
		return
	}

	if !entry.mbox.enqueue(msg) {
		return
	}

	rt.markReady(entry)
}

func encodeTimerFire(id TimerID, expirations uint32) []byte {
	buf := make([]byte, 8)
	putUint32(buf[0:4], uint32(id))
	putUint32(buf[4:8], expirations)

	return buf
}

// DecodeTimerFire parses a MsgTypeTimerFire payload.
func DecodeTimerFire(buf []byte) (TimerFirePayload, bool) {
	if len(buf) < 8 {
		return TimerFirePayload{}, false
	}

	return TimerFirePayload{
		TimerID:          getUint32(buf[0:4]),
		ExpirationsCount: getUint32(buf[4:8]),
	}, true
}

func encodeFDEvent(fd int, events PollEvents) []byte {
	buf := make([]byte, 8)
	putUint32(buf[0:4], uint32(fd))
	putUint32(buf[4:8], uint32(events))

	return buf
}

// DecodeFDEvent parses a MsgTypeFDEvent payload.
func DecodeFDEvent(buf []byte) (FDEventPayload, bool) {
	if len(buf) < 8 {
		return FDEventPayload{}, false
	}

	return FDEventPayload{
		FD:             int(getUint32(buf[0:4])),
		ObservedEvents: PollEvents(getUint32(buf[4:8])),
	}, true
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Run iterates Step until stopped, until no actors remain, or until no
// actor is ready and no event sources are registered (spec §4.4).
func (rt *Runtime) Run() {
	for {
		if rt.stopped {
			return
		}
		if rt.table.isEmpty() {
			return
		}
		if rt.scheduler.isEmpty() && !rt.HasEventSources() {
			return
		}

		rt.Step()
	}
}
