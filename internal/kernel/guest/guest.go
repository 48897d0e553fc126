// Package guest implements the host side of the guest-code contract
// (spec §4.11): host imports exposed to sandboxed behavior, and the guest
// export the runtime calls per message. Suspension (sleep_ms/recv) is
// modelled as a cooperative fiber backed by a goroutine that is never
// scheduled concurrently with the runtime thread — see fiber.go.
package guest

import (
	"context"
	"fmt"

	"github.com/btcsuite/btclog"

	"github.com/foundation42/microkernel/internal/kernel"
)

// Module is the guest export: the function the runtime calls per message.
// alive reports whether the guest actor should continue running.
type Module interface {
	HandleMessage(imports *HostImports, msgType uint32, source kernel.ID,
		payload []byte) (alive bool)
}

// Spawn spawns a guest-backed actor for module, wiring its fiber
// destructor so an outstanding suspension is woken with failure on kill.
func Spawn(rt *kernel.Runtime, module Module, hasFiberStack bool,
	mailboxCapacity uint32) kernel.ID {

	actor := NewActor(module, hasFiberStack)

	return rt.Spawn(kernel.SpawnSpec{
		Behavior:        actor,
		State:           actor,
		Destructor:      ActorDestructor,
		MailboxCapacity: mailboxCapacity,
	})
}

// ErrNoFiberStack is what SleepMS/Recv report (as a false/zero result, per
// the public boolean contract) when the guest actor has no fiber stack
// configured.
var ErrNoFiberStack = fmt.Errorf("guest: actor has no fiber stack configured")

// HostImports is the set of calls a guest module may invoke during
// HandleMessage.
type HostImports struct {
	rt    *kernel.Runtime
	self  kernel.ID
	fiber *fiber // nil if this actor has no fiber stack
}

// Send enqueues a message from the guest, mirroring kernel.Runtime.Send.
func (h *HostImports) Send(dest kernel.ID, msgType uint32, payload []byte) bool {
	return h.rt.Send(dest, msgType, payload)
}

// Self returns the guest actor's own identity.
func (h *HostImports) Self() kernel.ID {
	return h.self
}

// Log writes a guest log line at the given level, annotated with the
// guest's own identity as the source.
func (h *HostImports) Log(level btclog.Level, text string) {
	switch level {
	case btclog.LevelTrace:
		log.TraceS(context.Background(), text, "source", h.self)
	case btclog.LevelDebug:
		log.DebugS(context.Background(), text, "source", h.self)
	case btclog.LevelInfo:
		log.InfoS(context.Background(), text, "source", h.self)
	case btclog.LevelWarn:
		log.WarnS(context.Background(), text, "source", h.self)
	default:
		log.ErrorS(context.Background(), text, "source", h.self)
	}
}

// SleepMS suspends the guest fiber until a timer of the given duration
// fires, then resumes it. Returns false if the actor has no fiber stack.
func (h *HostImports) SleepMS(ms uint32) bool {
	if h.fiber == nil {
		return false
	}

	return h.fiber.suspendSleep(h.rt, ms)
}

// Recv suspends the guest fiber until the next message is delivered to
// this actor, then resumes it with that message's contents. Returns false
// if the actor has no fiber stack.
func (h *HostImports) Recv() (msgType uint32, source kernel.ID, payload []byte, ok bool) {
	if h.fiber == nil {
		return 0, kernel.InvalidID, nil, false
	}

	return h.fiber.suspendRecv()
}
