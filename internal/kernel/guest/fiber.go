package guest

import "github.com/foundation42/microkernel/internal/kernel"

// suspendKind distinguishes what a suspended fiber is waiting for.
type suspendKind int

const (
	suspendNone suspendKind = iota
	suspendSleep
	suspendRecv
)

// resumeValue is handed to a suspended fiber goroutine to wake it: either
// the timer firing (sleep) or a delivered message (recv). ok is false only
// when the actor is being killed while suspended.
type resumeValue struct {
	msgType uint32
	source  kernel.ID
	payload []byte
	ok      bool
}

// fiberOutcome is reported by the guest goroutine back to the runtime
// thread: either "I suspended" or "HandleMessage returned, here is alive".
type fiberOutcome struct {
	suspended bool
	alive     bool
}

// fiber is the cooperative suspension state for one guest actor. Exactly
// one of the runtime goroutine or the guest goroutine runs at a time: the
// two hand off strictly through unbuffered channels, so this never
// introduces real concurrency into the single-threaded event loop — it is
// a context-switch primitive built from a goroutine, per spec §9's note
// that this is the idiomatic shape on hosts that have them.
type fiber struct {
	active   bool
	kind     suspendKind
	timerID  kernel.TimerID
	resumeCh chan resumeValue
	outcome  chan fiberOutcome
}

func newFiber() *fiber {
	return &fiber{
		resumeCh: make(chan resumeValue),
		outcome:  make(chan fiberOutcome),
	}
}

// suspendSleep is called from the guest goroutine. It arms a one-shot
// timer on the current actor (valid here because the runtime thread is
// blocked waiting on f.outcome for the duration of this call), reports the
// suspension, and blocks until resumed.
func (f *fiber) suspendSleep(rt *kernel.Runtime, ms uint32) bool {
	f.kind = suspendSleep
	f.timerID = rt.SetTimer(ms, false)
	f.outcome <- fiberOutcome{suspended: true}

	resume := <-f.resumeCh

	return resume.ok
}

// suspendRecv is called from the guest goroutine; it blocks until the
// runtime delivers the next message to this actor.
func (f *fiber) suspendRecv() (msgType uint32, source kernel.ID, payload []byte, ok bool) {
	f.kind = suspendRecv
	f.outcome <- fiberOutcome{suspended: true}

	resume := <-f.resumeCh
	if !resume.ok {
		return 0, kernel.InvalidID, nil, false
	}

	return resume.msgType, resume.source, resume.payload, true
}

// Actor adapts a guest Module to kernel.Behavior, threading fiber
// suspension through message dispatch. If hasFiberStack is false, SleepMS
// and Recv always report failure to the guest (spec §4.11: "without a
// fiber stack those imports return error").
type Actor struct {
	module        Module
	hasFiberStack bool
	fiber         *fiber
}

// NewActor constructs a guest-backed actor. Pass the result as the
// Behavior field of a kernel.SpawnSpec, and ActorDestructor as the
// Destructor field so a suspended fiber is woken with failure on kill.
func NewActor(module Module, hasFiberStack bool) *Actor {
	a := &Actor{module: module, hasFiberStack: hasFiberStack}
	if hasFiberStack {
		a.fiber = newFiber()
	}

	return a
}

// Receive implements kernel.Behavior.
func (a *Actor) Receive(ctx *kernel.Context, msg kernel.Message) bool {
	if a.fiber != nil && a.fiber.active {
		return a.resumeWith(ctx, msg)
	}

	return a.invoke(ctx, msg)
}

func (a *Actor) invoke(ctx *kernel.Context, msg kernel.Message) bool {
	imports := &HostImports{rt: ctx.Runtime(), self: ctx.Self(), fiber: a.fiber}

	if a.fiber == nil {
		return a.module.HandleMessage(imports, msg.Type, msg.Source, msg.Payload)
	}

	go func() {
		alive := a.module.HandleMessage(imports, msg.Type, msg.Source, msg.Payload)
		a.fiber.outcome <- fiberOutcome{alive: alive}
	}()

	return a.awaitOutcome()
}

// resumeWith wakes an active suspension if msg satisfies what it is
// waiting for. A sleeping fiber only wakes on its own timer fire; any
// other message arriving while suspended is dropped and the suspension
// remains outstanding — there is no mailbox peek-ahead for fiber delivery.
func (a *Actor) resumeWith(ctx *kernel.Context, msg kernel.Message) bool {
	f := a.fiber

	switch f.kind {
	case suspendSleep:
		if msg.Type != kernel.MsgTypeTimerFire {
			return true
		}
		fire, ok := kernel.DecodeTimerFire(msg.Payload)
		if !ok || fire.TimerID != uint32(f.timerID) {
			return true
		}
		f.resumeCh <- resumeValue{ok: true}

	case suspendRecv:
		f.resumeCh <- resumeValue{
			msgType: msg.Type,
			source:  msg.Source,
			payload: msg.Payload,
			ok:      true,
		}

	default:
		return true
	}

	return a.awaitOutcome()
}

func (a *Actor) awaitOutcome() bool {
	out := <-a.fiber.outcome
	if out.suspended {
		a.fiber.active = true
		return true
	}

	a.fiber.active = false

	return out.alive
}

// HasActiveSuspension reports whether the actor currently has an
// outstanding fiber suspension. The reload package consults this before
// replacing a guest actor's bytecode (spec §4.12: "a guest with an active
// suspension cannot be reloaded").
func (a *Actor) HasActiveSuspension() bool {
	return a.fiber != nil && a.fiber.active
}

// ActorDestructor wakes any outstanding suspension with a failure
// indicator before the actor is torn down, per spec §4.11/§5: a guest
// suspension is cancelled only by the actor being stopped.
func ActorDestructor(state any) {
	a, ok := state.(*Actor)
	if !ok || a.fiber == nil || !a.fiber.active {
		return
	}

	a.fiber.resumeCh <- resumeValue{ok: false}
	<-a.fiber.outcome
	a.fiber.active = false
}
