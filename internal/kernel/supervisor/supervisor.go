// Package supervisor implements supervision trees: child specs, restart
// strategies, and restart-budget enforcement over the kernel's actor table.
package supervisor

import (
	"context"
	"time"

	"github.com/foundation42/microkernel/internal/kernel"
)

// Strategy selects how siblings are affected when one child exits.
type Strategy int

const (
	OneForOne Strategy = iota
	OneForAll
	RestForOne
)

// RestartType controls whether a child is restarted after exiting.
type RestartType int

const (
	Permanent RestartType = iota
	Transient
	Temporary
)

// Clock abstracts wall-clock access so restart-budget enforcement can be
// driven deterministically in tests (the restart-limit end-to-end scenario
// needs repeatable timing).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ChildSpec is the declarative description a supervisor uses to construct
// and reconstruct one child, per spec §3.
type ChildSpec struct {
	Name            string
	Behavior        kernel.Behavior
	StateFactory    func(arg any) any
	FactoryArg      any
	Destructor      kernel.StateDestructor
	MailboxCapacity uint32
	Restart         RestartType
}

// AuditSink optionally persists restart decisions so restart storms survive
// a node crash (spec §3 SUPPLEMENT). Implementations live in the services
// package (sqlite-backed) or may be left nil to use only the in-memory
// ring, which remains the sole input to the restart-budget decision.
type AuditSink interface {
	RecordRestart(supervisor kernel.ID, childIndex int, reason kernel.ExitReason, at time.Time)
}

// Supervisor is itself an actor: its behavior handles child-exit messages
// and applies the configured restart strategy and budget.
type Supervisor struct {
	rt     *kernel.Runtime
	id     kernel.ID
	clock  Clock
	sink   AuditSink
	strategy    Strategy
	maxRestarts int
	window      time.Duration

	specs    []ChildSpec
	children []kernel.ID
	restarts []time.Time
	stopped  bool
}

// Option configures optional Supervisor behavior.
type Option func(*Supervisor)

// WithClock overrides the wall clock used for restart-window accounting.
func WithClock(c Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

// WithAuditSink attaches a durable restart-history sink.
func WithAuditSink(sink AuditSink) Option {
	return func(s *Supervisor) { s.sink = sink }
}

// Start constructs a supervisor actor, spawns each child per spec per the
// bootstrap step of §4.10, sets their parent link to the supervisor, and
// returns the Supervisor handle (callers needing only the identity can call
// its ID method; reload's SupervisorLink needs the handle itself).
func Start(rt *kernel.Runtime, strategy Strategy, maxRestarts int,
	window time.Duration, specs []ChildSpec, opts ...Option) *Supervisor {

	sup := &Supervisor{
		rt:          rt,
		clock:       systemClock{},
		strategy:    strategy,
		maxRestarts: maxRestarts,
		window:      window,
		specs:       specs,
		children:    make([]kernel.ID, len(specs)),
	}
	for _, opt := range opts {
		opt(sup)
	}

	id := rt.Spawn(kernel.SpawnSpec{
		Behavior:        kernel.BehaviorFunc(sup.receive),
		MailboxCapacity: 16,
	})
	sup.id = id

	for i, spec := range specs {
		sup.spawnChild(i, spec)
	}

	log.InfoS(context.Background(), "Supervisor started", "supervisor_id", id,
		"strategy", strategy, "children", len(specs))

	return sup
}

func (s *Supervisor) spawnChild(index int, spec ChildSpec) {
	var state any
	if spec.StateFactory != nil {
		state = spec.StateFactory(spec.FactoryArg)
	}

	childID := s.rt.Spawn(kernel.SpawnSpec{
		Behavior:        spec.Behavior,
		State:           state,
		Destructor:      spec.Destructor,
		MailboxCapacity: spec.MailboxCapacity,
	})
	s.rt.SetParent(childID, s.id)
	s.children[index] = childID
}

// receive is the supervisor's own behavior: it only ever observes
// child-exit messages (everything else is a contract violation by a
// caller, and is ignored).
func (s *Supervisor) receive(ctx *kernel.Context, msg kernel.Message) bool {
	if msg.Type != kernel.MsgTypeChildExit {
		return true
	}

	payload, ok := kernel.DecodeChildExit(msg.Payload)
	if !ok {
		return true
	}

	index := s.indexOf(payload.Child)
	if index < 0 {
		return true
	}

	s.handleChildExit(index, payload.Reason)

	return !s.stopped
}

func (s *Supervisor) indexOf(child kernel.ID) int {
	for i, id := range s.children {
		if id == child {
			return i
		}
	}

	return -1
}

func (s *Supervisor) handleChildExit(index int, reason kernel.ExitReason) {
	spec := s.specs[index]

	restart := false
	switch spec.Restart {
	case Permanent:
		restart = true
	case Transient:
		restart = reason != kernel.ExitNormal
	case Temporary:
		restart = false
	}

	if !restart {
		return
	}

	switch s.strategy {
	case OneForOne:
		s.restartOne(index, reason)

	case OneForAll:
		for i := range s.specs {
			if i != index && s.children[i].Valid() {
				s.rt.Stop(s.children[i])
			}
		}
		for i := range s.specs {
			s.restartOne(i, reason)
		}

	case RestForOne:
		for i := len(s.specs) - 1; i > index; i-- {
			if s.children[i].Valid() {
				s.rt.Stop(s.children[i])
			}
		}
		for i := index; i < len(s.specs); i++ {
			s.restartOne(i, reason)
		}
	}
}

// restartOne respawns the child at index and records the restart against
// the budget. If the budget is exceeded, the supervisor stops itself,
// cascading a stop to every live child.
func (s *Supervisor) restartOne(index int, reason kernel.ExitReason) {
	s.spawnChild(index, s.specs[index])

	now := s.clock.Now()
	s.restarts = append(s.restarts, now)
	if len(s.restarts) > s.maxRestarts+1 {
		s.restarts = s.restarts[len(s.restarts)-(s.maxRestarts+1):]
	}

	if s.sink != nil {
		s.sink.RecordRestart(s.id, index, reason, now)
	}

	if len(s.restarts) == s.maxRestarts+1 {
		oldest := s.restarts[0]
		if now.Sub(oldest) <= s.window {
			log.WarnS(context.Background(), "Supervisor exceeded "+
				"restart budget, stopping",
				"supervisor_id", s.id, "max_restarts", s.maxRestarts,
				"window", s.window)
			s.stopAll()
		}
	}
}

func (s *Supervisor) stopAll() {
	s.stopped = true
	for _, id := range s.children {
		if id.Valid() {
			s.rt.Stop(id)
		}
	}
}

// GetChild returns the current identity of the child at index.
func (s *Supervisor) GetChild(index int) (kernel.ID, bool) {
	if index < 0 || index >= len(s.children) {
		return kernel.InvalidID, false
	}

	return s.children[index], true
}

// GetFactoryArg returns the opaque factory argument passed at construction
// for the child at index. Hot reload does not call it.
func (s *Supervisor) GetFactoryArg(index int) (any, bool) {
	if index < 0 || index >= len(s.specs) {
		return nil, false
	}

	return s.specs[index].FactoryArg, true
}

// SetFactoryArg replaces the factory argument for the child at index.
// Hot reload does not call it.
func (s *Supervisor) SetFactoryArg(index int, arg any) bool {
	if index < 0 || index >= len(s.specs) {
		return false
	}

	s.specs[index].FactoryArg = arg

	return true
}

// SetChildID overwrites the recorded identity for the child at index,
// used by hot reload after it atomically swaps in a replacement actor.
func (s *Supervisor) SetChildID(index int, id kernel.ID) bool {
	if index < 0 || index >= len(s.children) {
		return false
	}

	s.children[index] = id

	return true
}

// Stop stops the supervisor, cascading a stop to every live child.
func (s *Supervisor) Stop() {
	s.stopAll()
	s.rt.Stop(s.id)
}

// ID returns the supervisor's own actor identity.
func (s *Supervisor) ID() kernel.ID {
	return s.id
}
