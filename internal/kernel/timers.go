package kernel

import "time"

// TimerID identifies one timer entry within a runtime's timer pool.
type TimerID uint32

// invalidTimerID is returned by set_timer on pool exhaustion.
const invalidTimerID TimerID = 0

// Clock abstracts wall-clock access so the timer pool can be driven
// deterministically in tests (spec's "timer overrun" scenario requires
// observing a specific expirations_count, which is easiest to construct
// against a fake clock).
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// timerEntry is one {id, owner, periodic, expiration} tuple.
type timerEntry struct {
	id       TimerID
	owner    ID
	interval time.Duration
	periodic bool
	nextFire time.Time
	live     bool
}

// timerPool is a bounded pool of timer entries, sized at construction to at
// least 32 slots total across all actors per spec §4.6.
type timerPool struct {
	clock   Clock
	entries []timerEntry // slot 0 unused (matches invalidTimerID)
	nextID  uint32
	count   int
}

const minTimerPoolCapacity = 32

func newTimerPool(clock Clock, capacity int) *timerPool {
	if capacity < minTimerPoolCapacity {
		capacity = minTimerPoolCapacity
	}

	return &timerPool{
		clock:   clock,
		entries: make([]timerEntry, capacity+1),
		nextID:  1,
	}
}

// set allocates a timer owned by owner, firing after intervalMS milliseconds
// (and every intervalMS thereafter if periodic). Returns invalidTimerID on
// pool exhaustion.
func (p *timerPool) set(owner ID, intervalMS uint32, periodic bool) TimerID {
	if p.count >= len(p.entries)-1 {
		return invalidTimerID
	}

	slot := -1
	for i := 1; i < len(p.entries); i++ {
		if !p.entries[i].live {
			slot = i
			break
		}
	}
	if slot < 0 {
		return invalidTimerID
	}

	id := TimerID(slot)
	interval := time.Duration(intervalMS) * time.Millisecond
	p.entries[slot] = timerEntry{
		id:       id,
		owner:    owner,
		interval: interval,
		periodic: periodic,
		nextFire: p.clock.Now().Add(interval),
		live:     true,
	}
	p.count++

	return id
}

// cancel removes the timer if owned by owner. Returns false otherwise,
// including when the timer does not exist.
func (p *timerPool) cancel(id TimerID, owner ID) bool {
	if int(id) <= 0 || int(id) >= len(p.entries) {
		return false
	}

	entry := &p.entries[id]
	if !entry.live || entry.owner != owner {
		return false
	}

	entry.live = false
	p.count--

	return true
}

// revokeOwnedBy cancels every timer owned by id, used during actor
// destruction.
func (p *timerPool) revokeOwnedBy(id ID) {
	for i := range p.entries {
		if p.entries[i].live && p.entries[i].owner == id {
			p.entries[i].live = false
			p.count--
		}
	}
}

// firedTimer describes one expiration, with the overrun count (number of
// intervals that elapsed since the last poll, ≥1).
type firedTimer struct {
	id          TimerID
	owner       ID
	expirations uint32
}

// poll checks every live timer against the clock and returns those that
// fired. A timer fires once the clock reaches its fire time. One-shot
// timers are removed; periodic timers are re-armed one interval after now,
// and the whole intervals missed past the scheduled fire time are reported
// as overrun in the expiration count.
func (p *timerPool) poll() []firedTimer {
	now := p.clock.Now()

	var fired []firedTimer
	for i := 1; i < len(p.entries); i++ {
		entry := &p.entries[i]
		if !entry.live || now.Before(entry.nextFire) {
			continue
		}

		elapsed := now.Sub(entry.nextFire)
		overrun := uint32(1)
		if entry.interval > 0 {
			overrun += uint32(elapsed / entry.interval)
		}

		fired = append(fired, firedTimer{
			id:          entry.id,
			owner:       entry.owner,
			expirations: overrun,
		})

		if entry.periodic {
			entry.nextFire = now.Add(entry.interval)
		} else {
			entry.live = false
			p.count--
		}
	}

	return fired
}
