// Package reload implements in-place replacement of a guest actor's
// behavior while preserving its mailbox backlog, names, and supervision
// link (spec §4.12), plus an optional fsnotify-driven directory watch that
// triggers reloads automatically (§4.6a SUPPLEMENT).
package reload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/foundation42/microkernel/internal/kernel"
	"github.com/foundation42/microkernel/internal/kernel/guest"
	"github.com/foundation42/microkernel/internal/kernel/supervisor"
)

// Outcome is the structured result of a reload attempt.
type Outcome int

const (
	Ok Outcome = iota
	FiberActive
	ModuleLoadError
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "ok"
	case FiberActive:
		return "fiber-active"
	case ModuleLoadError:
		return "module-load-error"
	default:
		return "unknown"
	}
}

// Parser parses and validates new bytecode into a guest Module.
type Parser func(bytecode []byte) (guest.Module, error)

// NameTransferer is the subset of the ns package's Namespace used to move
// a replaced actor's name bindings. Declared locally so reload does not
// need to import ns for anything but this one call.
type NameTransferer interface {
	TransferNames(oldID, newID kernel.ID)
}

// SupervisorLink optionally ties a reloaded actor back to its supervisor
// record, so the supervisor's bookkeeping follows the swap.
type SupervisorLink struct {
	Supervisor *supervisor.Supervisor
	ChildIndex int
}

// Request bundles the parameters of one reload attempt.
type Request struct {
	Actor         kernel.ID
	NewBytecode   []byte
	Parser        Parser
	HasFiberStack bool
	Names         NameTransferer // nil if names are not tracked
	Supervised    *SupervisorLink // nil if the actor is not supervised
}

// Reload implements spec §4.12's five-step sequence. For a supervised actor
// it updates only the supervisor's recorded child id (SetChildID); the
// supervisor's factory argument is left unchanged.
func Reload(rt *kernel.Runtime, req Request) (kernel.ID, Outcome) {
	state, ok := rt.StateOf(req.Actor)
	if !ok {
		return kernel.InvalidID, ModuleLoadError
	}

	if actor, ok := state.(*guest.Actor); ok && actor.HasActiveSuspension() {
		return kernel.InvalidID, FiberActive
	}

	module, err := req.Parser(req.NewBytecode)
	if err != nil {
		log.WarnS(context.Background(), "Reload failed to parse bytecode",
			"actor_id", req.Actor, "error", err)

		return kernel.InvalidID, ModuleLoadError
	}

	capacity, _ := rt.MailboxCapacityOf(req.Actor)
	parent, _ := rt.ParentOf(req.Actor)

	newID := guest.Spawn(rt, module, req.HasFiberStack, capacity)
	if parent.Valid() {
		rt.SetParent(newID, parent)
	}

	moved := rt.TransferMailbox(req.Actor, newID)

	if req.Names != nil {
		req.Names.TransferNames(req.Actor, newID)
	}

	if req.Supervised != nil {
		req.Supervised.Supervisor.SetChildID(req.Supervised.ChildIndex, newID)
	}

	rt.Stop(req.Actor)

	log.InfoS(context.Background(), "Actor reloaded", "old_actor_id", req.Actor,
		"new_actor_id", newID, "messages_moved", moved)

	return newID, Ok
}

// Watcher watches a directory for "<name>.bytecode" files and triggers a
// Reload whenever one appears or changes, matching it to the actor
// registered under <name> via a caller-supplied resolver (spec §4.6a).
type Watcher struct {
	rt       *kernel.Runtime
	watcher  *fsnotify.Watcher
	resolve  func(name string) (kernel.ID, bool)
	parser   Parser
	fiber    bool
	names    NameTransferer
}

// NewWatcher starts watching dir. Caller must call Close when done.
func NewWatcher(rt *kernel.Runtime, dir string, resolve func(name string) (kernel.ID, bool),
	parser Parser, hasFiberStack bool, names NameTransferer) (*Watcher, error) {

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("reload: creating watcher: %w", err)
	}

	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("reload: watching %s: %w", dir, err)
	}

	w := &Watcher{
		rt:      rt,
		watcher: fw,
		resolve: resolve,
		parser:  parser,
		fiber:   hasFiberStack,
		names:   names,
	}

	go w.run()

	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.handleEvent(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.WarnS(context.Background(), "Reload watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(path string) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".bytecode") {
		return
	}
	name := strings.TrimSuffix(base, ".bytecode")

	id, ok := w.resolve(name)
	if !ok {
		return
	}

	bytecode, err := os.ReadFile(path)
	if err != nil {
		log.WarnS(context.Background(), "Reload watcher failed to read "+
			"bytecode file", "path", path, "error", err)
		return
	}

	_, outcome := Reload(w.rt, Request{
		Actor:         id,
		NewBytecode:   bytecode,
		Parser:        w.parser,
		HasFiberStack: w.fiber,
		Names:         w.names,
	})
	if outcome != Ok {
		log.WarnS(context.Background(), "Auto-reload did not apply",
			"name", name, "outcome", outcome)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
