// Package ns implements the microkernel's name and path namespace: a flat
// hash of name to actor identity, a hierarchical path tree with mount
// support layered on top of it, and cross-node registry synchronization
// over the owning runtime's transports.
package ns

import (
	"context"
	"strings"

	"github.com/OneOfOne/xxhash"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/foundation42/microkernel/internal/kernel"
)

// MaxNameLength is the longest name the flat registry accepts.
const MaxNameLength = 63

// MaxPathLength is the longest path the namespace accepts.
const MaxPathLength = 127

// Result is the structured outcome of a namespace operation that needs more
// than a boolean, per spec §6.
type Result int

const (
	Ok Result = iota
	Exists
	NoEntry
	Busy
	TooLarge
)

func (r Result) String() string {
	switch r {
	case Ok:
		return "ok"
	case Exists:
		return "exists"
	case NoEntry:
		return "no-entry"
	case Busy:
		return "busy"
	case TooLarge:
		return "too-large"
	default:
		return "unknown"
	}
}

// flatRegistry is an open-addressed hash of name to id, fixed capacity,
// linearly probed, hashed with xxhash. Registration fails on duplicate name
// or when the table is full.
type flatRegistry struct {
	capacity uint32
	names    []string
	ids      []kernel.ID
	count    uint32
}

func newFlatRegistry(capacity uint32) *flatRegistry {
	c := nextPow2(capacity)

	return &flatRegistry{
		capacity: c,
		names:    make([]string, c),
		ids:      make([]kernel.ID, c),
	}
}

func nextPow2(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++

	return v
}

func (f *flatRegistry) slot(name string) uint32 {
	return uint32(xxhash.ChecksumString32(name)) & (f.capacity - 1)
}

// register inserts name -> id. False on duplicate name or a full table.
func (f *flatRegistry) register(name string, id kernel.ID) bool {
	if f.count >= f.capacity {
		return false
	}

	start := f.slot(name)
	for i := uint32(0); i < f.capacity; i++ {
		idx := (start + i) % f.capacity
		if f.names[idx] == "" {
			f.names[idx] = name
			f.ids[idx] = id
			f.count++
			return true
		}
		if f.names[idx] == name {
			return false
		}
	}

	return false
}

// lookup returns the id bound to name.
func (f *flatRegistry) lookup(name string) (kernel.ID, bool) {
	start := f.slot(name)
	for i := uint32(0); i < f.capacity; i++ {
		idx := (start + i) % f.capacity
		if f.names[idx] == "" {
			return kernel.InvalidID, false
		}
		if f.names[idx] == name {
			return f.ids[idx], true
		}
	}

	return kernel.InvalidID, false
}

// unregister removes a single name -> id binding.
func (f *flatRegistry) unregister(name string) bool {
	start := f.slot(name)
	for i := uint32(0); i < f.capacity; i++ {
		idx := (start + i) % f.capacity
		if f.names[idx] == "" {
			return false
		}
		if f.names[idx] == name {
			f.names[idx] = ""
			f.ids[idx] = kernel.InvalidID
			f.count--
			return true
		}
	}

	return false
}

// unregisterAll removes every name bound to id, returning the removed
// names (used for reverse lookup bookkeeping and broadcast of unregisters).
func (f *flatRegistry) unregisterAll(id kernel.ID) []string {
	var removed []string
	for idx := uint32(0); idx < f.capacity; idx++ {
		if f.names[idx] != "" && f.ids[idx] == id {
			removed = append(removed, f.names[idx])
			f.names[idx] = ""
			f.ids[idx] = kernel.InvalidID
			f.count--
		}
	}

	return removed
}

func (f *flatRegistry) reverseLookup(id kernel.ID) []string {
	var names []string
	for idx := uint32(0); idx < f.capacity; idx++ {
		if f.names[idx] != "" && f.ids[idx] == id {
			names = append(names, f.names[idx])
		}
	}

	return names
}

// pathBinding is one registered leaf path -> actor identity.
type pathBinding struct {
	path string
	id   kernel.ID
}

// Namespace unifies the flat registry and the hierarchical path tree, plus
// cross-node synchronization of registrations. Paths are kept in the path
// tree, not the flat registry; Register and Lookup route any name with a
// leading "/" to the path tree, so lookup-by-string works uniformly.
type Namespace struct {
	rt    *kernel.Runtime
	flat  *flatRegistry
	leafs map[string]kernel.ID
	mount map[string]kernel.ID
	cache *lookupCache
}

// New constructs a Namespace bound to rt, wiring its stop hook (to
// unregister a destroyed actor's names) and its transport intercept (to
// apply incoming registry-sync messages) into the runtime.
func New(rt *kernel.Runtime, flatCapacity uint32, pathCacheSize int) *Namespace {
	n := &Namespace{
		rt:    rt,
		flat:  newFlatRegistry(flatCapacity),
		leafs: make(map[string]kernel.ID),
		mount: make(map[string]kernel.ID),
		cache: newLookupCache(pathCacheSize),
	}

	rt.RegisterStopHook(n.onActorStop)
	rt.RegisterIntercept(n.interceptSyncMessage)

	return n
}

func isPath(name string) bool {
	return strings.HasPrefix(name, "/")
}

// Register records name -> id, routing to the path tree or the flat
// registry depending on whether name begins with "/". Local registrations
// are broadcast to every connected transport so peers converge.
func (n *Namespace) Register(name string, id kernel.ID) bool {
	if isPath(name) {
		return n.RegisterPath(name, id) == Ok
	}

	if len(name) > MaxNameLength {
		return false
	}

	if !n.flat.register(name, id) {
		return false
	}

	n.broadcastRegister(name, id)

	return true
}

// Lookup resolves name, routing to the path tree or flat registry.
func (n *Namespace) Lookup(name string) (kernel.ID, bool) {
	if isPath(name) {
		return n.LookupPath(name)
	}

	return n.flat.lookup(name)
}

// ReverseLookup returns every name (flat and path) registered for id.
func (n *Namespace) ReverseLookup(id kernel.ID) []string {
	names := n.flat.reverseLookup(id)
	for path, boundID := range n.leafs {
		if boundID == id {
			names = append(names, path)
		}
	}

	return names
}

// registerLocal applies a registration without broadcasting, used when
// absorbing a remote peer's sync message. Per spec §4.7 tie-breaking, a
// remote registration of a name already held locally is rejected; the
// locally-held name wins.
func (n *Namespace) registerLocal(name string, id kernel.ID) bool {
	if isPath(name) {
		if _, exists := n.leafs[name]; exists {
			return false
		}
		n.leafs[name] = id
		n.cache.invalidate(name)
		return true
	}

	return n.flat.register(name, id)
}

func (n *Namespace) unregisterLocal(name string) bool {
	if isPath(name) {
		if _, exists := n.leafs[name]; !exists {
			return false
		}
		delete(n.leafs, name)
		n.cache.invalidate(name)
		return true
	}

	return n.flat.unregister(name)
}

// RegisterPath binds a leaf path to id.
func (n *Namespace) RegisterPath(path string, id kernel.ID) Result {
	if len(path) > MaxPathLength {
		return TooLarge
	}
	if _, exists := n.leafs[path]; exists {
		return Exists
	}

	n.leafs[path] = id
	n.cache.invalidate(path)
	n.broadcastRegister(path, id)

	return Ok
}

// UnregisterPath removes a leaf path binding.
func (n *Namespace) UnregisterPath(path string) Result {
	if _, exists := n.leafs[path]; !exists {
		return NoEntry
	}

	delete(n.leafs, path)
	n.cache.invalidate(path)
	n.broadcastUnregister(path)

	return Ok
}

// LookupPath resolves path per §4.7: longest mount-point prefix that is a
// proper ancestor or equal wins; otherwise the exact leaf binding; otherwise
// invalid. Results are memoized in an LRU cache (§4.7a), invalidated on any
// mutation affecting the resolved path. Internally the "a value or nothing"
// resolution walk is composed as an fn.Option[ID] (spec §7) and projected
// down to the (ID, bool) public contract here.
func (n *Namespace) LookupPath(path string) (kernel.ID, bool) {
	if id, ok := n.cache.get(path); ok {
		return id, true
	}

	resolved := n.resolvePath(path)
	resolved.WhenSome(func(id kernel.ID) {
		n.cache.put(path, id)
	})

	return resolved.UnwrapOr(kernel.InvalidID), resolved.IsSome()
}

func (n *Namespace) resolvePath(path string) fn.Option[kernel.ID] {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i := len(segments); i >= 0; i-- {
		prefix := "/" + strings.Join(segments[:i], "/")
		if prefix == "/" && i == 0 {
			prefix = "/"
		}
		if id, ok := n.mount[prefix]; ok {
			return fn.Some(id)
		}
	}

	if id, ok := n.leafs[path]; ok {
		return fn.Some(id)
	}

	return fn.None[kernel.ID]()
}

// ListPrefix returns every registered leaf path beginning with prefix.
func (n *Namespace) ListPrefix(prefix string) []string {
	var out []string
	for path := range n.leafs {
		if strings.HasPrefix(path, prefix) {
			out = append(out, path)
		}
	}

	return out
}

// Mount maps mountPoint to a delegate actor, which typically forwards the
// subtree across a link. Triggers a full snapshot sync with every connected
// transport so both sides converge on connect.
func (n *Namespace) Mount(mountPoint string, delegate kernel.ID) Result {
	if _, exists := n.mount[mountPoint]; exists {
		return Exists
	}

	n.mount[mountPoint] = delegate
	n.cache.clear()
	n.syncSnapshot()

	return Ok
}

// Umount removes a mount point.
func (n *Namespace) Umount(mountPoint string) Result {
	if _, exists := n.mount[mountPoint]; !exists {
		return NoEntry
	}

	delete(n.mount, mountPoint)
	n.cache.clear()

	return Ok
}

// TransferNames moves every name registered for oldID to newID, via the
// ordinary unregister+register broadcast path so peers converge the same
// way they would for any other registration change. Used by hot reload
// (spec §4.12) to preserve a replaced actor's bindings.
func (n *Namespace) TransferNames(oldID, newID kernel.ID) {
	for _, name := range n.ReverseLookup(oldID) {
		if isPath(name) {
			delete(n.leafs, name)
			n.cache.invalidate(name)
			n.broadcastUnregister(name)

			n.leafs[name] = newID
			n.cache.invalidate(name)
			n.broadcastRegister(name, newID)

			continue
		}

		n.flat.unregister(name)
		n.broadcastUnregister(name)

		n.flat.register(name, newID)
		n.broadcastRegister(name, newID)
	}
}

// onActorStop is invoked by the runtime's destruction sweep; it removes
// every name the stopped actor held and broadcasts the unregisters.
func (n *Namespace) onActorStop(id kernel.ID) {
	for _, name := range n.flat.unregisterAll(id) {
		n.broadcastUnregister(name)
	}

	for path, boundID := range n.leafs {
		if boundID == id {
			delete(n.leafs, path)
			n.cache.invalidate(path)
			n.broadcastUnregister(path)
		}
	}
}

func (n *Namespace) broadcastRegister(name string, id kernel.ID) {
	payload := encodeRegister(name, id)
	for _, t := range n.rt.Transports() {
		t.Send(kernel.NewMessage(kernel.InvalidID, kernel.InvalidID,
			kernel.MsgTypeNameRegister, payload))
	}
}

func (n *Namespace) broadcastUnregister(name string) {
	payload := encodeUnregister(name)
	for _, t := range n.rt.Transports() {
		t.Send(kernel.NewMessage(kernel.InvalidID, kernel.InvalidID,
			kernel.MsgTypeNameUnregister, payload))
	}
}

// syncSnapshot sends every currently-registered path binding to every
// connected transport, used on mount connect so both ends converge.
func (n *Namespace) syncSnapshot() {
	for path, id := range n.leafs {
		n.broadcastRegister(path, id)
	}
}

// interceptSyncMessage absorbs registry-sync messages arriving over a
// transport, before they would otherwise be dispatched to a local actor.
// Returns true (consumed) for MsgTypeNameRegister and MsgTypeNameUnregister,
// which carry both flat-name and path sync, regardless of whether the update
// was applied. MsgTypePathRegister and MsgTypePathUnregister are not
// intercepted here.
func (n *Namespace) interceptSyncMessage(msg kernel.Message) bool {
	switch msg.Type {
	case kernel.MsgTypeNameRegister:
		name, id, ok := decodeRegister(msg.Payload)
		if ok {
			if !n.registerLocal(name, id) {
				log.DebugS(context.Background(),
					"Rejected remote name registration, "+
						"locally-held name wins",
					"name", name)
			}
		}
		return true

	case kernel.MsgTypeNameUnregister:
		name, ok := decodeUnregister(msg.Payload)
		if ok {
			n.unregisterLocal(name)
		}
		return true
	}

	return false
}
