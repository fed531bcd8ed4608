package strata

import (
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/TheBitDrifter/mask"
	"github.com/TheBitDrifter/table"
	"github.com/strata-ecs/strata/strataerr"
)

// World is the facade coordinating entity index, archetype store, type
// registry, resources, relations, epoch counter, and the main action
// buffer (spec §4.7). Build one with NewBuilder().
type World struct {
	index      *entityIndex
	archetypes *archetypeStore
	registry   *registry
	resources  *resourceStore
	relations  *relationRegistry
	mainBuffer *SendBuffer
	logger     *slog.Logger

	epoch atomic.Uint64

	// locks is a coarse, fast-path structural gate: Mark/Unmark/IsEmpty
	// exactly as the teacher's storage.go locks field, generalized from
	// one bit per lock call to one bit per live exclusive-static-view
	// component type. While any bit is held, every structural mutation made
	// through Despawn, Remove, or an Insert that changes archetype is
	// deferred to the action buffer instead of applied immediately, whatever
	// its component types, so a static view's held row positions stay valid
	// for its lifetime.
	locks     mask.Mask256
	lockSlots *lockSlots

	// ownerMarker backs OwnerToken: a capability tied to this exact World
	// instance rather than an OS thread id, since goroutines carry no
	// stable, introspectable identity the way OS threads do.
	ownerMarker byte
}

// OwnerToken is the capability required to access non-sendable resources
// and components through the *Local accessors. Obtained once via
// World.Local() by the goroutine that built the world.
type OwnerToken struct {
	marker *byte
}

func newWorld(cfg *Config) *World {
	schema := table.Factory.NewSchema()
	entryIndex := table.Factory.NewEntryIndex()
	w := &World{
		index:      newEntityIndex(cfg.idRange),
		archetypes: newArchetypeStore(schema, entryIndex, table.TableEvents{}),
		registry:   cfg.registry,
		resources:  newResourceStore(),
		relations:  newRelationRegistry(),
		mainBuffer: NewSendBuffer(),
		lockSlots:  newLockSlots(256),
		logger:     cfg.logger,
	}
	w.registry.markLive()
	return w
}

// Local returns the capability token granting access to non-sendable
// resources and components on this world.
func (w *World) Local() OwnerToken {
	return OwnerToken{marker: &w.ownerMarker}
}

func (w *World) checkOwner(token OwnerToken) error {
	if token.marker != &w.ownerMarker {
		return strataerr.WrongThread{Type: "world"}
	}
	return nil
}

// Exists reports whether id is currently live.
func (w *World) Exists(id EId) bool { return w.index.exists(id) }

// Location is the public form of an entity's (archetype, row) position,
// exposed for callers that want to skip a repeat index lookup (spec §6's
// `location(EId)`). The archetype index is opaque beyond equality
// comparison; it is not guaranteed to stay in bounds for any archetype
// slice the caller might hold, since new archetypes are only ever appended.
type Location struct {
	Archetype uint32
	Row       int
}

// Location returns id's current (archetype, row) position, or NoSuchEntity
// if id is not live.
func (w *World) Location(id EId) (Location, error) {
	loc, err := w.index.lookup(id)
	if err != nil {
		return Location{}, err
	}
	return Location{Archetype: uint32(loc.arch), Row: loc.row}, nil
}

// ActionEncoder returns the world's thread-safe main action buffer, for
// external callers (e.g. a system-scheduler running on another goroutine)
// to enqueue deferred mutations against. Actions enqueued here run at the
// next drain point (the top of the next mutating top-level call, or an
// explicit Sync).
func (w *World) ActionEncoder() Buffer { return w.mainBuffer }

// LocalActionEncoder returns a fresh single-threaded action buffer. It is
// not automatically drained; merge it into the world with FlushLocal once
// the caller is done recording (e.g. at the end of a single-threaded
// system body), or pass it straight to a hook body that was handed one
// already.
func (w *World) LocalActionEncoder() *LocalBuffer { return NewLocalBuffer() }

// FlushLocal merges buf's recorded actions into the world's main action
// buffer, in order, without draining them immediately.
func (w *World) FlushLocal(buf *LocalBuffer) { w.flushLocal(buf) }

// Epoch returns the world's current epoch counter.
func (w *World) Epoch() uint64 { return w.epoch.Load() }

// AdvanceEpoch bumps the epoch counter outside of any mutating call (e.g. a
// scheduler-owned tick boundary) and returns the new value.
func (w *World) AdvanceEpoch() uint64 { return w.bumpEpoch() }

func (w *World) bumpEpoch() uint64    { return w.epoch.Add(1) }
func (w *World) currentEpoch() uint64 { return w.epoch.Load() }

// Locked reports whether any component type is currently under an
// exclusive static-view hold.
func (w *World) Locked() bool { return !w.locks.IsEmpty() }

// addLock marks ct as held by an exclusive static view, mirroring the
// teacher's AddLock(bit).
func (w *World) addLock(ct TypeKey) {
	idx, ok := w.lockSlots.slotFor(ct)
	if !ok {
		return
	}
	if w.lockSlots.incref(idx) {
		w.locks.Mark(uint32(idx))
	}
}

// removeLock releases ct's exclusive static-view hold, mirroring the
// teacher's RemoveLock(bit).
func (w *World) removeLock(ct TypeKey) {
	idx, ok := w.lockSlots.existingSlot(ct)
	if !ok {
		return
	}
	if w.lockSlots.decref(idx) {
		w.locks.Unmark(uint32(idx))
	}
}

func (w *World) flushLocal(buf *LocalBuffer) {
	for _, a := range buf.drain() {
		w.mainBuffer.Enqueue(a)
	}
}

// drainActions replays the main action buffer in recorded order, looping
// until empty or drainCap is reached (spec §4.6).
func (w *World) drainActions() {
	iterations := 0
	for {
		actions := w.mainBuffer.drain()
		if len(actions) == 0 {
			return
		}
		for _, a := range actions {
			err := a.apply(w)
			if err == nil {
				continue
			}
			if _, isMissing := err.(strataerr.NoSuchEntity); isMissing {
				noisy := false
				if fn, ok := a.(fallibleNoisy); ok {
					noisy = fn.noisyOnMissing()
				}
				if noisy {
					w.logger.Warn("strata: deferred action target missing", "error", err)
				}
				continue
			}
			w.logger.Warn("strata: deferred action failed", "error", err)
		}
		iterations++
		if iterations >= drainCap {
			w.logger.Warn("strata: action drain hit iteration cap, stopping", "cap", drainCap)
			return
		}
	}
}

// spawn resolves each bundle value's component type, creates (or reuses)
// the destination archetype, and binds a freshly allocated entity to a new
// row in it.
func (w *World) spawn(bundle []any) (EId, error) {
	id, err := w.index.allocate()
	if err != nil {
		return 0, err
	}

	cts := make([]TypeKey, 0, len(bundle))
	values := make(map[TypeKey]any, len(bundle))
	for _, v := range bundle {
		ct := reflect.TypeOf(v)
		if _, err := w.registry.resolve(ct, v); err != nil {
			return 0, err
		}
		cts = append(cts, ct)
		values[ct] = v
	}

	arch := w.archetypes.getOrCreate(w.registry, cts)
	epoch := w.bumpEpoch()
	row := arch.appendRow(id, values, epoch)
	w.index.bind(id, location{arch: arch.id, row: row})
	return id, nil
}

// despawn runs relation despawn-cascade policy, dispatches every remaining
// component's drop hook, then removes the entity's archetype row.
func (w *World) despawn(id EId) error {
	if _, err := w.index.lookup(id); err != nil {
		return err
	}
	w.despawnRelations(id, w.mainBuffer)

	// despawnRelations may mutate counterpart entities (removeForwardTarget/
	// removeBackSource in relation.go), which can swap-relocate a row in an
	// archetype id shares with a mutated counterpart. Re-lookup rather than
	// trust the location read before the cascade ran.
	loc, err := w.index.lookup(id)
	if err != nil {
		return err
	}

	arch := w.archetypes.get(loc.arch)
	w.bumpEpoch()

	buf := NewLocalBuffer()
	for i, ct := range arch.cts {
		desc, _ := w.registry.lookup(ct)
		val := arch.columns[i].get(arch.tbl, loc.row)
		dispatchDrop(desc, val, id, buf)
	}
	w.flushLocal(buf)

	moved, didMove := arch.swapRemoveRow(loc.row)
	if didMove {
		w.index.relocate(moved, location{arch: loc.arch, row: loc.row})
	}
	w.index.release(id)
	return nil
}

// insert installs value on id, replacing in place if id's archetype
// already carries the type, or performing a move_with_insert transition
// otherwise. Carried-over columns keep their pre-move epochs; only the
// inserted column is stamped with the current epoch.
func (w *World) insert(id EId, value any) error {
	loc, err := w.index.lookup(id)
	if err != nil {
		return err
	}
	ct := reflect.TypeOf(value)
	desc, err := w.registry.resolve(ct, value)
	if err != nil {
		return err
	}
	arch := w.archetypes.get(loc.arch)
	epoch := w.bumpEpoch()

	if col, ok := arch.columnFor(ct); ok {
		old := col.get(arch.tbl, loc.row)
		buf := NewLocalBuffer()
		dispatchReplace(desc, old, value, id, buf)
		w.flushLocal(buf)
		col.set(arch.tbl, loc.row, value)
		col.touch(loc.row, epoch)
		return nil
	}

	dest := w.archetypes.destInsert(w.registry, arch, ct)
	oldEpochs := arch.rowEpochs(loc.row)
	values := arch.rowValues(loc.row)
	values[ct] = value
	newRow := dest.appendRowWithEpochs(id, values, oldEpochs, epoch)
	moved, didMove := arch.swapRemoveRow(loc.row)
	if didMove {
		w.index.relocate(moved, location{arch: loc.arch, row: loc.row})
	}
	w.index.bind(id, location{arch: dest.id, row: newRow})
	return nil
}

// remove performs a move_with_remove transition, returning the removed
// value to the caller. Ownership transfers without running hooks (spec
// §4.8).
func (w *World) remove(id EId, ct TypeKey) (any, error) {
	loc, err := w.index.lookup(id)
	if err != nil {
		return nil, err
	}
	arch := w.archetypes.get(loc.arch)
	if !arch.hasType(ct) {
		return nil, strataerr.NotPresent{Type: ct.String(), ID: uint64(id)}
	}
	dest, _ := w.archetypes.destRemove(w.registry, arch, ct)

	oldEpochs := arch.rowEpochs(loc.row)
	values := arch.rowValues(loc.row)
	removed := values[ct]
	delete(values, ct)
	delete(oldEpochs, ct)

	epoch := w.bumpEpoch()
	newRow := dest.appendRowWithEpochs(id, values, oldEpochs, epoch)
	moved, didMove := arch.swapRemoveRow(loc.row)
	if didMove {
		w.index.relocate(moved, location{arch: loc.arch, row: loc.row})
	}
	w.index.bind(id, location{arch: dest.id, row: newRow})
	return removed, nil
}

// Spawn creates a new entity from bundle and returns its id.
func Spawn(w *World, bundle ...any) (EId, error) {
	w.drainActions()
	return w.spawn(bundle)
}

// SpawnN creates n entities sharing one bundle template in a single
// archetype transition, grounded on the teacher's NewEntities(n, ...).
func SpawnN(w *World, n int, bundle ...any) []EId {
	w.drainActions()
	cts := make([]TypeKey, 0, len(bundle))
	values := make(map[TypeKey]any, len(bundle))
	for _, v := range bundle {
		ct := reflect.TypeOf(v)
		if _, err := w.registry.resolve(ct, v); err != nil {
			invariantViolation("strata: SpawnN bundle type %s: %v", ct, err)
		}
		cts = append(cts, ct)
		values[ct] = v
	}
	arch := w.archetypes.getOrCreate(w.registry, cts)

	ids := make([]EId, 0, n)
	for i := 0; i < n; i++ {
		id, err := w.index.allocate()
		if err != nil {
			invariantViolation("strata: SpawnN: %v", err)
		}
		epoch := w.bumpEpoch()
		row := arch.appendRow(id, values, epoch)
		w.index.bind(id, location{arch: arch.id, row: row})
		ids = append(ids, id)
	}
	return ids
}

// Despawn destroys id, or defers the destruction if any component type is
// currently under an exclusive static-view hold (see Locked).
func Despawn(w *World, id EId) error {
	w.drainActions()
	if w.Locked() {
		w.mainBuffer.DespawnLater(id)
		return nil
	}
	return w.despawn(id)
}

// Insert installs value of type T on id, deferring the operation only when
// it would move id to a different archetype while any component type is
// under an exclusive static-view hold (see Locked).
func Insert[T any](w *World, id EId, value T) error {
	w.drainActions()
	loc, err := w.index.lookup(id)
	if err != nil {
		return err
	}
	ct := typeKeyOf[T]()
	arch := w.archetypes.get(loc.arch)
	if _, sameArchetype := arch.columnFor(ct); sameArchetype {
		return w.insert(id, value)
	}
	if w.Locked() {
		w.mainBuffer.InsertLater(id, value)
		return nil
	}
	return w.insert(id, value)
}

// Remove detaches T from id and returns its value, or defers the operation
// (returning T's zero value) if any component type is currently under an
// exclusive static-view hold (see Locked).
func Remove[T any](w *World, id EId) (T, error) {
	w.drainActions()
	var zero T
	ct := typeKeyOf[T]()
	if w.Locked() {
		w.mainBuffer.RemoveLater(id, ct)
		return zero, nil
	}
	v, err := w.remove(id, ct)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Sync drains the main action buffer at an explicit synchronization point,
// rather than waiting for the next mutating call.
func Sync(w *World) { w.drainActions() }
