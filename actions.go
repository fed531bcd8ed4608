package strata

import "sync"

// Action is one deferred world mutation: spawn, despawn, insert, remove, or
// a custom closure. Recorded into a Buffer and replayed by the world at
// drain time.
type Action interface {
	apply(w *World) error
}

// Buffer is the common append-only action log interface implemented by
// both SendBuffer and LocalBuffer (spec §4.6's "two flavours").
type Buffer interface {
	Enqueue(Action)
	Defer(func(w *World))
	SpawnLater(bundle ...any)
	DespawnLater(id EId)
	InsertLater(id EId, value any)
	RemoveLater(id EId, ct TypeKey)
	drain() []Action
}

// fallibleNoisy marks an Action whose NoSuchEntity failure at drain should
// be logged instead of silently dropped (spec §4.6/§7).
type fallibleNoisy interface {
	noisyOnMissing() bool
}

type spawnAction struct{ bundle []any }

func (a spawnAction) apply(w *World) error {
	_, err := w.spawn(a.bundle)
	return err
}

type despawnAction struct{ id EId }

func (a despawnAction) apply(w *World) error {
	return w.despawn(a.id)
}

type insertAction struct {
	id    EId
	value any
}

func (a insertAction) apply(w *World) error {
	return w.insert(a.id, a.value)
}

type removeAction struct {
	id EId
	ct TypeKey
}

func (a removeAction) apply(w *World) error {
	_, err := w.remove(a.id, a.ct)
	return err
}

type closureAction struct {
	fn func(w *World)
}

func (a closureAction) apply(w *World) error {
	a.fn(w)
	return nil
}

func (a closureAction) noisyOnMissing() bool { return false }

// LocalBuffer is the single-threaded action buffer handed to hooks (§4.8:
// "hooks never reenter the world directly; they only enqueue actions").
type LocalBuffer struct {
	actions []Action
}

// NewLocalBuffer constructs an empty local-only action buffer.
func NewLocalBuffer() *LocalBuffer { return &LocalBuffer{} }

func (b *LocalBuffer) Enqueue(a Action) { b.actions = append(b.actions, a) }

func (b *LocalBuffer) Defer(fn func(w *World)) { b.Enqueue(closureAction{fn: fn}) }

func (b *LocalBuffer) SpawnLater(bundle ...any) { b.Enqueue(spawnAction{bundle: bundle}) }

func (b *LocalBuffer) DespawnLater(id EId) { b.Enqueue(despawnAction{id: id}) }

func (b *LocalBuffer) InsertLater(id EId, value any) {
	b.Enqueue(insertAction{id: id, value: value})
}

func (b *LocalBuffer) RemoveLater(id EId, ct TypeKey) {
	b.Enqueue(removeAction{id: id, ct: ct})
}

func (b *LocalBuffer) drain() []Action {
	out := b.actions
	b.actions = nil
	return out
}

// SendBuffer is the thread-safe action buffer returned by
// World.ActionEncoder for use by external callers (e.g. a
// system-scheduler running on another goroutine, out of this core's scope).
type SendBuffer struct {
	mu      sync.Mutex
	actions []Action
}

// NewSendBuffer constructs an empty thread-safe action buffer.
func NewSendBuffer() *SendBuffer { return &SendBuffer{} }

func (b *SendBuffer) Enqueue(a Action) {
	b.mu.Lock()
	b.actions = append(b.actions, a)
	b.mu.Unlock()
}

func (b *SendBuffer) Defer(fn func(w *World)) { b.Enqueue(closureAction{fn: fn}) }

func (b *SendBuffer) SpawnLater(bundle ...any) { b.Enqueue(spawnAction{bundle: bundle}) }

func (b *SendBuffer) DespawnLater(id EId) { b.Enqueue(despawnAction{id: id}) }

func (b *SendBuffer) InsertLater(id EId, value any) {
	b.Enqueue(insertAction{id: id, value: value})
}

func (b *SendBuffer) RemoveLater(id EId, ct TypeKey) {
	b.Enqueue(removeAction{id: id, ct: ct})
}

func (b *SendBuffer) drain() []Action {
	b.mu.Lock()
	out := b.actions
	b.actions = nil
	b.mu.Unlock()
	return out
}

// drainCap bounds the number of drain passes performed by World.drainActions
// per call, guarding against hook-induced non-termination (spec §4.6, Open
// Question #1 — resolved in DESIGN.md).
const drainCap = 1000
