package strata

import (
	"fmt"
	"sync"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
	"github.com/strata-ecs/strata/strataerr"
)

// HookKind names the two lifecycle hooks a ComponentDescriptor can carry
// (set with WithReplaceHook and WithDropHook).
type HookKind int

const (
	// OnReplace fires when a component value already on an entity is
	// overwritten by a later insert of the same type.
	OnReplace HookKind = iota
	// OnDrop fires when a component value is destroyed by despawn or by an
	// explicit drop (not by Remove, which transfers ownership).
	OnDrop
)

// ReplaceHookFunc runs with access to the outgoing and incoming values, the
// owning entity, and a local action buffer. Returning false suppresses the
// outgoing value's drop hook (the value is still destroyed).
type ReplaceHookFunc func(old, new any, id EId, buf *LocalBuffer) bool

// DropHookFunc runs with access to the destroyed value, the owning entity,
// and a local action buffer.
type DropHookFunc func(val any, id EId, buf *LocalBuffer)

// BorrowDescriptor projects a (possibly unsized) view of Target out of a
// component value on the same entity.
type BorrowDescriptor struct {
	Target  TypeKey
	Project func(component any) any
}

// ComponentDescriptor is the per-component-type vtable the registry keeps:
// stable type identity, drop/replace hooks, borrow projections, and the
// sendable marker.
type ComponentDescriptor struct {
	Key         TypeKey
	Kind        *columnKind
	ReplaceHook ReplaceHookFunc
	DropHook    DropHookFunc
	Borrows     []BorrowDescriptor
	Sendable    bool
}

// Describe builds a default descriptor for T: no hooks, no borrows,
// sendable, with its table-backed column kind already bootstrapped. Pass
// the result to Builder.Register, or start from it with
// WithReplaceHook/WithDropHook/WithBorrow for a customized descriptor.
func Describe[T any]() ComponentDescriptor {
	return ComponentDescriptor{Key: typeKeyOf[T](), Kind: columnKindFor[T](), Sendable: true}
}

// WithReplaceHook returns a copy of d with its replace hook set.
func (d ComponentDescriptor) WithReplaceHook(fn ReplaceHookFunc) ComponentDescriptor {
	d.ReplaceHook = fn
	return d
}

// WithDropHook returns a copy of d with its drop hook set.
func (d ComponentDescriptor) WithDropHook(fn DropHookFunc) ComponentDescriptor {
	d.DropHook = fn
	return d
}

// WithBorrow returns a copy of d with an additional borrow projection.
func (d ComponentDescriptor) WithBorrow(target TypeKey, project func(any) any) ComponentDescriptor {
	d.Borrows = append(d.Borrows, BorrowDescriptor{Target: target, Project: project})
	return d
}

// NotSendable returns a copy of d marked main-thread-only.
func (d ComponentDescriptor) NotSendable() ComponentDescriptor {
	d.Sendable = false
	return d
}

// registry is the per-world type registry: per-component descriptors and
// the bit assignment backing archetype signatures (mask.Mask).
type registry struct {
	mu          sync.RWMutex
	descriptors map[TypeKey]*ComponentDescriptor
	bits        map[TypeKey]uint32
	nextBit     uint32
	live        bool
}

func newRegistry() *registry {
	return &registry{
		descriptors: make(map[TypeKey]*ComponentDescriptor),
		bits:        make(map[TypeKey]uint32),
	}
}

// register installs desc. Explicit (pre-Build) registration may overwrite
// an earlier descriptor for the same type; once the registry is live,
// overwriting fails with AlreadyRegistered.
func (r *registry) register(desc ComponentDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[desc.Key]; exists && r.live {
		return strataerr.AlreadyRegistered{Type: desc.Key.String()}
	}
	cp := desc
	r.descriptors[desc.Key] = &cp
	r.assignBitLocked(desc.Key)
	return nil
}

// registerImplicit installs a default descriptor for a self-describing
// type the first time it is seen, carrying the columnKind its Base[T]
// embed already built. It never overwrites an explicit registration and
// never errors.
func (r *registry) registerImplicit(key TypeKey, kind *columnKind) *ComponentDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.descriptors[key]; ok {
		return d
	}
	d := &ComponentDescriptor{Key: key, Kind: kind, Sendable: true}
	r.descriptors[key] = d
	r.assignBitLocked(key)
	return d
}

func (r *registry) assignBitLocked(key TypeKey) uint32 {
	if bit, ok := r.bits[key]; ok {
		return bit
	}
	bit := r.nextBit
	r.bits[key] = bit
	r.nextBit++
	return bit
}

func (r *registry) lookup(key TypeKey) (*ComponentDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[key]
	return d, ok
}

// resolve returns the descriptor for key, implicitly registering it if v
// is self-describing (implements Component) and key is not yet known.
// Returns NotRegistered for any other unregistered type.
func (r *registry) resolve(key TypeKey, v any) (*ComponentDescriptor, error) {
	if d, ok := r.lookup(key); ok {
		return d, nil
	}
	if c, ok := v.(Component); ok {
		return r.registerImplicit(key, c.columnKind()), nil
	}
	return nil, strataerr.NotRegistered{Type: key.String()}
}

func (r *registry) bitFor(key TypeKey) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assignBitLocked(key)
}

// signature computes the archetype-identity bitmask for a set of component
// types, assigning bits for any not yet seen.
func (r *registry) signature(keys []TypeKey) mask.Mask {
	var m mask.Mask
	for _, k := range keys {
		m.Mark(r.bitFor(k))
	}
	return m
}

// markLive is called once by World construction; after this, registry
// overrides of an existing descriptor fail with AlreadyRegistered.
func (r *registry) markLive() {
	r.mu.Lock()
	r.live = true
	r.mu.Unlock()
}

func invariantViolation(format string, args ...any) {
	err := fmt.Errorf(format, args...)
	panic(bark.AddTrace(err))
}
