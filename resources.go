package strata

import (
	"sync"

	"github.com/strata-ecs/strata/strataerr"
)

// resourceSlot is one singleton resource: its value, sendable marker, and
// an independent borrow cell (spec §3: "Resources carry a sendable-marker
// and an independent borrow cell").
type resourceSlot struct {
	value    any
	sendable bool
	state    columnState
}

type resourceStore struct {
	mu    sync.Mutex
	slots map[TypeKey]*resourceSlot
}

func newResourceStore() *resourceStore {
	return &resourceStore{slots: make(map[TypeKey]*resourceSlot)}
}

// ResourceOption configures a resource at insertion time.
type ResourceOption func(*resourceSlot)

// NotSendableResource marks a resource as main-thread-only: it may only be
// accessed through World.Local, per spec §4.7's sendability rule.
func NotSendableResource() ResourceOption {
	return func(s *resourceSlot) { s.sendable = false }
}

// ResourceInsert installs value as the singleton resource of type T,
// replacing any existing one.
func ResourceInsert[T any](w *World, value T, opts ...ResourceOption) {
	key := typeKeyOf[T]()
	slot := &resourceSlot{value: value, sendable: true}
	for _, opt := range opts {
		opt(slot)
	}
	w.resources.mu.Lock()
	w.resources.slots[key] = slot
	w.resources.mu.Unlock()
}

// ResourceRemove deletes the singleton resource of type T, if any.
func ResourceRemove[T any](w *World) {
	key := typeKeyOf[T]()
	w.resources.mu.Lock()
	delete(w.resources.slots, key)
	w.resources.mu.Unlock()
}

func (w *World) resourceSlot(key TypeKey) (*resourceSlot, error) {
	w.resources.mu.Lock()
	defer w.resources.mu.Unlock()
	slot, ok := w.resources.slots[key]
	if !ok {
		return nil, strataerr.MissingResource{Type: key.String()}
	}
	return slot, nil
}

// ResourceGet returns a shared pointer to the type-T resource and a release
// function the caller must call when done. Fails with WrongThread if the
// resource is non-sendable; use ResourceGetLocal instead in that case.
func ResourceGet[T any](w *World) (*T, func(), error) {
	key := typeKeyOf[T]()
	slot, err := w.resourceSlot(key)
	if err != nil {
		return nil, nil, err
	}
	if !slot.sendable {
		return nil, nil, strataerr.WrongThread{Type: key.String()}
	}
	if slot.state == exclusiveState {
		return nil, nil, strataerr.BorrowConflict{Type: key.String(), Mode: "shared"}
	}
	slot.state++
	v := slot.value.(T)
	return &v, func() {
		if slot.state > 0 {
			slot.state--
		}
	}, nil
}

// ResourceGetMut returns an exclusive pointer to the type-T resource;
// mutations through it must be written back via the returned commit
// function (components live behind an interface, so a plain pointer cannot
// alias the stored value directly).
func ResourceGetMut[T any](w *World) (*T, func(), error) {
	key := typeKeyOf[T]()
	slot, err := w.resourceSlot(key)
	if err != nil {
		return nil, nil, err
	}
	if !slot.sendable {
		return nil, nil, strataerr.WrongThread{Type: key.String()}
	}
	if slot.state != 0 {
		return nil, nil, strataerr.BorrowConflict{Type: key.String(), Mode: "exclusive"}
	}
	slot.state = exclusiveState
	v := slot.value.(T)
	return &v, func() {
		slot.value = v
		slot.state = 0
	}, nil
}

// ResourceGetLocal is ResourceGet without the sendable check, gated instead
// by presenting the world's OwnerToken (spec §4.7/§5: non-sendable access
// is a runtime, capability-checked boundary, not a static one; a token
// stands in for an OS thread id because goroutines carry no stable
// identity).
func ResourceGetLocal[T any](w *World, token OwnerToken) (*T, func(), error) {
	if err := w.checkOwner(token); err != nil {
		return nil, nil, err
	}
	key := typeKeyOf[T]()
	slot, err := w.resourceSlot(key)
	if err != nil {
		return nil, nil, err
	}
	if slot.state == exclusiveState {
		return nil, nil, strataerr.BorrowConflict{Type: key.String(), Mode: "shared"}
	}
	slot.state++
	v := slot.value.(T)
	return &v, func() {
		if slot.state > 0 {
			slot.state--
		}
	}, nil
}

// ResourceGetMutLocal is ResourceGetMut without the sendable check.
func ResourceGetMutLocal[T any](w *World, token OwnerToken) (*T, func(), error) {
	if err := w.checkOwner(token); err != nil {
		return nil, nil, err
	}
	key := typeKeyOf[T]()
	slot, err := w.resourceSlot(key)
	if err != nil {
		return nil, nil, err
	}
	if slot.state != 0 {
		return nil, nil, strataerr.BorrowConflict{Type: key.String(), Mode: "exclusive"}
	}
	slot.state = exclusiveState
	v := slot.value.(T)
	return &v, func() {
		slot.value = v
		slot.state = 0
	}, nil
}
