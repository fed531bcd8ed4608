package strata

import (
	"github.com/kamstrup/intmap"
	"github.com/strata-ecs/strata/strataerr"
)

// IDRange supplies fresh entity ids. The default range source allocates
// monotonically from [1, 2^64-2]; alternate sources (e.g. a server/client
// split) must yield disjoint ranges from each other — reuse across sources
// is forbidden by the spec, not enforced by this type.
type IDRange interface {
	Next() (EId, bool)
}

// sequentialRange is the default IDRange: a monotonic counter over
// [lo, hi], never recycled.
type sequentialRange struct {
	next EId
	hi   EId
}

// NewSequentialRange builds an IDRange allocating ids in [lo, hi] in order.
func NewSequentialRange(lo, hi EId) IDRange {
	if lo == 0 {
		lo = 1
	}
	return &sequentialRange{next: lo, hi: hi}
}

// DefaultIDRange is the engine default: [1, 2^64-2].
func DefaultIDRange() IDRange {
	return NewSequentialRange(1, EId(1<<64-2))
}

func (r *sequentialRange) Next() (EId, bool) {
	if r.next > r.hi || r.next == 0 {
		return 0, false
	}
	id := r.next
	r.next++
	return id, true
}

// entityIndex maps EId -> location. Backed by intmap for O(1) dense
// open-addressed lookup keyed on a 64-bit integer, per spec §4.2's "slab-like
// sparse table" requirement.
type entityIndex struct {
	ids     *intmap.Map[EId, location]
	idRange IDRange
}

func newEntityIndex(r IDRange) *entityIndex {
	return &entityIndex{
		ids:     intmap.New[EId, location](1024),
		idRange: r,
	}
}

func (e *entityIndex) allocate() (EId, error) {
	id, ok := e.idRange.Next()
	if !ok {
		invariantViolation("strata: entity id range exhausted")
	}
	return id, nil
}

func (e *entityIndex) bind(id EId, loc location) {
	e.ids.Put(id, loc)
}

func (e *entityIndex) lookup(id EId) (location, error) {
	loc, ok := e.ids.Get(id)
	if !ok {
		return location{}, strataerr.NoSuchEntity{ID: uint64(id)}
	}
	return loc, nil
}

func (e *entityIndex) exists(id EId) bool {
	_, ok := e.ids.Get(id)
	return ok
}

func (e *entityIndex) relocate(id EId, loc location) {
	e.ids.Put(id, loc)
}

func (e *entityIndex) release(id EId) {
	e.ids.Del(id)
}

func (e *entityIndex) len() int {
	return e.ids.Len()
}
