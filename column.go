package strata

import (
	"reflect"
	"sync"

	"github.com/TheBitDrifter/table"
)

// columnKind is the type-erased bridge between a component type's runtime
// identity and the table.ElementType/table.Accessor[T] pair the underlying
// table.Table storage needs to address it. Built exactly once per Go type by
// the generic columnKindFor trampoline below: invoked directly by
// Describe[T]() for an explicit registration, or indirectly through a
// self-describing component's Base[T] embed the first time World sees that
// type (spec §4.1).
type columnKind struct {
	ct      TypeKey
	element table.ElementType

	// accessor holds the concrete table.Accessor[T], type-asserted back to
	// shape in componentAt. Kept as any since columnKind itself cannot carry
	// T as a type parameter and still be stored in a TypeKey-keyed map.
	accessor any

	get func(tbl table.Table, row int) any
	set func(tbl table.Table, row int, v any)
}

var (
	columnKindsMu sync.Mutex
	columnKinds   = make(map[reflect.Type]*columnKind)
)

// columnKindFor returns the columnKind for T, building it on first call.
// The result is cached process-wide by reflect.Type: a table.ElementType
// identity only needs to exist once per Go type no matter how many worlds
// use it, exactly like the teacher's package-level Factory.NewComponent
// callers share one identity per component struct.
func columnKindFor[T any]() *columnKind {
	ct := typeKeyOf[T]()

	columnKindsMu.Lock()
	defer columnKindsMu.Unlock()
	if k, ok := columnKinds[ct]; ok {
		return k
	}

	element := table.FactoryNewElementType[T]()
	accessor := table.FactoryNewAccessor[T](element)
	k := &columnKind{
		ct:       ct,
		element:  element,
		accessor: accessor,
		get: func(tbl table.Table, row int) any {
			return *accessor.Get(row, tbl)
		},
		set: func(tbl table.Table, row int, v any) {
			*accessor.Get(row, tbl) = v.(T)
		},
	}
	columnKinds[ct] = k
	return k
}

// componentAt returns a typed pointer into tbl at row i through kind's
// table.Accessor[T]. A mismatch between kind and T panics via the fatal
// invariant path: it means the caller bypassed the query engine's own fetch
// compilation, not something a recoverable error should paper over.
func componentAt[T any](kind *columnKind, tbl table.Table, row int) *T {
	accessor, ok := kind.accessor.(table.Accessor[T])
	if !ok {
		invariantViolation("strata: component fetch type mismatch for %s", kind.ct.String())
	}
	return accessor.Get(row, tbl)
}
