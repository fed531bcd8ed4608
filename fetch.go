package strata

// Row is a single matched entity's row within one archetype, handed to a
// View's visitor. Typed data is pulled from it with the package-level
// Read/Write/BorrowAll/BorrowAny/BorrowOne functions rather than methods,
// since Go methods cannot carry their own type parameters.
type Row struct {
	w     *World
	a     *archetype
	row   int
	mode  borrowMode
	epoch uint64
}

// Entity returns a located handle to this row's owning entity, letting
// later component access skip a fresh entity-index lookup.
func (r Row) Entity() EntityHandle {
	return EntityHandle{ID: r.a.entities[r.row], w: r.w, loc: location{arch: r.a.id, row: r.row}}
}

func (r Row) column(ct TypeKey) *storedColumn {
	col, ok := r.a.columnFor(ct)
	if !ok {
		invariantViolation("strata: row fetch for unbound component type %s (query compiled against a different archetype)", ct.String())
	}
	return col
}

// Read returns a shared pointer to T on this row. The view must have been
// constructed with ReadAccess or WriteAccess over T.
func Read[T any](r Row) *T {
	col := r.column(typeKeyOf[T]())
	return componentAt[T](col.kind, r.a.tbl, r.row)
}

// Write returns an exclusive pointer to T on this row, stamping the
// column's per-slot and archetype-level epoch caches with the view's
// current epoch on first access (spec §9: stamped per visited row, not per
// borrow-acquire).
func Write[T any](r Row) *T {
	col := r.column(typeKeyOf[T]())
	col.touch(r.row, r.epoch)
	return componentAt[T](col.kind, r.a.tbl, r.row)
}

// ModifiedSince reports whether T's column was stamped with an epoch newer
// than baseline for this row, alongside a pointer to its current value.
func ModifiedSince[T any](r Row, baseline uint64) (*T, bool) {
	col := r.column(typeKeyOf[T]())
	return componentAt[T](col.kind, r.a.tbl, r.row), col.epochs[r.row] > baseline
}

// BorrowAll returns every value projected onto type T by a borrow
// descriptor declared on one of this row's component types (spec §3's
// "unsized-capable projection function").
func BorrowAll[T any](r Row) []T {
	target := typeKeyOf[T]()
	var out []T
	for _, ct := range r.a.cts {
		desc, ok := r.w.registry.lookup(ct)
		if !ok {
			continue
		}
		for _, bd := range desc.Borrows {
			if bd.Target != target {
				continue
			}
			col, _ := r.a.columnFor(ct)
			raw := col.get(r.a.tbl, r.row)
			out = append(out, bd.Project(raw).(T))
		}
	}
	return out
}

// BorrowAny returns the first projected value onto T, if any.
func BorrowAny[T any](r Row) (T, bool) {
	vals := BorrowAll[T](r)
	if len(vals) == 0 {
		var zero T
		return zero, false
	}
	return vals[0], true
}

// BorrowOne returns the single projected value onto T, panicking (via the
// fatal invariant path) if none exists — use BorrowAny when absence is
// expected.
func BorrowOne[T any](r Row) T {
	v, ok := BorrowAny[T](r)
	if !ok {
		invariantViolation("strata: no borrow projection onto %s on this row", typeKeyOf[T]().String())
	}
	return v
}
