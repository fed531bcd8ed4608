package strata

import (
	"github.com/strata-ecs/strata/strataerr"
)

// AccessMode selects how a View's column access is requested: every
// required/modified component type is borrowed either Shared or Exclusive
// for the whole view, except types pinned by Query.Write or Query.Read,
// which keep their pinned mode.
type AccessMode int

const (
	// ReadAccess borrows every required component type not pinned by
	// Query.Write/Query.Read Shared.
	ReadAccess AccessMode = iota
	// WriteAccess borrows every required component type not pinned by
	// Query.Write/Query.Read Exclusive.
	WriteAccess
)

// viewTiming is chosen per view construction: Static acquires everything up
// front; Runtime acquires per archetype during iteration.
type viewTiming int

const (
	staticTiming viewTiming = iota
	runtimeTiming
)

// View pairs a compiled Query with a World and a borrow mode (spec §4.4).
type View struct {
	w      *World
	cq     *compiledQuery
	access AccessMode
	timing viewTiming

	staticHeld []heldBorrow
	baseline   uint64
	hasBase    bool

	released bool
}

type heldBorrow struct {
	a      *archetype
	colIdx int
	mode   borrowMode
	ct     TypeKey
}

func toBorrowMode(a AccessMode) borrowMode {
	if a == WriteAccess {
		return Exclusive
	}
	return Shared
}

// StaticView compiles q against w and acquires every touched column's
// borrow up front, holding it for the view's lifetime. Two static views
// with overlapping exclusive access cannot coexist: construction fails
// with BorrowConflict.
func StaticView(w *World, q *Query, access AccessMode) (*View, error) {
	v := &View{w: w, cq: q.compile(w.registry), access: access, timing: staticTiming}
	if ct, conflict := v.cq.selfConflict(); conflict {
		return nil, strataerr.BorrowConflict{Type: ct.String(), Mode: "self (Read+Write both pinned)"}
	}
	viewMode := toBorrowMode(access)
	archs := v.cq.matchedArchetypes(w.archetypes)
	for _, a := range archs {
		for _, ct := range v.cq.required {
			colIdx, ok := a.colIndex[ct]
			if !ok {
				continue
			}
			mode := v.cq.modeFor(ct, viewMode)
			if err := a.borrows.acquireOrErr(colIdx, mode, ct); err != nil {
				v.releaseStatic()
				return nil, err
			}
			v.staticHeld = append(v.staticHeld, heldBorrow{a: a, colIdx: colIdx, mode: mode, ct: ct})
			if mode == Exclusive {
				w.addLock(ct)
			}
		}
	}
	return v, nil
}

// RuntimeView compiles q against w without acquiring any borrows yet;
// borrows are taken per archetype as Each visits it and released as Each
// leaves it, so a Runtime view holds no borrow between Each calls.
func RuntimeView(w *World, q *Query, access AccessMode) *View {
	return &View{w: w, cq: q.compile(w.registry), access: access, timing: runtimeTiming}
}

// WithBaseline sets the epoch baseline used by the query's Modified()
// component types: rows whose column epoch is not strictly newer than
// baseline are skipped.
func (v *View) WithBaseline(baseline uint64) *View {
	v.baseline = baseline
	v.hasBase = true
	return v
}

func (v *View) releaseStatic() {
	for _, h := range v.staticHeld {
		h.a.borrows.release(h.colIdx, h.mode)
		if h.mode == Exclusive {
			v.w.removeLock(h.ct)
		}
	}
	v.staticHeld = nil
}

// Release releases every borrow this view currently holds. Safe to call
// more than once.
func (v *View) Release() {
	if v.released {
		return
	}
	v.releaseStatic()
	v.released = true
}

// Each visits every row matching the view's query, calling fn with a Row
// handle. For a Runtime view, each archetype's required columns are
// borrowed just before its rows are visited and released immediately
// after. Returns BorrowConflict if a Runtime archetype-level acquire fails.
func (v *View) Each(fn func(Row)) error {
	if ct, conflict := v.cq.selfConflict(); conflict {
		return strataerr.BorrowConflict{Type: ct.String(), Mode: "self (Read+Write both pinned)"}
	}
	viewMode := toBorrowMode(v.access)
	archs := v.cq.matchedArchetypes(v.w.archetypes)
	for _, a := range archs {
		if v.hasBase && !v.archPassesBaseline(a) {
			continue
		}
		type acquiredCol struct {
			idx  int
			mode borrowMode
		}
		var acquired []acquiredCol
		if v.timing == runtimeTiming {
			for _, ct := range v.cq.required {
				colIdx, exists := a.colIndex[ct]
				if !exists {
					continue
				}
				mode := v.cq.modeFor(ct, viewMode)
				if err := a.borrows.acquireOrErr(colIdx, mode, ct); err != nil {
					for _, c := range acquired {
						a.borrows.release(c.idx, c.mode)
					}
					return err
				}
				acquired = append(acquired, acquiredCol{idx: colIdx, mode: mode})
			}
		}
		for row := 0; row < a.Len(); row++ {
			if v.hasBase && !v.passesBaseline(a, row) {
				continue
			}
			fn(Row{w: v.w, a: a, row: row, mode: viewMode, epoch: v.w.currentEpoch()})
		}
		if v.timing == runtimeTiming {
			for _, c := range acquired {
				a.borrows.release(c.idx, c.mode)
			}
		}
	}
	return nil
}

func (v *View) passesBaseline(a *archetype, row int) bool {
	for _, ct := range v.cq.modified {
		col, ok := a.columnFor(ct)
		if !ok {
			continue
		}
		if col.epochs[row] <= v.baseline {
			return false
		}
	}
	return true
}

// archPassesBaseline reports whether a could possibly contain a row
// passing WithBaseline's filter, using each modified column's archHigh
// high-water mark instead of scanning rows: if a column hasn't been
// touched past baseline anywhere in the archetype, no individual row can
// pass either, so the whole archetype is skipped without a per-row check.
func (v *View) archPassesBaseline(a *archetype) bool {
	for _, ct := range v.cq.modified {
		col, ok := a.columnFor(ct)
		if !ok {
			continue
		}
		if col.archHigh <= v.baseline {
			return false
		}
	}
	return true
}

// One returns a Row for a specific entity if it currently matches the
// view's query. A Static view must already hold the relevant column
// borrows (acquired at construction). A Runtime view has no callback
// scope to bound a held borrow the way Each does, so it instead performs
// an instantaneous acquire-then-release: a BorrowConflict here means some
// other live borrow holds the column exclusively right now, the same
// signal Each would give on entering this archetype.
func (v *View) One(id EId) (Row, error) {
	loc, err := v.w.index.lookup(id)
	if err != nil {
		return Row{}, err
	}
	a := v.w.archetypes.get(loc.arch)
	if !v.cq.matches(a) {
		return Row{}, strataerr.NotMatched{ID: uint64(id)}
	}
	if v.hasBase && (!v.archPassesBaseline(a) || !v.passesBaseline(a, loc.row)) {
		return Row{}, strataerr.NotMatched{ID: uint64(id)}
	}
	if ct, conflict := v.cq.selfConflict(); conflict {
		return Row{}, strataerr.BorrowConflict{Type: ct.String(), Mode: "self (Read+Write both pinned)"}
	}
	viewMode := toBorrowMode(v.access)
	if v.timing == runtimeTiming {
		type acquiredCol struct {
			idx  int
			mode borrowMode
		}
		var acquired []acquiredCol
		for _, ct := range v.cq.required {
			colIdx, exists := a.colIndex[ct]
			if !exists {
				continue
			}
			mode := v.cq.modeFor(ct, viewMode)
			if err := a.borrows.acquireOrErr(colIdx, mode, ct); err != nil {
				for _, c := range acquired {
					a.borrows.release(c.idx, c.mode)
				}
				return Row{}, err
			}
			acquired = append(acquired, acquiredCol{idx: colIdx, mode: mode})
		}
		for _, c := range acquired {
			a.borrows.release(c.idx, c.mode)
		}
	}
	return Row{w: v.w, a: a, row: loc.row, mode: viewMode, epoch: v.w.currentEpoch()}, nil
}
