package strata

import (
	"github.com/strata-ecs/strata/strataerr"
)

// borrowMode selects shared (read) or exclusive (read-write) column access.
type borrowMode int

const (
	// Shared is a read-only column borrow. Any number may be live at once.
	Shared borrowMode = iota
	// Exclusive is a read-write column borrow. At most one may be live,
	// and it excludes any concurrent Shared borrow of the same column.
	Exclusive
)

// columnState packs one column's live-borrow state: -1 means an exclusive
// borrow is held, 0 means free, a positive count means that many shared
// borrows are held.
type columnState int32

const exclusiveState columnState = -1

// columnBorrows tracks live borrows per column index within one archetype.
// No two writable borrows of the same column of the same archetype may be
// live concurrently (spec §3 invariants); a shared borrow may coexist with
// any number of other shared borrows but not with an exclusive one.
type columnBorrows struct {
	state []columnState
}

func newColumnBorrows() *columnBorrows {
	return &columnBorrows{}
}

func (b *columnBorrows) ensureLen(n int) {
	for len(b.state) < n {
		b.state = append(b.state, 0)
	}
}

// tryAcquire attempts to take a borrow of mode on column colIdx. Returns
// false if it would conflict with a borrow already live.
func (b *columnBorrows) tryAcquire(colIdx int, mode borrowMode) bool {
	b.ensureLen(colIdx + 1)
	switch mode {
	case Exclusive:
		if b.state[colIdx] != 0 {
			return false
		}
		b.state[colIdx] = exclusiveState
		return true
	default: // Shared
		if b.state[colIdx] == exclusiveState {
			return false
		}
		b.state[colIdx]++
		return true
	}
}

func (b *columnBorrows) release(colIdx int, mode borrowMode) {
	if colIdx >= len(b.state) {
		return
	}
	switch mode {
	case Exclusive:
		b.state[colIdx] = 0
	default:
		if b.state[colIdx] > 0 {
			b.state[colIdx]--
		}
	}
}

// acquireOrErr is the checked entry point used by static view construction
// and runtime per-archetype acquisition: it returns BorrowConflict rather
// than a bare bool, named for the component type being borrowed.
func (b *columnBorrows) acquireOrErr(colIdx int, mode borrowMode, ct TypeKey) error {
	if !b.tryAcquire(colIdx, mode) {
		modeName := "shared"
		if mode == Exclusive {
			modeName = "exclusive"
		}
		return strataerr.BorrowConflict{Type: ct.String(), Mode: modeName}
	}
	return nil
}
