package strata

import (
	"sort"

	"github.com/TheBitDrifter/mask"
	"github.com/TheBitDrifter/table"
)

// archetypeID identifies an archetype within one world. Archetypes are
// created on demand and never destroyed, so ids are stable for the life of
// the world.
type archetypeID uint32

// storedColumn is one component type's column within one archetype: a typed
// bridge into the archetype's shared table.Table, a parallel per-slot epoch
// array, and a high-water archetype-level epoch cache used to skip whole
// archetypes cheaply during change-tracking queries (spec §4.4). The epoch
// arrays stay hand-rolled alongside table's column storage since they track
// strata's own semantic-mutation bookkeeping, not anything table's schema
// knows about. The column's borrow cell is not stored here but in the
// owning archetype's borrows, which enforce the no-two-writable-borrows
// invariant (see borrow.go).
type storedColumn struct {
	ct       TypeKey
	kind     *columnKind
	epochs   []uint64
	archHigh uint64
}

func newStoredColumn(kind *columnKind) *storedColumn {
	return &storedColumn{ct: kind.ct, kind: kind}
}

func (c *storedColumn) touch(row int, epoch uint64) {
	c.epochs[row] = epoch
	if epoch > c.archHigh {
		c.archHigh = epoch
	}
}

func (c *storedColumn) get(tbl table.Table, row int) any    { return c.kind.get(tbl, row) }
func (c *storedColumn) set(tbl table.Table, row int, v any)  { c.kind.set(tbl, row, v) }

func (c *storedColumn) stampRow(epoch uint64) {
	c.epochs = append(c.epochs, epoch)
	if epoch > c.archHigh {
		c.archHigh = epoch
	}
}
func (c *storedColumn) dropLastRow() {
	c.epochs = c.epochs[:len(c.epochs)-1]
}

// archetype is column-oriented storage for one fixed component set, backed
// by a single table.Table shared across all of its columns (grounded on the
// teacher's archetype.go, one table.Table per archetype). Row allocation and
// removal are delegated to the table; only the per-slot epoch arrays and the
// borrow cells are kept outside of it.
type archetype struct {
	id          archetypeID
	sig         mask.Mask
	cts         []TypeKey
	columns     []*storedColumn
	colIndex    map[TypeKey]int
	entities    []EId
	tbl         table.Table
	addEdges    map[TypeKey]archetypeID
	removeEdges map[TypeKey]archetypeID
	borrows     *columnBorrows
}

func newArchetype(id archetypeID, kinds []*columnKind, sig mask.Mask, schema table.Schema, entryIndex table.EntryIndex, events table.TableEvents) (*archetype, error) {
	sorted := append([]*columnKind(nil), kinds...)
	sortColumnKinds(sorted)

	elementTypes := make([]table.ElementType, len(sorted))
	for i, k := range sorted {
		elementTypes[i] = k.element
	}
	schema.Register(elementTypes...)

	tbl, err := table.NewTableBuilder().
		WithSchema(schema).
		WithEntryIndex(entryIndex).
		WithElementTypes(elementTypes...).
		WithEvents(events).
		Build()
	if err != nil {
		return nil, err
	}

	cts := make([]TypeKey, len(sorted))
	for i, k := range sorted {
		cts[i] = k.ct
	}

	a := &archetype{
		id:          id,
		sig:         sig,
		cts:         cts,
		columns:     make([]*storedColumn, len(sorted)),
		colIndex:    make(map[TypeKey]int, len(sorted)),
		tbl:         tbl,
		addEdges:    make(map[TypeKey]archetypeID),
		removeEdges: make(map[TypeKey]archetypeID),
		borrows:     newColumnBorrows(),
	}
	for i, k := range sorted {
		a.columns[i] = newStoredColumn(k)
		a.colIndex[k.ct] = i
	}
	return a, nil
}

func sortColumnKinds(kinds []*columnKind) {
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].ct.String() < kinds[j].ct.String() })
}

func (a *archetype) hasType(ct TypeKey) bool {
	_, ok := a.colIndex[ct]
	return ok
}

func (a *archetype) columnFor(ct TypeKey) (*storedColumn, bool) {
	i, ok := a.colIndex[ct]
	if !ok {
		return nil, false
	}
	return a.columns[i], true
}

func (a *archetype) Len() int { return len(a.entities) }

// appendRow allocates a new row from the archetype's table, writes values
// present in values into each column (a column with no entry keeps table's
// own zero value), and returns the row index.
func (a *archetype) appendRow(id EId, values map[TypeKey]any, epoch uint64) int {
	entries, err := a.tbl.NewEntries(1)
	if err != nil {
		invariantViolation("strata: table row allocation failed: %v", err)
	}
	row := entries[0].Index()
	if row != len(a.entities) {
		invariantViolation("strata: table row %d desynced from entity slot %d", row, len(a.entities))
	}
	for _, col := range a.columns {
		if v, ok := values[col.ct]; ok && v != nil {
			col.set(a.tbl, row, v)
		}
		col.stampRow(epoch)
	}
	a.entities = append(a.entities, id)
	return row
}

// swapRemoveRow removes row r, trusting the table to move its last row's
// data into r the same way our own parallel arrays do, and returns the EId
// that was moved into r (if any) so the caller can relocate it in the
// entity index.
func (a *archetype) swapRemoveRow(r int) (moved EId, didMove bool) {
	last := len(a.entities) - 1
	moved = a.entities[last]
	if _, err := a.tbl.DeleteEntries(r); err != nil {
		invariantViolation("strata: table row deletion failed: %v", err)
	}
	for _, col := range a.columns {
		col.epochs[r] = col.epochs[last]
		col.dropLastRow()
	}
	a.entities[r] = a.entities[last]
	a.entities = a.entities[:last]
	return moved, r != last
}

func (a *archetype) rowValues(row int) map[TypeKey]any {
	out := make(map[TypeKey]any, len(a.cts))
	for i, ct := range a.cts {
		out[ct] = a.columns[i].get(a.tbl, row)
	}
	return out
}

// rowEpochs captures row's per-column epochs before it is moved, so the
// destination archetype can preserve them (a physical move is not a
// semantic mutation, spec §4.3).
func (a *archetype) rowEpochs(row int) map[TypeKey]uint64 {
	out := make(map[TypeKey]uint64, len(a.cts))
	for i, ct := range a.cts {
		out[ct] = a.columns[i].epochs[row]
	}
	return out
}

// appendRowWithEpochs appends a row whose per-column epochs are taken from
// epochs where present (columns carried over from another archetype) and
// from freshEpoch otherwise (a column written as part of this transition).
func (a *archetype) appendRowWithEpochs(id EId, values map[TypeKey]any, epochs map[TypeKey]uint64, freshEpoch uint64) int {
	entries, err := a.tbl.NewEntries(1)
	if err != nil {
		invariantViolation("strata: table row allocation failed: %v", err)
	}
	row := entries[0].Index()
	if row != len(a.entities) {
		invariantViolation("strata: table row %d desynced from entity slot %d", row, len(a.entities))
	}
	for _, col := range a.columns {
		if v, ok := values[col.ct]; ok && v != nil {
			col.set(a.tbl, row, v)
		}
		e, ok := epochs[col.ct]
		if !ok {
			e = freshEpoch
		}
		col.stampRow(e)
	}
	a.entities = append(a.entities, id)
	return row
}

// archetypeStore owns the set of archetypes in a world and their identity
// cache, keyed by component-set signature — mirroring the teacher's
// archetypes{nextID, asSlice, idsGroupedByMask} — plus the table.Schema and
// table.EntryIndex every archetype's table is built against, mirroring the
// teacher's single storage-wide schema and package-level globalEntryIndex
// (made world-scoped rather than process-global, since strata supports more
// than one live World).
type archetypeStore struct {
	nextID     archetypeID
	bySig      map[mask.Mask]archetypeID
	all        []*archetype
	emptyID    archetypeID
	hasEmpty   bool
	schema     table.Schema
	entryIndex table.EntryIndex
	events     table.TableEvents
}

func newArchetypeStore(schema table.Schema, entryIndex table.EntryIndex, events table.TableEvents) *archetypeStore {
	return &archetypeStore{
		nextID:     1,
		bySig:      make(map[mask.Mask]archetypeID),
		schema:     schema,
		entryIndex: entryIndex,
		events:     events,
	}
}

func (s *archetypeStore) get(id archetypeID) *archetype {
	return s.all[id-1]
}

func (s *archetypeStore) count() int { return len(s.all) }

// getOrCreate returns the archetype for the exact set cts, creating it (and
// assigning it fresh bits via reg) if it doesn't exist yet.
func (s *archetypeStore) getOrCreate(reg *registry, cts []TypeKey) *archetype {
	sig := reg.signature(cts)
	if id, ok := s.bySig[sig]; ok {
		return s.get(id)
	}

	kinds := make([]*columnKind, len(cts))
	for i, ct := range cts {
		desc, ok := reg.lookup(ct)
		if !ok || desc.Kind == nil {
			invariantViolation("strata: archetype creation for unregistered component type %s", ct.String())
		}
		kinds[i] = desc.Kind
	}

	id := s.nextID
	a, err := newArchetype(id, kinds, sig, s.schema, s.entryIndex, s.events)
	if err != nil {
		invariantViolation("strata: table build failed for archetype signature %v: %v", sig, err)
	}
	s.all = append(s.all, a)
	s.bySig[sig] = id
	s.nextID++
	if len(cts) == 0 {
		s.emptyID = id
		s.hasEmpty = true
	}
	return a
}

func (s *archetypeStore) empty(reg *registry) *archetype {
	if s.hasEmpty {
		return s.get(s.emptyID)
	}
	return s.getOrCreate(reg, nil)
}
