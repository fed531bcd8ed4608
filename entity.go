package strata

// EntityHandle is a located entity: an EId paired with the archetype row it
// occupied at the moment the handle was produced, letting later component
// access skip a fresh entity-index lookup. It is the "Entities" special
// fetch of the query/view engine (spec §4.4).
//
// A handle is a snapshot: if the entity moves archetype between the handle
// being produced and used (e.g. a hook mid-dispatch inserted a component),
// Refresh re-resolves it. Read/Write through a stale handle would silently
// touch the wrong row, so direct field access is unexported; callers go
// through the accessors below.
type EntityHandle struct {
	ID  EId
	w   *World
	loc location
}

// Exists reports whether the underlying entity is still live.
func (h EntityHandle) Exists() bool {
	return h.w.Exists(h.ID)
}

// Refresh re-resolves the handle's location against the current entity
// index, returning NoSuchEntity if the entity has since despawned.
func (h EntityHandle) Refresh() (EntityHandle, error) {
	loc, err := h.w.index.lookup(h.ID)
	if err != nil {
		return EntityHandle{}, err
	}
	h.loc = loc
	return h, nil
}

// Row re-derives a Row over this handle's current location, for use with
// Read/Write/BorrowAll outside of a View's own iteration (e.g. from within
// a hook, using its LocalBuffer's owning world).
func (h EntityHandle) Row() Row {
	a := h.w.archetypes.get(h.loc.arch)
	return Row{w: h.w, a: a, row: h.loc.row, mode: Exclusive, epoch: h.w.currentEpoch()}
}
