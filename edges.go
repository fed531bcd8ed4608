package strata

// destInsert returns the archetype reached by adding ct to a, creating and
// caching it (in both directions) on first traversal (spec §4.3's lazily
// populated add_edges/remove_edges).
func (s *archetypeStore) destInsert(reg *registry, a *archetype, ct TypeKey) *archetype {
	if id, ok := a.addEdges[ct]; ok {
		return s.get(id)
	}
	newCts := append(append([]TypeKey(nil), a.cts...), ct)
	dest := s.getOrCreate(reg, newCts)
	a.addEdges[ct] = dest.id
	dest.removeEdges[ct] = a.id
	return dest
}

// destRemove returns the archetype reached by dropping ct from a, or
// ok=false if a does not carry ct.
func (s *archetypeStore) destRemove(reg *registry, a *archetype, ct TypeKey) (dest *archetype, ok bool) {
	if !a.hasType(ct) {
		return nil, false
	}
	if id, cached := a.removeEdges[ct]; cached {
		return s.get(id), true
	}
	newCts := make([]TypeKey, 0, len(a.cts)-1)
	for _, c := range a.cts {
		if c != ct {
			newCts = append(newCts, c)
		}
	}
	dest = s.getOrCreate(reg, newCts)
	a.removeEdges[ct] = dest.id
	dest.addEdges[ct] = a.id
	return dest, true
}
