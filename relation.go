package strata

import (
	"github.com/strata-ecs/strata/strataerr"
)

// DespawnPolicy selects what happens to a relation's counterpart when one
// side despawns (spec §4.5).
type DespawnPolicy int

const (
	// DropLinkOnly removes the forward and mirror components but leaves
	// the counterpart entity alive.
	DropLinkOnly DespawnPolicy = iota
	// CascadeDespawnOther despawns the counterpart too. The despawn is
	// recorded into the action buffer rather than applied immediately, to
	// avoid reentrant archetype mutation during the current drop.
	CascadeDespawnOther
)

// RelationConfig declares one relation kind's exclusivity and per-side
// despawn policy.
type RelationConfig struct {
	// Exclusive means a later R(src, t') on the same src replaces any
	// existing R(src, t) rather than adding a second link.
	Exclusive bool
	// SourcePolicy applies to the target when the source despawns.
	SourcePolicy DespawnPolicy
	// TargetPolicy applies to the source(s) when the target despawns.
	TargetPolicy DespawnPolicy
}

// relLink is one directed edge within a forwardLinks[R] component: the
// target entity plus an optional payload.
type relLink struct {
	Target  EId
	Payload any
}

// forwardLinks[R] is the synthetic component stored on a relation's source
// entity: the set of directed R→target edges currently held. An exclusive
// relation kind never lets this grow past one element (Relate replaces it);
// a non-exclusive kind accumulates one element per distinct target.
type forwardLinks[R any] struct {
	Base[forwardLinks[R]]
	Links []relLink
}

// backLinks[R] is the synthetic mirror component stored on a relation's
// target entity: the set of sources currently holding R→this entity.
type backLinks[R any] struct {
	Base[backLinks[R]]
	Sources []EId
}

// relationMeta is the type-erased record the despawn path consults, one per
// registered relation kind.
type relationMeta struct {
	key        TypeKey
	forwardKey TypeKey
	backKey    TypeKey
	cfg        RelationConfig

	onSourceDespawn func(w *World, src EId, buf Buffer)
	onTargetDespawn func(w *World, dst EId, buf Buffer)
}

// relationRegistry holds one relationMeta per relation kind R seen, keyed by
// R's own type identity (not its forward/mirror component types).
type relationRegistry struct {
	metas map[TypeKey]*relationMeta
}

func newRelationRegistry() *relationRegistry {
	return &relationRegistry{metas: make(map[TypeKey]*relationMeta)}
}

func (r *relationRegistry) all() []*relationMeta {
	out := make([]*relationMeta, 0, len(r.metas))
	for _, m := range r.metas {
		out = append(out, m)
	}
	return out
}

// registerRelation installs the metadata for relation kind R under cfg,
// called either explicitly via Builder.RegisterRelation or implicitly by
// Relate on first use (default config: non-exclusive, drop-link-only both
// sides).
func registerRelation[R any](reg *relationRegistry, cfg RelationConfig) *relationMeta {
	key := typeKeyOf[R]()
	forwardKey := typeKeyOf[forwardLinks[R]]()
	backKey := typeKeyOf[backLinks[R]]()

	m := &relationMeta{key: key, forwardKey: forwardKey, backKey: backKey, cfg: cfg}

	m.onSourceDespawn = func(w *World, src EId, buf Buffer) {
		fv, ok := w.componentValue(src, forwardKey)
		if !ok {
			return
		}
		for _, link := range fv.(forwardLinks[R]).Links {
			removeBackSource[R](w, link.Target, src)
			if cfg.SourcePolicy == CascadeDespawnOther && w.Exists(link.Target) {
				buf.DespawnLater(link.Target)
			}
		}
	}

	m.onTargetDespawn = func(w *World, dst EId, buf Buffer) {
		bv, ok := w.componentValue(dst, backKey)
		if !ok {
			return
		}
		back := bv.(backLinks[R])
		for _, src := range back.Sources {
			removeForwardTarget[R](w, src, dst)
			if cfg.TargetPolicy == CascadeDespawnOther && w.Exists(src) {
				buf.DespawnLater(src)
			}
		}
	}

	reg.metas[key] = m
	return m
}

// Relate inserts the directed link R(src, dst, payload): validates both
// entities exist, installs/updates the forward component on src, and
// updates the back-pointer mirror on dst (spec §4.5's three-step
// insertion). For an exclusive relation kind, this replaces src's prior
// link (if its target differs from dst) rather than adding a second one;
// for a non-exclusive kind, src accumulates one link per distinct target.
func Relate[R any](w *World, src, dst EId, payload any) error {
	if !w.Exists(src) {
		return strataerr.NoSuchEntity{ID: uint64(src)}
	}
	if !w.Exists(dst) {
		return strataerr.NoSuchEntity{ID: uint64(dst)}
	}
	key := typeKeyOf[R]()
	meta, ok := w.relations.metas[key]
	if !ok {
		meta = registerRelation[R](w.relations, RelationConfig{})
	}

	var links []relLink
	if prev, ok := w.componentValue(src, meta.forwardKey); ok {
		links = append([]relLink(nil), prev.(forwardLinks[R]).Links...)
	}

	if meta.cfg.Exclusive {
		for _, l := range links {
			if l.Target != dst {
				removeBackSource[R](w, l.Target, src)
			}
		}
		links = []relLink{{Target: dst, Payload: payload}}
	} else {
		replaced := false
		for i, l := range links {
			if l.Target == dst {
				links[i].Payload = payload
				replaced = true
				break
			}
		}
		if !replaced {
			links = append(links, relLink{Target: dst, Payload: payload})
		}
	}

	if err := w.insert(src, forwardLinks[R]{Links: links}); err != nil {
		return err
	}

	var sources []EId
	if back, ok := w.componentValue(dst, meta.backKey); ok {
		sources = back.(backLinks[R]).Sources
	}
	if !containsEId(sources, src) {
		sources = append(sources, src)
	}
	return w.insert(dst, backLinks[R]{Sources: sources})
}

// Unrelate drops the R(src, dst) link without despawning either side.
func Unrelate[R any](w *World, src, dst EId) error {
	key := typeKeyOf[R]()
	if _, ok := w.relations.metas[key]; !ok {
		return nil
	}
	removeForwardTarget[R](w, src, dst)
	removeBackSource[R](w, dst, src)
	return nil
}

// RelatedTo returns one target of src's R-link, if any (the only target
// for an exclusive relation kind; an arbitrary one among several for a
// non-exclusive kind — use RelatedToAll to see every target).
func RelatedTo[R any](w *World, src EId) (EId, bool) {
	v, ok := w.componentValue(src, typeKeyOf[forwardLinks[R]]())
	if !ok {
		return 0, false
	}
	links := v.(forwardLinks[R]).Links
	if len(links) == 0 {
		return 0, false
	}
	return links[0].Target, true
}

// RelatedToAll lists every target of src's R-links, in insertion order.
func RelatedToAll[R any](w *World, src EId) []EId {
	v, ok := w.componentValue(src, typeKeyOf[forwardLinks[R]]())
	if !ok {
		return nil
	}
	links := v.(forwardLinks[R]).Links
	out := make([]EId, 0, len(links))
	for _, l := range links {
		out = append(out, l.Target)
	}
	return out
}

// RelatedFrom lists the sources holding R→dst.
func RelatedFrom[R any](w *World, dst EId) []EId {
	v, ok := w.componentValue(dst, typeKeyOf[backLinks[R]]())
	if !ok {
		return nil
	}
	return append([]EId(nil), v.(backLinks[R]).Sources...)
}

// despawnRelations applies every registered relation's despawn policy for
// the entity about to be dropped, before its archetype row is removed.
// Cascades are enqueued into buf rather than applied inline (spec §4.5).
func (w *World) despawnRelations(id EId, buf Buffer) {
	for _, m := range w.relations.all() {
		m.onSourceDespawn(w, id, buf)
		m.onTargetDespawn(w, id, buf)
	}
}

// componentValue reads the current value of ct on id without acquiring a
// borrow; used only by the relation bookkeeping above, which runs under the
// world's own single-mutator-at-a-time discipline (spec §5).
func (w *World) componentValue(id EId, ct TypeKey) (any, bool) {
	loc, err := w.index.lookup(id)
	if err != nil {
		return nil, false
	}
	arch := w.archetypes.get(loc.arch)
	col, ok := arch.columnFor(ct)
	if !ok {
		return nil, false
	}
	return col.get(arch.tbl, loc.row), true
}

func containsEId(s []EId, v EId) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// removeForwardTarget drops src's link to target specifically, leaving any
// other targets on a non-exclusive relation's forwardLinks untouched.
func removeForwardTarget[R any](w *World, src, target EId) {
	key := typeKeyOf[forwardLinks[R]]()
	v, ok := w.componentValue(src, key)
	if !ok {
		return
	}
	links := v.(forwardLinks[R]).Links
	filtered := make([]relLink, 0, len(links))
	for _, l := range links {
		if l.Target != target {
			filtered = append(filtered, l)
		}
	}
	if len(filtered) == 0 {
		_, _ = w.remove(src, key)
		return
	}
	_ = w.insert(src, forwardLinks[R]{Links: filtered})
}

func removeBackSource[R any](w *World, dst, src EId) {
	key := typeKeyOf[backLinks[R]]()
	v, ok := w.componentValue(dst, key)
	if !ok {
		return
	}
	back := v.(backLinks[R])
	filtered := make([]EId, 0, len(back.Sources))
	for _, s := range back.Sources {
		if s != src {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		_, _ = w.remove(dst, key)
		return
	}
	_ = w.insert(dst, backLinks[R]{Sources: filtered})
}
