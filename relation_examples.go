package strata

// ChildOf is a builtin exclusive relation kind: a child has at most one
// parent at a time, and despawning the parent cascades to despawn every
// child (spec §4.5 supplement — games overwhelmingly want this shape for
// scene-graph/ownership hierarchies).
//
// Register it explicitly via RegisterRelation[ChildOf] to override the
// default config; otherwise Builder.Build installs the config below.
type ChildOf struct{}

// Likes is a builtin non-exclusive relation kind: a source may hold any
// number of simultaneous R-links, and despawning either side only drops
// the link rather than cascading (spec §4.5 supplement — the common shape
// for loose associations such as targeting, aggro tables, or social
// graphs).
type Likes struct{}

func defaultChildOfConfig() RelationConfig {
	return RelationConfig{
		Exclusive:    true,
		SourcePolicy: DropLinkOnly,
		TargetPolicy: CascadeDespawnOther,
	}
}

func defaultLikesConfig() RelationConfig {
	return RelationConfig{
		Exclusive:    false,
		SourcePolicy: DropLinkOnly,
		TargetPolicy: DropLinkOnly,
	}
}

// installBuiltinRelations registers ChildOf and Likes with their default
// configs unless the caller already registered a config for them via
// Builder.RegisterRelation, matching the "implicit unless pre-declared"
// rule Relate applies to any other relation kind.
func installBuiltinRelations(reg *relationRegistry) {
	if _, ok := reg.metas[typeKeyOf[ChildOf]()]; !ok {
		registerRelation[ChildOf](reg, defaultChildOfConfig())
	}
	if _, ok := reg.metas[typeKeyOf[Likes]()]; !ok {
		registerRelation[Likes](reg, defaultLikesConfig())
	}
}
