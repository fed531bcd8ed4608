package strata

import (
	"log/slog"
)

// Config holds the resolved settings a Builder accumulates before a World
// is constructed, mirroring the teacher's config.go/factory.go pairing of a
// plain settings struct plus a constructor that consumes it.
type Config struct {
	idRange  IDRange
	registry *registry
	logger   *slog.Logger
}

// Builder accumulates world construction options: id-range source,
// explicit component registrations (with hooks and borrow descriptors),
// and explicit relation-kind configuration. Build() is terminal: a later
// Register on the same Builder that overrides a type the World already
// knows fails with AlreadyRegistered, reported by the next Build call.
type Builder struct {
	idRange   IDRange
	registry  *registry
	relations []func(*relationRegistry)
	logger    *slog.Logger
	err       error
}

// NewBuilder starts a world builder with the engine defaults: the
// [1, 2^64-2] sequential id range and no explicit component registrations
// (self-describing components still register implicitly on first insert).
func NewBuilder() *Builder {
	return &Builder{
		registry: newRegistry(),
		logger:   slog.Default(),
	}
}

// WithIDRange overrides the default id-range source, e.g. to partition a
// server/client split into disjoint ranges (spec §4.2). Ranges supplied by
// distinct Builders must not overlap; this is the caller's responsibility
// to guarantee, not something Build can check.
func (b *Builder) WithIDRange(r IDRange) *Builder {
	b.idRange = r
	return b
}

// WithLogger overrides the ambient slog.Logger used for drain-time
// diagnostics (failed deferred actions and the drain iteration cap).
// Defaults to slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	if l != nil {
		b.logger = l
	}
	return b
}

// Register installs an explicit ComponentDescriptor, overriding any
// implicit or earlier explicit registration of the same type up until
// Build() is called. Use Describe[T]() plus WithReplaceHook/WithDropHook/
// WithBorrow/NotSendable to build desc.
func (b *Builder) Register(desc ComponentDescriptor) *Builder {
	if err := b.registry.register(desc); err != nil && b.err == nil {
		b.err = err
	}
	return b
}

// RegisterRelation pre-declares relation kind R's exclusivity and
// per-side despawn policy, so Relate's first call need not fall back to
// the zero-value default config. Calling RegisterRelation a second time
// for the same R before Build overwrites the earlier config.
func RegisterRelation[R any](b *Builder, cfg RelationConfig) *Builder {
	b.relations = append(b.relations, func(reg *relationRegistry) {
		registerRelation[R](reg, cfg)
	})
	return b
}

// Build finalizes the builder into a live World. Once built, the World's
// type registry rejects further overriding registration of a type already
// known (spec §4.1): AlreadyRegistered from an earlier Register call is
// surfaced here rather than at the call site, so builder chains can be
// built fluently without per-call error checks.
func (b *Builder) Build() (*World, error) {
	if b.err != nil {
		return nil, b.err
	}
	idRange := b.idRange
	if idRange == nil {
		idRange = DefaultIDRange()
	}
	w := newWorld(&Config{
		idRange:  idRange,
		registry: b.registry,
		logger:   b.logger,
	})
	installBuiltinRelations(w.relations)
	for _, install := range b.relations {
		install(w.relations)
	}
	return w, nil
}
