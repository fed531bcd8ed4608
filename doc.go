/*
Package strata is an archetype-based Entity-Component-System data engine for
interactive simulations: games, physics, and agent systems where tens to
hundreds of thousands of entities are created, mutated, and iterated every
tick.

Core Concepts:

  - EId: an entity identifier, a 64-bit id drawn from a non-recycled range.
  - Component: a user-defined type attachable to an entity.
  - Archetype: column-oriented storage for one fixed component set.
  - Query/View: a compiled description of which archetypes to visit and
    which columns to borrow, shared or exclusive, for the view's lifetime.

Basic Usage:

	w, _ := strata.NewBuilder().Build()

	e, _ := strata.Spawn(w, Position{X: 0, Y: 0}, Velocity{X: 1, Y: 1})

	view, _ := strata.StaticView(w, strata.Q().With(Position{}, Velocity{}), strata.WriteAccess)
	defer view.Release()
	view.Each(func(r strata.Row) {
		pos := strata.Write[Position](r)
		vel := strata.Read[Velocity](r)
		pos.X += vel.X
		pos.Y += vel.Y
	})

strata covers the data plane only: archetype storage, the entity index, the
query/view engine, relations, epoch-based change detection, and action
deferral. A system scheduler and a cooperative task executor are expected to
be built on top, consuming this package's interfaces.
*/
package strata
