package strata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-ecs/strata"
	"github.com/strata-ecs/strata/strataerr"
)

// Scenario 1: a tick-style system advances every entity's position by its
// velocity through a static WriteAccess view, and the world epoch does not
// go backwards across the tick.
func TestStaticViewTickAdvancesPositions(t *testing.T) {
	w := newWorld(t)

	e, err := strata.Spawn(w, Position{X: 0, Y: 0}, Velocity{X: 1, Y: 1})
	require.NoError(t, err)

	baseline := w.Epoch()

	view, err := strata.StaticView(w, strata.Q().With(Position{}, Velocity{}), strata.WriteAccess)
	require.NoError(t, err)
	defer view.Release()

	err = view.Each(func(r strata.Row) {
		pos := strata.Write[Position](r)
		vel := strata.Read[Velocity](r)
		pos.X += vel.X
		pos.Y += vel.Y
	})
	require.NoError(t, err)

	row, err := view.One(e)
	require.NoError(t, err)
	got := strata.Read[Position](row)
	assert.Equal(t, Position{X: 1, Y: 1}, *got)
	assert.GreaterOrEqual(t, w.Epoch(), baseline)
}

// Scenario 2: a Modified(Position) view with a baseline epoch only yields
// rows touched after that baseline.
func TestModifiedBaselineFiltersUntouchedRows(t *testing.T) {
	w := newWorld(t)

	e1, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)

	baseline := w.Epoch()

	e2, err := strata.Spawn(w, Position{X: 5, Y: 5})
	require.NoError(t, err)

	seen := func() map[strata.EId]bool {
		out := map[strata.EId]bool{}
		view := strata.RuntimeView(w, strata.Q().Modified(Position{}), strata.ReadAccess)
		view.WithBaseline(baseline)
		err := view.Each(func(r strata.Row) {
			out[r.Entity().ID] = true
		})
		require.NoError(t, err)
		return out
	}

	got := seen()
	assert.False(t, got[e1])
	assert.True(t, got[e2])

	view, err := strata.StaticView(w, strata.Q().With(Position{}), strata.WriteAccess)
	require.NoError(t, err)
	err = view.Each(func(r strata.Row) {
		if r.Entity().ID != e1 {
			return
		}
		strata.Write[Position](r).X = 99
	})
	require.NoError(t, err)
	view.Release()

	got = seen()
	assert.True(t, got[e1])
	assert.True(t, got[e2])
}

// Scenario 4: two static views with mixed exclusive/shared access on
// overlapping component types conflict on the second construction.
func TestMixedAccessModeConflictsOnOverlap(t *testing.T) {
	w := newWorld(t)

	_, err := strata.Spawn(w, Position{X: 0, Y: 0}, Velocity{X: 1, Y: 1})
	require.NoError(t, err)

	first, err := strata.StaticView(w, strata.Q().Write(Position{}).Read(Velocity{}), strata.ReadAccess)
	require.NoError(t, err)
	defer first.Release()

	_, err = strata.StaticView(w, strata.Q().Write(Velocity{}).Read(Position{}), strata.ReadAccess)
	assert.ErrorAs(t, err, &strataerr.BorrowConflict{})
}

// Scenario 4b: pinning the same component type both Write and Read within
// one query is a static self-conflict, caught at view construction.
func TestSelfConflictingQueryFailsAtConstruction(t *testing.T) {
	w := newWorld(t)

	_, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)

	_, err = strata.StaticView(w, strata.Q().Write(Position{}).Read(Position{}), strata.ReadAccess)
	assert.ErrorAs(t, err, &strataerr.BorrowConflict{})
}

// Scenario 5: accessing an unregistered, non-self-describing component type
// fails with NotRegistered rather than silently registering it.
func TestInsertingUnregisteredComponentIsNotRegistered(t *testing.T) {
	w := newWorld(t)

	id, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)

	err = strata.Insert(w, id, RawThing{Value: 7})
	assert.ErrorAs(t, err, &strataerr.NotRegistered{})
}

// Scenario 6: a Runtime view's exclusive hold on a component blocks a
// second Runtime view's shared access until the first is done iterating.
func TestRuntimeViewOneDetectsLiveExclusiveHold(t *testing.T) {
	w := newWorld(t)

	e, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)

	writer := strata.RuntimeView(w, strata.Q().With(Position{}), strata.WriteAccess)
	reader := strata.RuntimeView(w, strata.Q().With(Position{}), strata.ReadAccess)

	conflicted := false
	err = writer.Each(func(r strata.Row) {
		_, oneErr := reader.One(e)
		if oneErr != nil {
			conflicted = true
			assert.ErrorAs(t, oneErr, &strataerr.BorrowConflict{})
		}
	})
	require.NoError(t, err)
	assert.True(t, conflicted)

	_, err = reader.One(e)
	assert.NoError(t, err)
}
