package strata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-ecs/strata"
	"github.com/strata-ecs/strata/strataerr"
)

func newWorld(t *testing.T) *strata.World {
	t.Helper()
	w, err := strata.NewBuilder().Build()
	require.NoError(t, err)
	return w
}

func TestSpawnAssignsLiveID(t *testing.T) {
	w := newWorld(t)

	id, err := strata.Spawn(w, Position{X: 1, Y: 2}, Velocity{X: 0, Y: 0})
	require.NoError(t, err)
	assert.True(t, id.Valid())
	assert.True(t, w.Exists(id))
}

func TestLocationOfUnknownEntity(t *testing.T) {
	w := newWorld(t)

	_, err := w.Location(strata.EId(999))
	assert.ErrorAs(t, err, &strataerr.NoSuchEntity{})
}

func TestDespawnRemovesEntity(t *testing.T) {
	w := newWorld(t)

	id, err := strata.Spawn(w, Position{X: 1, Y: 1})
	require.NoError(t, err)
	require.True(t, w.Exists(id))

	require.NoError(t, strata.Despawn(w, id))
	assert.False(t, w.Exists(id))
}

func TestDespawnUnknownIDIsNoSuchEntity(t *testing.T) {
	w := newWorld(t)

	err := strata.Despawn(w, strata.EId(12345))
	assert.ErrorAs(t, err, &strataerr.NoSuchEntity{})
}

func TestInsertThenRemoveRoundTrips(t *testing.T) {
	w := newWorld(t)

	id, err := strata.Spawn(w, Position{X: 1, Y: 1})
	require.NoError(t, err)

	before, err := w.Location(id)
	require.NoError(t, err)

	require.NoError(t, strata.Insert(w, id, Velocity{X: 3, Y: 4}))

	removed, err := strata.Remove[Velocity](w, id)
	require.NoError(t, err)
	assert.Equal(t, Velocity{X: 3, Y: 4}, removed)

	after, err := w.Location(id)
	require.NoError(t, err)
	assert.Equal(t, before.Archetype, after.Archetype)
}

func TestRemoveAbsentComponentIsNotPresent(t *testing.T) {
	w := newWorld(t)

	id, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)

	_, err = strata.Remove[Velocity](w, id)
	assert.ErrorAs(t, err, &strataerr.NotPresent{})
}

func TestInsertOnUnregisteredNonSelfDescribingComponentFails(t *testing.T) {
	w := newWorld(t)

	id, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)

	err = strata.Insert(w, id, RawThing{Value: 1})
	assert.ErrorAs(t, err, &strataerr.NotRegistered{})
}

func TestSpawnNSharesOneArchetype(t *testing.T) {
	w := newWorld(t)

	ids := strata.SpawnN(w, 5, Position{X: 0, Y: 0}, Velocity{X: 1, Y: 1})
	require.Len(t, ids, 5)

	first, err := w.Location(ids[0])
	require.NoError(t, err)
	for _, id := range ids[1:] {
		loc, err := w.Location(id)
		require.NoError(t, err)
		assert.Equal(t, first.Archetype, loc.Archetype)
	}
}

func TestSyncIsIdempotentOnEmptyBuffer(t *testing.T) {
	w := newWorld(t)
	strata.Sync(w)
	strata.Sync(w)
}

func TestResourceGetAndMutRoundTrip(t *testing.T) {
	w := newWorld(t)

	strata.ResourceInsert(w, 41)
	v, release, err := strata.ResourceGetMut[int](w)
	require.NoError(t, err)
	*v = *v + 1
	release()

	got, release2, err := strata.ResourceGet[int](w)
	require.NoError(t, err)
	defer release2()
	assert.Equal(t, 42, *got)
}

func TestReleasedStaticViewUnlocksStructuralMutations(t *testing.T) {
	w := newWorld(t)

	id, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)

	view, err := strata.StaticView(w, strata.Q().With(Position{}), strata.WriteAccess)
	require.NoError(t, err)
	view.Release()

	assert.False(t, w.Locked())

	require.NoError(t, strata.Despawn(w, id))
	assert.False(t, w.Exists(id))
}

func TestResourceGetMissingIsMissingResource(t *testing.T) {
	w := newWorld(t)

	_, _, err := strata.ResourceGet[string](w)
	assert.ErrorAs(t, err, &strataerr.MissingResource{})
}
