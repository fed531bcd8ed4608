package strata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-ecs/strata"
)

func collectIDs(t *testing.T, w *strata.World, q *strata.Query) []strata.EId {
	t.Helper()
	var out []strata.EId
	view := strata.RuntimeView(w, q, strata.ReadAccess)
	require.NoError(t, view.Each(func(r strata.Row) {
		out = append(out, r.Entity().ID)
	}))
	return out
}

func TestWithoutExcludesForbiddenType(t *testing.T) {
	w := newWorld(t)

	withVel, err := strata.Spawn(w, Position{X: 0, Y: 0}, Velocity{X: 1, Y: 1})
	require.NoError(t, err)
	withoutVel, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)

	ids := collectIDs(t, w, strata.Q().With(Position{}).Without(Velocity{}))
	assert.Contains(t, ids, withoutVel)
	assert.NotContains(t, ids, withVel)
}

func TestFilterOrMatchesEitherComponent(t *testing.T) {
	w := newWorld(t)

	withHealth, err := strata.Spawn(w, Position{X: 0, Y: 0}, Health{Current: 1, Max: 1})
	require.NoError(t, err)
	withName, err := strata.Spawn(w, Position{X: 0, Y: 0}, Name{Value: "x"})
	require.NoError(t, err)
	neither, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)

	ids := collectIDs(t, w, strata.Q().With(Position{}).Filter(strata.Or(Health{}, Name{})))
	assert.Contains(t, ids, withHealth)
	assert.Contains(t, ids, withName)
	assert.NotContains(t, ids, neither)
}

func TestFilterNotExcludesComponent(t *testing.T) {
	w := newWorld(t)

	plain, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)
	withHealth, err := strata.Spawn(w, Position{X: 0, Y: 0}, Health{Current: 1, Max: 1})
	require.NoError(t, err)

	ids := collectIDs(t, w, strata.Q().With(Position{}).Filter(strata.Not(Health{})))
	assert.Contains(t, ids, plain)
	assert.NotContains(t, ids, withHealth)
}

func TestQueryMatchesArchetypesCreatedAfterFirstCompile(t *testing.T) {
	w := newWorld(t)

	q := strata.Q().With(Position{})
	e1, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)

	ids := collectIDs(t, w, q)
	assert.Contains(t, ids, e1)

	e2, err := strata.Spawn(w, Position{X: 1, Y: 1}, Velocity{X: 1, Y: 1})
	require.NoError(t, err)

	ids = collectIDs(t, w, q)
	assert.Contains(t, ids, e1)
	assert.Contains(t, ids, e2)
}
