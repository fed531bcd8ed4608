package strata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-ecs/strata"
)

func TestReplaceHookCanSuppressDropHook(t *testing.T) {
	var dropRuns, replaceRuns int
	desc := strata.Describe[Health]().
		WithReplaceHook(func(old, new any, id strata.EId, buf *strata.LocalBuffer) bool {
			replaceRuns++
			return false
		}).
		WithDropHook(func(val any, id strata.EId, buf *strata.LocalBuffer) {
			dropRuns++
		})

	w, err := strata.NewBuilder().Register(desc).Build()
	require.NoError(t, err)

	id, err := strata.Spawn(w, Health{Current: 1, Max: 1})
	require.NoError(t, err)

	require.NoError(t, strata.Insert(w, id, Health{Current: 2, Max: 2}))
	assert.Equal(t, 1, replaceRuns)
	assert.Zero(t, dropRuns)

	require.NoError(t, strata.Despawn(w, id))
	assert.Equal(t, 1, dropRuns)
}

func TestHookEnqueuedActionRunsOnNextDrain(t *testing.T) {
	desc := strata.Describe[Health]().WithDropHook(func(val any, id strata.EId, buf *strata.LocalBuffer) {
		buf.SpawnLater(Position{X: 9, Y: 9})
	})

	w, err := strata.NewBuilder().Register(desc).Build()
	require.NoError(t, err)

	id, err := strata.Spawn(w, Health{Current: 1, Max: 1})
	require.NoError(t, err)

	require.NoError(t, strata.Despawn(w, id))
	strata.Sync(w)

	found := false
	view := strata.RuntimeView(w, strata.Q().With(Position{}), strata.ReadAccess)
	require.NoError(t, view.Each(func(r strata.Row) {
		if strata.Read[Position](r).X == 9 {
			found = true
		}
	}))
	assert.True(t, found)
}
