package strata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-ecs/strata"
)

// Scenario 3: despawning a ChildOf relation's target cascades to despawn
// every entity that held a ChildOf link to it.
func TestChildOfCascadeDespawnsChildren(t *testing.T) {
	w := newWorld(t)

	parent, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)
	child, err := strata.Spawn(w, Position{X: 1, Y: 1})
	require.NoError(t, err)

	require.NoError(t, strata.Relate[strata.ChildOf](w, child, parent, nil))

	target, ok := strata.RelatedTo[strata.ChildOf](w, child)
	require.True(t, ok)
	assert.Equal(t, parent, target)

	require.NoError(t, strata.Despawn(w, parent))
	strata.Sync(w)

	assert.False(t, w.Exists(parent))
	assert.False(t, w.Exists(child))
}

// Likes is non-exclusive and drop-link-only: despawning either side only
// drops the link, the other entity survives.
func TestLikesDropsLinkWithoutCascade(t *testing.T) {
	w := newWorld(t)

	a, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)
	b, err := strata.Spawn(w, Position{X: 1, Y: 1})
	require.NoError(t, err)
	c, err := strata.Spawn(w, Position{X: 2, Y: 2})
	require.NoError(t, err)

	require.NoError(t, strata.Relate[strata.Likes](w, a, b, nil))
	require.NoError(t, strata.Relate[strata.Likes](w, a, c, nil))
	assert.ElementsMatch(t, []strata.EId{b, c}, strata.RelatedToAll[strata.Likes](w, a))

	require.NoError(t, strata.Despawn(w, b))
	strata.Sync(w)

	assert.False(t, w.Exists(b))
	assert.True(t, w.Exists(a))
	assert.True(t, w.Exists(c))

	assert.ElementsMatch(t, []strata.EId{c}, strata.RelatedToAll[strata.Likes](w, a))
}

// Exclusive relation replacement: a second Relate call on the same source
// replaces the first link rather than adding a parallel one.
func TestExclusiveRelationReplacesPriorLink(t *testing.T) {
	w := newWorld(t)

	child, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)
	p1, err := strata.Spawn(w, Position{X: 1, Y: 1})
	require.NoError(t, err)
	p2, err := strata.Spawn(w, Position{X: 2, Y: 2})
	require.NoError(t, err)

	require.NoError(t, strata.Relate[strata.ChildOf](w, child, p1, nil))
	require.NoError(t, strata.Relate[strata.ChildOf](w, child, p2, nil))

	target, ok := strata.RelatedTo[strata.ChildOf](w, child)
	require.True(t, ok)
	assert.Equal(t, p2, target)

	sources := strata.RelatedFrom[strata.ChildOf](w, p1)
	assert.Empty(t, sources)
}

func TestUnrelateDropsLinkOnBothSides(t *testing.T) {
	w := newWorld(t)

	src, err := strata.Spawn(w, Position{X: 0, Y: 0})
	require.NoError(t, err)
	dst, err := strata.Spawn(w, Position{X: 1, Y: 1})
	require.NoError(t, err)

	require.NoError(t, strata.Relate[strata.Likes](w, src, dst, nil))
	require.NoError(t, strata.Unrelate[strata.Likes](w, src, dst))

	_, ok := strata.RelatedTo[strata.Likes](w, src)
	assert.False(t, ok)
	assert.Empty(t, strata.RelatedFrom[strata.Likes](w, dst))
}
