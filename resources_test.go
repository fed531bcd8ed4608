package strata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-ecs/strata"
	"github.com/strata-ecs/strata/strataerr"
)

func TestResourceGetMutConflictsWithLiveGet(t *testing.T) {
	w := newWorld(t)
	strata.ResourceInsert(w, "seed")

	_, release, err := strata.ResourceGet[string](w)
	require.NoError(t, err)
	defer release()

	_, _, err = strata.ResourceGetMut[string](w)
	assert.ErrorAs(t, err, &strataerr.BorrowConflict{})
}

func TestResourceRemoveDropsValue(t *testing.T) {
	w := newWorld(t)
	strata.ResourceInsert(w, 7)

	strata.ResourceRemove[int](w)

	_, _, err := strata.ResourceGet[int](w)
	assert.ErrorAs(t, err, &strataerr.MissingResource{})
}

func TestNotSendableResourceRequiresOwnerToken(t *testing.T) {
	w := newWorld(t)
	strata.ResourceInsert(w, 3, strata.NotSendableResource())

	_, _, err := strata.ResourceGet[int](w)
	assert.ErrorAs(t, err, &strataerr.WrongThread{})

	v, release, err := strata.ResourceGetLocal[int](w, w.Local())
	require.NoError(t, err)
	defer release()
	assert.Equal(t, 3, *v)
}
