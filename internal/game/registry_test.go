package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAllocatesSequentialIDs(t *testing.T) {
	r := NewRegistry(10)
	assert.Equal(t, 11, r.AllocateID())
	assert.Equal(t, 12, r.AllocateID())
}

func TestRegistryInsertFindRemove(t *testing.T) {
	r := NewRegistry(0)
	g := NewGame(r.AllocateID())

	r.Insert(g)
	found, ok := r.Find(g.ID)
	require.True(t, ok)
	assert.Equal(t, g, found)
	assert.Equal(t, 1, r.Len())

	r.Remove(g)
	_, ok = r.Find(g.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry(0)
	g1 := NewGame(r.AllocateID())
	g2 := NewGame(r.AllocateID())
	r.Insert(g1)
	r.Insert(g2)

	assert.ElementsMatch(t, []*Game{g1, g2}, r.Snapshot())
}
