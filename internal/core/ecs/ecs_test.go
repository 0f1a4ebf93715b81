package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityPoolRecyclesWithNewGeneration(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	require.False(t, a.IsZero())
	assert.Equal(t, uint32(1), a.Index())
	assert.True(t, p.Alive(a))

	p.Destroy(a)
	assert.False(t, p.Alive(a))
	assert.Equal(t, 0, p.Live())

	b := p.Create()
	assert.Equal(t, a.Index(), b.Index())
	assert.Equal(t, a.Generation()+1, b.Generation())
	assert.False(t, p.Alive(a), "stale ID stays dead after reuse")
	assert.True(t, p.Alive(b))

	p.Destroy(a) // stale destroy is ignored
	assert.True(t, p.Alive(b))
	assert.False(t, p.Alive(0))
}

func TestDeferredDestruction(t *testing.T) {
	e := NewEntities()
	masses := NewStore[float64]()
	e.Register(masses)

	id := e.Create()
	m := 2.0
	masses.Set(id, &m)

	e.MarkForDestruction(id)
	assert.Equal(t, 1, e.PendingDestruction())
	assert.True(t, e.Alive(id), "marked IDs live until the flush")
	assert.True(t, masses.Has(id))

	assert.Equal(t, 1, e.FlushDestroyQueue())
	assert.False(t, e.Alive(id))
	assert.False(t, masses.Has(id))
	assert.Equal(t, 0, masses.Len())
	assert.Equal(t, 0, e.PendingDestruction())
}
