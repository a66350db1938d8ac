package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSweepReusesStorage(t *testing.T) {
	p := NewPool()
	tbl := p.NewTable(0, 0)
	id := tbl.ID()
	p.Retain(tbl)
	p.Release(tbl)
	assert.Equal(t, 1, p.Pending())

	assert.Equal(t, 1, p.Sweep())
	assert.True(t, tbl.Collected())

	again := p.NewTable(0, 0)
	assert.Same(t, tbl, again)
	assert.NotEqual(t, id, again.ID())
	assert.False(t, again.Collected())
	assert.Equal(t, PoolStats{Allocated: 1, Reused: 1, Collected: 1, Sweeps: 1}, p.Stats())
}

func TestPoolSweepSkipsRetained(t *testing.T) {
	p := NewPool()
	tbl := p.NewTable(0, 0)
	p.Retain(tbl)
	p.Release(tbl)
	p.Retain(tbl) /* reachable again before the sweep */
	assert.Equal(t, 0, p.Sweep())
	assert.False(t, tbl.Collected())
	assert.Equal(t, 1, tbl.RefCount())
}

func TestPoolCollectsRecursively(t *testing.T) {
	p := NewPool()
	outer := p.NewTable(0, 0)
	inner := p.NewTable(0, 0)
	mt := p.NewTable(0, 0)
	outer.RawSetString("inner", inner)
	require.NoError(t, outer.RawSet(inner, True))
	inner.SetMetatable(mt)

	p.Retain(outer)
	p.Release(outer)
	assert.Equal(t, 3, p.Sweep())
	assert.True(t, inner.Collected())
	assert.True(t, mt.Collected())
}

func TestPoolSharedChildSurvives(t *testing.T) {
	p := NewPool()
	a := p.NewTable(0, 0)
	b := p.NewTable(0, 0)
	shared := p.NewTable(0, 0)
	a.RawSetInt(1, shared)
	b.RawSetInt(1, shared)
	p.Retain(a)
	p.Retain(b)

	p.Release(a)
	assert.Equal(t, 1, p.Sweep())
	assert.False(t, shared.Collected())
	assert.Equal(t, 1, shared.RefCount())
}

func TestPoolDisown(t *testing.T) {
	p := NewPool()
	tbl := p.NewTable(0, 0)
	p.Retain(tbl)
	p.Disown(tbl)
	assert.Equal(t, 0, tbl.RefCount())
	assert.Equal(t, 0, p.Sweep(), "disowned tables are left to the host")
	assert.False(t, tbl.Collected())
}

func TestPoolRegisters(t *testing.T) {
	p := NewPool()
	r := newRegisters(p, 4)
	r.set(2, String("x"))
	r.set(9, True)
	assert.Equal(t, String("x"), r.get(2))
	assert.Equal(t, Nil, r.get(5))
	assert.Equal(t, Nil, r.get(100))
	r.release()

	r2 := newRegisters(p, 3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, Nil, r2.get(i))
	}
}
