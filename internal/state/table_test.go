package state

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRoundTrip(t *testing.T) {
	p := NewPool()
	tbl := p.NewTable(0, 0)
	other := p.NewTable(0, 0)
	fn := host("f", nil)
	keys := []Value{String("a"), String(""), Number(1), Number(2), Number(-1), Number(0.5), Number(1e100), True, False, other, fn}
	for i, k := range keys {
		require.NoError(t, tbl.RawSet(k, Number(i)))
	}
	for i, k := range keys {
		assert.Equal(t, Number(i), tbl.RawGet(k), "key %v", k)
	}
	for _, k := range keys {
		require.NoError(t, tbl.RawSet(k, Nil))
		assert.Equal(t, Nil, tbl.RawGet(k), "key %v", k)
	}
	k, _, err := tbl.Next(Nil)
	require.NoError(t, err)
	assert.Equal(t, Nil, k)
}

func TestTableInvalidKeys(t *testing.T) {
	tbl := NewPool().NewTable(0, 0)
	assert.EqualError(t, tbl.RawSet(Nil, True), "table index is nil")
	assert.EqualError(t, tbl.RawSet(Number(math.NaN()), True), "table index is NaN")
	assert.Equal(t, Nil, tbl.RawGet(Nil))
	assert.Equal(t, Nil, tbl.RawGet(Number(math.NaN())))
}

func TestTableLength(t *testing.T) {
	tbl := NewPool().NewTable(0, 0)
	tbl.RawSetInt(1, String("a"))
	tbl.RawSetInt(2, String("b"))
	assert.Equal(t, 2, tbl.Len())

	tbl.RawSetInt(2, Nil)
	assert.Equal(t, 1, tbl.Len())
	tbl.RawSetInt(1, Nil)
	assert.Equal(t, 0, tbl.Len())
}

func TestTableArrayMigration(t *testing.T) {
	tbl := NewPool().NewTable(0, 0)
	tbl.RawSetInt(3, String("c"))
	tbl.RawSetInt(2, String("b"))
	assert.Len(t, tbl.array, 0, "keys beyond len+1 stay in the generic part")
	assert.Equal(t, 0, tbl.Len())

	tbl.RawSetInt(1, String("a"))
	assert.Len(t, tbl.array, 3)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, 0, tbl.live())
	assert.Equal(t, String("c"), tbl.RawGet(Number(3)))
}

func TestTableFloatKeysNormalize(t *testing.T) {
	tbl := NewPool().NewTable(0, 0)
	require.NoError(t, tbl.RawSet(Number(1.0), String("one")))
	assert.Equal(t, String("one"), tbl.RawGetInt(1))
	require.NoError(t, tbl.RawSet(Number(math.Copysign(0, -1)), String("zero")))
	assert.Equal(t, String("zero"), tbl.RawGet(Number(0)))
}

func TestTableNextOrder(t *testing.T) {
	tbl := NewPool().NewTable(0, 0)
	tbl.RawSetString("x", Number(1))
	tbl.RawSetInt(1, Number(2))
	require.NoError(t, tbl.RawSet(True, Number(3)))
	tbl.RawSetString("y", Number(4))
	tbl.RawSetInt(2, Number(5))

	var keys []Value
	for k, _, err := tbl.Next(Nil); !isNil(k); k, _, err = tbl.Next(k) {
		require.NoError(t, err)
		keys = append(keys, k)
	}
	assert.Equal(t, []Value{String("x"), String("y"), Number(1), Number(2), True}, keys)

	_, _, err := tbl.Next(String("missing"))
	assert.EqualError(t, err, "invalid key to 'next'")
}

func TestTableNextSurvivesRemoval(t *testing.T) {
	tbl := NewPool().NewTable(0, 0)
	for _, k := range []string{"a", "b", "c", "d"} {
		tbl.RawSetString(k, True)
	}
	n := 0
	for k, _, err := tbl.Next(Nil); !isNil(k); k, _, err = tbl.Next(k) {
		require.NoError(t, err)
		tbl.RawSetString(string(k.(String)), Nil) /* clearing fields during traversal is allowed */
		n++
	}
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, tbl.strDead)
}

func TestTableCompaction(t *testing.T) {
	p := NewPool()
	tbl := p.NewTable(0, 0)
	for i := 0; i < 40; i++ {
		require.NoError(t, tbl.RawSet(Number(float64(i)+0.5), True))
	}
	for i := 0; i < 30; i++ {
		require.NoError(t, tbl.RawSet(Number(float64(i)+0.5), Nil))
	}
	require.NoError(t, tbl.RawSet(String("k"), True))
	require.NoError(t, tbl.RawSet(Number(100.5), True))
	assert.Equal(t, 11, len(tbl.keys))
	assert.Equal(t, True, tbl.RawGet(Number(35.5)))
}

func TestTableRefCounts(t *testing.T) {
	p := NewPool()
	parent := p.NewTable(0, 0)
	child := p.NewTable(0, 0)
	parent.RawSetString("a", child)
	parent.RawSetInt(1, child)
	require.NoError(t, parent.RawSet(child, child))
	assert.Equal(t, 4, child.RefCount())

	mt := p.NewTable(0, 0)
	parent.SetMetatable(mt)
	child.SetMetatable(mt)
	assert.Equal(t, 2, mt.RefCount())
}
