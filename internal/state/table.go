package state

import (
	"errors"
	"fmt"
	"math"

	"github.com/uganh16/lua51vm/internal/number"
	"github.com/uganh16/lua51vm/pkg/lua"
)

var (
	errIndexNil  = errors.New("table index is nil")
	errIndexNaN  = errors.New("table index is NaN")
	errNextKey   = errors.New("invalid key to 'next'")
	maxArraySize = math.MaxInt32
)

/**
 * Table keeps three key spaces. String keys live in an insertion ordered
 * list indexed by a map, positive integer keys adjacent to the array end
 * live in the array part, everything else is kept in the generic part.
 * Removed entries stay in place as tombstones (a Nil value) so that an
 * ongoing traversal is not disturbed.
 */
type Table struct {
	pool *Pool
	id   uint64
	refs int

	strIndex map[string]int
	strKeys  []string
	strVals  []Value
	strDead  int

	array []Value /* array[i] holds key i+1 */

	keys   []Value
	values []Value
	dead   int

	metatable *Table

	inZCT     bool
	collected bool
}

func (*Table) Type() lua.Type { return lua.TTABLE }

func (t *Table) String() string {
	return fmt.Sprintf("table: 0x%08x", t.id)
}

/* ID is unique among the live tables of a pool */
func (t *Table) ID() uint64 {
	return t.id
}

func (t *Table) RefCount() int {
	return t.refs
}

func (t *Table) Collected() bool {
	return t.collected
}

func (t *Table) Metatable() *Table {
	return t.metatable
}

func (t *Table) SetMetatable(mt *Table) {
	if mt != nil {
		t.pool.Retain(mt)
	}
	old := t.metatable
	t.metatable = mt
	if old != nil {
		t.pool.Release(old)
	}
}

func arrayIndex(key Value) (int, bool) {
	if n, ok := key.(Number); ok {
		if i, ok := number.FloatToInteger(float64(n)); ok && i >= 1 && i <= int64(maxArraySize) {
			return int(i), true
		}
	}
	return 0, false
}

func (t *Table) RawGet(key Value) Value {
	switch k := key.(type) {
	case String:
		return t.RawGetString(string(k))
	case Number:
		if idx, ok := arrayIndex(k); ok && idx <= len(t.array) {
			return t.array[idx-1]
		}
	case nil, nilValue:
		return Nil
	}
	if i := t.find(key); i >= 0 {
		return t.values[i]
	}
	return Nil
}

func (t *Table) RawGetString(key string) Value {
	if i, ok := t.strIndex[key]; ok {
		return t.strVals[i]
	}
	return Nil
}

func (t *Table) RawGetInt(key int) Value {
	if key >= 1 && key <= len(t.array) {
		return t.array[key-1]
	}
	return t.RawGet(Number(key))
}

func (t *Table) RawSet(key, val Value) error {
	if val == nil {
		val = Nil
	}
	switch k := key.(type) {
	case nil, nilValue:
		return errIndexNil
	case String:
		t.RawSetString(string(k), val)
		return nil
	case Number:
		if math.IsNaN(float64(k)) {
			return errIndexNaN
		}
		if idx, ok := arrayIndex(k); ok && idx <= len(t.array)+1 {
			t.setArray(idx, val)
			return nil
		}
	}
	t.setGeneric(key, val)
	return nil
}

func (t *Table) RawSetString(key string, val Value) {
	if val == nil {
		val = Nil
	}
	if i, ok := t.strIndex[key]; ok {
		old := t.strVals[i]
		if isNil(old) && !isNil(val) {
			t.strDead--
		} else if !isNil(old) && isNil(val) {
			t.strDead++
		}
		t.pool.Retain(val)
		t.strVals[i] = val
		t.pool.Release(old)
		return
	}
	if isNil(val) {
		return
	}
	if t.strDead > 8 && t.strDead > len(t.strKeys)/2 {
		t.compactStrings()
	}
	if t.strIndex == nil {
		t.strIndex = make(map[string]int)
	}
	t.pool.Retain(val)
	t.strIndex[key] = len(t.strKeys)
	t.strKeys = append(t.strKeys, key)
	t.strVals = append(t.strVals, val)
}

func (t *Table) RawSetInt(key int, val Value) {
	if key >= 1 && key <= len(t.array)+1 {
		t.setArray(key, val)
		return
	}
	t.setGeneric(Number(key), val)
}

func (t *Table) setArray(idx int, val Value) {
	if idx <= len(t.array) {
		t.pool.Retain(val)
		old := t.array[idx-1]
		t.array[idx-1] = val
		t.pool.Release(old)
		return
	}
	if isNil(val) {
		/* key idx is not present anywhere */
		return
	}
	t.pool.Retain(val)
	t.array = append(t.array, val)
	t.migrate()
}

/* move keys following the array end out of the generic part */
func (t *Table) migrate() {
	for t.live() > 0 {
		i := t.find(Number(len(t.array) + 1))
		if i < 0 || isNil(t.values[i]) {
			return
		}
		t.array = append(t.array, t.values[i])
		t.values[i] = Nil
		t.dead++
	}
}

func (t *Table) live() int {
	return len(t.keys) - t.dead
}

func (t *Table) find(key Value) int {
	for i, k := range t.keys {
		if rawEqual(k, key) {
			return i
		}
	}
	return -1
}

func (t *Table) setGeneric(key, val Value) {
	if i := t.find(key); i >= 0 {
		old := t.values[i]
		if isNil(old) && !isNil(val) {
			t.dead--
		} else if !isNil(old) && isNil(val) {
			t.dead++
		}
		t.pool.Retain(val)
		t.values[i] = val
		t.pool.Release(old)
		return
	}
	if isNil(val) {
		return
	}
	if t.dead > 8 && t.dead > len(t.keys)/2 {
		t.compactGeneric()
	}
	t.pool.Retain(key)
	t.pool.Retain(val)
	t.keys = append(t.keys, key)
	t.values = append(t.values, val)
}

func (t *Table) compactStrings() {
	j := 0
	for i, k := range t.strKeys {
		if v := t.strVals[i]; !isNil(v) {
			t.strKeys[j], t.strVals[j] = k, v
			t.strIndex[k] = j
			j++
		} else {
			delete(t.strIndex, k)
		}
	}
	clear(t.strKeys[j:])
	clear(t.strVals[j:])
	t.strKeys, t.strVals = t.strKeys[:j], t.strVals[:j]
	t.strDead = 0
}

func (t *Table) compactGeneric() {
	j := 0
	for i, k := range t.keys {
		if v := t.values[i]; !isNil(v) {
			t.keys[j], t.values[j] = k, v
			j++
		} else {
			t.pool.Release(k)
		}
	}
	clear(t.keys[j:])
	clear(t.values[j:])
	t.keys, t.values = t.keys[:j], t.values[:j]
	t.dead = 0
}

/* Len returns a border of the table, like luaH_getn */
func (t *Table) Len() int {
	j := len(t.array)
	if j > 0 && isNil(t.array[j-1]) {
		/* binary search for a border inside the array part */
		i := 0
		for j-i > 1 {
			m := (i + j) / 2
			if isNil(t.array[m-1]) {
				j = m
			} else {
				i = m
			}
		}
		return i
	}
	return j
}

/**
 * Next returns the entry following key in traversal order: string keys in
 * insertion order, then the array part in index order, then the generic
 * part in insertion order. A nil key starts the traversal and a nil
 * result key ends it.
 */
func (t *Table) Next(key Value) (Value, Value, error) {
	si, ai, gi := 0, 0, 0
	switch k := key.(type) {
	case nil, nilValue:
	case String:
		i, ok := t.strIndex[string(k)]
		if !ok {
			return nil, nil, errNextKey
		}
		si = i + 1
	default:
		si = len(t.strKeys)
		if idx, ok := arrayIndex(k); ok && idx <= len(t.array) {
			ai = idx
			break
		}
		i := t.find(key)
		if i < 0 {
			return nil, nil, errNextKey
		}
		ai, gi = len(t.array), i+1
	}
	for ; si < len(t.strKeys); si++ {
		if v := t.strVals[si]; !isNil(v) {
			return String(t.strKeys[si]), v, nil
		}
	}
	for ; ai < len(t.array); ai++ {
		if v := t.array[ai]; !isNil(v) {
			return Number(ai + 1), v, nil
		}
	}
	for ; gi < len(t.keys); gi++ {
		if v := t.values[gi]; !isNil(v) {
			return t.keys[gi], v, nil
		}
	}
	return Nil, Nil, nil
}

/* release everything the table holds and forget its contents */
func (t *Table) reset() {
	for _, v := range t.strVals {
		t.pool.Release(v)
	}
	for _, v := range t.array {
		t.pool.Release(v)
	}
	for i, k := range t.keys {
		t.pool.Release(k)
		t.pool.Release(t.values[i])
	}
	if t.metatable != nil {
		t.pool.Release(t.metatable)
		t.metatable = nil
	}
	clear(t.strIndex)
	clear(t.strKeys)
	clear(t.strVals)
	clear(t.array)
	clear(t.keys)
	clear(t.values)
	t.strKeys, t.strVals = t.strKeys[:0], t.strVals[:0]
	t.array = t.array[:0]
	t.keys, t.values = t.keys[:0], t.values[:0]
	t.strDead, t.dead = 0, 0
}
