package state

import (
	"strings"
)

func (vm *VM) openTable() {
	vm.newLib("table", map[string]HostFunc{
		"concat": tabConcat,
		"getn":   tabGetn,
		"insert": tabInsert,
		"remove": tabRemove,
	})
}

func tabGetn(vm *VM, args []Value) ([]Value, error) {
	t, err := checkTable(args, 0, "getn")
	if err != nil {
		return nil, err
	}
	return []Value{Number(t.Len())}, nil
}

func tabInsert(vm *VM, args []Value) ([]Value, error) {
	t, err := checkTable(args, 0, "insert")
	if err != nil {
		return nil, err
	}
	e := t.Len() + 1 /* first empty element */
	var pos int
	switch len(args) {
	case 2: /* called with only 2 arguments */
		pos = e /* insert new element at the end */
	case 3:
		if pos, err = checkInt(args, 1, "insert"); err != nil {
			return nil, err
		}
		if pos > e { /* 'grow' array if necessary */
			e = pos
		}
		for i := e; i > pos; i-- { /* move up elements */
			t.RawSetInt(i, t.RawGetInt(i-1))
		}
	default:
		return nil, newRuntimeError("wrong number of arguments to 'insert'")
	}
	t.RawSetInt(pos, args[len(args)-1])
	return nil, nil
}

func tabRemove(vm *VM, args []Value) ([]Value, error) {
	t, err := checkTable(args, 0, "remove")
	if err != nil {
		return nil, err
	}
	e := t.Len()
	pos, err := optInt(args, 1, "remove", e)
	if err != nil {
		return nil, err
	}
	if !(1 <= pos && pos <= e) { /* position is outside bounds? */
		return nil, nil /* nothing to remove */
	}
	removed := t.RawGetInt(pos)
	t.pool.Retain(removed)
	defer t.pool.Release(removed)
	for ; pos < e; pos++ {
		t.RawSetInt(pos, t.RawGetInt(pos+1))
	}
	t.RawSetInt(e, Nil)
	return []Value{removed}, nil
}

func tabConcat(vm *VM, args []Value) ([]Value, error) {
	t, err := checkTable(args, 0, "concat")
	if err != nil {
		return nil, err
	}
	sep, err := optString(args, 1, "concat", "")
	if err != nil {
		return nil, err
	}
	i, err := optInt(args, 2, "concat", 1)
	if err != nil {
		return nil, err
	}
	j, err := optInt(args, 3, "concat", t.Len())
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	for k := i; k <= j; k++ {
		s, ok := toString(t.RawGetInt(k))
		if !ok {
			return nil, newRuntimeError("invalid value (at index %d) in table for 'concat'", k)
		}
		b.WriteString(s)
		if k != j {
			b.WriteString(sep)
		}
	}
	return []Value{String(b.String())}, nil
}
