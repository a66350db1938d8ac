package state

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/uganh16/lua51vm/pkg/lua"
)

/* maximum number of results of unpack */
const MAXUNPACK = 8000

func (vm *VM) openLibs() {
	g := vm.globals
	vm.register(g, map[string]HostFunc{
		"assert":       baseAssert,
		"error":        baseError,
		"getmetatable": baseGetmetatable,
		"next":         baseNext,
		"pcall":        basePcall,
		"print":        basePrint,
		"rawequal":     baseRawequal,
		"rawget":       baseRawget,
		"rawset":       baseRawset,
		"select":       baseSelect,
		"setmetatable": baseSetmetatable,
		"tonumber":     baseTonumber,
		"tostring":     baseTostring,
		"type":         baseType,
		"unpack":       baseUnpack,
		"xpcall":       baseXpcall,
	})
	g.RawSetString("_G", g)
	g.RawSetString("_VERSION", String(lua.VERSION))
	/* 'pairs' returns the very same 'next' */
	next := g.RawGetString("next")
	g.RawSetString("pairs", NewHostFunction("pairs", func(vm *VM, args []Value) ([]Value, error) {
		t, err := checkTable(args, 0, "pairs")
		if err != nil {
			return nil, err
		}
		return []Value{next, t, Nil}, nil
	}))
	iter := NewHostFunction("ipairs_aux", ipairsAux)
	g.RawSetString("ipairs", NewHostFunction("ipairs", func(vm *VM, args []Value) ([]Value, error) {
		t, err := checkTable(args, 0, "ipairs")
		if err != nil {
			return nil, err
		}
		return []Value{iter, t, Number(0)}, nil
	}))
	vm.openPackage()
	vm.openCoroutine()
	vm.openTable()
}

func (vm *VM) register(t *Table, funcs map[string]HostFunc) {
	for name, fn := range funcs {
		t.RawSetString(name, NewHostFunction(name, fn))
	}
}

func (vm *VM) newLib(name string, funcs map[string]HostFunc) *Table {
	lib := vm.pool.NewTable(0, len(funcs))
	vm.register(lib, funcs)
	vm.globals.RawSetString(name, lib)
	if vm.loaded != nil {
		vm.loaded.RawSetString(name, lib)
	}
	return lib
}

/* argument helpers */

func arg(args []Value, n int) Value {
	if n < len(args) && args[n] != nil {
		return args[n]
	}
	return Nil
}

func typeArgError(args []Value, n int, fname, expected string) error {
	got := "no value"
	if n < len(args) {
		got = typeName(args[n])
	}
	return ArgError(n+1, fname, fmt.Sprintf("%s expected, got %s", expected, got))
}

func checkAny(args []Value, n int, fname string) (Value, error) {
	if n >= len(args) {
		return nil, ArgError(n+1, fname, "value expected")
	}
	return arg(args, n), nil
}

func checkTable(args []Value, n int, fname string) (*Table, error) {
	if t, ok := arg(args, n).(*Table); ok {
		return t, nil
	}
	return nil, typeArgError(args, n, fname, "table")
}

func checkNumber(args []Value, n int, fname string) (lua.Number, error) {
	if x, ok := toNumber(arg(args, n)); ok {
		return x, nil
	}
	return 0, typeArgError(args, n, fname, "number")
}

func checkInt(args []Value, n int, fname string) (int, error) {
	x, err := checkNumber(args, n, fname)
	return int(x), err
}

func optInt(args []Value, n int, fname string, def int) (int, error) {
	if isNil(arg(args, n)) {
		return def, nil
	}
	return checkInt(args, n, fname)
}

func checkString(args []Value, n int, fname string) (string, error) {
	if s, ok := toString(arg(args, n)); ok {
		return s, nil
	}
	return "", typeArgError(args, n, fname, "string")
}

func optString(args []Value, n int, fname, def string) (string, error) {
	if isNil(arg(args, n)) {
		return def, nil
	}
	return checkString(args, n, fname)
}

/* base functions */

func baseAssert(vm *VM, args []Value) ([]Value, error) {
	if _, err := checkAny(args, 0, "assert"); err != nil {
		return nil, err
	}
	if !toBoolean(args[0]) {
		msg, err := optString(args, 1, "assert", "assertion failed!")
		if err != nil {
			return nil, err
		}
		return nil, newRuntimeError("%s", msg)
	}
	return args, nil
}

func baseError(vm *VM, args []Value) ([]Value, error) {
	level, err := optInt(args, 1, "error", 1)
	if err != nil {
		return nil, err
	}
	return nil, NewError(arg(args, 0), level)
}

func baseGetmetatable(vm *VM, args []Value) ([]Value, error) {
	val, err := checkAny(args, 0, "getmetatable")
	if err != nil {
		return nil, err
	}
	mt := vm.metatable(val)
	if mt == nil {
		return []Value{Nil}, nil
	}
	if protected := mt.RawGetString("__metatable"); !isNil(protected) {
		return []Value{protected}, nil
	}
	return []Value{mt}, nil
}

func baseSetmetatable(vm *VM, args []Value) ([]Value, error) {
	t, err := checkTable(args, 0, "setmetatable")
	if err != nil {
		return nil, err
	}
	var mt *Table
	switch m := arg(args, 1).(type) {
	case *Table:
		mt = m
	case nilValue:
	default:
		return nil, typeArgError(args, 1, "setmetatable", "nil or table")
	}
	if old := t.metatable; old != nil && !isNil(old.RawGetString("__metatable")) {
		return nil, newRuntimeError("cannot change a protected metatable")
	}
	t.SetMetatable(mt)
	return []Value{t}, nil
}

func ipairsAux(vm *VM, args []Value) ([]Value, error) {
	t, err := checkTable(args, 0, "ipairs")
	if err != nil {
		return nil, err
	}
	i, err := checkInt(args, 1, "ipairs")
	if err != nil {
		return nil, err
	}
	i++
	v := t.RawGetInt(i)
	if isNil(v) {
		return nil, nil
	}
	return []Value{Number(i), v}, nil
}

func baseNext(vm *VM, args []Value) ([]Value, error) {
	t, err := checkTable(args, 0, "next")
	if err != nil {
		return nil, err
	}
	k, v, err := t.Next(arg(args, 1))
	if err != nil {
		return nil, newRuntimeError("%s", err.Error())
	}
	if isNil(k) {
		return []Value{Nil}, nil
	}
	return []Value{k, v}, nil
}

func basePcall(vm *VM, args []Value) ([]Value, error) {
	fn, err := checkAny(args, 0, "pcall")
	if err != nil {
		return nil, err
	}
	rets, err := vm.callNested(fn, args[1:], false)
	if err != nil {
		re := asRuntimeError(err)
		re.Release()
		return []Value{False, re.Value}, nil
	}
	return append([]Value{True}, rets...), nil
}

func baseXpcall(vm *VM, args []Value) ([]Value, error) {
	if _, err := checkAny(args, 1, "xpcall"); err != nil {
		return nil, err
	}
	rets, err := vm.callNested(arg(args, 0), nil, false)
	if err == nil {
		return append([]Value{True}, rets...), nil
	}
	re := asRuntimeError(err)
	re.Release()
	hrets, herr := vm.callNested(args[1], []Value{re.Value}, false)
	if herr != nil {
		he := asRuntimeError(herr)
		he.Release()
		return []Value{False, he.Value}, nil
	}
	return []Value{False, arg(hrets, 0)}, nil
}

func basePrint(vm *VM, args []Value) ([]Value, error) {
	parts := make([]string, len(args))
	for i := range args {
		s, err := vm.tostring(arg(args, i))
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	if _, err := io.WriteString(vm.opts.Stdout, strings.Join(parts, "\t")+"\n"); err != nil {
		return nil, err
	}
	return nil, nil
}

func baseRawequal(vm *VM, args []Value) ([]Value, error) {
	if _, err := checkAny(args, 1, "rawequal"); err != nil {
		return nil, err
	}
	return []Value{Boolean(rawEqual(args[0], args[1]))}, nil
}

func baseRawget(vm *VM, args []Value) ([]Value, error) {
	t, err := checkTable(args, 0, "rawget")
	if err != nil {
		return nil, err
	}
	if _, err := checkAny(args, 1, "rawget"); err != nil {
		return nil, err
	}
	return []Value{t.RawGet(args[1])}, nil
}

func baseRawset(vm *VM, args []Value) ([]Value, error) {
	t, err := checkTable(args, 0, "rawset")
	if err != nil {
		return nil, err
	}
	if _, err := checkAny(args, 2, "rawset"); err != nil {
		return nil, err
	}
	if err := vm.rawSet(t, args[1], args[2]); err != nil {
		return nil, err
	}
	return []Value{t}, nil
}

func baseSelect(vm *VM, args []Value) ([]Value, error) {
	if s, ok := arg(args, 0).(String); ok && s == "#" {
		return []Value{Number(len(args) - 1)}, nil
	}
	n, err := checkInt(args, 0, "select")
	if err != nil {
		return nil, err
	}
	top := len(args)
	if n < 0 {
		n = top + n
	} else if n > top {
		n = top
	}
	if n < 1 {
		return nil, ArgError(1, "select", "index out of range")
	}
	return args[n:], nil
}

func baseTonumber(vm *VM, args []Value) ([]Value, error) {
	base, err := optInt(args, 1, "tonumber", 10)
	if err != nil {
		return nil, err
	}
	if base == 10 { /* standard conversion */
		if _, err := checkAny(args, 0, "tonumber"); err != nil {
			return nil, err
		}
		if n, ok := toNumber(args[0]); ok {
			return []Value{Number(n)}, nil
		}
		return []Value{Nil}, nil
	}
	s, err := checkString(args, 0, "tonumber")
	if err != nil {
		return nil, err
	}
	if base < 2 || base > 36 {
		return nil, ArgError(2, "tonumber", "base out of range")
	}
	if n, err := strconv.ParseUint(strings.TrimSpace(strings.ToLower(s)), base, 64); err == nil {
		return []Value{Number(n)}, nil
	}
	return []Value{Nil}, nil
}

func baseTostring(vm *VM, args []Value) ([]Value, error) {
	val, err := checkAny(args, 0, "tostring")
	if err != nil {
		return nil, err
	}
	s, err := vm.tostring(val)
	if err != nil {
		return nil, err
	}
	return []Value{String(s)}, nil
}

func baseType(vm *VM, args []Value) ([]Value, error) {
	val, err := checkAny(args, 0, "type")
	if err != nil {
		return nil, err
	}
	return []Value{String(typeName(val))}, nil
}

func baseUnpack(vm *VM, args []Value) ([]Value, error) {
	t, err := checkTable(args, 0, "unpack")
	if err != nil {
		return nil, err
	}
	i, err := optInt(args, 1, "unpack", 1)
	if err != nil {
		return nil, err
	}
	j, err := optInt(args, 2, "unpack", t.Len())
	if err != nil {
		return nil, err
	}
	if i > j {
		return nil, nil /* empty range */
	}
	if j-i >= MAXUNPACK {
		return nil, newRuntimeError("too many results to unpack")
	}
	rets := make([]Value, 0, j-i+1)
	for ; i <= j; i++ {
		rets = append(rets, t.RawGetInt(i))
	}
	return rets, nil
}
