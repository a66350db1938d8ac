package state

import (
	"fmt"

	"github.com/uganh16/lua51vm/internal/number"
	"github.com/uganh16/lua51vm/pkg/lua"
)

type arithOp int

/* same order as OP_ADD .. OP_UNM */
const (
	opAdd arithOp = iota
	opSub
	opMul
	opDiv
	opMod
	opPow
	opUnm
)

var arithEvents = [...]string{"__add", "__sub", "__mul", "__div", "__mod", "__pow", "__unm"}

func (vm *VM) metatable(val Value) *Table {
	if t, ok := val.(*Table); ok {
		return t.metatable
	}
	if tp := typeOf(val); tp >= 0 && tp < lua.NUMTAGS {
		return vm.typeMT[tp]
	}
	return nil
}

func (vm *VM) metafield(val Value, event string) Value {
	if mt := vm.metatable(val); mt != nil {
		return mt.RawGetString(event)
	}
	return Nil
}

/* callTM calls a metamethod and returns its first result */
func (vm *VM) callTM(f Value, args ...Value) (Value, error) {
	rets, err := vm.callNested(f, args, true)
	if err != nil {
		return nil, err
	}
	if len(rets) == 0 {
		return Nil, nil
	}
	return rets[0], nil
}

func (vm *VM) binaryTM(a, b Value, event string) Value {
	if f := vm.metafield(a, event); !isNil(f) { /* try first operand */
		return f
	}
	return vm.metafield(b, event) /* try second operand */
}

func arith(op arithOp, a, b lua.Number) lua.Number {
	switch op {
	case opAdd:
		return a + b
	case opSub:
		return a - b
	case opMul:
		return a * b
	case opDiv:
		return a / b
	case opMod:
		return number.Mod(a, b)
	case opPow:
		return number.Pow(a, b)
	case opUnm:
		return -a
	}
	panic(fmt.Sprintf("invalid arith op: %d", op))
}

func (vm *VM) arith(op arithOp, a, b Value) (Value, error) {
	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			return Number(arith(op, x, y)), nil
		}
	}
	/* could not perform raw operation; try metamethod */
	if tm := vm.binaryTM(a, b, arithEvents[op]); !isNil(tm) {
		return vm.callTM(tm, a, b)
	}
	if _, ok := toNumber(a); ok {
		a = b /* first operand is wrong? */
	}
	return nil, typeError(a, "perform arithmetic on")
}

/* getCompTM returns the handler shared by both metatables, if any */
func getCompTM(mt1, mt2 *Table, event string) Value {
	if mt1 == nil {
		return Nil
	}
	tm1 := mt1.RawGetString(event)
	if isNil(tm1) {
		return Nil /* no metamethod */
	}
	if mt1 == mt2 {
		return tm1 /* same metatables => same metamethods */
	}
	if mt2 == nil {
		return Nil
	}
	tm2 := mt2.RawGetString(event)
	if isNil(tm2) || !rawEqual(tm1, tm2) {
		return Nil
	}
	return tm1
}

func (vm *VM) equal(a, b Value) (bool, error) {
	if typeOf(a) != typeOf(b) {
		return false, nil
	}
	ta, ok := a.(*Table)
	if !ok || rawEqual(a, b) {
		return rawEqual(a, b), nil
	}
	tb := b.(*Table)
	tm := getCompTM(ta.metatable, tb.metatable, "__eq")
	if isNil(tm) {
		return false, nil
	}
	res, err := vm.callTM(tm, a, b)
	if err != nil {
		return false, err
	}
	return toBoolean(res), nil
}

/* callOrderTM reports found == false when the operands do not share a handler */
func (vm *VM) callOrderTM(a, b Value, event string) (res, found bool, err error) {
	tm1 := vm.metafield(a, event)
	if isNil(tm1) {
		return false, false, nil /* no metamethod */
	}
	tm2 := vm.metafield(b, event)
	if !rawEqual(tm1, tm2) {
		return false, false, nil /* different metamethods */
	}
	v, err := vm.callTM(tm1, a, b)
	if err != nil {
		return false, true, err
	}
	return toBoolean(v), true, nil
}

func (vm *VM) lessThan(a, b Value) (bool, error) {
	if typeOf(a) != typeOf(b) {
		return false, orderError(a, b)
	}
	switch x := a.(type) {
	case Number:
		return x < b.(Number), nil
	case String:
		return x < b.(String), nil
	}
	if res, found, err := vm.callOrderTM(a, b, "__lt"); found || err != nil {
		return res, err
	}
	return false, orderError(a, b)
}

func (vm *VM) lessEqual(a, b Value) (bool, error) {
	if typeOf(a) != typeOf(b) {
		return false, orderError(a, b)
	}
	switch x := a.(type) {
	case Number:
		return x <= b.(Number), nil
	case String:
		return x <= b.(String), nil
	}
	if res, found, err := vm.callOrderTM(a, b, "__le"); found || err != nil { /* first try 'le' */
		return res, err
	}
	if res, found, err := vm.callOrderTM(b, a, "__lt"); found || err != nil { /* else try 'lt' */
		return !res, err
	}
	return false, orderError(a, b)
}

/* concat folds the operands right to left */
func (vm *VM) concat(vals []Value) (Value, error) {
	if len(vals) == 0 {
		return String(""), nil
	}
	acc := vals[len(vals)-1]
	for i := len(vals) - 2; i >= 0; i-- {
		a := vals[i]
		if sa, ok := toString(a); ok {
			if sb, ok := toString(acc); ok {
				acc = String(sa + sb)
				continue
			}
		}
		tm := vm.binaryTM(a, acc, "__concat")
		if isNil(tm) {
			if _, ok := toString(a); ok {
				a = acc
			}
			return nil, typeError(a, "concatenate")
		}
		res, err := vm.callTM(tm, a, acc)
		if err != nil {
			return nil, err
		}
		acc = res
	}
	return acc, nil
}

func (vm *VM) length(val Value) (Value, error) {
	switch v := val.(type) {
	case String:
		return Number(len(v)), nil
	case *Table:
		return Number(v.Len()), nil
	}
	if tm := vm.metafield(val, "__len"); !isNil(tm) {
		return vm.callTM(tm, val)
	}
	return nil, typeError(val, "get length of")
}

func (vm *VM) index(t, k Value) (Value, error) {
	for loop := 0; loop < lua.MAXTAGLOOP; loop++ {
		var tm Value
		if tbl, ok := t.(*Table); ok {
			if v := tbl.RawGet(k); !isNil(v) {
				return v, nil
			}
			if tbl.metatable == nil {
				return Nil, nil
			}
			if tm = tbl.metatable.RawGetString("__index"); isNil(tm) {
				return Nil, nil
			}
		} else if tm = vm.metafield(t, "__index"); isNil(tm) {
			return nil, typeError(t, "index")
		}
		if isFunction(tm) {
			return vm.callTM(tm, t, k)
		}
		t = tm /* else repeat with 'tm' */
	}
	return nil, newRuntimeError("loop in gettable")
}

func (vm *VM) setIndex(t, k, v Value) error {
	for loop := 0; loop < lua.MAXTAGLOOP; loop++ {
		var tm Value
		if tbl, ok := t.(*Table); ok {
			if !isNil(tbl.RawGet(k)) || tbl.metatable == nil {
				return vm.rawSet(tbl, k, v)
			}
			if tm = tbl.metatable.RawGetString("__newindex"); isNil(tm) {
				return vm.rawSet(tbl, k, v)
			}
		} else if tm = vm.metafield(t, "__newindex"); isNil(tm) {
			return typeError(t, "index")
		}
		if isFunction(tm) {
			_, err := vm.callNested(tm, []Value{t, k, v}, true)
			return err
		}
		t = tm /* else repeat with 'tm' */
	}
	return newRuntimeError("loop in settable")
}

func (vm *VM) rawSet(t *Table, k, v Value) error {
	if err := t.RawSet(k, v); err != nil {
		return newRuntimeError("%s", err.Error())
	}
	return nil
}

/* tostring honouring __tostring */
func (vm *VM) tostring(val Value) (string, error) {
	if tm := vm.metafield(val, "__tostring"); !isNil(tm) {
		res, err := vm.callTM(tm, val)
		if err != nil {
			return "", err
		}
		s, ok := res.(String)
		if !ok {
			if n, ok := res.(Number); ok {
				return n.String(), nil
			}
			return "", newRuntimeError("'__tostring' must return a string")
		}
		return string(s), nil
	}
	return val.String(), nil
}

func typeError(val Value, op string) error {
	return newRuntimeError("attempt to %s a %s value", op, typeName(val))
}

func orderError(a, b Value) error {
	t1, t2 := typeName(a), typeName(b)
	if t1 == t2 {
		return newRuntimeError("attempt to compare two %s values", t1)
	}
	return newRuntimeError("attempt to compare %s with %s", t1, t2)
}
