package state

import (
	"fmt"

	"github.com/uganh16/lua51vm/internal/number"
	"github.com/uganh16/lua51vm/pkg/lua"
)

/**
 * Value is the tagged Lua value. The concrete types are nilValue (Nil),
 * Boolean, Number, String, *Table, *Function, *Coroutine and
 * *HostFunction.
 */
type Value interface {
	Type() lua.Type
	String() string
}

type nilValue struct{}

var Nil Value = nilValue{}

func (nilValue) Type() lua.Type { return lua.TNIL }
func (nilValue) String() string { return "nil" }

type Boolean bool

const (
	True  = Boolean(true)
	False = Boolean(false)
)

func (Boolean) Type() lua.Type { return lua.TBOOLEAN }

func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}

type Number float64

func (Number) Type() lua.Type { return lua.TNUMBER }

func (n Number) String() string {
	return number.FormatFloat(float64(n))
}

type String string

func (String) Type() lua.Type { return lua.TSTRING }

func (s String) String() string {
	return string(s)
}

/* HostFunc is a function implemented by the embedding program. */
type HostFunc func(vm *VM, args []Value) ([]Value, error)

type HostFunction struct {
	name string
	fn   HostFunc
}

func NewHostFunction(name string, fn HostFunc) *HostFunction {
	return &HostFunction{name: name, fn: fn}
}

func (*HostFunction) Type() lua.Type { return lua.TFUNCTION }

func (h *HostFunction) String() string {
	return fmt.Sprintf("function: builtin: %p", h)
}

func (h *HostFunction) Name() string {
	return h.name
}

func isNil(val Value) bool {
	return val == nil || val == Nil
}

func typeOf(val Value) lua.Type {
	if val == nil {
		return lua.TNIL
	}
	return val.Type()
}

func typeName(val Value) string {
	return typeOf(val).String()
}

func isFunction(val Value) bool {
	switch val.(type) {
	case *Function, *HostFunction:
		return true
	}
	return false
}

func toBoolean(val Value) bool {
	switch val := val.(type) {
	case nil, nilValue:
		return false
	case Boolean:
		return bool(val)
	default:
		return true
	}
}

func toNumber(val Value) (lua.Number, bool) {
	switch val := val.(type) {
	case Number:
		return lua.Number(val), true
	case String:
		return number.ParseFloat(string(val))
	default:
		return 0, false
	}
}

func toString(val Value) (string, bool) {
	switch val := val.(type) {
	case String:
		return string(val), true
	case Number:
		return val.String(), true
	default:
		return "", false
	}
}

/* primitive equality, without metamethods */
func rawEqual(a, b Value) bool {
	if a == nil {
		a = Nil
	}
	if b == nil {
		b = Nil
	}
	return a == b
}

/* ValueOf converts Go values to Lua values */
func ValueOf(x any) Value {
	switch x := x.(type) {
	case nil:
		return Nil
	case Value:
		return x
	case bool:
		return Boolean(x)
	case int:
		return Number(x)
	case int64:
		return Number(x)
	case float64:
		return Number(x)
	case string:
		return String(x)
	case HostFunc:
		return NewHostFunction("?", x)
	case func(*VM, []Value) ([]Value, error):
		return NewHostFunction("?", x)
	}
	panic(fmt.Sprintf("cannot convert %T to a Lua value", x))
}

func constantValue(k any) Value {
	switch k := k.(type) {
	case nil:
		return Nil
	case bool:
		return Boolean(k)
	case float64:
		return Number(k)
	case string:
		return String(k)
	}
	panic(fmt.Sprintf("invalid constant %T", k))
}
