package state

import (
	"errors"

	"github.com/uganh16/lua51vm/pkg/lua"
)

func (vm *VM) openCoroutine() {
	vm.newLib("coroutine", map[string]HostFunc{
		"create":  coCreate,
		"resume":  coResume,
		"running": coRunning,
		"status":  coStatus,
		"wrap":    coWrap,
		"yield":   coYield,
	})
}

func checkCoroutine(args []Value, n int, fname string) (*Coroutine, error) {
	if co, ok := arg(args, n).(*Coroutine); ok {
		return co, nil
	}
	return nil, typeArgError(args, n, fname, "coroutine")
}

func checkLuaFunction(args []Value, n int, fname string) (*Function, error) {
	if fn, ok := arg(args, n).(*Function); ok {
		return fn, nil
	}
	return nil, ArgError(n+1, fname, "Lua function expected")
}

func coCreate(vm *VM, args []Value) ([]Value, error) {
	fn, err := checkLuaFunction(args, 0, "create")
	if err != nil {
		return nil, err
	}
	return []Value{vm.NewCoroutine(fn)}, nil
}

func resumeResults(rets []Value, err error) ([]Value, error) {
	if err != nil {
		var se coStateError
		if errors.As(err, &se) {
			return []Value{False, String(se)}, nil
		}
		re := asRuntimeError(err)
		re.Release()
		return []Value{False, re.Value}, nil
	}
	return append([]Value{True}, rets...), nil
}

func wrapResults(rets []Value, err error) ([]Value, error) {
	if err != nil {
		var se coStateError
		if errors.As(err, &se) {
			return nil, newRuntimeError("%s", string(se))
		}
		re := asRuntimeError(err)
		re.Release()
		return nil, NewError(re.Value, 1) /* propagate error, with the position of the caller */
	}
	return rets, nil
}

func coResume(vm *VM, args []Value) ([]Value, error) {
	co, err := checkCoroutine(args, 0, "resume")
	if err != nil {
		return nil, err
	}
	rets, err := co.resume(args[1:])
	return vm.coroutineResult(co, rets, err, resumeResults)
}

func coWrap(vm *VM, args []Value) ([]Value, error) {
	fn, err := checkLuaFunction(args, 0, "wrap")
	if err != nil {
		return nil, err
	}
	co := vm.NewCoroutine(fn)
	return []Value{NewHostFunction("wrap", func(vm *VM, args []Value) ([]Value, error) {
		rets, err := co.resume(args)
		return vm.coroutineResult(co, rets, err, wrapResults)
	})}, nil
}

func coYield(vm *VM, args []Value) ([]Value, error) {
	co := vm.currentCoroutine()
	if co == nil {
		return nil, newRuntimeError("attempt to yield across metamethod/C-call boundary (not in coroutine)")
	}
	if err := co.yield(args); err != nil {
		return nil, err
	}
	return nil, nil
}

func coStatus(vm *VM, args []Value) ([]Value, error) {
	co, err := checkCoroutine(args, 0, "status")
	if err != nil {
		return nil, err
	}
	switch co.status {
	case lua.CO_SUSPENDED:
		return []Value{String("suspended")}, nil
	case lua.CO_DEAD:
		return []Value{String("dead")}, nil
	}
	if co == vm.currentCoroutine() {
		return []Value{String("running")}, nil
	}
	return []Value{String("normal")}, nil /* it resumed another coroutine */
}

func coRunning(vm *VM, args []Value) ([]Value, error) {
	if co := vm.currentCoroutine(); co != nil {
		return []Value{co}, nil
	}
	return []Value{Nil}, nil
}
