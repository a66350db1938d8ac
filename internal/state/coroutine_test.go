package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uganh16/lua51vm/pkg/lua"
)

func coLib(vm *VM, name string) Value {
	return vm.GetGlobal("coroutine").(*Table).RawGetString(name)
}

/* function() V = coroutine.yield(1, 2); return 9 end */
func yielder(t *testing.T, vm *VM) *Function {
	return load(t, vm, fn(0, []string{
		"GETGLOBAL 0 0",
		"GETTABLE 0 0 K1",
		"LOADK 1 2",
		"LOADK 2 3",
		"CALL 0 3 2",
		"SETGLOBAL 0 4",
		"LOADK 1 5",
		"RETURN 1 2",
	}, "coroutine", "yield", 1.0, 2.0, "V", 9.0))
}

func TestCoroutineResumeYield(t *testing.T) {
	vm, _ := newVM(t, Options{})
	rets, err := vm.Execute(coLib(vm, "create"), yielder(t, vm))
	require.NoError(t, err)
	co := rets[0].(*Coroutine)
	assert.Equal(t, lua.CO_SUSPENDED, co.Status())

	resume := coLib(vm, "resume")
	rets, err = vm.Execute(resume, co)
	require.NoError(t, err)
	assert.Equal(t, []Value{True, Number(1), Number(2)}, rets)
	assert.Equal(t, lua.CO_SUSPENDED, co.Status())

	rets, err = vm.Execute(resume, co, String("x"))
	require.NoError(t, err)
	assert.Equal(t, []Value{True, Number(9)}, rets)
	assert.Equal(t, String("x"), vm.GetGlobal("V"))
	assert.Equal(t, lua.CO_DEAD, co.Status())

	rets, err = vm.Execute(resume, co)
	require.NoError(t, err)
	assert.Equal(t, []Value{False, String("cannot resume dead coroutine")}, rets)
}

func TestCoroutineResumeFromHost(t *testing.T) {
	vm, _ := newVM(t, Options{})
	co := vm.NewCoroutine(yielder(t, vm))
	rets, err := co.Resume()
	require.NoError(t, err)
	assert.Equal(t, []Value{Number(1), Number(2)}, rets)
	rets, err = co.Resume(String("y"))
	require.NoError(t, err)
	assert.Equal(t, []Value{Number(9)}, rets)
	_, err = co.Resume()
	assert.EqualError(t, err, "cannot resume dead coroutine")
}

func TestCoroutineError(t *testing.T) {
	vm, _ := newVM(t, Options{})
	body := load(t, vm, fn(0, []string{
		"GETGLOBAL 0 0",
		"LOADK 1 1",
		"CALL 0 2 1",
		"RETURN 0 1",
	}, "error", "boom"))
	rets, err := vm.Execute(coLib(vm, "create"), body)
	require.NoError(t, err)
	co := rets[0].(*Coroutine)
	rets, err = vm.Execute(coLib(vm, "resume"), co)
	require.NoError(t, err)
	assert.Equal(t, []Value{False, String("boom")}, rets)
	assert.Equal(t, lua.CO_DEAD, co.Status())
}

func TestCoroutineWrap(t *testing.T) {
	vm, _ := newVM(t, Options{})
	rets, err := vm.Execute(coLib(vm, "wrap"), yielder(t, vm))
	require.NoError(t, err)
	gen := rets[0]

	rets, err = vm.Execute(gen)
	require.NoError(t, err)
	assert.Equal(t, []Value{Number(1), Number(2)}, rets)
	rets, err = vm.Execute(gen, String("z"))
	require.NoError(t, err)
	assert.Equal(t, []Value{Number(9)}, rets)
	_, err = vm.Execute(gen)
	assert.EqualError(t, err, "cannot resume dead coroutine")
}

func TestCoroutineStatusAndRunning(t *testing.T) {
	vm, _ := newVM(t, Options{})
	var seen []Value
	vm.SetGlobal("probe", host("probe", func(vm *VM, args []Value) ([]Value, error) {
		running := vm.CurrentCoroutine()
		rets, err := vm.Call(coLib(vm, "status"), running)
		if err != nil {
			return nil, err
		}
		seen = append(seen, rets[0])
		rets, err = vm.Call(coLib(vm, "running"))
		if err != nil {
			return nil, err
		}
		seen = append(seen, Boolean(rets[0] == Value(running)))
		return nil, nil
	}))
	body := load(t, vm, fn(0, []string{
		"GETGLOBAL 0 0",
		"CALL 0 1 1",
		"RETURN 0 1",
	}, "probe"))
	co := vm.NewCoroutine(body)
	_, err := vm.Execute(coLib(vm, "resume"), co)
	require.NoError(t, err)
	assert.Equal(t, []Value{String("running"), True}, seen)

	rets, err := vm.Execute(coLib(vm, "running"))
	require.NoError(t, err)
	assert.Equal(t, []Value{Nil}, rets)
	rets, err = vm.Execute(coLib(vm, "status"), co)
	require.NoError(t, err)
	assert.Equal(t, []Value{String("dead")}, rets)
}

func TestCoroutineYieldOutside(t *testing.T) {
	vm, _ := newVM(t, Options{})
	_, err := vm.Execute(coLib(vm, "yield"), Number(1))
	assert.EqualError(t, err, "attempt to yield across metamethod/C-call boundary (not in coroutine)")
}

func TestCoroutineYieldAcrossPcall(t *testing.T) {
	vm, _ := newVM(t, Options{})
	body := load(t, vm, fn(0, []string{
		"GETGLOBAL 0 0", // pcall
		"GETGLOBAL 1 1",
		"GETTABLE 1 1 K2",
		"CALL 0 2 0",    // pcall(coroutine.yield)
		"RETURN 0 0",
	}, "pcall", "coroutine", "yield"))
	co := vm.NewCoroutine(body)
	rets, err := co.Resume()
	require.NoError(t, err)
	assert.Equal(t, []Value{False, String("attempt to yield across metamethod/C-call boundary")}, rets)
	assert.Equal(t, lua.CO_DEAD, co.Status())
}

func TestCoroutineCreateRequiresLuaFunction(t *testing.T) {
	vm, _ := newVM(t, Options{})
	_, err := vm.Execute(coLib(vm, "create"), coLib(vm, "yield"))
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindUsage, re.Kind)
	assert.Equal(t, "bad argument #1 to 'create' (Lua function expected)", re.Error())
}

func TestCoroutineResumeRunning(t *testing.T) {
	vm, _ := newVM(t, Options{})
	var co *Coroutine
	vm.SetGlobal("again", host("again", func(vm *VM, args []Value) ([]Value, error) {
		return vm.Call(coLib(vm, "resume"), co)
	}))
	co = vm.NewCoroutine(load(t, vm, fn(0, []string{
		"GETGLOBAL 0 0",
		"CALL 0 1 0",
		"RETURN 0 0",
	}, "again")))
	rets, err := co.Resume()
	require.NoError(t, err)
	assert.Equal(t, []Value{False, String("cannot resume non-suspended coroutine")}, rets)
}
