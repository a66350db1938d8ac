package state

import (
	"fmt"

	"github.com/uganh16/lua51vm/pkg/lua"
)

/* coStateError is the result of resuming a coroutine that cannot run */
type coStateError string

func (e coStateError) Error() string {
	return string(e)
}

const (
	errDeadCoroutine    = coStateError("cannot resume dead coroutine")
	errNonSuspendedCoro = coStateError("cannot resume non-suspended coroutine")
)

type Coroutine struct {
	vm      *VM
	fn      *Function
	status  lua.CoStatus
	started bool

	resumeStack frameStack
	resumeVars  []Value /* delivered to the innermost parked CALL */
	yieldVars   []Value
}

func (vm *VM) NewCoroutine(fn *Function) *Coroutine {
	return &Coroutine{vm: vm, fn: fn, status: lua.CO_SUSPENDED}
}

func (*Coroutine) Type() lua.Type { return lua.TTHREAD }

func (co *Coroutine) String() string {
	return fmt.Sprintf("thread: %p", co)
}

func (co *Coroutine) Status() lua.CoStatus {
	return co.status
}

/**
 * Resume runs the coroutine until it yields, returns or fails. It returns
 * the yielded or returned values. While the whole VM is suspending the
 * coroutine stays running and no values are returned.
 */
func (co *Coroutine) Resume(args ...Value) ([]Value, error) {
	return co.resume(args)
}

func (co *Coroutine) resume(args []Value) ([]Value, error) {
	vm := co.vm
	switch co.status {
	case lua.CO_SUSPENDED:
	case lua.CO_DEAD:
		return nil, errDeadCoroutine
	default:
		return nil, errNonSuspendedCoro
	}
	vm.pushThread(co)
	var rets []Value
	var err error
	if !co.started {
		co.started = true
		co.status = lua.CO_RUNNING
		rets, err = co.fn.call(args)
	} else {
		co.status = lua.CO_RESUMING
		co.resumeVars = args
		vm.depth++
		rets, err = co.resumeStack.pop().resume()
		vm.depth--
	}
	vm.popThread()
	return co.settle(rets, err)
}

func (co *Coroutine) settle(rets []Value, err error) ([]Value, error) {
	if err != nil {
		co.status = lua.CO_DEAD
		co.resumeStack = frameStack{}
		return nil, err
	}
	if co.status == lua.CO_SUSPENDING {
		co.status = lua.CO_SUSPENDED
		vals := co.yieldVars
		co.yieldVars = nil
		return vals, nil
	}
	if co.vm.status == lua.SUSPENDING {
		return nil, nil /* parked on the VM resume stack */
	}
	co.status = lua.CO_DEAD
	return rets, nil
}

func (co *Coroutine) yield(vals []Value) error {
	if co.vm.thread().nCcalls > 0 {
		return newRuntimeError("attempt to yield across metamethod/C-call boundary")
	}
	co.yieldVars = append([]Value(nil), vals...)
	co.status = lua.CO_SUSPENDING
	return nil
}

/* coFrame parks a coroutine caught by a VM suspension */
type coFrame struct {
	co     *Coroutine
	finish func([]Value, error) ([]Value, error)
}

func (f *coFrame) resume() ([]Value, error) {
	co := f.co
	vm := co.vm
	vm.pushThread(co)
	rets, err := vm.resumeStack.pop().resume()
	vm.popThread()
	rets, err = co.settle(rets, err)
	if err == nil && vm.status == lua.SUSPENDING {
		vm.resumeStack.push(f)
		return nil, nil
	}
	return f.finish(rets, err)
}

/* coroutineResult shapes a resume outcome, parking it when the VM suspends */
func (vm *VM) coroutineResult(co *Coroutine, rets []Value, err error, finish func([]Value, error) ([]Value, error)) ([]Value, error) {
	if err == nil && vm.status == lua.SUSPENDING {
		vm.resumeStack.push(&coFrame{co: co, finish: finish})
		return nil, nil
	}
	return finish(rets, err)
}
