package state

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/uganh16/lua51vm/pkg/lua"
)

var ErrNotRunning = errors.New("vm is not running")

func (vm *VM) setStatus(status lua.Status) {
	if vm.status != status {
		log.Debugf("vm %s: %s -> %s", vm.id, vm.status, status)
		vm.status = status
	}
}

func (vm *VM) thread() *thread {
	return vm.threads[len(vm.threads)-1]
}

func (vm *VM) pushThread(co *Coroutine) {
	vm.threads = append(vm.threads, &thread{co: co})
}

func (vm *VM) popThread() {
	vm.threads[len(vm.threads)-1] = nil
	vm.threads = vm.threads[:len(vm.threads)-1]
}

/* CurrentCoroutine is the running coroutine, nil on the main thread */
func (vm *VM) CurrentCoroutine() *Coroutine {
	return vm.currentCoroutine()
}

func (vm *VM) currentCoroutine() *Coroutine {
	return vm.thread().co
}

/* suspendable reports whether no host boundary separates the host from Lua */
func (vm *VM) suspendable() bool {
	for _, th := range vm.threads {
		if th.nCcalls > 0 {
			return false
		}
	}
	return true
}

func (vm *VM) unwinding() bool {
	if vm.status == lua.SUSPENDING {
		return true
	}
	co := vm.currentCoroutine()
	return co != nil && co.status == lua.CO_SUSPENDING
}

func (vm *VM) resumingStack() *frameStack {
	if vm.status == lua.RESUMING {
		return &vm.resumeStack
	}
	if co := vm.currentCoroutine(); co != nil && co.status == lua.CO_RESUMING {
		return &co.resumeStack
	}
	return nil
}

func (vm *VM) takeResume() ([]Value, error) {
	vals, err := vm.resumeVars, vm.resumeErr
	vm.resumeVars, vm.resumeErr = nil, nil
	return vals, err
}

/* safePoint collects unreferenced tables when nothing holds uncounted values */
func (vm *VM) safePoint() {
	if vm.status != lua.RUNNING {
		return
	}
	for _, th := range vm.threads {
		if th.nPins > 0 {
			return
		}
	}
	if vm.pool.Pending() > 0 {
		if n := vm.pool.Sweep(); n > 0 {
			log.Debugf("vm %s: collected %d tables", vm.id, n)
		}
	}
}

func (vm *VM) call(fn Value, args []Value) ([]Value, error) {
	switch f := fn.(type) {
	case *Function:
		return f.call(args)
	case *HostFunction:
		if vm.depth >= vm.opts.MaxCallDepth {
			return nil, newRuntimeError("stack overflow")
		}
		vm.depth++
		defer func() { vm.depth-- }()
		return vm.callHost(f, args)
	}
	tm := vm.metafield(fn, "__call")
	if !isFunction(tm) {
		return nil, typeError(fn, "call")
	}
	return vm.call(tm, append([]Value{fn}, args...))
}

func (vm *VM) callHost(h *HostFunction, args []Value) (rets []Value, err error) {
	vm.hostDepth++
	defer func() {
		vm.hostDepth--
		if r := recover(); r != nil {
			if cv, ok := r.(*ContractViolation); ok {
				panic(cv)
			}
			if vm.pendingSuspend {
				vm.pendingSuspend, vm.syncResume = false, false
				vm.setStatus(lua.RUNNING)
			}
			he := newRuntimeError("%s: %v", h.name, r)
			he.Kind = KindHostCall
			he.HostStack = debug.Stack()
			if e, ok := r.(error); ok {
				he.Cause = e
			}
			log.Errorf("vm %s: panic in host function %s: %v", vm.id, h.name, r)
			rets, err = nil, he
		}
	}()
	rets, err = h.fn(vm, args)
	if vm.pendingSuspend {
		vm.pendingSuspend = false
		if vm.syncResume {
			/* resumed before the host function returned */
			vm.syncResume = false
			vm.setStatus(lua.RUNNING)
			return vm.takeResume()
		}
		if err != nil {
			vm.setStatus(lua.RUNNING)
		} else {
			return nil, nil
		}
	}
	if err != nil {
		return nil, asRuntimeError(err)
	}
	return rets, nil
}

/* callNested calls fn behind a host boundary: it cannot yield or suspend. */
func (vm *VM) callNested(fn Value, args []Value, pin bool) ([]Value, error) {
	th := vm.thread()
	th.nCcalls++
	if pin {
		th.nPins++
	}
	rets, err := vm.call(fn, args)
	th.nCcalls--
	if pin {
		th.nPins--
	}
	return rets, err
}

/**
 * Call invokes fn from host code. Inside a running host function the call
 * is nested and may not suspend; otherwise it is a top-level execution.
 */
func (vm *VM) Call(fn Value, args ...Value) ([]Value, error) {
	if vm.active == 0 {
		return vm.Execute(fn, args...)
	}
	return vm.callNested(fn, args, true)
}

/**
 * Execute runs fn as a top-level execution. When the execution suspends it
 * returns no values and Status reports SUSPENDED; the results are then
 * returned by the Resume call that completes it.
 */
func (vm *VM) Execute(fn Value, args ...Value) ([]Value, error) {
	if vm.active > 0 {
		return vm.callNested(fn, args, true)
	}
	if vm.status != lua.RUNNING {
		return nil, fmt.Errorf("%w: %s", ErrNotRunning, vm.status)
	}
	return vm.enter(func() ([]Value, error) {
		return vm.call(fn, args)
	}, nil)
}

func (vm *VM) enter(body func() ([]Value, error), done func([]Value, error)) ([]Value, error) {
	vm.active++
	rets, err := body()
	vm.active--
	vm.Tick()
	if vm.status == lua.SUSPENDED {
		vm.onComplete = done
		return nil, nil
	}
	for _, v := range rets {
		vm.pool.Escape(v)
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		vm.pool.Escape(re.Value)
		log.Debugf("vm %s: execution failed: %s", vm.id, re)
	}
	vm.pool.Sweep()
	if done != nil {
		done(rets, err)
	}
	vm.flush()
	return rets, err
}

/* Tick moves a suspending VM that was not resumed synchronously to SUSPENDED */
func (vm *VM) Tick() {
	if vm.status == lua.SUSPENDING && !vm.pendingSuspend {
		vm.setStatus(lua.SUSPENDED)
	}
}

/**
 * Suspend is called by a host function to pause the VM once it returns.
 * Execution continues from the suspended call when Resume is called.
 */
func (vm *VM) Suspend() error {
	if vm.status != lua.RUNNING {
		panic(&ContractViolation{Msg: "attempt to suspend a non-running VM"})
	}
	if !vm.suspendable() {
		return newRuntimeError("attempt to yield across metamethod/C-call boundary")
	}
	vm.pendingSuspend = vm.hostDepth > 0
	vm.setStatus(lua.SUSPENDING)
	return nil
}

/* pause suspends before the current instruction, on behalf of a debugger */
func (vm *VM) pause() {
	log.Debugf("vm %s: paused", vm.id)
	vm.setStatus(lua.SUSPENDING)
}

/* Resume continues a suspended VM; values become the results of the suspended call. */
func (vm *VM) Resume(values ...Value) ([]Value, error) {
	return vm.resume(values, nil, nil)
}

/* ResumeError continues a suspended VM by raising err at the suspended call. */
func (vm *VM) ResumeError(err error) ([]Value, error) {
	return vm.resume(nil, err, nil)
}

/**
 * ResumeCall continues a suspended VM by first calling fn, innermost of all
 * suspended frames. The results, after then when given, become the results
 * of the suspended call.
 */
func (vm *VM) ResumeCall(fn Value, args []Value, then func([]Value) ([]Value, error)) ([]Value, error) {
	for _, a := range args {
		vm.pool.Retain(a)
	}
	return vm.resume(nil, nil, &hostFrame{vm: vm, fn: fn, args: args, then: then})
}

func (vm *VM) resume(vals []Value, rerr error, hf *hostFrame) ([]Value, error) {
	switch vm.status {
	case lua.SUSPENDING, lua.SUSPENDED:
	default:
		panic(&ContractViolation{Msg: "attempt to resume a non-suspended VM"})
	}
	if vm.pendingSuspend {
		/* still inside the suspending host function */
		if hf != nil {
			vm.pendingSuspend = false
			vm.setStatus(lua.RUNNING)
			vals, rerr = hf.run(true)
			vm.pendingSuspend = true
		}
		vm.syncResume = true
		vm.resumeVars, vm.resumeErr = vals, rerr
		vm.setStatus(lua.RESUMING)
		return nil, nil
	}
	vm.resumeVars, vm.resumeErr = vals, rerr
	vm.setStatus(lua.RESUMING)
	if hf != nil {
		vm.resumeStack.pushBottom(hf)
	}
	done := vm.onComplete
	vm.onComplete = nil
	return vm.enter(func() ([]Value, error) {
		f := vm.resumeStack.pop()
		if f == nil {
			/* the suspending host function was called by the host itself */
			vm.setStatus(lua.RUNNING)
			return vm.takeResume()
		}
		vm.depth++
		defer func() { vm.depth-- }()
		return f.resume()
	}, done)
}

/* hostFrame is a host continuation parked on the VM resume stack */
type hostFrame struct {
	vm      *VM
	fn      Value
	args    []Value
	then    func([]Value) ([]Value, error)
	started bool
}

func (f *hostFrame) run(nested bool) ([]Value, error) {
	vm := f.vm
	var rets []Value
	var err error
	if nested {
		rets, err = vm.callNested(f.fn, f.args, true)
	} else {
		rets, err = vm.call(f.fn, f.args)
	}
	for _, a := range f.args {
		vm.pool.Release(a)
	}
	f.args = nil
	if err != nil || vm.unwinding() {
		return nil, err
	}
	if f.then != nil {
		return f.then(rets)
	}
	return rets, nil
}

func (f *hostFrame) resume() ([]Value, error) {
	vm := f.vm
	var rets []Value
	var err error
	if !f.started {
		f.started = true
		if vm.status == lua.RESUMING && vm.resumeStack.len() == 0 {
			vm.takeResume()
			vm.setStatus(lua.RUNNING)
		}
		rets, err = f.run(false)
	} else {
		rets, err = vm.resumeStack.pop().resume()
		if err == nil && !vm.unwinding() && f.then != nil {
			rets, err = f.then(rets)
		}
	}
	if err == nil && vm.unwinding() {
		vm.resumeStack.push(f)
		return nil, nil
	}
	return rets, err
}

/**
 * Schedule queues a top-level call. Queued calls run in order whenever the
 * VM is running and idle; done receives the outcome.
 */
func (vm *VM) Schedule(fn Value, args []Value, done func([]Value, error)) {
	for _, a := range args {
		vm.pool.Retain(a)
	}
	vm.queue = append(vm.queue, queuedCall{fn: fn, args: args, done: done})
	vm.flush()
}

/* Queued is the number of calls waiting for the VM */
func (vm *VM) Queued() int {
	return len(vm.queue)
}

func (vm *VM) flush() {
	if vm.flushing {
		return
	}
	vm.flushing = true
	defer func() { vm.flushing = false }()
	for vm.status == lua.RUNNING && vm.active == 0 && len(vm.queue) > 0 {
		q := vm.queue[0]
		vm.queue[0] = queuedCall{}
		vm.queue = vm.queue[1:]
		vm.enter(func() ([]Value, error) {
			rets, err := vm.call(q.fn, q.args)
			for _, a := range q.args {
				vm.pool.Release(a)
			}
			return rets, err
		}, q.done)
	}
}
