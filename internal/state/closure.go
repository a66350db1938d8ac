package state

import (
	"github.com/uganh16/lua51vm/internal/bytecode"
	"github.com/uganh16/lua51vm/pkg/lua"
)

/**
 * maximum number of upvalues in a closure
 */
const MAXUPVAL = 255

/* Closure is one activation of a Lua function. */
type Closure struct {
	vm    *VM
	fn    *Function
	proto *Proto
	code  []bytecode.Instruction

	regs    *registers
	pc      int
	top     int
	varargs []Value

	openUpval *Upvalue /* list of open upvalues, by decreasing index */

	results  []Value
	returned bool

	/* set by a TAILCALL of a Lua function, which the caller runs in place of this activation */
	tailFn   *Function
	tailArgs []Value

	paused   bool /* parked by a debugger before executing pc */
	skipHook bool
	disposed bool
}

func (cl *Closure) Function() *Function {
	return cl.fn
}

func (cl *Closure) PC() int {
	return cl.pc
}

func (cl *Closure) Line() int {
	return cl.proto.bc.Line(cl.pc)
}

func (cl *Closure) Register(n int) Value {
	return cl.regs.get(n)
}

func (cl *Closure) Disposed() bool {
	return cl.disposed
}

func (cl *Closure) execute(args []Value) ([]Value, error) {
	p := cl.proto.bc
	nParams := p.ParamCount
	for i := 0; i < nParams; i++ {
		if i < len(args) {
			cl.regs.set(i, args[i])
		} else {
			cl.regs.set(i, Nil)
		}
	}
	if p.IsVararg && len(args) > nParams {
		cl.varargs = make([]Value, len(args)-nParams)
		copy(cl.varargs, args[nParams:])
		for _, v := range cl.varargs {
			cl.vm.pool.Retain(v)
		}
	}
	if p.NeedsArg {
		/* compat: the vararg table 'arg' */
		arg := cl.vm.pool.NewTable(len(cl.varargs), 1)
		for i, v := range cl.varargs {
			arg.RawSetInt(i+1, v)
		}
		arg.RawSetString("n", Number(len(cl.varargs)))
		cl.regs.set(nParams, arg)
	}
	cl.top = nParams
	return cl.run()
}

func (cl *Closure) resume() ([]Value, error) {
	rets, err := cl.run()
	if err == nil && cl.tailFn != nil {
		return cl.tailFn.call(cl.tailArgs)
	}
	return rets, err
}

func (cl *Closure) run() ([]Value, error) {
	vm := cl.vm
	if err := cl.enter(); err != nil {
		return nil, cl.fail(err)
	}
	for !cl.returned && cl.pc < len(cl.code) {
		if dbg := vm.opts.Debugger; dbg != nil {
			if cl.skipHook {
				cl.skipHook = false
			} else if vm.suspendable() && dbg.BeforeInstruction(cl, cl.pc) {
				cl.paused = true
				vm.pause()
				vm.resumeStack.push(cl)
				return nil, nil
			}
		}
		i := cl.code[cl.pc]
		cl.pc++
		if err := cl.dispatch(i); err != nil {
			return nil, cl.fail(err)
		}
		if cl.returned {
			break
		}
		if cl.park() {
			return nil, nil
		}
	}
	return cl.finish(), nil
}

/* enter handles re-entry of a parked activation */
func (cl *Closure) enter() error {
	vm := cl.vm
	if cl.paused {
		cl.paused = false
		cl.skipHook = true
		if vm.status == lua.RESUMING && vm.resumeStack.len() == 0 {
			vm.setStatus(lua.RUNNING)
			_, err := vm.takeResume()
			return err
		}
		return nil
	}
	if vm.status == lua.RESUMING {
		if vm.resumeStack.len() > 0 {
			cl.pc-- /* re-execute the CALL that pops the next frame */
			cl.skipHook = true
			return nil
		}
		vm.setStatus(lua.RUNNING)
		return cl.deliver(vm.takeResume())
	}
	if co := vm.currentCoroutine(); co != nil && co.status == lua.CO_RESUMING {
		if co.resumeStack.len() > 0 {
			cl.pc--
			cl.skipHook = true
			return nil
		}
		co.status = lua.CO_RUNNING
		vals := co.resumeVars
		co.resumeVars = nil
		return cl.deliver(vals, nil)
	}
	return nil
}

/* deliver stores resume values as the results of the suspended CALL */
func (cl *Closure) deliver(vals []Value, err error) error {
	if err != nil {
		return err
	}
	if cl.pc == 0 {
		return nil
	}
	switch i := cl.code[cl.pc-1]; i.Op {
	case bytecode.OP_CALL:
		cl.storeResults(i.A, i.C, vals)
	case bytecode.OP_TAILCALL:
		cl.storeResults(i.A, 0, vals)
		cl.doReturn(i.A, len(vals))
	}
	return nil
}

/* park pushes the activation onto the stack of the unwinding context */
func (cl *Closure) park() bool {
	vm := cl.vm
	if co := vm.currentCoroutine(); co != nil && co.status == lua.CO_SUSPENDING {
		co.resumeStack.push(cl)
		return true
	}
	if vm.status == lua.SUSPENDING {
		vm.resumeStack.push(cl)
		return true
	}
	return false
}

func (cl *Closure) finish() []Value {
	rets := cl.results
	cl.results = nil
	cl.dispose(true)
	return rets
}

func (cl *Closure) fail(err error) error {
	re := asRuntimeError(err)
	re.addTrace(cl, cl.pc-1)
	cl.dispose(true)
	return re
}

/**
 * dispose releases the register file. An activation that still owns open
 * upvalues is only disposed when forced, closing them first.
 */
func (cl *Closure) dispose(force bool) bool {
	if cl.disposed {
		return true
	}
	if cl.openUpval != nil {
		if !force {
			log.Warningf("deferring disposal of %s: open upvalues", cl.proto)
			return false
		}
		cl.closeUpvalues(0)
	}
	pool := cl.vm.pool
	for _, v := range cl.varargs {
		pool.Release(v)
	}
	cl.varargs = nil
	cl.regs.release()
	cl.proto.Release()
	cl.disposed = true
	return true
}

func (cl *Closure) storeResults(a, c int, rets []Value) {
	if c == 0 {
		for i, v := range rets {
			cl.regs.set(a+i, v)
		}
		cl.top = a + len(rets)
		return
	}
	for i := 0; i < c-1; i++ {
		if i < len(rets) {
			cl.regs.set(a+i, rets[i])
		} else {
			cl.regs.set(a+i, Nil)
		}
	}
}

func (cl *Closure) doReturn(a, n int) {
	cl.results = cl.regs.slice(a, n)
	cl.closeUpvalues(0)
	cl.returned = true
}

func (cl *Closure) findUpvalue(idx int) *Upvalue {
	pp := &cl.openUpval
	for *pp != nil && (*pp).index >= idx {
		if p := *pp; p.index == idx { /* found a corresponding upvalue? */
			return p
		} else {
			pp = &p.next
		}
	}
	/* not found: create a new upvalue */
	uv := &Upvalue{
		regs:  cl.regs, /* current value lives in the register file */
		index: idx,
		next:  *pp, /* link it to list of open upvalues */
	}
	*pp = uv
	return uv
}

func (cl *Closure) closeUpvalues(level int) {
	for cl.openUpval != nil && cl.openUpval.index >= level {
		uv := cl.openUpval
		cl.openUpval = uv.next
		uv.close(cl.vm.pool)
	}
}

func (cl *Closure) rk(x int) Value {
	if bytecode.IsK(x) {
		return cl.proto.constants[bytecode.IndexK(x)]
	}
	return cl.regs.get(x)
}

func (cl *Closure) kst(idx int) Value {
	return cl.proto.constants[idx]
}
