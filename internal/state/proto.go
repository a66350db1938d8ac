package state

import (
	"fmt"

	"github.com/uganh16/lua51vm/internal/bytecode"
	"github.com/uganh16/lua51vm/pkg/lua"
)

/**
 * Proto is the runtime form of a function prototype. Activations, loaded
 * chunks and stack trace entries hold counted references to it; compiled
 * code attached by a Compiler is dropped when the last one goes away.
 */
type Proto struct {
	bc        *bytecode.Prototype
	constants []Value
	protos    []*Proto

	refs     int
	calls    int
	compiled *HostFunction
}

func newProto(p *bytecode.Prototype) *Proto {
	proto := &Proto{bc: p}
	if n := len(p.Constants); n > 0 {
		proto.constants = make([]Value, n)
		for i, k := range p.Constants {
			proto.constants[i] = constantValue(k)
		}
	}
	if n := len(p.Protos); n > 0 {
		proto.protos = make([]*Proto, n)
		for i, child := range p.Protos {
			proto.protos[i] = newProto(child)
		}
	}
	return proto
}

func (p *Proto) Prototype() *bytecode.Prototype {
	return p.bc
}

func (p *Proto) RefCount() int {
	return p.refs
}

func (p *Proto) Compiled() bool {
	return p.compiled != nil
}

func (p *Proto) Retain() {
	p.refs++
}

func (p *Proto) Release() {
	if p.refs > 0 {
		p.refs--
		if p.refs == 0 && p.compiled != nil {
			log.Debugf("dropping compiled code of %s", p)
			p.compiled = nil
		}
	}
}

func (p *Proto) String() string {
	if p.bc.LineDefined == 0 {
		return fmt.Sprintf("main chunk <%s>", chunkID(p.bc.Source))
	}
	return fmt.Sprintf("function <%s:%d>", chunkID(p.bc.Source), p.bc.LineDefined)
}

/* Function is a Lua function value: a prototype bound to upvalues. */
type Function struct {
	vm       *VM
	proto    *Proto
	globals  *Table
	upvalues []*Upvalue
}

func newFunction(vm *VM, proto *Proto, globals *Table, upvalues []*Upvalue) *Function {
	return &Function{vm: vm, proto: proto, globals: globals, upvalues: upvalues}
}

func (*Function) Type() lua.Type { return lua.TFUNCTION }

func (f *Function) String() string {
	return fmt.Sprintf("function: %p", f)
}

func (f *Function) Proto() *Proto {
	return f.proto
}

func (f *Function) Upvalue(n int) *Upvalue {
	if n < 0 || n >= len(f.upvalues) {
		return nil
	}
	return f.upvalues[n]
}

/* instantiate creates a fresh activation of the function */
func (f *Function) instantiate() *Closure {
	p := f.proto
	p.Retain()
	return &Closure{
		vm:    f.vm,
		fn:    f,
		proto: p,
		code:  p.bc.Code,
		regs:  newRegisters(f.vm.pool, max(p.bc.MaxStackSize, p.bc.ParamCount+1)),
	}
}

func (f *Function) call(args []Value) ([]Value, error) {
	vm := f.vm
	if vm.depth >= vm.opts.MaxCallDepth {
		return nil, newRuntimeError("stack overflow")
	}
	vm.depth++
	defer func() { vm.depth-- }()
	for {
		p := f.proto
		p.calls++
		if p.compiled == nil && vm.opts.Compiler != nil && p.calls == vm.opts.CompileThreshold {
			if code, ok := vm.opts.Compiler.Compile(p); ok {
				log.Debugf("compiled %s after %d calls", p, p.calls)
				p.compiled = NewHostFunction(p.String(), code)
			}
		}
		if p.compiled != nil {
			return vm.callHost(p.compiled, args)
		}
		cl := f.instantiate()
		rets, err := cl.execute(args)
		if err != nil || cl.tailFn == nil {
			return rets, err
		}
		/* a tail call reuses this level */
		f, args = cl.tailFn, cl.tailArgs
	}
}

/* Upvalue is a variable captured by a closure. */
type Upvalue struct {
	regs  *registers /* open: the value lives in regs at index */
	index int
	next  *Upvalue /* list of open upvalues, by decreasing index */
	value Value    /* closed: the value itself */
}

func (uv *Upvalue) IsOpen() bool {
	return uv.regs != nil
}

func (uv *Upvalue) Get() Value {
	if uv.regs != nil {
		return uv.regs.get(uv.index)
	}
	if uv.value == nil {
		return Nil
	}
	return uv.value
}

func (uv *Upvalue) set(pool *Pool, val Value) {
	if uv.regs != nil {
		uv.regs.set(uv.index, val)
		return
	}
	pool.Retain(val)
	old := uv.value
	uv.value = val
	pool.Release(old)
}

func (uv *Upvalue) close(pool *Pool) {
	val := uv.regs.get(uv.index)
	pool.Retain(val)
	uv.value = val
	uv.regs = nil
	uv.next = nil
}
