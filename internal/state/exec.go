package state

import (
	"github.com/uganh16/lua51vm/internal/bytecode"
	"github.com/uganh16/lua51vm/internal/number"
	"github.com/uganh16/lua51vm/pkg/lua"
)

func (cl *Closure) dispatch(i bytecode.Instruction) error {
	vm := cl.vm
	a, b, c := i.A, i.B, i.C
	switch op := i.Op; op {
	case bytecode.OP_MOVE: /* R(A) := R(B) */
		cl.regs.set(a, cl.regs.get(b))
	case bytecode.OP_LOADK: /* R(A) := Kst(Bx) */
		cl.regs.set(a, cl.kst(b))
	case bytecode.OP_LOADBOOL: /* R(A) := (Bool)B; if (C) pc++ */
		cl.regs.set(a, Boolean(b != 0))
		if c != 0 {
			cl.pc++
		}
	case bytecode.OP_LOADNIL: /* R(A) := ... := R(B) := nil */
		for r := a; r <= b; r++ {
			cl.regs.set(r, Nil)
		}
	case bytecode.OP_GETUPVAL: /* R(A) := UpValue[B] */
		cl.regs.set(a, cl.fn.upvalues[b].Get())
	case bytecode.OP_GETGLOBAL: /* R(A) := Gbl[Kst(Bx)] */
		key := cl.kst(b)
		val, err := vm.index(cl.fn.globals, key)
		if err != nil {
			return err
		}
		if isNil(val) && rawEqual(key, String("_G")) {
			val = cl.fn.globals
		}
		cl.regs.set(a, val)
	case bytecode.OP_GETTABLE: /* R(A) := R(B)[RK(C)] */
		val, err := vm.index(cl.regs.get(b), cl.rk(c))
		if err != nil {
			return err
		}
		cl.regs.set(a, val)
	case bytecode.OP_SETGLOBAL: /* Gbl[Kst(Bx)] := R(A) */
		return vm.setIndex(cl.fn.globals, cl.kst(b), cl.regs.get(a))
	case bytecode.OP_SETUPVAL: /* UpValue[B] := R(A) */
		cl.fn.upvalues[b].set(vm.pool, cl.regs.get(a))
	case bytecode.OP_SETTABLE: /* R(A)[RK(B)] := RK(C) */
		return vm.setIndex(cl.regs.get(a), cl.rk(b), cl.rk(c))
	case bytecode.OP_NEWTABLE: /* R(A) := {} (size = B,C) */
		cl.regs.set(a, vm.pool.NewTable(number.Fb2int(b), number.Fb2int(c)))
	case bytecode.OP_SELF: /* R(A+1) := R(B); R(A) := R(B)[RK(C)] */
		obj := cl.regs.get(b)
		val, err := vm.index(obj, cl.rk(c))
		if err != nil {
			return err
		}
		cl.regs.set(a+1, obj)
		cl.regs.set(a, val)
	case
		bytecode.OP_ADD, /* R(A) := RK(B) + RK(C) */
		bytecode.OP_SUB, /* R(A) := RK(B) - RK(C) */
		bytecode.OP_MUL, /* R(A) := RK(B) * RK(C) */
		bytecode.OP_DIV, /* R(A) := RK(B) / RK(C) */
		bytecode.OP_MOD, /* R(A) := RK(B) % RK(C) */
		bytecode.OP_POW: /* R(A) := RK(B) ^ RK(C) */
		val, err := vm.arith(arithOp(op-bytecode.OP_ADD), cl.rk(b), cl.rk(c))
		if err != nil {
			return err
		}
		cl.regs.set(a, val)
	case bytecode.OP_UNM: /* R(A) := -R(B) */
		rb := cl.regs.get(b)
		val, err := vm.arith(opUnm, rb, rb)
		if err != nil {
			return err
		}
		cl.regs.set(a, val)
	case bytecode.OP_NOT: /* R(A) := not R(B) */
		cl.regs.set(a, Boolean(!toBoolean(cl.regs.get(b))))
	case bytecode.OP_LEN: /* R(A) := length of R(B) */
		val, err := vm.length(cl.regs.get(b))
		if err != nil {
			return err
		}
		cl.regs.set(a, val)
	case bytecode.OP_CONCAT: /* R(A) := R(B).. ... ..R(C) */
		val, err := vm.concat(cl.regs.slice(b, c-b+1))
		if err != nil {
			return err
		}
		cl.regs.set(a, val)
	case bytecode.OP_JMP: /* pc+=sBx */
		cl.pc += b
	case bytecode.OP_EQ: /* if ((RK(B) == RK(C)) ~= A) then pc++ */
		eq, err := vm.equal(cl.rk(b), cl.rk(c))
		if err != nil {
			return err
		}
		if eq != (a != 0) {
			cl.pc++
		}
	case bytecode.OP_LT: /* if ((RK(B) <  RK(C)) ~= A) then pc++ */
		lt, err := vm.lessThan(cl.rk(b), cl.rk(c))
		if err != nil {
			return err
		}
		if lt != (a != 0) {
			cl.pc++
		}
	case bytecode.OP_LE: /* if ((RK(B) <= RK(C)) ~= A) then pc++ */
		le, err := vm.lessEqual(cl.rk(b), cl.rk(c))
		if err != nil {
			return err
		}
		if le != (a != 0) {
			cl.pc++
		}
	case bytecode.OP_TEST: /* if not (R(A) <=> C) then pc++ */
		if toBoolean(cl.regs.get(a)) != (c != 0) {
			cl.pc++
		}
	case bytecode.OP_TESTSET: /* if (R(B) <=> C) then R(A) := R(B) else pc++ */
		if rb := cl.regs.get(b); toBoolean(rb) == (c != 0) {
			cl.regs.set(a, rb)
		} else {
			cl.pc++
		}
	case bytecode.OP_CALL: /* R(A), ... ,R(A+C-2) := R(A)(R(A+1), ... ,R(A+B-1)) */
		return cl.call(a, b, c, false)
	case bytecode.OP_TAILCALL: /* return R(A)(R(A+1), ... ,R(A+B-1)) */
		return cl.call(a, b, 0, true)
	case bytecode.OP_RETURN: /* return R(A), ... ,R(A+B-2) */
		n := b - 1
		if b == 0 {
			n = cl.top - a
		}
		cl.doReturn(a, n)
	case bytecode.OP_FORLOOP: /* R(A)+=R(A+2); if R(A) <?= R(A+1) then { pc+=sBx; R(A+3)=R(A) } */
		step := cl.number(a + 2)
		idx := cl.number(a) + step
		limit := cl.number(a + 1)
		if (0 < step && idx <= limit) || (step <= 0 && limit <= idx) {
			cl.pc += b
			cl.regs.set(a, Number(idx))
			cl.regs.set(a+3, Number(idx))
		}
	case bytecode.OP_FORPREP: /* R(A)-=R(A+2); pc+=sBx */
		init, ok := toNumber(cl.regs.get(a))
		if !ok {
			return newRuntimeError("'for' initial value must be a number")
		}
		limit, ok := toNumber(cl.regs.get(a + 1))
		if !ok {
			return newRuntimeError("'for' limit must be a number")
		}
		step, ok := toNumber(cl.regs.get(a + 2))
		if !ok {
			return newRuntimeError("'for' step must be a number")
		}
		cl.regs.set(a, Number(init-step))
		cl.regs.set(a+1, Number(limit))
		cl.regs.set(a+2, Number(step))
		cl.pc += b
	case bytecode.OP_TFORLOOP: /* R(A+3), ... ,R(A+2+C) := R(A)(R(A+1), R(A+2)); if R(A+3) ~= nil then R(A+2)=R(A+3) else pc++ */
		rets, err := vm.callNested(cl.regs.get(a), []Value{cl.regs.get(a + 1), cl.regs.get(a + 2)}, false)
		if err != nil {
			return err
		}
		cl.storeResults(a+3, c+1, rets)
		if cb := cl.regs.get(a + 3); !isNil(cb) {
			cl.regs.set(a+2, cb)
		} else {
			cl.pc++
		}
	case bytecode.OP_SETLIST: /* R(A)[(C-1)*FPF+i] := R(A+i), 1 <= i <= B */
		n := b
		if n == 0 {
			n = cl.top - a - 1
		}
		if c == 0 {
			c = int(cl.code[cl.pc].Encode())
			cl.pc++
		}
		t, ok := cl.regs.get(a).(*Table)
		if !ok {
			return newRuntimeError("SETLIST on a %s value", typeName(cl.regs.get(a)))
		}
		base := (c - 1) * lua.FIELDS_PER_FLUSH
		for j := 1; j <= n; j++ {
			t.RawSetInt(base+j, cl.regs.get(a+j))
		}
	case bytecode.OP_CLOSE: /* close all variables in the stack up to (>=) R(A) */
		cl.closeUpvalues(a)
	case bytecode.OP_CLOSURE: /* R(A) := closure(KPROTO[Bx], R(A), ... ,R(A+n)) */
		p := cl.proto.protos[b]
		upvals := make([]*Upvalue, p.bc.UpvalueCount)
		for j := range upvals {
			pseudo := cl.code[cl.pc]
			cl.pc++
			if pseudo.Op == bytecode.OP_GETUPVAL {
				upvals[j] = cl.fn.upvalues[pseudo.B]
			} else {
				upvals[j] = cl.findUpvalue(pseudo.B)
			}
		}
		cl.regs.set(a, newFunction(vm, p, cl.fn.globals, upvals))
	case bytecode.OP_VARARG: /* R(A), R(A+1), ..., R(A+B-1) = vararg */
		n := b - 1
		if b == 0 {
			n = len(cl.varargs)
			cl.top = a + n
		}
		for j := 0; j < n; j++ {
			if j < len(cl.varargs) {
				cl.regs.set(a+j, cl.varargs[j])
			} else {
				cl.regs.set(a+j, Nil)
			}
		}
	default:
		return newRuntimeError("invalid opcode %d", op)
	}
	return nil
}

/* numeric value of a register already checked by FORPREP */
func (cl *Closure) number(idx int) lua.Number {
	n, _ := toNumber(cl.regs.get(idx))
	return n
}

/**
 * call performs CALL and TAILCALL. While the VM or the running coroutine
 * is resuming, the CALL re-executed after a pc rewind continues the next
 * parked frame instead of calling R(A) again.
 */
func (cl *Closure) call(a, b, c int, tail bool) error {
	vm := cl.vm
	var rets []Value
	var err error
	if stack := vm.resumingStack(); stack != nil {
		f := stack.pop()
		vm.depth++
		rets, err = f.resume()
		vm.depth--
	} else {
		nArgs := b - 1
		if b == 0 {
			nArgs = cl.top - a - 1
		}
		args := cl.regs.slice(a+1, nArgs)
		if f, ok := cl.regs.get(a).(*Function); ok && tail {
			cl.tailFn, cl.tailArgs = f, args
			cl.doReturn(a, 0)
			return nil
		}
		rets, err = vm.call(cl.regs.get(a), args)
	}
	if err != nil {
		return err
	}
	if vm.unwinding() {
		return nil
	}
	if tail {
		cl.storeResults(a, 0, rets)
		cl.doReturn(a, len(rets))
		return nil
	}
	cl.storeResults(a, c, rets)
	vm.safePoint()
	return nil
}
