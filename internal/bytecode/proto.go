package bytecode

import (
	"fmt"
)

/* function prototype: the immutable unit produced by a dump reader */
type Prototype struct {
	Source          string        `cbor:"1,keyasint,omitempty"`
	LineDefined     int           `cbor:"2,keyasint,omitempty"`
	LastLineDefined int           `cbor:"3,keyasint,omitempty"`
	UpvalueCount    int           `cbor:"4,keyasint,omitempty"`
	ParamCount      int           `cbor:"5,keyasint,omitempty"`
	IsVararg        bool          `cbor:"6,keyasint,omitempty"`
	NeedsArg        bool          `cbor:"7,keyasint,omitempty"` /* LUA_COMPAT_VARARG 'arg' table */
	MaxStackSize    int           `cbor:"8,keyasint,omitempty"`
	Code            []Instruction `cbor:"9,keyasint"`
	Constants       []any         `cbor:"10,keyasint,omitempty"` /* nil, bool, float64 or string */
	Protos          []*Prototype  `cbor:"11,keyasint,omitempty"`

	/* debug information, possibly stripped */
	LineInfo     []int    `cbor:"12,keyasint,omitempty"`
	LocVars      []LocVar `cbor:"13,keyasint,omitempty"`
	UpvalueNames []string `cbor:"14,keyasint,omitempty"`
}

type LocVar struct {
	_       struct{} `cbor:",toarray"`
	VarName string
	StartPC int
	EndPC   int
}

func (p *Prototype) Line(pc int) int {
	if pc >= 0 && pc < len(p.LineInfo) {
		return p.LineInfo[pc]
	}
	return -1
}

/* LocalName returns the name of the n-th (1-based) local active at pc. */
func (p *Prototype) LocalName(n, pc int) string {
	for _, v := range p.LocVars {
		if v.StartPC > pc {
			break
		}
		if pc < v.EndPC {
			n--
			if n == 0 {
				return v.VarName
			}
		}
	}
	return ""
}

/**
 * Validate checks the operands of every instruction against the sizes of
 * the prototype so that the interpreter can index without bounds checks
 * failing on malformed input.
 */
func (p *Prototype) Validate() error {
	if len(p.Code) == 0 {
		return fmt.Errorf("%s: empty instruction list", p.where())
	}
	for i, k := range p.Constants {
		switch k.(type) {
		case nil, bool, float64, string:
		default:
			return fmt.Errorf("%s: constant %d has unsupported type %T", p.where(), i, k)
		}
	}
	for pc := 0; pc < len(p.Code); pc++ {
		i := p.Code[pc]
		if !i.Op.Valid() {
			return fmt.Errorf("%s: invalid opcode %d at pc %d", p.where(), i.Op, pc)
		}
		if err := p.checkOperands(pc, i); err != nil {
			return err
		}
		switch i.Op {
		case OP_SETLIST:
			if i.C == 0 {
				pc++ /* raw count word */
				if pc >= len(p.Code) {
					return fmt.Errorf("%s: missing SETLIST count at pc %d", p.where(), pc)
				}
			}
		case OP_CLOSURE:
			for n := p.Protos[i.B].UpvalueCount; n > 0; n-- {
				pc++
				if pc >= len(p.Code) {
					return fmt.Errorf("%s: missing upvalue descriptor at pc %d", p.where(), pc)
				}
				switch d := p.Code[pc]; d.Op {
				case OP_MOVE:
					if d.B < 0 || d.B > MAXARG_A {
						return fmt.Errorf("%s: upvalue register %d out of range at pc %d", p.where(), d.B, pc)
					}
				case OP_GETUPVAL:
					if d.B < 0 || d.B >= p.UpvalueCount {
						return fmt.Errorf("%s: upvalue %d out of range at pc %d", p.where(), d.B, pc)
					}
				default:
					return fmt.Errorf("%s: bad upvalue descriptor %s at pc %d", p.where(), d.Op, pc)
				}
			}
		}
	}
	for _, child := range p.Protos {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Prototype) checkOperands(pc int, i Instruction) error {
	bad := func(what string, v int) error {
		return fmt.Errorf("%s: %s %s out of range (%d) at pc %d", p.where(), i.Op, what, v, pc)
	}
	if i.A < 0 || i.A > MAXARG_A {
		return bad("A", i.A)
	}
	rk := func(x int) bool {
		if IsK(x) {
			return IndexK(x) < len(p.Constants)
		}
		return x >= 0
	}
	switch i.Op.Mode() {
	case IABx:
		if i.Op.BMode() == OpArgK && (i.B < 0 || i.B >= len(p.Constants)) {
			return bad("Bx", i.B)
		}
		if i.Op == OP_CLOSURE && (i.B < 0 || i.B >= len(p.Protos)) {
			return bad("Bx", i.B)
		}
	case IAsBx:
		if target := pc + 1 + i.B; target < 0 || target > len(p.Code) {
			return bad("sBx", i.B)
		}
	default:
		/* registers and RK operands are never negative */
		if i.B < 0 || i.B > MAXARG_B {
			return bad("B", i.B)
		}
		if i.C < 0 || i.C > MAXARG_C {
			return bad("C", i.C)
		}
		if (i.Op == OP_GETUPVAL || i.Op == OP_SETUPVAL) && (i.B < 0 || i.B >= p.UpvalueCount) {
			return bad("B", i.B)
		}
		if i.Op.BMode() == OpArgK && !rk(i.B) {
			return bad("B", i.B)
		}
		if i.Op.CMode() == OpArgK && !rk(i.C) {
			return bad("C", i.C)
		}
	}
	return nil
}

func (p *Prototype) where() string {
	source := p.Source
	if source == "" {
		source = "?"
	}
	return fmt.Sprintf("%s:%d", source, p.LineDefined)
}
