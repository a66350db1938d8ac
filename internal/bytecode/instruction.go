package bytecode

/**
 * size and position of opcode arguments in a Lua 5.1 instruction word
 */
const (
	SIZE_C  = 9
	SIZE_B  = 9
	SIZE_Bx = SIZE_C + SIZE_B
	SIZE_A  = 8
	SIZE_OP = 6

	POS_OP = 0
	POS_A  = POS_OP + SIZE_OP
	POS_C  = POS_A + SIZE_A
	POS_B  = POS_C + SIZE_C
	POS_Bx = POS_C

	MAXARG_A   = 1<<SIZE_A - 1
	MAXARG_B   = 1<<SIZE_B - 1
	MAXARG_C   = 1<<SIZE_C - 1
	MAXARG_Bx  = 1<<SIZE_Bx - 1
	MAXARG_sBx = MAXARG_Bx >> 1
)

/* this bit 1 means constant (0 means register) */
const BITRK = 1 << (SIZE_B - 1)

func IsK(x int) bool {
	return x&BITRK != 0
}

func IndexK(x int) int {
	return x &^ BITRK
}

func RKAsK(x int) int {
	return x | BITRK
}

/**
 * Instruction is one decoded quadruple. For iABx instructions B holds Bx
 * and for iAsBx instructions B holds the signed sBx; C is then unused.
 */
type Instruction struct {
	_  struct{} `cbor:",toarray"`
	Op Opcode
	A  int
	B  int
	C  int
}

func ABC(op Opcode, a, b, c int) Instruction {
	return Instruction{Op: op, A: a, B: b, C: c}
}

func ABx(op Opcode, a, bx int) Instruction {
	return Instruction{Op: op, A: a, B: bx}
}

func AsBx(op Opcode, a, sbx int) Instruction {
	return Instruction{Op: op, A: a, B: sbx}
}

/* Decode splits a raw Lua 5.1 instruction word. */
func Decode(raw uint32) Instruction {
	op := Opcode(raw >> POS_OP & (1<<SIZE_OP - 1))
	a := int(raw >> POS_A & MAXARG_A)
	if !op.Valid() {
		return Instruction{Op: op, A: a, B: int(raw >> POS_B & MAXARG_B), C: int(raw >> POS_C & MAXARG_C)}
	}
	switch op.Mode() {
	case IABx:
		return ABx(op, a, int(raw>>POS_Bx&MAXARG_Bx))
	case IAsBx:
		return AsBx(op, a, int(raw>>POS_Bx&MAXARG_Bx)-MAXARG_sBx)
	default:
		return ABC(op, a, int(raw>>POS_B&MAXARG_B), int(raw>>POS_C&MAXARG_C))
	}
}

/* Encode is the inverse of Decode. */
func (i Instruction) Encode() uint32 {
	raw := uint32(i.Op)<<POS_OP | uint32(i.A&MAXARG_A)<<POS_A
	if i.Op.Valid() {
		switch i.Op.Mode() {
		case IABx:
			return raw | uint32(i.B&MAXARG_Bx)<<POS_Bx
		case IAsBx:
			return raw | uint32((i.B+MAXARG_sBx)&MAXARG_Bx)<<POS_Bx
		}
	}
	return raw | uint32(i.B&MAXARG_B)<<POS_B | uint32(i.C&MAXARG_C)<<POS_C
}

func (i Instruction) OpName() string {
	return i.Op.String()
}

func (i Instruction) OpMode() byte {
	return i.Op.Mode()
}

func (i Instruction) BMode() byte {
	return i.Op.BMode()
}

func (i Instruction) CMode() byte {
	return i.Op.CMode()
}
