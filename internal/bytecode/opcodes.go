package bytecode

type Opcode byte

const (
	OP_MOVE Opcode = iota
	OP_LOADK
	OP_LOADBOOL
	OP_LOADNIL
	OP_GETUPVAL
	OP_GETGLOBAL
	OP_GETTABLE
	OP_SETGLOBAL
	OP_SETUPVAL
	OP_SETTABLE
	OP_NEWTABLE
	OP_SELF
	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_MOD
	OP_POW
	OP_UNM
	OP_NOT
	OP_LEN
	OP_CONCAT
	OP_JMP
	OP_EQ
	OP_LT
	OP_LE
	OP_TEST
	OP_TESTSET
	OP_CALL
	OP_TAILCALL
	OP_RETURN
	OP_FORLOOP
	OP_FORPREP
	OP_TFORLOOP
	OP_SETLIST
	OP_CLOSE
	OP_CLOSURE
	OP_VARARG

	NUM_OPCODES
)

/**
 * basic instruction format
 */
const (
	IABC = iota
	IABx
	IAsBx
)

/**
 * operand kinds
 */
const (
	OpArgN = iota /* argument is not used */
	OpArgU        /* argument is used */
	OpArgR        /* argument is a register or a jump offset */
	OpArgK        /* argument is a constant or register/constant */
)

type opcode struct {
	testFlag byte /* operator is a test (next instruction must be a jump) */
	setAFlag byte /* instruction set register A */
	argBMode byte
	argCMode byte
	opMode   byte
	name     string
}

var opcodes = [NUM_OPCODES]opcode{
	/*       T  A  B       C       mode   name */
	{0, 1, OpArgR, OpArgN, IABC, "MOVE"},
	{0, 1, OpArgK, OpArgN, IABx, "LOADK"},
	{0, 1, OpArgU, OpArgU, IABC, "LOADBOOL"},
	{0, 1, OpArgR, OpArgN, IABC, "LOADNIL"},
	{0, 1, OpArgU, OpArgN, IABC, "GETUPVAL"},
	{0, 1, OpArgK, OpArgN, IABx, "GETGLOBAL"},
	{0, 1, OpArgR, OpArgK, IABC, "GETTABLE"},
	{0, 0, OpArgK, OpArgN, IABx, "SETGLOBAL"},
	{0, 0, OpArgU, OpArgN, IABC, "SETUPVAL"},
	{0, 0, OpArgK, OpArgK, IABC, "SETTABLE"},
	{0, 1, OpArgU, OpArgU, IABC, "NEWTABLE"},
	{0, 1, OpArgR, OpArgK, IABC, "SELF"},
	{0, 1, OpArgK, OpArgK, IABC, "ADD"},
	{0, 1, OpArgK, OpArgK, IABC, "SUB"},
	{0, 1, OpArgK, OpArgK, IABC, "MUL"},
	{0, 1, OpArgK, OpArgK, IABC, "DIV"},
	{0, 1, OpArgK, OpArgK, IABC, "MOD"},
	{0, 1, OpArgK, OpArgK, IABC, "POW"},
	{0, 1, OpArgR, OpArgN, IABC, "UNM"},
	{0, 1, OpArgR, OpArgN, IABC, "NOT"},
	{0, 1, OpArgR, OpArgN, IABC, "LEN"},
	{0, 1, OpArgR, OpArgR, IABC, "CONCAT"},
	{0, 0, OpArgR, OpArgN, IAsBx, "JMP"},
	{1, 0, OpArgK, OpArgK, IABC, "EQ"},
	{1, 0, OpArgK, OpArgK, IABC, "LT"},
	{1, 0, OpArgK, OpArgK, IABC, "LE"},
	{1, 1, OpArgR, OpArgU, IABC, "TEST"},
	{1, 1, OpArgR, OpArgU, IABC, "TESTSET"},
	{0, 1, OpArgU, OpArgU, IABC, "CALL"},
	{0, 1, OpArgU, OpArgU, IABC, "TAILCALL"},
	{0, 0, OpArgU, OpArgN, IABC, "RETURN"},
	{0, 1, OpArgR, OpArgN, IAsBx, "FORLOOP"},
	{0, 1, OpArgR, OpArgN, IAsBx, "FORPREP"},
	{1, 0, OpArgN, OpArgU, IABC, "TFORLOOP"},
	{0, 0, OpArgU, OpArgU, IABC, "SETLIST"},
	{0, 0, OpArgN, OpArgN, IABC, "CLOSE"},
	{0, 1, OpArgU, OpArgN, IABx, "CLOSURE"},
	{0, 1, OpArgU, OpArgN, IABC, "VARARG"},
}

func (op Opcode) Valid() bool {
	return op < NUM_OPCODES
}

func (op Opcode) String() string {
	if !op.Valid() {
		return "UNKNOWN"
	}
	return opcodes[op].name
}

func (op Opcode) Mode() byte {
	return opcodes[op].opMode
}

func (op Opcode) BMode() byte {
	return opcodes[op].argBMode
}

func (op Opcode) CMode() byte {
	return opcodes[op].argCMode
}

func (op Opcode) IsTest() bool {
	return opcodes[op].testFlag != 0
}
