package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, NUM_OPCODES)
	for op := Opcode(0); op < NUM_OPCODES; op++ {
		m[op.String()] = op
	}
	return m
}()

func ParseOpcode(name string) (Opcode, bool) {
	op, ok := opcodeByName[strings.ToUpper(name)]
	return op, ok
}

/**
 * ParseInstruction reads one instruction in listing form, "ADD 0 1 K2".
 * Operands are A, B, C for iABC and A, Bx or A, sBx otherwise; missing
 * operands are zero and a K prefix marks an RK constant index. "RAW n"
 * stands for the raw word n that follows a SETLIST with C == 0.
 */
func ParseInstruction(line string) (Instruction, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Instruction{}, fmt.Errorf("empty instruction")
	}
	if strings.EqualFold(fields[0], "RAW") && len(fields) == 2 {
		n, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return Instruction{}, fmt.Errorf("%q: %w", line, err)
		}
		return Decode(uint32(n)), nil
	}
	op, ok := ParseOpcode(fields[0])
	if !ok {
		return Instruction{}, fmt.Errorf("%q: unknown opcode %s", line, fields[0])
	}
	var args [3]int
	if len(fields)-1 > len(args) {
		return Instruction{}, fmt.Errorf("%q: too many operands", line)
	}
	for n, f := range fields[1:] {
		k := false
		if f[0] == 'K' || f[0] == 'k' {
			k, f = true, f[1:]
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return Instruction{}, fmt.Errorf("%q: %w", line, err)
		}
		if k {
			v = RKAsK(v)
		}
		args[n] = v
	}
	switch op.Mode() {
	case IABx:
		return ABx(op, args[0], args[1]), nil
	case IAsBx:
		return AsBx(op, args[0], args[1]), nil
	default:
		return ABC(op, args[0], args[1], args[2]), nil
	}
}

/* Assemble parses one instruction per line; text after ';' is a comment */
func Assemble(lines ...string) ([]Instruction, error) {
	code := make([]Instruction, 0, len(lines))
	for _, line := range lines {
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ins, err := ParseInstruction(line)
		if err != nil {
			return nil, err
		}
		code = append(code, ins)
	}
	return code, nil
}

func MustAssemble(lines ...string) []Instruction {
	code, err := Assemble(lines...)
	if err != nil {
		panic(err)
	}
	return code
}
