package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstruction(t *testing.T) {
	for line, want := range map[string]Instruction{
		"ADD 0 1 K2":   ABC(OP_ADD, 0, 1, RKAsK(2)),
		"move 3 1":     ABC(OP_MOVE, 3, 1, 0),
		"LOADK 1 7":    ABx(OP_LOADK, 1, 7),
		"JMP 0 -3":     AsBx(OP_JMP, 0, -3),
		"  RETURN 0 1": ABC(OP_RETURN, 0, 1, 0),
		"eq 1 k0 K1":   ABC(OP_EQ, 1, RKAsK(0), RKAsK(1)),
	} {
		got, err := ParseInstruction(line)
		require.NoError(t, err, line)
		assert.Equal(t, want, got, line)
	}

	raw, err := ParseInstruction("RAW 50")
	require.NoError(t, err)
	assert.Equal(t, uint32(50), raw.Encode())

	for _, line := range []string{"", "FOO 1", "ADD 1 2 3 4", "ADD x", "RAW -1"} {
		_, err := ParseInstruction(line)
		assert.Error(t, err, "%q", line)
	}
}

func TestAssemble(t *testing.T) {
	code, err := Assemble(
		"LOADK 0 0 ; \"x\"",
		"",
		"; comment only",
		"RETURN 0 2",
	)
	require.NoError(t, err)
	assert.Equal(t, []Instruction{ABx(OP_LOADK, 0, 0), ABC(OP_RETURN, 0, 2, 0)}, code)

	_, err = Assemble("RETURN 0 1", "NOPE")
	assert.ErrorContains(t, err, "unknown opcode NOPE")
	assert.Panics(t, func() { MustAssemble("ADD 1 two") })
}

func TestEncodeDecode(t *testing.T) {
	assert.Equal(t, uint32(1<<POS_A), ABC(OP_MOVE, 1, 0, 0).Encode())
	assert.Equal(t, uint32(OP_RETURN)|1<<POS_B, ABC(OP_RETURN, 0, 1, 0).Encode())
	assert.Equal(t, uint32(OP_JMP)|MAXARG_sBx<<POS_Bx, AsBx(OP_JMP, 0, 0).Encode())

	for _, i := range []Instruction{
		ABC(OP_SETTABLE, 255, RKAsK(255), 511),
		ABx(OP_GETGLOBAL, 2, MAXARG_Bx),
		AsBx(OP_FORLOOP, 4, -MAXARG_sBx),
		AsBx(OP_FORPREP, 4, MAXARG_sBx+1),
		ABC(OP_SETLIST, 0, 3, 0),
	} {
		assert.Equal(t, i, Decode(i.Encode()), i.OpName())
	}
}

func TestRK(t *testing.T) {
	assert.False(t, IsK(255))
	assert.True(t, IsK(256))
	assert.Equal(t, 3, IndexK(RKAsK(3)))
	assert.Equal(t, 259, RKAsK(3))
}

func sample() *Prototype {
	child := &Prototype{
		Source:       "@t.lua",
		LineDefined:  2,
		UpvalueCount: 1,
		MaxStackSize: 2,
		Code:         MustAssemble("GETUPVAL 0 0", "RETURN 0 2"),
		UpvalueNames: []string{"x"},
	}
	return &Prototype{
		Source:       "@t.lua",
		IsVararg:     true,
		MaxStackSize: 3,
		Code: MustAssemble(
			"LOADK 0 0",
			"CLOSURE 1 0",
			"MOVE 0 0",
			"EQ 0 K1 K2",
			"JMP 0 1",
			"LOADBOOL 2 1 0",
			"RETURN 1 2",
		),
		Constants: []any{"x", nil, true, 3.5},
		Protos:    []*Prototype{child},
		LineInfo:  []int{1, 2, 2, 3, 3, 4, 5},
		LocVars:   []LocVar{{VarName: "x", StartPC: 1, EndPC: 7}, {VarName: "f", StartPC: 3, EndPC: 7}},
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	p := sample()
	data, err := Marshal(p)
	require.NoError(t, err)
	again, err := Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = Unmarshal([]byte{0xff, 0x00})
	assert.ErrorContains(t, err, "unmarshal prototype")

	bad := sample()
	bad.Constants = nil
	data, err = Marshal(bad)
	require.NoError(t, err)
	_, err = Unmarshal(data)
	assert.ErrorContains(t, err, "LOADK Bx out of range")
}

func TestUnmarshalIntegerConstants(t *testing.T) {
	data, err := encMode.Marshal(map[int]any{
		9:  []Instruction{ABx(OP_LOADK, 0, 0), ABC(OP_RETURN, 0, 2, 0)},
		10: []any{int64(7), uint64(8)},
	})
	require.NoError(t, err)
	p, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, []any{7.0, 8.0}, p.Constants)
}

func TestValidate(t *testing.T) {
	require.NoError(t, sample().Validate())

	for name, c := range map[string]struct {
		mutate func(p *Prototype)
		want   string
	}{
		"empty":       {func(p *Prototype) { p.Code = nil }, "empty instruction list"},
		"constant":    {func(p *Prototype) { p.Constants = append(p.Constants, 1) }, "constant 4 has unsupported type int"},
		"opcode":      {func(p *Prototype) { p.Code[5] = Instruction{Op: 50} }, "invalid opcode 50 at pc 5"},
		"rk":          {func(p *Prototype) { p.Code[3] = ABC(OP_EQ, 0, RKAsK(9), 0) }, "EQ B out of range (265) at pc 3"},
		"jump":        {func(p *Prototype) { p.Code[4] = AsBx(OP_JMP, 0, 3) }, "JMP sBx out of range (3) at pc 4"},
		"closure":     {func(p *Prototype) { p.Code[1] = ABx(OP_CLOSURE, 1, 1) }, "CLOSURE Bx out of range (1)"},
		"descriptor":  {func(p *Prototype) { p.Code[2] = ABC(OP_LOADNIL, 0, 0, 0) }, "bad upvalue descriptor LOADNIL at pc 2"},
		"upvalue":     {func(p *Prototype) { p.Code[2] = ABC(OP_GETUPVAL, 0, 0, 0) }, "upvalue 0 out of range at pc 2"},
		"setlist":     {func(p *Prototype) { p.Code[6] = ABC(OP_SETLIST, 0, 1, 0) }, "missing SETLIST count at pc 7"},
		"child":       {func(p *Prototype) { p.Protos[0].Code[0] = ABC(OP_GETUPVAL, 0, 1, 0) }, "@t.lua:2: GETUPVAL B out of range (1) at pc 0"},
		"missing upv": {func(p *Prototype) { p.Code = p.Code[:2] }, "missing upvalue descriptor at pc 2"},
		"negative r":  {func(p *Prototype) { p.Code[5] = ABC(OP_NOT, 2, -1, 0) }, "NOT B out of range (-1) at pc 5"},
		"negative rk": {func(p *Prototype) { p.Code[3] = ABC(OP_EQ, 0, 0, -1) }, "EQ C out of range (-1) at pc 3"},
		"wide c":      {func(p *Prototype) { p.Code[5] = ABC(OP_CONCAT, 2, 0, 600) }, "CONCAT C out of range (600) at pc 5"},
		"move upv":    {func(p *Prototype) { p.Code[2] = ABC(OP_MOVE, 0, -2, 0) }, "upvalue register -2 out of range at pc 2"},
	} {
		p := sample()
		c.mutate(p)
		assert.ErrorContains(t, p.Validate(), c.want, name)
	}
}

func TestDebugInfo(t *testing.T) {
	p := sample()
	assert.Equal(t, 3, p.Line(3))
	assert.Equal(t, -1, p.Line(99))
	assert.Equal(t, "x", p.LocalName(1, 1))
	assert.Equal(t, "", p.LocalName(2, 1))
	assert.Equal(t, "f", p.LocalName(2, 4))
	assert.Equal(t, "", p.LocalName(1, 7))
}
