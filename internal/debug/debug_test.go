package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uganh16/lua51vm/internal/bytecode"
	"github.com/uganh16/lua51vm/internal/state"
	"github.com/uganh16/lua51vm/pkg/lua"
)

/*
 * local a = 1       -- line 1
 * local b = a + 1   -- line 2
 * return a + b      -- line 3
 */
func chunk() *bytecode.Prototype {
	return &bytecode.Prototype{
		Source:       "@main.lua",
		IsVararg:     true,
		MaxStackSize: 3,
		Code: bytecode.MustAssemble(
			"LOADK 0 0",
			"ADD 1 0 K0",
			"ADD 2 0 1",
			"RETURN 2 2",
		),
		Constants: []any{1.0},
		LineInfo:  []int{1, 2, 3, 3},
		LocVars: []bytecode.LocVar{
			{VarName: "a", StartPC: 1, EndPC: 4},
			{VarName: "b", StartPC: 2, EndPC: 4},
		},
	}
}

func TestParseBreakpoint(t *testing.T) {
	bp, err := ParseBreakpoint("lib/util.lua:12")
	require.NoError(t, err)
	assert.Equal(t, Breakpoint{Chunk: "lib/util.lua", Line: 12}, bp)
	assert.Equal(t, "lib/util.lua:12", bp.String())

	for _, bad := range []string{"util.lua", ":3", "x:0", "x:y"} {
		_, err := ParseBreakpoint(bad)
		assert.Error(t, err, bad)
	}
}

func TestBreakpointPauses(t *testing.T) {
	dbg := NewDebugger(Breakpoint{Chunk: "main.lua", Line: 2})
	var stops []Stop
	var locals [][]Local
	dbg.OnStop = func(s Stop) {
		stops = append(stops, s)
		locals = append(locals, Locals(s.Closure))
	}
	vm := state.New(state.Options{Debugger: dbg})
	f, err := vm.Load(chunk())
	require.NoError(t, err)

	rets, err := vm.Execute(f)
	require.NoError(t, err)
	assert.Nil(t, rets)
	assert.Equal(t, lua.SUSPENDED, vm.Status())
	require.Len(t, stops, 1)
	assert.Equal(t, Breakpoint{Chunk: "main.lua", Line: 2}, stops[0].At)
	assert.False(t, stops[0].Step)
	assert.Equal(t, []Local{{Name: "a", Value: state.Number(1)}}, locals[0])

	dbg.Step()
	_, err = vm.Resume()
	require.NoError(t, err)
	require.Len(t, stops, 2)
	assert.Equal(t, 3, stops[1].At.Line)
	assert.True(t, stops[1].Step)
	assert.Equal(t, []Local{{Name: "a", Value: state.Number(1)}, {Name: "b", Value: state.Number(2)}}, locals[1])

	rets, err = vm.Resume()
	require.NoError(t, err)
	assert.Equal(t, []state.Value{state.Number(3)}, rets)
	assert.Equal(t, lua.RUNNING, vm.Status())
}

/*
 * local function inner()  -- line 4
 *   local a, b = wait()   -- line 5
 *   return (a + b) * 10   -- line 6
 * end
 * return inner()          -- line 2, after the closure on line 1
 */
func suspending() *bytecode.Prototype {
	inner := &bytecode.Prototype{
		Source:       "@main.lua",
		LineDefined:  4,
		MaxStackSize: 2,
		Code: bytecode.MustAssemble(
			"GETGLOBAL 0 0",
			"CALL 0 1 3",
			"ADD 0 0 1",
			"MUL 0 0 K1",
			"RETURN 0 2",
		),
		Constants: []any{"wait", 10.0},
		LineInfo:  []int{5, 5, 6, 6, 6},
	}
	return &bytecode.Prototype{
		Source:       "@main.lua",
		IsVararg:     true,
		MaxStackSize: 2,
		Code: bytecode.MustAssemble(
			"CLOSURE 0 0",
			"CALL 0 1 2",
			"RETURN 0 2",
		),
		Protos:   []*bytecode.Prototype{inner},
		LineInfo: []int{1, 2, 3},
	}
}

func TestBreakpointOnSuspendedCall(t *testing.T) {
	dbg := NewDebugger(Breakpoint{Chunk: "main.lua", Line: 2})
	stops := 0
	dbg.OnStop = func(Stop) { stops++ }
	vm := state.New(state.Options{
		Debugger: dbg,
		Globals: map[string]state.Value{
			"wait": state.NewHostFunction("wait", func(vm *state.VM, args []state.Value) ([]state.Value, error) {
				return nil, vm.Suspend()
			}),
		},
	})
	f, err := vm.Load(suspending())
	require.NoError(t, err)

	_, err = vm.Execute(f)
	require.NoError(t, err)
	assert.Equal(t, 1, stops)
	assert.Equal(t, lua.SUSPENDED, vm.Status())

	/* continue past the breakpoint into wait */
	rets, err := vm.Resume()
	require.NoError(t, err)
	assert.Nil(t, rets)
	assert.Equal(t, lua.SUSPENDED, vm.Status())

	/* the re-entered CALL on line 2 does not stop again */
	rets, err = vm.Resume(state.Number(1), state.Number(2))
	require.NoError(t, err)
	assert.Equal(t, 1, stops)
	assert.Equal(t, []state.Value{state.Number(30)}, rets)
	assert.Equal(t, lua.RUNNING, vm.Status())
}

func TestDebuggerRecordsErrors(t *testing.T) {
	dbg := NewDebugger()
	vm := state.New(state.Options{Debugger: dbg})
	p := chunk()
	p.Code = bytecode.MustAssemble(
		"LOADK 0 0",
		"ADD 1 0 2",
		"ADD 2 0 1",
		"RETURN 2 2",
	)
	f, err := vm.Load(p)
	require.NoError(t, err)
	_, err = vm.Execute(f)
	require.Error(t, err)
	require.NotNil(t, dbg.LastError())
	assert.Equal(t, "main.lua:2: attempt to perform arithmetic on a nil value", dbg.LastError().Error())
}

func TestBreakpointSet(t *testing.T) {
	dbg := NewDebugger()
	bp := Breakpoint{Chunk: "a.lua", Line: 1}
	dbg.Set(bp)
	assert.Equal(t, []Breakpoint{bp}, dbg.Breakpoints())
	dbg.Clear(bp)
	assert.Empty(t, dbg.Breakpoints())
}
