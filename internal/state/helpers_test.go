package state

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uganh16/lua51vm/internal/bytecode"
)

/* fn assembles a vararg prototype with a generous register file */
func fn(nParams int, code []string, consts ...any) *bytecode.Prototype {
	return &bytecode.Prototype{
		Source:       "=test",
		ParamCount:   nParams,
		IsVararg:     true,
		MaxStackSize: 16,
		Code:         bytecode.MustAssemble(code...),
		Constants:    consts,
	}
}

func newVM(t *testing.T, opts Options) (*VM, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	if opts.Stdout == nil {
		opts.Stdout = out
	}
	return New(opts), out
}

func load(t *testing.T, vm *VM, p *bytecode.Prototype) *Function {
	t.Helper()
	f, err := vm.Load(p)
	require.NoError(t, err)
	return f
}

func exec(t *testing.T, vm *VM, p *bytecode.Prototype, args ...Value) []Value {
	t.Helper()
	rets, err := vm.Execute(load(t, vm, p), args...)
	require.NoError(t, err)
	return rets
}

func execErr(t *testing.T, vm *VM, p *bytecode.Prototype, args ...Value) *RuntimeError {
	t.Helper()
	_, err := vm.Execute(load(t, vm, p), args...)
	require.Error(t, err)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	return re
}

func host(name string, f HostFunc) *HostFunction {
	return NewHostFunction(name, f)
}
