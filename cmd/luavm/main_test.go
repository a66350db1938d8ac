package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uganh16/lua51vm/internal/binary"
	"github.com/uganh16/lua51vm/internal/bytecode"
	"github.com/uganh16/lua51vm/internal/config"
)

func dump(t *testing.T, file string, p *bytecode.Prototype) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Dump(&buf, p))
	require.NoError(t, os.WriteFile(file, buf.Bytes(), 0o644))
}

/* print(require("greet").text, ...) */
func mainChunk() *bytecode.Prototype {
	return &bytecode.Prototype{
		Source:       "@main.lua",
		IsVararg:     true,
		MaxStackSize: 4,
		Code: bytecode.MustAssemble(
			"GETGLOBAL 0 0",
			"GETGLOBAL 1 1",
			"LOADK 2 2",
			"CALL 1 2 2",
			"GETTABLE 1 1 K3",
			"VARARG 2 0",
			"CALL 0 0 1",
			"RETURN 0 1",
		),
		Constants: []any{"print", "require", "greet", "text"},
		LineInfo:  []int{1, 1, 1, 1, 1, 1, 1, 2},
	}
}

func greetModule() *bytecode.Prototype {
	return &bytecode.Prototype{
		Source:       "@greet.lua",
		IsVararg:     true,
		MaxStackSize: 2,
		Code: bytecode.MustAssemble(
			"NEWTABLE 0 0 1",
			"SETTABLE 0 K0 K1",
			"RETURN 0 2",
		),
		Constants: []any{"text", "hello"},
	}
}

func setup(t *testing.T) (*config.Config, string) {
	dir := t.TempDir()
	dump(t, filepath.Join(dir, "main.luac"), mainChunk())
	dump(t, filepath.Join(dir, "greet.luac"), greetModule())
	cfg := config.Default()
	cfg.Loader.Path = filepath.Join(dir, "?.luac")
	return cfg, filepath.Join(dir, "main.luac")
}

func TestExecuteAsync(t *testing.T) {
	cfg, file := setup(t)
	var out, errs bytes.Buffer
	require.NoError(t, execute(context.Background(), cfg, file, []string{"a", "b"}, &out, &errs))
	assert.Equal(t, "hello\ta\tb\n", out.String())
}

func TestExecuteSyncWithCache(t *testing.T) {
	cfg, file := setup(t)
	cfg.Loader.Async = false
	cfg.Loader.Cache = filepath.Join(t.TempDir(), "cache.db")
	for i := 0; i < 2; i++ {
		var out, errs bytes.Buffer
		require.NoError(t, execute(context.Background(), cfg, file, nil, &out, &errs))
		assert.Equal(t, "hello\n", out.String())
	}
}

func TestExecuteBreakpoint(t *testing.T) {
	cfg, file := setup(t)
	cfg.Debug.Breakpoints = []string{"main.lua:2"}
	var out, errs bytes.Buffer
	require.NoError(t, execute(context.Background(), cfg, file, nil, &out, &errs))
	assert.Equal(t, "hello\n", out.String())
	assert.Equal(t, "break at main.lua:2\n", errs.String())
}

func TestExecuteMissingModule(t *testing.T) {
	cfg, file := setup(t)
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(file), "greet.luac")))
	var out, errs bytes.Buffer
	err := execute(context.Background(), cfg, file, nil, &out, &errs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "main.lua:1: module 'greet' not found:")
}

func TestList(t *testing.T) {
	_, file := setup(t)
	var out bytes.Buffer
	require.NoError(t, listFile(&out, file))
	listing := out.String()
	assert.Contains(t, listing, "main <main.lua:0,0> (8 instructions)")
	assert.Contains(t, listing, "0+ params, 4 slots, 0 upvalues, 0 locals, 4 constants, 0 functions")
	assert.Contains(t, listing, "\t1\t[1]\tGETGLOBAL\t0 -1\t; \"print\"\n")
	assert.Contains(t, listing, "\t5\t[1]\tGETTABLE \t1 1 -4\n")
	assert.Contains(t, listing, "constants (4):\n\t1\t\"print\"\n")
}
