package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/uganh16/lua51vm/internal/config"
	"github.com/uganh16/lua51vm/internal/debug"
	"github.com/uganh16/lua51vm/internal/loader"
	"github.com/uganh16/lua51vm/internal/state"
	"github.com/uganh16/lua51vm/pkg/lua"
)

func run(cfg *config.Config, file string, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := execute(ctx, cfg, file, args, os.Stdout, os.Stderr); err != nil {
		on, off := errorColour()
		var re *state.RuntimeError
		if errors.As(err, &re) {
			fmt.Fprintf(os.Stderr, "%sluavm: %s%s\n", on, re.Traceback(), off)
		} else {
			fmt.Fprintf(os.Stderr, "%sluavm: %s%s\n", on, err, off)
		}
		return 1
	}
	return 0
}

/**
 * execute runs a chunk and pumps the event loop: asynchronous module loads
 * and debugger stops, until the execution completes.
 */
func execute(ctx context.Context, cfg *config.Config, file string, args []string, stdout, stderr io.Writer) error {
	var cache *loader.Cache
	if cfg.Loader.Cache != "" {
		var err error
		if cache, err = loader.OpenCache(cfg.Loader.Cache); err != nil {
			return err
		}
		defer cache.Close()
	}
	files := loader.NewFileLoader(cfg.Loader.Path, cache)

	opts := cfg.VMOptions()
	opts.Stdout = stdout
	opts.Loader = files
	var async *loader.AsyncLoader
	if cfg.Loader.Async {
		async = loader.NewAsyncLoader(files)
		opts.Loader = async
	}
	stopped := false
	if len(cfg.Debug.Breakpoints) > 0 {
		dbg := debug.NewDebugger()
		for _, s := range cfg.Debug.Breakpoints {
			bp, err := debug.ParseBreakpoint(s)
			if err != nil {
				return err
			}
			dbg.Set(bp)
		}
		dbg.OnStop = func(s debug.Stop) {
			stopped = true
			fmt.Fprintf(stderr, "break at %s\n", s.At)
			for _, l := range debug.Locals(s.Closure) {
				fmt.Fprintf(stderr, "\t%s = %s\n", l.Name, l.Value)
			}
		}
		opts.Debugger = dbg
	}

	p, err := files.LoadFile(file)
	if err != nil {
		return err
	}
	vm := state.New(opts)
	defer vm.Unload()
	main, err := vm.Load(p)
	if err != nil {
		return err
	}
	argv := make([]state.Value, len(args))
	argt := vm.NewTable()
	argt.RawSetInt(0, state.String(file))
	for i, a := range args {
		argv[i] = state.String(a)
		argt.RawSetInt(i+1, argv[i])
	}
	vm.SetGlobal("arg", argt)

	finished := false
	var result error
	vm.Schedule(main, argv, func(rets []state.Value, err error) {
		finished, result = true, err
	})
	for !finished {
		switch {
		case async != nil && async.Pending() > 0:
			if err := async.Wait(ctx); err != nil {
				return err
			}
		case stopped && vm.Status() == lua.SUSPENDED:
			stopped = false
			vm.Resume()
		default:
			return fmt.Errorf("execution is %s with nothing to wait for", vm.Status())
		}
	}
	return result
}
