package state

import (
	"errors"
	"strings"

	"github.com/uganh16/lua51vm/internal/bytecode"
)

/* NotFoundError is returned by loaders that found no file for a module */
type NotFoundError struct {
	Name  string
	Tried []string
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	b.WriteString("module '" + e.Name + "' not found:")
	for _, f := range e.Tried {
		b.WriteString("\n\tno file '" + f + "'")
	}
	return b.String()
}

func (vm *VM) openPackage() {
	pkg := vm.pool.NewTable(0, 4)
	vm.loaded = vm.pool.NewTable(0, 8)
	vm.preload = vm.pool.NewTable(0, 0)
	/* stored in package.loaded while a module runs */
	vm.sentinel = vm.pool.NewTable(0, 0)
	vm.pool.Retain(vm.sentinel)
	pkg.RawSetString("loaded", vm.loaded)
	pkg.RawSetString("preload", vm.preload)
	vm.globals.RawSetString("package", pkg)
	vm.globals.RawSetString("require", NewHostFunction("require", pkgRequire))
	vm.loaded.RawSetString("_G", vm.globals)
	vm.loaded.RawSetString("package", pkg)
}

/* Loaded is package.loaded */
func (vm *VM) Loaded() *Table {
	return vm.loaded
}

/* Preload is package.preload */
func (vm *VM) Preload() *Table {
	return vm.preload
}

/**
 * require looks in package.loaded, then package.preload, then asks the
 * VM loader. A loader completing synchronously runs the module right away;
 * otherwise the VM suspends and resumes by running the module innermost.
 */
func pkgRequire(vm *VM, args []Value) ([]Value, error) {
	name, err := checkString(args, 0, "require")
	if err != nil {
		return nil, err
	}
	if mod := vm.loaded.RawGetString(name); toBoolean(mod) {
		if mod == Value(vm.sentinel) {
			return nil, newRuntimeError("loop or previous error loading module '%s'", name)
		}
		return []Value{mod}, nil
	}
	if loader := vm.preload.RawGetString(name); !isNil(loader) {
		return vm.runModule(name, loader)
	}
	if vm.opts.Loader == nil {
		return nil, newRuntimeError("module '%s' not found", name)
	}

	var proto *bytecode.Prototype
	var lerr error
	inLoad, finished, waiting := true, false, false
	vm.opts.Loader.Load(name, func(p *bytecode.Prototype, err error) {
		if inLoad {
			proto, lerr, finished = p, err, true
			return
		}
		if !waiting {
			log.Warningf("vm %s: dropping module '%s': nothing waits for it", vm.id, name)
			return
		}
		waiting = false
		log.Debugf("vm %s: module '%s' arrived", vm.id, name)
		if err != nil {
			vm.ResumeError(loadError(name, err))
			return
		}
		fn, err := vm.Load(p)
		if err != nil {
			vm.ResumeError(loadError(name, err))
			return
		}
		vm.loaded.RawSetString(name, vm.sentinel)
		vm.ResumeCall(fn, []Value{String(name)}, func(rets []Value) ([]Value, error) {
			return []Value{vm.storeModule(name, rets)}, nil
		})
	})
	inLoad = false

	if finished {
		if lerr != nil {
			return nil, loadError(name, lerr)
		}
		fn, err := vm.Load(proto)
		if err != nil {
			return nil, loadError(name, err)
		}
		return vm.runModule(name, fn)
	}
	log.Debugf("vm %s: waiting for module '%s'", vm.id, name)
	if err := vm.Suspend(); err != nil {
		return nil, err
	}
	waiting = true
	return nil, nil
}

func loadError(name string, err error) error {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		re := newRuntimeError("%s", nf.Error())
		re.Cause = err
		return re
	}
	re := newRuntimeError("error loading module '%s': %s", name, err.Error())
	re.Cause = err
	return re
}

func (vm *VM) runModule(name string, fn Value) ([]Value, error) {
	vm.loaded.RawSetString(name, vm.sentinel)
	rets, err := vm.callNested(fn, []Value{String(name)}, false)
	if err != nil {
		return nil, err /* the sentinel stays, as for a failed async module */
	}
	return []Value{vm.storeModule(name, rets)}, nil
}

func (vm *VM) storeModule(name string, rets []Value) Value {
	if v := arg(rets, 0); !isNil(v) {
		vm.loaded.RawSetString(name, v)
	}
	if mod := vm.loaded.RawGetString(name); isNil(mod) || mod == Value(vm.sentinel) {
		vm.loaded.RawSetString(name, True)
	}
	return vm.loaded.RawGetString(name)
}
