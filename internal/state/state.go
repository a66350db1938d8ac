package state

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"github.com/uganh16/lua51vm/internal/bytecode"
	"github.com/uganh16/lua51vm/pkg/lua"
)

var log = commonlog.GetLogger("lua51vm.state")

const (
	DEFAULT_MAX_CALL_DEPTH    = 20000
	DEFAULT_COMPILE_THRESHOLD = 1000
)

/**
 * Loader fetches the bytecode of a module. done may be called before Load
 * returns or at any later point on the VM's goroutine.
 */
type Loader interface {
	Load(name string, done func(*bytecode.Prototype, error))
}

/* Debugger observes execution. BeforeInstruction returning true pauses the VM. */
type Debugger interface {
	BeforeInstruction(cl *Closure, pc int) bool
	OnError(err *RuntimeError)
}

/* Compiler may replace a hot prototype by native code */
type Compiler interface {
	Compile(p *Proto) (HostFunc, bool)
}

type Options struct {
	Globals          map[string]Value /* added to, or overriding, the core library */
	Loader           Loader
	Debugger         Debugger
	Compiler         Compiler
	CompileThreshold int
	MaxCallDepth     int
	Stdout           io.Writer
}

type thread struct {
	co      *Coroutine /* nil for the main thread */
	nCcalls int        /* nested host calls, a yield boundary */
	nPins   int        /* nested calls holding uncounted values */
}

type queuedCall struct {
	fn   Value
	args []Value
	done func([]Value, error)
}

type VM struct {
	id       uuid.UUID
	opts     Options
	pool     *Pool
	globals  *Table
	loaded   *Table
	preload  *Table
	sentinel *Table
	typeMT   [lua.NUMTAGS]*Table
	files    []*Proto

	status         lua.Status
	resumeStack    frameStack
	resumeVars     []Value
	resumeErr      error
	pendingSuspend bool /* Suspend was called by the running host function */
	syncResume     bool

	threads   []*thread
	hostDepth int
	active    int
	depth     int

	queue      []queuedCall
	flushing   bool
	onComplete func([]Value, error)
}

func New(opts Options) *VM {
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = DEFAULT_MAX_CALL_DEPTH
	}
	if opts.CompileThreshold <= 0 {
		opts.CompileThreshold = DEFAULT_COMPILE_THRESHOLD
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	vm := &VM{
		id:      uuid.New(),
		opts:    opts,
		pool:    NewPool(),
		threads: []*thread{{}},
	}
	vm.globals = vm.pool.NewTable(0, 32)
	vm.pool.Retain(vm.globals)
	vm.openLibs()
	for name, val := range opts.Globals {
		vm.globals.RawSetString(name, val)
	}
	log.Debugf("vm %s: created", vm.id)
	return vm
}

func (vm *VM) ID() uuid.UUID {
	return vm.id
}

func (vm *VM) Status() lua.Status {
	return vm.status
}

func (vm *VM) Pool() *Pool {
	return vm.pool
}

func (vm *VM) Globals() *Table {
	return vm.globals
}

func (vm *VM) GetGlobal(name string) Value {
	return vm.globals.RawGetString(name)
}

func (vm *VM) SetGlobal(name string, val Value) {
	vm.globals.RawSetString(name, val)
}

func (vm *VM) NewTable() *Table {
	return vm.pool.NewTable(0, 0)
}

/* SetTypeMetatable sets the metatable shared by all values of a non-table type */
func (vm *VM) SetTypeMetatable(tp lua.Type, mt *Table) {
	if tp < 0 || tp >= lua.NUMTAGS || tp == lua.TTABLE {
		panic(&ContractViolation{Msg: "no type metatable for " + tp.String()})
	}
	if mt != nil {
		vm.pool.Retain(mt)
	}
	if old := vm.typeMT[tp]; old != nil {
		vm.pool.Release(old)
	}
	vm.typeMT[tp] = mt
}

/* Load validates a bytecode unit and instantiates its main function */
func (vm *VM) Load(p *bytecode.Prototype) (*Function, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	proto := newProto(p)
	proto.Retain()
	vm.files = append(vm.files, proto)
	upvals := make([]*Upvalue, p.UpvalueCount)
	for i := range upvals {
		upvals[i] = &Upvalue{value: Nil}
	}
	log.Debugf("vm %s: loaded %s", vm.id, proto)
	return newFunction(vm, proto, vm.globals, upvals), nil
}

/* Unload drops the references held on behalf of the loaded units */
func (vm *VM) Unload() {
	for _, p := range vm.files {
		p.Release()
	}
	vm.files = nil
}
