package debug

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
	"github.com/uganh16/lua51vm/internal/state"
)

var log = commonlog.GetLogger("lua51vm.debug")

type Breakpoint struct {
	Chunk string /* chunk name without the '@' or '=' prefix */
	Line  int
}

func (bp Breakpoint) String() string {
	return fmt.Sprintf("%s:%d", bp.Chunk, bp.Line)
}

/* ParseBreakpoint reads "chunk:line" */
func ParseBreakpoint(s string) (Breakpoint, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 {
		return Breakpoint{}, fmt.Errorf("bad breakpoint %q, want chunk:line", s)
	}
	line, err := strconv.Atoi(s[i+1:])
	if err != nil || line <= 0 {
		return Breakpoint{}, fmt.Errorf("bad breakpoint line in %q", s)
	}
	return Breakpoint{Chunk: s[:i], Line: line}, nil
}

type Local struct {
	Name  string
	Value state.Value
}

/* Stop describes where the debugger paused the VM */
type Stop struct {
	Closure *state.Closure
	At      Breakpoint
	Step    bool
}

/**
 * Debugger pauses the VM before the first instruction of a line carrying a
 * breakpoint, or of any new line after Step. OnStop is called with the VM
 * about to suspend; the host continues it with Resume.
 */
type Debugger struct {
	OnStop func(Stop)

	breakpoints map[Breakpoint]bool
	stepping    bool
	lastErr     *state.RuntimeError
}

func NewDebugger(breakpoints ...Breakpoint) *Debugger {
	d := &Debugger{breakpoints: make(map[Breakpoint]bool)}
	for _, bp := range breakpoints {
		d.Set(bp)
	}
	return d
}

func (d *Debugger) Set(bp Breakpoint) {
	d.breakpoints[bp] = true
}

func (d *Debugger) Clear(bp Breakpoint) {
	delete(d.breakpoints, bp)
}

func (d *Debugger) Breakpoints() []Breakpoint {
	bps := make([]Breakpoint, 0, len(d.breakpoints))
	for bp := range d.breakpoints {
		bps = append(bps, bp)
	}
	return bps
}

/* Step pauses again at the next line reached */
func (d *Debugger) Step() {
	d.stepping = true
}

/* LastError is the latest error seen unwinding a Lua activation */
func (d *Debugger) LastError() *state.RuntimeError {
	return d.lastErr
}

func (d *Debugger) BeforeInstruction(cl *state.Closure, pc int) bool {
	p := cl.Function().Proto().Prototype()
	line := p.Line(pc)
	if line <= 0 || (pc > 0 && p.Line(pc-1) == line) {
		return false /* not at the start of a line */
	}
	at := Breakpoint{Chunk: chunkName(p.Source), Line: line}
	step := d.stepping
	if !step && !d.breakpoints[at] {
		return false
	}
	d.stepping = false
	log.Debugf("pause at %s", at)
	if d.OnStop != nil {
		d.OnStop(Stop{Closure: cl, At: at, Step: step})
	}
	return true
}

func (d *Debugger) OnError(err *state.RuntimeError) {
	d.lastErr = err
	log.Debugf("error: %s", err)
}

/* Locals lists the named locals active in the paused activation */
func Locals(cl *state.Closure) []Local {
	p := cl.Function().Proto().Prototype()
	var locals []Local
	for n := 1; ; n++ {
		name := p.LocalName(n, cl.PC())
		if name == "" {
			return locals
		}
		locals = append(locals, Local{Name: name, Value: cl.Register(n - 1)})
	}
}

func chunkName(source string) string {
	if strings.HasPrefix(source, "@") || strings.HasPrefix(source, "=") {
		return source[1:]
	}
	return source
}
