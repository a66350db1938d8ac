package state

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

/* maximum size of a chunk id in messages */
const IDSIZE = 60

type ErrorKind int

const (
	KindRuntime  ErrorKind = iota
	KindHostCall           /* a Go error or panic escaping a host function */
	KindUsage              /* bad argument to a library function */
)

func (k ErrorKind) String() string {
	switch k {
	case KindRuntime:
		return "runtime"
	case KindHostCall:
		return "host call"
	case KindUsage:
		return "usage"
	}
	return "?"
}

type TraceEntry struct {
	Function *Function
	PC       int
}

func (e TraceEntry) Line() int {
	return e.Function.proto.bc.Line(e.PC)
}

func (e TraceEntry) String() string {
	p := e.Function.proto
	pos := chunkID(p.bc.Source)
	if line := e.Line(); line > 0 {
		pos = fmt.Sprintf("%s:%d", pos, line)
	}
	if p.bc.LineDefined == 0 {
		return pos + ": in main chunk"
	}
	return fmt.Sprintf("%s: in function <%s:%d>", pos, chunkID(p.bc.Source), p.bc.LineDefined)
}

/**
 * RuntimeError carries a Lua error value out of the VM. Trace lists the
 * activations the error unwound, innermost first.
 */
type RuntimeError struct {
	Value     Value
	Kind      ErrorKind
	Trace     []TraceEntry
	HostStack []byte
	Cause     error

	level int /* activations left before the position is prefixed */
}

func newRuntimeError(format string, args ...any) *RuntimeError {
	return &RuntimeError{Value: String(fmt.Sprintf(format, args...)), level: 1}
}

/**
 * NewError makes an error raising val. A string value gets the position of
 * the level-th Lua activation it unwinds; level 0 leaves it untouched.
 */
func NewError(val Value, level int) *RuntimeError {
	return &RuntimeError{Value: val, level: level}
}

/* ArgError reports a bad argument to a library function */
func ArgError(n int, fname, extra string) *RuntimeError {
	err := newRuntimeError("bad argument #%d to '%s' (%s)", n, fname, extra)
	err.Kind = KindUsage
	return err
}

func asRuntimeError(err error) *RuntimeError {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re
	}
	return &RuntimeError{Value: String(err.Error()), Kind: KindHostCall, Cause: err, level: 1}
}

func (e *RuntimeError) Error() string {
	switch v := e.Value.(type) {
	case String:
		return string(v)
	case Number:
		return v.String()
	case nil, nilValue:
		return "nil"
	}
	return fmt.Sprintf("(error object is a %s value)", typeName(e.Value))
}

func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

func (e *RuntimeError) addTrace(cl *Closure, pc int) {
	cl.fn.proto.Retain()
	e.Trace = append(e.Trace, TraceEntry{Function: cl.fn, PC: pc})
	if e.level > 0 {
		e.level--
		if e.level == 0 {
			if s, ok := e.Value.(String); ok {
				e.Value = String(where(cl, pc) + string(s))
			}
		}
	}
	if len(e.Trace) == 1 {
		if dbg := cl.vm.opts.Debugger; dbg != nil {
			dbg.OnError(e)
		}
	}
}

/* Release gives up the prototypes held by the trace entries */
func (e *RuntimeError) Release() {
	for _, t := range e.Trace {
		t.Function.proto.Release()
	}
	e.Trace = nil
}

func (e *RuntimeError) Traceback() string {
	var buf bytes.Buffer
	buf.WriteString(e.Error())
	if len(e.Trace) > 0 {
		buf.WriteString("\nstack traceback:")
		for _, t := range e.Trace {
			buf.WriteString("\n\t")
			buf.WriteString(t.String())
		}
	}
	if len(e.HostStack) > 0 {
		buf.WriteString("\nhost stack:\n")
		buf.Write(e.HostStack)
	}
	return buf.String()
}

/* ContractViolation is panicked when the host misuses the VM API */
type ContractViolation struct {
	Msg string
}

func (c *ContractViolation) Error() string {
	return c.Msg
}

func where(cl *Closure, pc int) string {
	if line := cl.proto.bc.Line(pc); line > 0 {
		return fmt.Sprintf("%s:%d: ", chunkID(cl.proto.bc.Source), line)
	}
	return ""
}

func chunkID(source string) string {
	switch {
	case strings.HasPrefix(source, "="): /* 'literal' source */
		if len(source) > IDSIZE {
			return source[1:IDSIZE]
		}
		return source[1:]
	case strings.HasPrefix(source, "@"): /* file name */
		if s := source[1:]; len(s) > IDSIZE-1 {
			return "..." + s[len(s)-(IDSIZE-4):]
		} else {
			return s
		}
	default: /* string; format as [string "source"] */
		s := source
		if i := strings.IndexAny(s, "\r\n"); i >= 0 {
			s = s[:i] + "..."
		}
		if limit := IDSIZE - len(`[string ""]`); len(s) > limit {
			s = s[:limit-3] + "..."
		}
		return `[string "` + s + `"]`
	}
}
