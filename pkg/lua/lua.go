package lua

const (
	VERSION_MAJOR = 5
	VERSION_MINOR = 1
)

const VERSION = "Lua 5.1"

/* mark for precompiled code ('<esc>Lua') */
const SIGNATURE = "\x1bLua"

/* option for multiple returns */
const MULTRET = -1

/* number of list items to accumulate before a SETLIST instruction */
const FIELDS_PER_FLUSH = 50

/* limit for tag-method chains (to avoid loops) */
const MAXTAGLOOP = 100

type Type int

/**
 * basic types
 */
const (
	TNONE Type = iota - 1 // -1
	TNIL
	TBOOLEAN
	TNUMBER
	TSTRING
	TTABLE
	TFUNCTION
	TTHREAD

	NUMTAGS
)

var typeNames = [...]string{"no value", "nil", "boolean", "number", "string", "table", "function", "thread"}

func (t Type) String() string {
	if t < TNONE || t >= NUMTAGS {
		return "?"
	}
	return typeNames[t+1]
}

/* type of numbers in Lua */
type Number = float64

/**
 * VM status: the cooperative suspend/resume state machine
 */
type Status int

const (
	RUNNING Status = iota
	SUSPENDING
	SUSPENDED
	RESUMING
)

var statusNames = [...]string{"running", "suspending", "suspended", "resuming"}

func (s Status) String() string {
	if s < RUNNING || s > RESUMING {
		return "?"
	}
	return statusNames[s]
}

/**
 * coroutine status
 */
type CoStatus int

const (
	CO_SUSPENDED CoStatus = iota
	CO_RUNNING
	CO_SUSPENDING
	CO_RESUMING
	CO_DEAD
)

var coStatusNames = [...]string{"suspended", "running", "suspending", "resuming", "dead"}

func (s CoStatus) String() string {
	if s < CO_SUSPENDED || s > CO_DEAD {
		return "?"
	}
	return coStatusNames[s]
}
