package binary

import (
	"errors"
	"fmt"
	"io"

	"github.com/uganh16/lua51vm/internal/bytecode"
	"github.com/uganh16/lua51vm/pkg/lua"
)

const LUAC_VERSION = lua.VERSION_MAJOR*16 + lua.VERSION_MINOR

/* this is the official format */
const LUAC_FORMAT = 0

const (
	INSTRUCTION_SIZE = 4
	LUA_NUMBER_SIZE  = 8
)

/* constant tags in a 5.1 dump */
const (
	LUA_TNIL     = 0
	LUA_TBOOLEAN = 1
	LUA_TNUMBER  = 3
	LUA_TSTRING  = 4
)

/* vararg flags */
const (
	VARARG_HASARG   = 1
	VARARG_ISVARARG = 2
	VARARG_NEEDSARG = 4
)

/* ParseError reports a malformed precompiled chunk. */
type ParseError struct {
	Name   string
	Reason string
}

func (e *ParseError) Error() string {
	name := e.Name
	if name == "" {
		name = "?"
	}
	return fmt.Sprintf("%s: %s precompiled chunk", name, e.Reason)
}

func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

type bailout string

func bailoutF(format string, a ...any) bailout {
	return bailout(fmt.Sprintf(format, a...))
}

/* IsChunk reports whether data starts with the precompiled-code signature. */
func IsChunk(data []byte) bool {
	return len(data) >= len(lua.SIGNATURE) && string(data[:len(lua.SIGNATURE)]) == lua.SIGNATURE
}

func Undump(in io.Reader, name string) (proto *bytecode.Prototype, err error) {
	defer func() {
		switch x := recover().(type) {
		case nil:
			/* no panic */
		case bailout:
			err = &ParseError{Name: name, Reason: string(x)}
		default:
			panic(x)
		}
	}()

	r := &reader{in: in}
	r.checkHeader()
	proto = r.readProto("=?")
	if verr := proto.Validate(); verr != nil {
		return nil, &ParseError{Name: name, Reason: "invalid (" + verr.Error() + ") in"}
	}
	return proto, nil
}
