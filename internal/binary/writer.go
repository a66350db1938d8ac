package binary

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/uganh16/lua51vm/internal/bytecode"
	"github.com/uganh16/lua51vm/pkg/lua"
)

type writer struct {
	out   *bufio.Writer
	order binary.ByteOrder
}

/**
 * Dump writes p as a Lua 5.1 precompiled chunk for a little-endian host
 * with 4-byte ints and 8-byte size_t, the layout produced by luac on
 * common 64-bit platforms.
 */
func Dump(out io.Writer, p *bytecode.Prototype) error {
	w := &writer{out: bufio.NewWriter(out), order: binary.LittleEndian}
	w.writeHeader()
	if err := w.writeProto(p, ""); err != nil {
		return err
	}
	return w.out.Flush()
}

func (w *writer) writeHeader() {
	w.out.WriteString(lua.SIGNATURE)
	w.out.WriteByte(LUAC_VERSION)
	w.out.WriteByte(LUAC_FORMAT)
	w.out.WriteByte(1) /* little endian */
	w.out.WriteByte(4) /* int */
	w.out.WriteByte(8) /* size_t */
	w.out.WriteByte(INSTRUCTION_SIZE)
	w.out.WriteByte(LUA_NUMBER_SIZE)
	w.out.WriteByte(0) /* floating-point numbers */
}

func (w *writer) writeProto(p *bytecode.Prototype, parentSource string) error {
	if p.Source == parentSource {
		w.writeString("")
	} else {
		w.writeString(p.Source)
	}
	w.writeInt(p.LineDefined)
	w.writeInt(p.LastLineDefined)
	w.out.WriteByte(byte(p.UpvalueCount))
	w.out.WriteByte(byte(p.ParamCount))
	var flags byte
	if p.IsVararg {
		flags |= VARARG_ISVARARG
	}
	if p.NeedsArg {
		flags |= VARARG_NEEDSARG
	}
	w.out.WriteByte(flags)
	w.out.WriteByte(byte(p.MaxStackSize))

	w.writeInt(len(p.Code))
	for _, i := range p.Code {
		w.writeUint32(i.Encode())
	}

	w.writeInt(len(p.Constants))
	for _, k := range p.Constants {
		switch k := k.(type) {
		case nil:
			w.out.WriteByte(LUA_TNIL)
		case bool:
			w.out.WriteByte(LUA_TBOOLEAN)
			if k {
				w.out.WriteByte(1)
			} else {
				w.out.WriteByte(0)
			}
		case float64:
			w.out.WriteByte(LUA_TNUMBER)
			w.writeUint64(math.Float64bits(k))
		case string:
			w.out.WriteByte(LUA_TSTRING)
			w.writeString(k)
		default:
			return fmt.Errorf("dump: unsupported constant type %T", k)
		}
	}

	w.writeInt(len(p.Protos))
	for _, child := range p.Protos {
		if err := w.writeProto(child, p.Source); err != nil {
			return err
		}
	}

	w.writeInt(len(p.LineInfo))
	for _, line := range p.LineInfo {
		w.writeInt(line)
	}
	w.writeInt(len(p.LocVars))
	for _, v := range p.LocVars {
		w.writeString(v.VarName)
		w.writeInt(v.StartPC)
		w.writeInt(v.EndPC)
	}
	w.writeInt(len(p.UpvalueNames))
	for _, name := range p.UpvalueNames {
		w.writeString(name)
	}
	return nil
}

func (w *writer) writeString(s string) {
	if s == "" {
		w.writeUint64(0)
		return
	}
	w.writeUint64(uint64(len(s) + 1))
	w.out.WriteString(s)
	w.out.WriteByte(0)
}

func (w *writer) writeInt(n int) {
	w.writeUint32(uint32(int32(n)))
}

func (w *writer) writeUint32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.out.Write(b[:])
}

func (w *writer) writeUint64(v uint64) {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	w.out.Write(b[:])
}
