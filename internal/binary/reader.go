package binary

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/uganh16/lua51vm/internal/bytecode"
	"github.com/uganh16/lua51vm/pkg/lua"
)

/* upper bound on any element count, far above what luac emits */
const MAX_COUNT = 1 << 24

type reader struct {
	in        io.Reader
	order     binary.ByteOrder
	intSize   int
	sizetSize int
}

func (r *reader) checkHeader() {
	r.checkLiteral(lua.SIGNATURE, "not a")
	if r.readByte() != LUAC_VERSION {
		panic(bailoutF("version mismatch in"))
	}
	if r.readByte() != LUAC_FORMAT {
		panic(bailoutF("format mismatch in"))
	}
	switch r.readByte() {
	case 0:
		r.order = binary.BigEndian
	case 1:
		r.order = binary.LittleEndian
	default:
		panic(bailoutF("endianness mismatch in"))
	}
	r.intSize = r.checkSize("int", 4, 8)
	r.sizetSize = r.checkSize("size_t", 4, 8)
	r.checkSize("Instruction", INSTRUCTION_SIZE)
	r.checkSize("lua_Number", LUA_NUMBER_SIZE)
	if r.readByte() != 0 {
		panic(bailoutF("integral number format in"))
	}
}

func (r *reader) checkLiteral(s string, msg string) {
	if string(r.readBytes(uint64(len(s)))) != s {
		panic(bailoutF(msg))
	}
}

func (r *reader) checkSize(name string, sizes ...int) int {
	size := int(r.readByte())
	for _, s := range sizes {
		if size == s {
			return size
		}
	}
	panic(bailoutF("%s size mismatch in", name))
}

func (r *reader) readProto(parentSource string) *bytecode.Prototype {
	source := r.readString()
	if source == "" {
		source = parentSource
	}
	p := &bytecode.Prototype{
		Source:          source,
		LineDefined:     r.readInt(),
		LastLineDefined: r.readInt(),
		UpvalueCount:    int(r.readByte()),
		ParamCount:      int(r.readByte()),
	}
	flags := r.readByte()
	p.IsVararg = flags&VARARG_ISVARARG != 0
	p.NeedsArg = flags&VARARG_NEEDSARG != 0
	p.MaxStackSize = int(r.readByte())
	p.Code = r.readCode()
	p.Constants = r.readConstants()
	p.Protos = r.readProtos(source)
	p.LineInfo = r.readLineInfo()
	p.LocVars = r.readLocVars()
	p.UpvalueNames = r.readUpvalueNames()
	return p
}

func (r *reader) readCode() []bytecode.Instruction {
	code := make([]bytecode.Instruction, r.readCount(INSTRUCTION_SIZE))
	for i := range code {
		code[i] = bytecode.Decode(r.readUint32())
	}
	return code
}

func (r *reader) readConstants() []any {
	constants := make([]any, r.readCount(1))
	for i := range constants {
		switch r.readByte() {
		case LUA_TNIL:
			constants[i] = nil
		case LUA_TBOOLEAN:
			constants[i] = r.readByte() != 0
		case LUA_TNUMBER:
			constants[i] = r.readFloat64()
		case LUA_TSTRING:
			constants[i] = r.readString()
		default:
			panic(bailoutF("bad constant in"))
		}
	}
	return constants
}

func (r *reader) readProtos(parentSource string) []*bytecode.Prototype {
	protos := make([]*bytecode.Prototype, r.readCount(r.sizetSize+2*r.intSize+4))
	for i := range protos {
		protos[i] = r.readProto(parentSource)
	}
	return protos
}

func (r *reader) readLineInfo() []int {
	lineInfo := make([]int, r.readCount(r.intSize))
	for i := range lineInfo {
		lineInfo[i] = r.readInt()
	}
	return lineInfo
}

func (r *reader) readLocVars() []bytecode.LocVar {
	locVars := make([]bytecode.LocVar, r.readCount(r.sizetSize+2*r.intSize))
	for i := range locVars {
		locVars[i] = bytecode.LocVar{
			VarName: r.readString(),
			StartPC: r.readInt(),
			EndPC:   r.readInt(),
		}
	}
	return locVars
}

func (r *reader) readUpvalueNames() []string {
	upvalueNames := make([]string, r.readCount(r.sizetSize))
	for i := range upvalueNames {
		upvalueNames[i] = r.readString()
	}
	return upvalueNames
}

/* readCount reads the number of elements of at least size bytes each that follow */
func (r *reader) readCount(size int) int {
	n := r.readInt()
	if n < 0 || n > MAX_COUNT {
		panic(bailoutF("bad size in"))
	}
	if uint64(n)*uint64(size) > r.remaining() {
		panic(bailoutF("truncated"))
	}
	return n
}

/* remaining is the number of unread bytes when the input knows it */
func (r *reader) remaining() uint64 {
	if l, ok := r.in.(interface{ Len() int }); ok {
		return uint64(l.Len())
	}
	return math.MaxUint64
}

func (r *reader) readFloat64() float64 {
	return math.Float64frombits(r.order.Uint64(r.readBytes(8)))
}

func (r *reader) readUint32() uint32 {
	return r.order.Uint32(r.readBytes(4))
}

func (r *reader) readInt() int {
	if r.intSize == 8 {
		return int(int64(r.order.Uint64(r.readBytes(8))))
	}
	return int(int32(r.order.Uint32(r.readBytes(4))))
}

func (r *reader) readSizeT() uint64 {
	if r.sizetSize == 8 {
		return r.order.Uint64(r.readBytes(8))
	}
	return uint64(r.order.Uint32(r.readBytes(4)))
}

/* strings carry their trailing NUL; size 0 means no string */
func (r *reader) readString() string {
	n := r.readSizeT()
	if n == 0 {
		return ""
	}
	if n > r.remaining() {
		panic(bailoutF("truncated"))
	}
	b := r.readBytes(n)
	return string(b[:n-1])
}

func (r *reader) readByte() byte {
	return r.readBytes(1)[0]
}

func (r *reader) readBytes(n uint64) []byte {
	if n > 1<<31 {
		panic(bailoutF("bad size in"))
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.in, b); err != nil {
		panic(bailoutF("truncated"))
	}
	return b
}
