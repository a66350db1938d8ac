package loader

import (
	"bytes"

	"github.com/tliron/commonlog"
	"github.com/uganh16/lua51vm/internal/binary"
	"github.com/uganh16/lua51vm/internal/bytecode"
)

var log = commonlog.GetLogger("lua51vm.loader")

/* default search path, as package.path with compiled files */
const DEFAULT_PATH = "./?.luac;./?.cbor;./?/init.luac"

/**
 * Decode reads a bytecode unit: a luac 5.1 precompiled chunk when data
 * starts with the chunk signature, a CBOR prototype tree otherwise.
 */
func Decode(data []byte, name string) (*bytecode.Prototype, error) {
	if binary.IsChunk(data) {
		return binary.Undump(bytes.NewReader(data), name)
	}
	return bytecode.Unmarshal(data)
}
