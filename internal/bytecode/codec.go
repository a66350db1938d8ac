package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

/* canonical mode keeps encodings of equal trees byte-identical */
var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

/* Marshal serializes a prototype tree to CBOR bytes. */
func Marshal(p *Prototype) ([]byte, error) {
	return encMode.Marshal(p)
}

/* Unmarshal deserializes and validates a prototype tree. */
func Unmarshal(data []byte) (*Prototype, error) {
	var p Prototype
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal prototype: %w", err)
	}
	p.normalize()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("bytecode: %w", err)
	}
	return &p, nil
}

/* decoded CBOR integers come back as int64/uint64; constants are doubles */
func (p *Prototype) normalize() {
	for i, k := range p.Constants {
		switch k := k.(type) {
		case int64:
			p.Constants[i] = float64(k)
		case uint64:
			p.Constants[i] = float64(k)
		case float32:
			p.Constants[i] = float64(k)
		}
	}
	for _, child := range p.Protos {
		child.normalize()
	}
}
