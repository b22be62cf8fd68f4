package wasmhost

import (
	"errors"
	"fmt"
)

var errMalformed = errors.New("malformed import section")

// Import kinds in the binary format.
const (
	kindFunc   byte = 0x00
	kindTable  byte = 0x01
	kindMemory byte = 0x02
	kindGlobal byte = 0x03
	kindTag    byte = 0x04
)

var kindNames = map[byte]string{
	kindFunc:   "function",
	kindTable:  "table",
	kindMemory: "memory",
	kindGlobal: "global",
	kindTag:    "tag",
}

type moduleImport struct {
	module string
	name   string
	kind   byte
}

func (i moduleImport) String() string {
	return fmt.Sprintf("%s %s.%s", kindNames[i.kind], i.module, i.name)
}

// readImports lists every import declared by a module binary.
// wazero only reports imported functions and memories, so tables and globals
// have to be read from the import section directly.
func readImports(wasm []byte) ([]moduleImport, error) {
	r := &reader{buf: wasm}
	if len(wasm) < 8 {
		return nil, errMalformed
	}
	r.pos = 8

	for r.pos < len(r.buf) {
		id := r.byte()
		size := r.uleb()
		if r.err != nil || r.pos+int(size) > len(r.buf) {
			return nil, errMalformed
		}
		if id != 2 {
			r.pos += int(size)
			continue
		}

		section := &reader{buf: r.buf[:r.pos+int(size)], pos: r.pos}
		return section.imports()
	}
	return nil, nil
}

type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) imports() ([]moduleImport, error) {
	count := r.uleb()
	var out []moduleImport
	for i := uint64(0); i < count && r.err == nil; i++ {
		imp := moduleImport{module: r.name(), name: r.name(), kind: r.byte()}
		switch imp.kind {
		case kindFunc:
			r.uleb()
		case kindTable:
			r.byte()
			r.limits()
		case kindMemory:
			r.limits()
		case kindGlobal:
			r.byte()
			r.byte()
		case kindTag:
			r.byte()
			r.uleb()
		default:
			return nil, fmt.Errorf("%w: import kind 0x%02x", errMalformed, imp.kind)
		}
		out = append(out, imp)
	}
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

func (r *reader) byte() byte {
	if r.err != nil {
		return 0
	}
	if r.pos >= len(r.buf) {
		r.err = errMalformed
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *reader) uleb() uint64 {
	var v uint64
	for shift := uint(0); shift < 64; shift += 7 {
		b := r.byte()
		if r.err != nil {
			return 0
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v
		}
	}
	r.err = errMalformed
	return 0
}

func (r *reader) name() string {
	n := r.uleb()
	if r.err != nil {
		return ""
	}
	if uint64(len(r.buf)-r.pos) < n {
		r.err = errMalformed
		return ""
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s
}

func (r *reader) limits() {
	flags := r.byte()
	r.uleb()
	if flags&0x01 != 0 {
		r.uleb()
	}
}
