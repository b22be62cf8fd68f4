// Package wasmtest assembles small WebAssembly binaries for tests.
//
// Only the parts of the binary format the fixtures need are supported:
// function types, imports, function bodies and function exports.
package wasmtest

import (
	"encoding/binary"
	"math"
)

// Value types.
const (
	I32 byte = 0x7f
	I64 byte = 0x7e
	F32 byte = 0x7d
	F64 byte = 0x7c
)

type funcType struct {
	params  []byte
	results []byte
}

type function struct {
	typeIdx uint32
	locals  []byte
	body    Asm
}

type export struct {
	name string
	idx  uint32
}

type imp struct {
	module  string
	name    string
	typeIdx uint32
}

// rawImport is a non-function import with its encoded kind and descriptor.
type rawImport struct {
	module string
	name   string
	desc   []byte
}

// Module collects the sections of a module being assembled.
type Module struct {
	types   []funcType
	imports []imp
	others  []rawImport
	funcs   []function
	exports []export
	memory  bool
}

func (m *Module) typeIndex(params, results []byte) uint32 {
	for i, t := range m.types {
		if string(t.params) == string(params) && string(t.results) == string(results) {
			return uint32(i)
		}
	}
	m.types = append(m.types, funcType{params: params, results: results})
	return uint32(len(m.types) - 1)
}

// Import adds a function import and returns its function index.
// All imports must be added before the first Func.
func (m *Module) Import(module, name string, params, results []byte) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmtest: Import after Func")
	}
	m.imports = append(m.imports, imp{module: module, name: name, typeIdx: m.typeIndex(params, results)})
	return uint32(len(m.imports) - 1)
}

// Func adds a function and returns its function index.
// locals lists one value type per declared local, after the parameters.
func (m *Module) Func(params, results, locals []byte, body Asm) uint32 {
	m.funcs = append(m.funcs, function{
		typeIdx: m.typeIndex(params, results),
		locals:  locals,
		body:    body,
	})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

func (m *Module) Export(name string, idx uint32) {
	m.exports = append(m.exports, export{name: name, idx: idx})
}

// ImportGlobal imports an immutable global of type valType.
func (m *Module) ImportGlobal(module, field string, valType byte) {
	m.others = append(m.others, rawImport{module: module, name: field, desc: []byte{0x03, valType, 0x00}})
}

// ImportTable imports a funcref table with at least one element.
func (m *Module) ImportTable(module, field string) {
	m.others = append(m.others, rawImport{module: module, name: field, desc: []byte{0x01, 0x70, 0x00, 0x01}})
}

// ImportMemory imports one page of linear memory.
func (m *Module) ImportMemory(module, field string) {
	m.others = append(m.others, rawImport{module: module, name: field, desc: []byte{0x02, 0x00, 0x01}})
}

// Memory gives the module one page of linear memory.
func (m *Module) Memory() {
	m.memory = true
}

// Bytes encodes the module.
func (m *Module) Bytes() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	if len(m.types) > 0 {
		var s []byte
		s = uleb(s, uint64(len(m.types)))
		for _, t := range m.types {
			s = append(s, 0x60)
			s = uleb(s, uint64(len(t.params)))
			s = append(s, t.params...)
			s = uleb(s, uint64(len(t.results)))
			s = append(s, t.results...)
		}
		out = section(out, 1, s)
	}

	if len(m.imports)+len(m.others) > 0 {
		var s []byte
		s = uleb(s, uint64(len(m.imports)+len(m.others)))
		for _, i := range m.imports {
			s = name(s, i.module)
			s = name(s, i.name)
			s = append(s, 0x00)
			s = uleb(s, uint64(i.typeIdx))
		}
		for _, i := range m.others {
			s = name(s, i.module)
			s = name(s, i.name)
			s = append(s, i.desc...)
		}
		out = section(out, 2, s)
	}

	if len(m.funcs) > 0 {
		var s []byte
		s = uleb(s, uint64(len(m.funcs)))
		for _, f := range m.funcs {
			s = uleb(s, uint64(f.typeIdx))
		}
		out = section(out, 3, s)
	}

	if m.memory {
		out = section(out, 5, []byte{0x01, 0x00, 0x01})
	}

	if len(m.exports) > 0 {
		var s []byte
		s = uleb(s, uint64(len(m.exports)))
		for _, e := range m.exports {
			s = name(s, e.name)
			s = append(s, 0x00)
			s = uleb(s, uint64(e.idx))
		}
		out = section(out, 7, s)
	}

	if len(m.funcs) > 0 {
		var s []byte
		s = uleb(s, uint64(len(m.funcs)))
		for _, f := range m.funcs {
			var code []byte
			code = uleb(code, uint64(len(f.locals)))
			for _, l := range f.locals {
				code = append(code, 0x01, l)
			}
			code = append(code, f.body...)
			code = append(code, 0x0b)

			s = uleb(s, uint64(len(code)))
			s = append(s, code...)
		}
		out = section(out, 10, s)
	}

	return out
}

func section(out []byte, id byte, contents []byte) []byte {
	out = append(out, id)
	out = uleb(out, uint64(len(contents)))
	return append(out, contents...)
}

func name(out []byte, s string) []byte {
	out = uleb(out, uint64(len(s)))
	return append(out, s...)
}

func uleb(out []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(out []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}

// Asm is a function body under construction. The final end opcode is added by Module.
type Asm []byte

// Block types.
const (
	Void byte = 0x40
)

func (a Asm) Op(ops ...byte) Asm { return append(a, ops...) }

func (a Asm) Unreachable() Asm { return append(a, 0x00) }
func (a Asm) Block() Asm       { return append(a, 0x02, Void) }
func (a Asm) Loop() Asm        { return append(a, 0x03, Void) }
func (a Asm) End() Asm         { return append(a, 0x0b) }
func (a Asm) Br(depth uint32) Asm {
	return uleb(append(a, 0x0c), uint64(depth))
}
func (a Asm) BrIf(depth uint32) Asm {
	return uleb(append(a, 0x0d), uint64(depth))
}
func (a Asm) Return() Asm { return append(a, 0x0f) }
func (a Asm) Drop() Asm   { return append(a, 0x1a) }

func (a Asm) Call(idx uint32) Asm { return uleb(append(a, 0x10), uint64(idx)) }
func (a Asm) Get(idx uint32) Asm  { return uleb(append(a, 0x20), uint64(idx)) }
func (a Asm) Set(idx uint32) Asm  { return uleb(append(a, 0x21), uint64(idx)) }

func (a Asm) I32(v int32) Asm { return sleb(append(a, 0x41), int64(v)) }
func (a Asm) I64(v int64) Asm { return sleb(append(a, 0x42), v) }
func (a Asm) F64(v float64) Asm {
	return binary.LittleEndian.AppendUint64(append(a, 0x44), math.Float64bits(v))
}

// i32 operators.
func (a Asm) I32Eqz() Asm  { return append(a, 0x45) }
func (a Asm) I32GeU() Asm  { return append(a, 0x4f) }
func (a Asm) I32Add() Asm  { return append(a, 0x6a) }
func (a Asm) I32Sub() Asm  { return append(a, 0x6b) }
func (a Asm) I32Or() Asm   { return append(a, 0x72) }
func (a Asm) I32Shl() Asm  { return append(a, 0x74) }
func (a Asm) I32Wrap() Asm { return append(a, 0xa7) }

// f64 operators.
func (a Asm) F64Lt() Asm      { return append(a, 0x63) }
func (a Asm) F64Add() Asm     { return append(a, 0xa0) }
func (a Asm) F64Sub() Asm     { return append(a, 0xa1) }
func (a Asm) F64Mul() Asm     { return append(a, 0xa2) }
func (a Asm) F64Div() Asm     { return append(a, 0xa3) }
func (a Asm) F64FromU32() Asm { return append(a, 0xb8) }

// I32TruncF64U converts the f64 on the stack to an unsigned i32.
func (a Asm) I32TruncF64U() Asm { return append(a, 0xab) }
