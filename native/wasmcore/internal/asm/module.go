// Package asm assembles small WebAssembly core modules from Go.
//
// It covers the subset needed by the reference engine core: function types,
// function imports, one memory, mutable i32 globals, exports, active data
// segments and a handful of i32 instructions.
package asm

const (
	magic   uint32 = 0x6D736100
	version uint32 = 0x01

	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionMemory   byte = 5
	sectionGlobal   byte = 6
	sectionExport   byte = 7
	sectionCode     byte = 10
	sectionData     byte = 11

	kindFunc   byte = 0
	kindMemory byte = 2

	funcTypeByte byte = 0x60
)

// ValType is a WebAssembly value type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

type funcImport struct {
	module, name string
	typeIdx      uint32
}

type function struct {
	body    []byte
	typeIdx uint32
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type dataSegment struct {
	bytes  []byte
	offset int32
}

// Module accumulates the pieces of a module. Function indices count imports
// first, as in the binary format.
type Module struct {
	types     []FuncType
	imports   []funcImport
	funcs     []function
	globals   []int32
	exports   []export
	data      []dataSegment
	memPages  uint32
	hasMemory bool
}

// Type adds ft, reusing an identical existing entry, and returns its index.
func (m *Module) Type(ft FuncType) uint32 {
	for i, t := range m.types {
		if equalTypes(t.Params, ft.Params) && equalTypes(t.Results, ft.Results) {
			return uint32(i)
		}
	}
	m.types = append(m.types, ft)
	return uint32(len(m.types) - 1)
}

// ImportFunc declares an imported function. All imports must be declared
// before the first Func.
func (m *Module) ImportFunc(module, name string, ft FuncType) uint32 {
	if len(m.funcs) > 0 {
		panic("asm: import declared after a defined function")
	}
	m.imports = append(m.imports, funcImport{module: module, name: name, typeIdx: m.Type(ft)})
	return uint32(len(m.imports) - 1)
}

// Func defines a function and returns its index.
func (m *Module) Func(ft FuncType, body *Code) uint32 {
	m.funcs = append(m.funcs, function{typeIdx: m.Type(ft), body: body.Bytes()})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Global defines a mutable i32 global and returns its index.
func (m *Module) Global(init int32) uint32 {
	m.globals = append(m.globals, init)
	return uint32(len(m.globals) - 1)
}

// Memory defines the module's single memory with a minimum size in pages.
func (m *Module) Memory(pages uint32) {
	m.memPages = pages
	m.hasMemory = true
}

// ExportFunc exports function idx as name.
func (m *Module) ExportFunc(name string, idx uint32) {
	m.exports = append(m.exports, export{name: name, kind: kindFunc, idx: idx})
}

// ExportMemory exports memory 0 as name.
func (m *Module) ExportMemory(name string) {
	m.exports = append(m.exports, export{name: name, kind: kindMemory, idx: 0})
}

// Data places b at offset in memory 0.
func (m *Module) Data(offset int32, b []byte) {
	m.data = append(m.data, dataSegment{offset: offset, bytes: b})
}

// Encode encodes the module to WebAssembly binary format.
func (m *Module) Encode() []byte {
	w := &Writer{}

	w.WriteU32LE(magic)
	w.WriteU32LE(version)

	if len(m.types) > 0 {
		sec := &Writer{}
		sec.WriteU32(uint32(len(m.types)))
		for _, ft := range m.types {
			sec.Byte(funcTypeByte)
			writeValTypes(sec, ft.Params)
			writeValTypes(sec, ft.Results)
		}
		writeSection(w, sectionType, sec.Bytes())
	}

	if len(m.imports) > 0 {
		sec := &Writer{}
		sec.WriteU32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec.WriteName(imp.module)
			sec.WriteName(imp.name)
			sec.Byte(kindFunc)
			sec.WriteU32(imp.typeIdx)
		}
		writeSection(w, sectionImport, sec.Bytes())
	}

	if len(m.funcs) > 0 {
		sec := &Writer{}
		sec.WriteU32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.WriteU32(f.typeIdx)
		}
		writeSection(w, sectionFunction, sec.Bytes())
	}

	if m.hasMemory {
		sec := &Writer{}
		sec.WriteU32(1)
		sec.Byte(0x00) // no maximum
		sec.WriteU32(m.memPages)
		writeSection(w, sectionMemory, sec.Bytes())
	}

	if len(m.globals) > 0 {
		sec := &Writer{}
		sec.WriteU32(uint32(len(m.globals)))
		for _, init := range m.globals {
			sec.Byte(byte(I32))
			sec.Byte(0x01) // mutable
			sec.Byte(opI32Const)
			sec.WriteS32(init)
			sec.Byte(opEnd)
		}
		writeSection(w, sectionGlobal, sec.Bytes())
	}

	if len(m.exports) > 0 {
		sec := &Writer{}
		sec.WriteU32(uint32(len(m.exports)))
		for _, e := range m.exports {
			sec.WriteName(e.name)
			sec.Byte(e.kind)
			sec.WriteU32(e.idx)
		}
		writeSection(w, sectionExport, sec.Bytes())
	}

	if len(m.funcs) > 0 {
		sec := &Writer{}
		sec.WriteU32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			body := &Writer{}
			body.WriteU32(0) // no locals beyond params
			body.WriteBytes(f.body)
			sec.WriteU32(uint32(len(body.Bytes())))
			sec.WriteBytes(body.Bytes())
		}
		writeSection(w, sectionCode, sec.Bytes())
	}

	if len(m.data) > 0 {
		sec := &Writer{}
		sec.WriteU32(uint32(len(m.data)))
		for _, d := range m.data {
			sec.WriteU32(0) // active, memory 0
			sec.Byte(opI32Const)
			sec.WriteS32(d.offset)
			sec.Byte(opEnd)
			sec.WriteU32(uint32(len(d.bytes)))
			sec.WriteBytes(d.bytes)
		}
		writeSection(w, sectionData, sec.Bytes())
	}

	return w.Bytes()
}

func writeSection(w *Writer, id byte, payload []byte) {
	w.Byte(id)
	w.WriteU32(uint32(len(payload)))
	w.WriteBytes(payload)
}

func writeValTypes(w *Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func equalTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
