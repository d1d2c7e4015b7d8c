package wasmcore

import (
	"sync"

	"github.com/pieceengine/piece-host/native"
	"github.com/pieceengine/piece-host/native/wasmcore/internal/asm"
)

// Handles returned by the reference core.
const (
	ReferenceGraphicsFactory native.Handle = 0x1001
	ReferenceWindowFactory   native.Handle = 0x2001
	ReferencePhysicsFactory  native.Handle = 0x3001
	ReferenceEngine          native.Handle = 0x8000
)

// Backend creation entry points exported by the reference core.
const (
	SymbolCreateOpenGLGraphicsDeviceFactory = "CreateOpenGLGraphicsDeviceFactory"
	SymbolCreateGlfwWindowFactory           = "CreateGlfwWindowFactory"
	SymbolCreateBox2DPhysicsWorldFactory    = "CreateBox2DPhysicsWorldFactory"
)

// Diagnostic exports of the reference core.
const (
	exportFrameCount      = "piece_frame_count"
	exportRenderCount     = "piece_render_count"
	exportGraphicsFactory = "piece_graphics_factory"
	exportWindowFactory   = "piece_window_factory"
	exportPhysicsFactory  = "piece_physics_factory"
)

const (
	levelTrace int32 = iota
	levelDebug
	levelInfo
	levelWarning
	levelError
)

// heapBase is where piece_alloc starts handing out memory. The string table
// lives below it.
const heapBase = 4096

var (
	referenceOnce sync.Once
	referenceWasm []byte
)

// Reference returns a WebAssembly build of a minimal engine core.
//
// It follows the native core's contract: each setter stores its factory and
// logs, a null factory is refused with an error log, Engine_Initialize logs
// and returns null unless every capability is registered, Update and Render
// count frames, and Engine_Destroy clears the registry. The module also
// exports the three backend creation entry points, so it can serve as its
// own FactorySource.
func Reference() []byte {
	referenceOnce.Do(func() {
		referenceWasm = buildReference()
	})
	return referenceWasm
}

// strtab lays out NUL-terminated strings in a data segment.
type strtab struct {
	base int32
	buf  []byte
}

func (s *strtab) add(msg string) int32 {
	off := s.base + int32(len(s.buf))
	s.buf = append(s.buf, msg...)
	s.buf = append(s.buf, 0)
	return off
}

func buildReference() []byte {
	var (
		i32   = []asm.ValType{asm.I32}
		tLog  = asm.FuncType{Params: []asm.ValType{asm.I32, asm.I32}}
		tMake = asm.FuncType{Results: i32}
		tSet  = asm.FuncType{Params: []asm.ValType{asm.I32, asm.I32, asm.I32}}
		tUpd  = asm.FuncType{Params: []asm.ValType{asm.I32, asm.F32}}
		tH    = asm.FuncType{Params: i32}
		tHH   = asm.FuncType{Params: i32, Results: i32}
	)

	m := &asm.Module{}
	logFn := m.ImportFunc(hostModule, hostLogFunc, tLog)

	strs := &strtab{base: 16}
	log := func(c *asm.Code, level int32, msg string) *asm.Code {
		return c.I32Const(level).I32Const(strs.add(msg)).Call(logFn)
	}

	heap := m.Global(heapBase)
	gfx := m.Global(0)
	win := m.Global(0)
	phys := m.Global(0)
	engine := m.Global(0)
	frames := m.Global(0)
	renders := m.Global(0)

	constant := func(h native.Handle) *asm.Code {
		return asm.NewCode().I32Const(int32(h)).End()
	}
	m.ExportFunc(SymbolCreateOpenGLGraphicsDeviceFactory, m.Func(tMake, constant(ReferenceGraphicsFactory)))
	m.ExportFunc(SymbolCreateGlfwWindowFactory, m.Func(tMake, constant(ReferenceWindowFactory)))
	m.ExportFunc(SymbolCreateBox2DPhysicsWorldFactory, m.Func(tMake, constant(ReferencePhysicsFactory)))

	setter := func(global uint32, iface, symbol string) *asm.Code {
		c := asm.NewCode().LocalGet(0).I32Eqz().If()
		log(c, levelError, "Invalid "+iface+" pointer received.").Return().End()
		c.LocalGet(0).GlobalSet(global)
		return log(c, levelInfo, symbol+" called.").End()
	}
	m.ExportFunc(native.SymbolSetGraphicsDeviceFactory,
		m.Func(tSet, setter(gfx, "IGraphicsDeviceFactory", native.SymbolSetGraphicsDeviceFactory)))
	m.ExportFunc(native.SymbolSetWindowFactory,
		m.Func(tSet, setter(win, "IWindowFactory", native.SymbolSetWindowFactory)))
	m.ExportFunc(native.SymbolSetPhysicsWorldFactory,
		m.Func(tSet, setter(phys, "IPhysicsWorldFactory", native.SymbolSetPhysicsWorldFactory)))

	initialize := asm.NewCode()
	log(initialize, levelInfo, "Engine_Initialize called. Attempting to create EngineCore...")
	for _, req := range []struct {
		global uint32
		iface  string
	}{
		{win, "IWindowFactory"},
		{gfx, "IGraphicsDeviceFactory"},
		{phys, "IPhysicsWorldFactory"},
	} {
		initialize.GlobalGet(req.global).I32Eqz().If()
		log(initialize, levelError, req.iface+" not set in ServiceLocator. Engine cannot initialize.").
			I32Const(0).Return().End()
	}
	log(initialize, levelInfo, "EngineCore: Initialized successfully.")
	initialize.I32Const(int32(ReferenceEngine)).GlobalSet(engine).GlobalGet(engine).End()
	m.ExportFunc(native.SymbolEngineInitialize, m.Func(tMake, initialize))

	update := asm.NewCode().LocalGet(0).I32Eqz().If().Return().End()
	update.GlobalGet(frames).I32Const(1).I32Add().GlobalSet(frames)
	log(update, levelTrace, "EngineCore: physics step.").End()
	m.ExportFunc(native.SymbolEngineUpdate, m.Func(tUpd, update))

	render := asm.NewCode().LocalGet(0).I32Eqz().If().Return().End()
	render.GlobalGet(renders).I32Const(1).I32Add().GlobalSet(renders).End()
	m.ExportFunc(native.SymbolEngineRender, m.Func(tH, render))

	destroy := asm.NewCode()
	log(destroy, levelInfo, "Engine_Destroy called.")
	destroy.LocalGet(0).I32Eqz().If()
	log(destroy, levelWarning, "Engine_Destroy called with null corePtr.").Return().End()
	log(destroy, levelInfo, "EngineCore: Destroyed.")
	for _, g := range []uint32{engine, gfx, win, phys} {
		destroy.I32Const(0).GlobalSet(g)
	}
	destroy.End()
	m.ExportFunc(native.SymbolEngineDestroy, m.Func(tH, destroy))

	// Bump allocator for option blobs.
	alloc := asm.NewCode().
		GlobalGet(heap).
		GlobalGet(heap).LocalGet(0).I32Add().GlobalSet(heap).
		End()
	m.ExportFunc(exportAlloc, m.Func(tHH, alloc))

	for _, diag := range []struct {
		name   string
		global uint32
	}{
		{exportFrameCount, frames},
		{exportRenderCount, renders},
		{exportGraphicsFactory, gfx},
		{exportWindowFactory, win},
		{exportPhysicsFactory, phys},
	} {
		m.ExportFunc(diag.name, m.Func(tMake, asm.NewCode().GlobalGet(diag.global).End()))
	}

	m.Memory(1)
	m.ExportMemory(exportMemory)
	m.Data(strs.base, strs.buf)

	return m.Encode()
}
