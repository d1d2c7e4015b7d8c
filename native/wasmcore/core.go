package wasmcore

import (
	"bytes"
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/native"
)

const (
	hostModule   = "env"
	hostLogFunc  = "piece_log"
	exportAlloc  = "piece_alloc"
	exportMemory = "memory"

	// DefaultModuleName is the instance name used when Config.ModuleName is empty.
	DefaultModuleName = "piece_core"

	// maxMessageLen bounds the NUL scan for one log message.
	maxMessageLen = 64 << 10
)

var requiredExports = []string{
	native.SymbolSetGraphicsDeviceFactory,
	native.SymbolSetWindowFactory,
	native.SymbolSetPhysicsWorldFactory,
	native.SymbolEngineInitialize,
	native.SymbolEngineUpdate,
	native.SymbolEngineRender,
	native.SymbolEngineDestroy,
}

// Config holds configuration for loading a core module.
type Config struct {
	// Logger receives load diagnostics. Nil uses the package Logger.
	Logger *zap.Logger

	// ModuleName is the instance name. Empty means DefaultModuleName.
	ModuleName string

	// MemoryLimitPages sets the maximum memory of the core in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// Core is a native.Core backed by a WebAssembly module running in wazero.
//
// Calls into the module are serialized. Log events raised by the module
// through env.piece_log reach the registered LogFunc synchronously, on the
// calling goroutine, with the message viewed directly in the module's memory.
// A LogFunc must not call back into the Core.
type Core struct {
	runtime wazero.Runtime
	mod     api.Module
	log     *zap.Logger

	mu     sync.Mutex
	fns    map[string]api.Function
	alloc  api.Function
	closed bool

	logFn atomic.Pointer[native.LogFunc]
}

// LoadReference loads the built-in reference core.
func LoadReference(ctx context.Context, cfg *Config) (*Core, error) {
	return Load(ctx, Reference(), cfg)
}

// Load compiles and instantiates wasm as an engine core.
func Load(ctx context.Context, wasm []byte, cfg *Config) (*Core, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	name := cfg.ModuleName
	if name == "" {
		name = DefaultModuleName
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	c := &Core{
		runtime: r,
		log:     log,
		fns:     make(map[string]api.Function, len(requiredExports)),
	}

	_, err := r.NewHostModuleBuilder(hostModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(c.hostLog),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil).
		WithParameterNames("level", "message").
		Export(hostLogFunc).
		Instantiate(ctx)
	if err != nil {
		r.Close(ctx)
		return nil, errors.Load("instantiating host module", err)
	}

	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		r.Close(ctx)
		return nil, errors.Load("compiling core module", err)
	}

	mod, err := r.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	if err != nil {
		r.Close(ctx)
		return nil, errors.Load("instantiating core module", err)
	}
	c.mod = mod

	for _, sym := range requiredExports {
		fn := mod.ExportedFunction(sym)
		if fn == nil {
			r.Close(ctx)
			return nil, errors.SymbolMissing(errors.PhaseLoad, sym, nil)
		}
		c.fns[sym] = fn
	}
	c.alloc = mod.ExportedFunction(exportAlloc)

	log.Debug("engine core loaded",
		zap.String("module", name),
		zap.Int("exports", len(compiled.ExportedFunctions())),
		zap.Bool("alloc", c.alloc != nil))
	return c, nil
}

// hostLog implements env.piece_log(level i32, message i32).
func (c *Core) hostLog(_ context.Context, mod api.Module, stack []uint64) {
	fn := c.logFn.Load()
	if fn == nil {
		return
	}
	level := api.DecodeI32(stack[0])
	ptr := api.DecodeU32(stack[1])
	msg, truncated := cString(mod.Memory(), ptr)
	if truncated {
		c.log.Debug("native log message truncated",
			zap.Int32("raw_level", level),
			zap.Uint32("ptr", ptr),
			zap.Int("len", len(msg)))
	}
	(*fn)(level, msg)
}

// cString returns a view of the NUL-terminated string at ptr, without the
// terminator. The view aliases guest memory. truncated is set when no
// terminator was found within maxMessageLen bytes or before the end of memory.
func cString(mem api.Memory, ptr uint32) (msg []byte, truncated bool) {
	if mem == nil || ptr == 0 || ptr >= mem.Size() {
		return nil, false
	}
	n := mem.Size() - ptr
	if n > maxMessageLen {
		n = maxMessageLen
	}
	buf, ok := mem.Read(ptr, n)
	if !ok {
		return nil, false
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return buf[:i], false
	}
	return buf, true
}

func (c *Core) SetFactory(ctx context.Context, kind native.Capability, factory native.Handle, options []byte) error {
	sym := native.SetterSymbol(kind)
	if sym == "" {
		return errors.InvalidInput(errors.PhaseRegister, kind.String()+" is not a capability kind")
	}
	h, err := handle32(errors.PhaseRegister, factory)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var ptr uint32
	if len(options) > 0 {
		if ptr, err = c.writeLocked(ctx, options); err != nil {
			return err
		}
	}
	_, err = c.callLocked(ctx, errors.PhaseRegister, sym,
		api.EncodeU32(h), api.EncodeU32(ptr), api.EncodeU32(uint32(len(options))))
	return err
}

// writeLocked copies blob into guest memory obtained from piece_alloc.
func (c *Core) writeLocked(ctx context.Context, blob []byte) (uint32, error) {
	if c.alloc == nil {
		return 0, errors.Unsupported(errors.PhaseRegister, "core does not export "+exportAlloc+", options cannot be passed")
	}
	res, err := c.callFnLocked(ctx, errors.PhaseRegister, exportAlloc, c.alloc, uint64(len(blob)))
	if err != nil {
		return 0, err
	}
	ptr := api.DecodeU32(res[0])
	if !c.mod.Memory().Write(ptr, blob) {
		return 0, errors.New(errors.PhaseRegister, errors.KindNativeCall).
			Symbol(exportAlloc).
			Detail("allocated block [%d, %d) is outside guest memory", ptr, uint64(ptr)+uint64(len(blob))).
			Build()
	}
	return ptr, nil
}

// RegisterLogCallback installs fn for env.piece_log. The last registration
// wins; a nil fn drops events.
func (c *Core) RegisterLogCallback(ctx context.Context, fn native.LogFunc) error {
	if fn == nil {
		c.logFn.Store(nil)
		return nil
	}
	c.logFn.Store(&fn)
	return nil
}

func (c *Core) Initialize(ctx context.Context) (native.Handle, error) {
	res, err := c.call(ctx, errors.PhaseInitialize, native.SymbolEngineInitialize)
	if err != nil {
		return 0, err
	}
	return native.Handle(api.DecodeU32(res[0])), nil
}

func (c *Core) Update(ctx context.Context, engine native.Handle, deltaTime float32) error {
	h, err := handle32(errors.PhaseUpdate, engine)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, errors.PhaseUpdate, native.SymbolEngineUpdate,
		api.EncodeU32(h), api.EncodeF32(deltaTime))
	return err
}

func (c *Core) Render(ctx context.Context, engine native.Handle) error {
	h, err := handle32(errors.PhaseRender, engine)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, errors.PhaseRender, native.SymbolEngineRender, api.EncodeU32(h))
	return err
}

func (c *Core) Destroy(ctx context.Context, engine native.Handle) error {
	h, err := handle32(errors.PhaseDestroy, engine)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, errors.PhaseDestroy, native.SymbolEngineDestroy, api.EncodeU32(h))
	return err
}

// CreateFactory calls an exported () -> i32 creation entry point.
func (c *Core) CreateFactory(ctx context.Context, symbol string) (native.Handle, error) {
	fn := c.mod.ExportedFunction(symbol)
	if fn == nil {
		return 0, errors.SymbolMissing(errors.PhaseRegister, symbol, nil)
	}
	def := fn.Definition()
	if len(def.ParamTypes()) != 0 || len(def.ResultTypes()) != 1 || def.ResultTypes()[0] != api.ValueTypeI32 {
		return 0, errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Symbol(symbol).
			Detail("creation entry point must have signature () -> i32").
			Build()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.callFnLocked(ctx, errors.PhaseRegister, symbol, fn)
	if err != nil {
		return 0, err
	}
	return native.Handle(api.DecodeU32(res[0])), nil
}

// Diagnostics are counters exported by cores that support them.
type Diagnostics struct {
	Frames   uint32
	Renders  uint32
	Graphics native.Handle
	Window   native.Handle
	Physics  native.Handle
}

// Diagnostics reads the optional diagnostic exports. Missing exports read as zero.
func (c *Core) Diagnostics(ctx context.Context) (Diagnostics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var d Diagnostics
	for _, f := range []struct {
		name string
		dst  *uint32
	}{
		{exportFrameCount, &d.Frames},
		{exportRenderCount, &d.Renders},
	} {
		v, err := c.readLocked(ctx, f.name)
		if err != nil {
			return Diagnostics{}, err
		}
		*f.dst = v
	}
	for _, f := range []struct {
		name string
		dst  *native.Handle
	}{
		{exportGraphicsFactory, &d.Graphics},
		{exportWindowFactory, &d.Window},
		{exportPhysicsFactory, &d.Physics},
	} {
		v, err := c.readLocked(ctx, f.name)
		if err != nil {
			return Diagnostics{}, err
		}
		*f.dst = native.Handle(v)
	}
	return d, nil
}

func (c *Core) readLocked(ctx context.Context, name string) (uint32, error) {
	fn := c.mod.ExportedFunction(name)
	if fn == nil {
		return 0, nil
	}
	res, err := c.callFnLocked(ctx, errors.PhaseUpdate, name, fn)
	if err != nil || len(res) == 0 {
		return 0, err
	}
	return api.DecodeU32(res[0]), nil
}

// Close releases the wazero runtime. The core must not be used afterward.
func (c *Core) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.logFn.Store(nil)
	return c.runtime.Close(ctx)
}

func (c *Core) call(ctx context.Context, phase errors.Phase, symbol string, params ...uint64) ([]uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callLocked(ctx, phase, symbol, params...)
}

func (c *Core) callLocked(ctx context.Context, phase errors.Phase, symbol string, params ...uint64) ([]uint64, error) {
	return c.callFnLocked(ctx, phase, symbol, c.fns[symbol], params...)
}

func (c *Core) callFnLocked(ctx context.Context, phase errors.Phase, symbol string, fn api.Function, params ...uint64) ([]uint64, error) {
	if c.closed {
		return nil, errors.NativeCall(phase, symbol, errClosed)
	}
	res, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.NativeCall(phase, symbol, err)
	}
	return res, nil
}

var errClosed = errors.Unsupported(errors.PhaseLoad, "core is closed")

// handle32 narrows a handle to the 32-bit pointers of wasm32.
func handle32(phase errors.Phase, h native.Handle) (uint32, error) {
	if uint64(h) > math.MaxUint32 {
		return 0, errors.InvalidInput(phase, "handle "+h.String()+" does not fit a 32-bit address")
	}
	return uint32(h), nil
}

var (
	_ native.Core          = (*Core)(nil)
	_ native.FactorySource = (*Core)(nil)
)
