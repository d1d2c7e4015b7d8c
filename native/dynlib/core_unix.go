//go:build darwin || linux || freebsd

package dynlib

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/native"
)

// maxMessageLen bounds the NUL scan for one log message.
const maxMessageLen = 64 << 10

// Core is a native.Core bound to the engine core shared library.
type Core struct {
	lib *Library
	log *zap.Logger

	setters     map[native.Capability]func(factory, options uintptr, length uint32)
	registerLog func(callback uintptr)
	initialize  func() uintptr
	update      func(engine uintptr, deltaTime float32)
	render      func(engine uintptr)
	destroy     func(engine uintptr)

	mu       sync.Mutex
	callback uintptr
	logFn    atomic.Pointer[native.LogFunc]
}

// OpenCore loads the core library at path and binds every entry point.
func OpenCore(path string) (*Core, error) {
	lib, err := Open(path)
	if err != nil {
		return nil, err
	}
	c, err := bindCore(lib)
	if err != nil {
		lib.Close()
		return nil, err
	}
	return c, nil
}

func bindCore(lib *Library) (*Core, error) {
	c := &Core{
		lib:     lib,
		log:     Logger().Named("core"),
		setters: make(map[native.Capability]func(uintptr, uintptr, uint32), len(native.Capabilities)),
	}

	bind := func(fptr any, symbol string) error {
		sym, err := lib.Lookup(symbol)
		if err != nil {
			return err
		}
		purego.RegisterFunc(fptr, sym)
		return nil
	}

	for _, kind := range native.Capabilities {
		var set func(uintptr, uintptr, uint32)
		if err := bind(&set, native.SetterSymbol(kind)); err != nil {
			return nil, err
		}
		c.setters[kind] = set
	}
	for _, b := range []struct {
		fptr   any
		symbol string
	}{
		{&c.registerLog, native.SymbolRegisterLogCallback},
		{&c.initialize, native.SymbolEngineInitialize},
		{&c.update, native.SymbolEngineUpdate},
		{&c.render, native.SymbolEngineRender},
		{&c.destroy, native.SymbolEngineDestroy},
	} {
		if err := bind(b.fptr, b.symbol); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Library returns the underlying library, which also serves factories the
// core library exports itself.
func (c *Core) Library() *Library { return c.lib }

func (c *Core) SetFactory(ctx context.Context, kind native.Capability, factory native.Handle, options []byte) error {
	set, ok := c.setters[kind]
	if !ok {
		return errors.InvalidInput(errors.PhaseRegister, kind.String()+" is not a capability kind")
	}
	if err := c.checkOpen(errors.PhaseRegister, native.SetterSymbol(kind)); err != nil {
		return err
	}

	var ptr uintptr
	if len(options) > 0 {
		var pin runtime.Pinner
		pin.Pin(&options[0])
		defer pin.Unpin()
		ptr = uintptr(unsafe.Pointer(&options[0]))
	}
	set(uintptr(factory), ptr, uint32(len(options)))
	return nil
}

// RegisterLogCallback installs fn behind the library's single trampoline.
func (c *Core) RegisterLogCallback(ctx context.Context, fn native.LogFunc) error {
	if err := c.checkOpen(errors.PhaseRegister, native.SymbolRegisterLogCallback); err != nil {
		return err
	}
	if fn == nil {
		c.logFn.Store(nil)
	} else {
		c.logFn.Store(&fn)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.callback == 0 {
		c.callback = purego.NewCallback(c.trampoline)
	}
	c.registerLog(c.callback)
	return nil
}

// trampoline is the C-callable void (*)(int, const char*). Nothing escapes it.
func (c *Core) trampoline(level int32, message uintptr) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("native log callback panicked", zap.Any("panic", r), zap.Int32("raw_level", level))
		}
	}()
	fn := c.logFn.Load()
	if fn == nil {
		return
	}
	msg, truncated := cString(message)
	if truncated {
		c.log.Debug("native log message truncated",
			zap.Int32("raw_level", level),
			zap.Int("limit", maxMessageLen))
	}
	(*fn)(level, msg)
}

// cString returns a view of the NUL-terminated native string at p, without
// the terminator. truncated is set when no terminator was found within
// maxMessageLen bytes.
func cString(p uintptr) (msg []byte, truncated bool) {
	if p == 0 {
		return nil, false
	}
	base := unsafe.Pointer(p)
	n := 0
	for n < maxMessageLen && *(*byte)(unsafe.Add(base, n)) != 0 {
		n++
	}
	return unsafe.Slice((*byte)(base), n), n == maxMessageLen
}

func (c *Core) Initialize(ctx context.Context) (native.Handle, error) {
	if err := c.checkOpen(errors.PhaseInitialize, native.SymbolEngineInitialize); err != nil {
		return 0, err
	}
	return native.Handle(c.initialize()), nil
}

func (c *Core) Update(ctx context.Context, engine native.Handle, deltaTime float32) error {
	if err := c.checkOpen(errors.PhaseUpdate, native.SymbolEngineUpdate); err != nil {
		return err
	}
	c.update(uintptr(engine), deltaTime)
	return nil
}

func (c *Core) Render(ctx context.Context, engine native.Handle) error {
	if err := c.checkOpen(errors.PhaseRender, native.SymbolEngineRender); err != nil {
		return err
	}
	c.render(uintptr(engine))
	return nil
}

func (c *Core) Destroy(ctx context.Context, engine native.Handle) error {
	if err := c.checkOpen(errors.PhaseDestroy, native.SymbolEngineDestroy); err != nil {
		return err
	}
	c.destroy(uintptr(engine))
	return nil
}

// Close unloads the core library. Call it only after Engine_Destroy returned.
func (c *Core) Close() error {
	c.logFn.Store(nil)
	return c.lib.Close()
}

func (c *Core) checkOpen(phase errors.Phase, symbol string) error {
	c.lib.mu.Lock()
	closed := c.lib.closed
	c.lib.mu.Unlock()
	if closed {
		return errors.NativeCall(phase, symbol, errClosed)
	}
	return nil
}

var _ native.Core = (*Core)(nil)
