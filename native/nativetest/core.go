// Package nativetest provides a recording native.Core for tests.
package nativetest

import (
	"context"
	"sync"

	"github.com/pieceengine/piece-host/native"
)

// Call is one recorded native call.
type Call struct {
	Symbol  string
	Handle  native.Handle
	Delta   float32
	Options []byte
}

// Registration is what the fake core holds for one capability.
type Registration struct {
	Factory native.Handle
	Options []byte
}

// Core is an in-memory native.Core that records every call.
//
// Initialize returns InitHandle (default 0x8000) unless InitHandle is set to
// zero or RequireAll is set and a capability is missing, in which case it
// returns the null handle like the real core does.
type Core struct {
	// InitHandle is returned by a successful Initialize.
	InitHandle native.Handle
	// RequireAll makes Initialize fail unless every capability is registered.
	RequireAll bool
	// Errors makes the named symbol return the given transport error.
	Errors map[string]error
	// LogOnCalls makes lifecycle calls emit log events through the callback.
	LogOnCalls bool

	mu          sync.Mutex
	calls       []Call
	registry    map[native.Capability]Registration
	builtWith   map[native.Capability]Registration
	logFn       native.LogFunc
	nextFactory native.Handle
}

// New returns a fake core whose Initialize succeeds with handle 0x8000.
func New() *Core {
	return &Core{
		InitHandle:  0x8000,
		registry:    make(map[native.Capability]Registration),
		nextFactory: 0x1000,
	}
}

func (c *Core) record(call Call) error {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	err := c.Errors[call.Symbol]
	c.mu.Unlock()
	return err
}

func (c *Core) SetFactory(ctx context.Context, kind native.Capability, factory native.Handle, options []byte) error {
	symbol := native.SetterSymbol(kind)
	var blob []byte
	if options != nil {
		blob = append([]byte(nil), options...)
	}
	if err := c.record(Call{Symbol: symbol, Handle: factory, Options: blob}); err != nil {
		return err
	}
	c.mu.Lock()
	c.registry[kind] = Registration{Factory: factory, Options: blob}
	c.mu.Unlock()
	return nil
}

func (c *Core) RegisterLogCallback(ctx context.Context, fn native.LogFunc) error {
	if err := c.record(Call{Symbol: native.SymbolRegisterLogCallback}); err != nil {
		return err
	}
	c.mu.Lock()
	c.logFn = fn
	c.mu.Unlock()
	return nil
}

func (c *Core) Initialize(ctx context.Context) (native.Handle, error) {
	if err := c.record(Call{Symbol: native.SymbolEngineInitialize}); err != nil {
		return 0, err
	}

	c.mu.Lock()
	missing := false
	for _, kind := range native.Capabilities {
		if _, ok := c.registry[kind]; !ok {
			missing = true
		}
	}
	if c.RequireAll && missing {
		c.mu.Unlock()
		c.log(4, "Engine initialization failed: missing factory")
		return 0, nil
	}
	c.builtWith = make(map[native.Capability]Registration, len(c.registry))
	for k, v := range c.registry {
		c.builtWith[k] = v
	}
	h := c.InitHandle
	c.mu.Unlock()

	c.log(2, "Engine initialized")
	return h, nil
}

func (c *Core) Update(ctx context.Context, engine native.Handle, deltaTime float32) error {
	if err := c.record(Call{Symbol: native.SymbolEngineUpdate, Handle: engine, Delta: deltaTime}); err != nil {
		return err
	}
	c.log(0, "Engine update")
	return nil
}

func (c *Core) Render(ctx context.Context, engine native.Handle) error {
	if err := c.record(Call{Symbol: native.SymbolEngineRender, Handle: engine}); err != nil {
		return err
	}
	c.log(0, "Engine render")
	return nil
}

func (c *Core) Destroy(ctx context.Context, engine native.Handle) error {
	if err := c.record(Call{Symbol: native.SymbolEngineDestroy, Handle: engine}); err != nil {
		return err
	}
	c.mu.Lock()
	c.registry = make(map[native.Capability]Registration)
	c.mu.Unlock()
	c.log(2, "Engine destroyed")
	return nil
}

// CreateFactory hands out a fresh non-null handle per call, so the fake also
// serves as a native.FactorySource.
func (c *Core) CreateFactory(ctx context.Context, symbol string) (native.Handle, error) {
	if err := c.record(Call{Symbol: symbol}); err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.nextFactory++
	h := c.nextFactory
	c.mu.Unlock()
	return h, nil
}

func (c *Core) log(level int32, msg string) {
	if c.LogOnCalls {
		c.Emit(level, msg)
	}
}

// Emit invokes the registered log callback the way native code does: the
// message buffer is NUL-terminated, passed without the terminator, and
// overwritten once the callback returns. It reports whether a callback was
// registered.
func (c *Core) Emit(level int32, msg string) bool {
	c.mu.Lock()
	fn := c.logFn
	c.mu.Unlock()
	if fn == nil {
		return false
	}

	buf := make([]byte, len(msg)+1)
	copy(buf, msg)
	fn(level, buf[:len(msg)])
	for i := range buf {
		buf[i] = 0xff
	}
	return true
}

// EmitConcurrently calls Emit from n goroutines and waits for all of them.
func (c *Core) EmitConcurrently(n int, level int32, msg string) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Emit(level, msg)
		}()
	}
	wg.Wait()
}

// Calls returns a copy of the recorded calls.
func (c *Core) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Count returns how many times symbol was called.
func (c *Core) Count(symbol string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.Symbol == symbol {
			n++
		}
	}
	return n
}

// Registered returns the current registration for kind.
func (c *Core) Registered(kind native.Capability) (Registration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.registry[kind]
	return r, ok
}

// BuiltWith returns the registration consumed by the last successful
// Initialize for kind.
func (c *Core) BuiltWith(kind native.Capability) (Registration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.builtWith[kind]
	return r, ok
}

// HasLogCallback reports whether a log callback is installed.
func (c *Core) HasLogCallback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logFn != nil
}

// Reset clears recorded calls but keeps registrations and the callback.
func (c *Core) Reset() {
	c.mu.Lock()
	c.calls = nil
	c.mu.Unlock()
}

var (
	_ native.Core          = (*Core)(nil)
	_ native.FactorySource = (*Core)(nil)
)
