package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/locator"
	"github.com/pieceengine/piece-host/logbridge"
	"github.com/pieceengine/piece-host/metrics"
	"github.com/pieceengine/piece-host/native"
)

// Engine owns the single live native engine instance.
//
// Lifecycle calls are serialized. The log path never takes the lifecycle
// lock, so native code may log from any thread while a lifecycle call is in
// progress. The log bridge is a field of the Engine and stays callable until
// the Engine itself is dropped, which must happen only after Destroy returns.
type Engine struct {
	core    native.Core
	locator *locator.Locator
	bridge  *logbridge.Bridge
	log     *zap.Logger
	metrics *metrics.Collector

	mu         sync.Mutex
	state      State
	handle     native.Handle
	snapshot   locator.Snapshot
	callbackOn bool
}

// New creates an uninitialized engine driving core.
func New(core native.Core, opts ...Option) *Engine {
	cfg := config{log: Logger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	locOpts := append([]locator.Option{
		locator.WithLogger(cfg.log.Named("locator")),
		locator.WithMetrics(cfg.metrics),
	}, cfg.locatorOps...)
	bridgeOpts := append([]logbridge.Option{
		logbridge.WithMetrics(cfg.metrics),
	}, cfg.bridgeOps...)

	e := &Engine{
		core:    core,
		locator: locator.New(core, locOpts...),
		bridge:  logbridge.New(cfg.log, bridgeOpts...),
		log:     cfg.log.Named("engine"),
		metrics: cfg.metrics,
	}
	e.metrics.RecordEngineState(int(StateUninitialized))
	return e
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Handle returns the native engine handle, or the null handle when not
// initialized.
func (e *Engine) Handle() native.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handle
}

// Locator returns the engine's service locator.
func (e *Engine) Locator() *locator.Locator { return e.locator }

// Bridge returns the log bridge whose trampoline native code calls.
func (e *Engine) Bridge() *logbridge.Bridge { return e.bridge }

// Snapshot returns the registrations the running engine was built from.
func (e *Engine) Snapshot() locator.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// RegisterLogCallback installs the engine's trampoline with the core.
// It may be called before or after Initialize, but not after Destroy.
func (e *Engine) RegisterLogCallback(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateDestroyed {
		return errors.InvalidState(errors.PhaseRegister, e.state, "RegisterLogCallback")
	}
	return e.registerLogCallbackLocked(ctx)
}

func (e *Engine) registerLogCallbackLocked(ctx context.Context) error {
	if err := e.core.RegisterLogCallback(ctx, e.bridge.Trampoline()); err != nil {
		return errors.NativeCall(errors.PhaseRegister, native.SymbolRegisterLogCallback, err)
	}
	e.callbackOn = true
	return nil
}

// RegisterGraphicsFactory registers a graphics device factory before Initialize.
func (e *Engine) RegisterGraphicsFactory(ctx context.Context, f *locator.Factory, opts *native.GraphicsOptions) error {
	return e.register(func() error { return e.locator.RegisterGraphicsFactory(ctx, f, opts) })
}

// RegisterWindowFactory registers a window factory before Initialize.
func (e *Engine) RegisterWindowFactory(ctx context.Context, f *locator.Factory, opts *native.WindowOptions) error {
	return e.register(func() error { return e.locator.RegisterWindowFactory(ctx, f, opts) })
}

// RegisterPhysicsFactory registers a physics world factory before Initialize.
func (e *Engine) RegisterPhysicsFactory(ctx context.Context, f *locator.Factory, opts *native.PhysicsOptions) error {
	return e.register(func() error { return e.locator.RegisterPhysicsFactory(ctx, f, opts) })
}

// Register registers f under its own capability before Initialize.
func (e *Engine) Register(ctx context.Context, f *locator.Factory, opts native.Options) error {
	return e.register(func() error { return e.locator.Register(ctx, f, opts) })
}

func (e *Engine) register(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateUninitialized {
		return errors.InvalidState(errors.PhaseRegister, e.state, "factory registration")
	}
	return fn()
}

// Initialize creates the native engine from the current registrations.
//
// It installs the log trampoline if that has not happened yet, seals the
// locator and calls Engine_Initialize. Calling it again while initialized
// returns the existing handle. A null handle from native code is a
// NativeInit error; the locator is reopened so registrations can be fixed
// before trying again.
func (e *Engine) Initialize(ctx context.Context) (native.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateInitialized:
		e.log.Warn("engine already initialized", zap.Stringer("handle", e.handle))
		return e.handle, nil
	case StateDestroyed:
		return 0, errors.InvalidState(errors.PhaseInitialize, e.state, "Initialize")
	}

	if !e.callbackOn {
		if err := e.registerLogCallbackLocked(ctx); err != nil {
			return 0, err
		}
	}

	snap := e.locator.Seal()
	if missing := snap.Missing(); len(missing) > 0 {
		e.log.Warn("initializing with missing factories", zap.Stringers("missing", missing))
	}

	start := time.Now()
	h, err := e.core.Initialize(ctx)
	e.metrics.RecordNativeCall(native.SymbolEngineInitialize, time.Since(start), err)
	if err != nil {
		e.locator.Unseal()
		return 0, errors.NativeInit(err)
	}
	if h.IsNull() {
		e.locator.Unseal()
		e.log.Error("native engine initialization failed", zap.Int("registered", snap.Len()))
		return 0, errors.NativeInit(nil)
	}

	e.handle = h
	e.snapshot = snap
	e.state = StateInitialized
	e.metrics.RecordEngineState(int(e.state))
	e.log.Info("engine initialized", zap.Stringer("handle", h), zap.Int("factories", snap.Len()))
	return h, nil
}

// Update advances the simulation by deltaTime seconds.
// Outside the initialized state no native call is made and an
// InvalidState error is returned.
func (e *Engine) Update(ctx context.Context, deltaTime float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateInitialized {
		e.log.Debug("update skipped", zap.Stringer("state", e.state))
		return errors.InvalidState(errors.PhaseUpdate, e.state, "Update")
	}
	dt := float64(deltaTime)
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		return errors.New(errors.PhaseUpdate, errors.KindInvalidInput).
			Value(deltaTime).
			Detail("delta time must be a finite non-negative number of seconds").
			Build()
	}

	start := time.Now()
	err := e.core.Update(ctx, e.handle, deltaTime)
	e.metrics.RecordNativeCall(native.SymbolEngineUpdate, time.Since(start), err)
	if err != nil {
		return errors.NativeCall(errors.PhaseUpdate, native.SymbolEngineUpdate, err)
	}
	return nil
}

// Render draws one frame. It has the same precondition as Update.
func (e *Engine) Render(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateInitialized {
		e.log.Debug("render skipped", zap.Stringer("state", e.state))
		return errors.InvalidState(errors.PhaseRender, e.state, "Render")
	}

	start := time.Now()
	err := e.core.Render(ctx, e.handle)
	e.metrics.RecordNativeCall(native.SymbolEngineRender, time.Since(start), err)
	if err != nil {
		return errors.NativeCall(errors.PhaseRender, native.SymbolEngineRender, err)
	}
	return nil
}

// Step runs Update followed by Render and records the frame.
func (e *Engine) Step(ctx context.Context, deltaTime float32) error {
	start := time.Now()
	if err := e.Update(ctx, deltaTime); err != nil {
		return err
	}
	if err := e.Render(ctx); err != nil {
		return err
	}
	e.metrics.RecordFrame(time.Since(start))
	return nil
}

// Destroy releases the native engine. It is valid in every state and only
// the first call on an initialized engine reaches native code. The engine
// is Destroyed afterward even if native teardown reports an error.
func (e *Engine) Destroy(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateDestroyed:
		e.log.Debug("engine already destroyed")
		return nil
	case StateUninitialized:
		e.state = StateDestroyed
		e.locator.Close()
		e.metrics.RecordEngineState(int(e.state))
		e.log.Debug("engine destroyed before initialization")
		return nil
	}

	h := e.handle
	start := time.Now()
	err := e.core.Destroy(ctx, h)
	e.metrics.RecordNativeCall(native.SymbolEngineDestroy, time.Since(start), err)

	e.handle = 0
	e.snapshot = locator.Snapshot{}
	e.state = StateDestroyed
	e.locator.Close()
	e.metrics.RecordEngineState(int(e.state))

	if err != nil {
		e.log.Error("native engine teardown failed", zap.Stringer("handle", h), zap.Error(err))
		return errors.NativeCall(errors.PhaseDestroy, native.SymbolEngineDestroy, err)
	}
	e.log.Info("engine destroyed", zap.Stringer("handle", h))
	return nil
}

// Close destroys the engine with a background context.
func (e *Engine) Close() error {
	return e.Destroy(context.Background())
}
