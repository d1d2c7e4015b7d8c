package native

import (
	"context"
	"fmt"
)

// Handle is an opaque pointer owned by native code.
// The host never dereferences it; it only hands it back to native calls.
// Handle 0 is the null pointer.
type Handle uintptr

// IsNull reports whether h is the null pointer.
func (h Handle) IsNull() bool { return h == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("0x%x", uintptr(h))
}

// Capability is the category of pluggable backend a factory provides.
type Capability uint8

const (
	CapabilityGraphics Capability = iota + 1
	CapabilityWindow
	CapabilityPhysics
)

// Capabilities lists every capability kind in registration order.
var Capabilities = []Capability{CapabilityGraphics, CapabilityWindow, CapabilityPhysics}

func (c Capability) String() string {
	switch c {
	case CapabilityGraphics:
		return "graphics"
	case CapabilityWindow:
		return "window"
	case CapabilityPhysics:
		return "physics"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

// Valid reports whether c is one of the known capability kinds.
func (c Capability) Valid() bool {
	return c >= CapabilityGraphics && c <= CapabilityPhysics
}

// Native entry points exported by the engine core library.
const (
	SymbolSetGraphicsDeviceFactory = "PieceCore_SetGraphicsDeviceFactory"
	SymbolSetWindowFactory         = "PieceCore_SetWindowFactory"
	SymbolSetPhysicsWorldFactory   = "PieceCore_SetPhysicsWorldFactory"
	SymbolRegisterLogCallback      = "PieceCore_RegisterLogCallback"
	SymbolEngineInitialize         = "Engine_Initialize"
	SymbolEngineUpdate             = "Engine_Update"
	SymbolEngineRender             = "Engine_Render"
	SymbolEngineDestroy            = "Engine_Destroy"
)

// SetterSymbol returns the registration entry point for a capability.
// All setters share the signature
// void (void* factory, const void* options, uint32_t options_len).
func SetterSymbol(c Capability) string {
	switch c {
	case CapabilityGraphics:
		return SymbolSetGraphicsDeviceFactory
	case CapabilityWindow:
		return SymbolSetWindowFactory
	case CapabilityPhysics:
		return SymbolSetPhysicsWorldFactory
	default:
		return ""
	}
}

// LogFunc receives a log event from native code.
//
// message is borrowed native memory without the trailing NUL. It is valid
// only until LogFunc returns and must be copied if needed afterward.
// LogFunc may be called concurrently from threads the host does not own and
// must never panic back into the caller.
type LogFunc func(level int32, message []byte)

// Core is the flat ABI of the native engine core. Every call is synchronous.
//
// Errors returned by Core report transport failures (a trap, a closed
// library). Native-side outcomes are reported the way the ABI does: a null
// handle from Initialize, log events through the registered LogFunc.
type Core interface {
	// SetFactory registers factory under its capability kind, replacing any
	// previous registration. options may be nil.
	SetFactory(ctx context.Context, kind Capability, factory Handle, options []byte) error

	// RegisterLogCallback installs fn as the single log trampoline.
	// The last registration wins.
	RegisterLogCallback(ctx context.Context, fn LogFunc) error

	// Initialize creates the engine from the current registrations.
	// A null handle means the native side refused to start.
	Initialize(ctx context.Context) (Handle, error)

	Update(ctx context.Context, engine Handle, deltaTime float32) error
	Render(ctx context.Context, engine Handle) error
	Destroy(ctx context.Context, engine Handle) error
}

// FactorySource resolves a backend's exported creation entry point and
// calls it. Each backend library exports exactly one per capability.
type FactorySource interface {
	CreateFactory(ctx context.Context, symbol string) (Handle, error)
}
