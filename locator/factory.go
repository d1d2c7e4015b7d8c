package locator

import (
	"sync/atomic"

	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/native"
)

// Factory is a native factory pointer produced by a backend creation entry
// point, tagged with its capability.
//
// Ownership of the pointer moves into the native registry exactly once, at
// registration. After that the Factory is marked moved and refuses a second
// transfer, so the same pointer is never handed to native code twice.
type Factory struct {
	handle native.Handle
	kind   native.Capability
	symbol string
	moved  atomic.Bool
}

// NewFactory wraps a handle returned by symbol. A null handle is rejected.
func NewFactory(kind native.Capability, h native.Handle, symbol string) (*Factory, error) {
	if !kind.Valid() {
		return nil, errors.InvalidInput(errors.PhaseRegister, kind.String()+" is not a capability kind")
	}
	if h.IsNull() {
		return nil, errors.New(errors.PhaseRegister, errors.KindNilHandle).
			Capability(kind).
			Symbol(symbol).
			Detail("backend returned a null factory").
			Build()
	}
	return &Factory{handle: h, kind: kind, symbol: symbol}, nil
}

// Capability returns the capability kind.
func (f *Factory) Capability() native.Capability { return f.kind }

// Symbol returns the creation entry point that produced the factory.
func (f *Factory) Symbol() string { return f.symbol }

// Handle returns the raw pointer for inspection. It stays readable after the
// move but must not be passed to native code by anyone but the locator.
func (f *Factory) Handle() native.Handle { return f.handle }

// Moved reports whether ownership has been transferred.
func (f *Factory) Moved() bool { return f.moved.Load() }

// take transfers ownership, failing if it already happened.
func (f *Factory) take() (native.Handle, error) {
	if !f.moved.CompareAndSwap(false, true) {
		return 0, errors.AlreadyMoved(f.kind, f.symbol)
	}
	return f.handle, nil
}

// restore undoes take when the native setter never received the pointer.
func (f *Factory) restore() { f.moved.Store(false) }
