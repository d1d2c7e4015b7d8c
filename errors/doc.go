// Package errors provides structured error types for the Piece host.
//
// Errors are categorized by Phase (which lifecycle step failed) and Kind
// (error category). The Error type carries the capability kind, native symbol
// and lifecycle state involved, plus a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRegister, errors.KindOwnership).
//		Capability(native.CapabilityPhysics).
//		Symbol("CreateBox2DPhysicsWorldFactory").
//		Detail("factory already moved").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidState(errors.PhaseUpdate, state, "Update")
//	err := errors.NativeInit(nil)
//
// Sentinels (ErrInvalidState, ErrNativeInit, ErrCallbackProcessing, ...)
// match any phase, so callers can test with the standard errors.Is.
package errors
