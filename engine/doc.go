// Package engine drives the lifecycle of the single native engine instance.
//
// # Lifecycle
//
// An Engine moves through three states:
//
//	Uninitialized --Initialize--> Initialized --Destroy--> Destroyed
//	      |                                                    ^
//	      +---------------------- Destroy ---------------------+
//
// Factories are registered while Uninitialized. Initialize installs the
// log trampoline, seals the locator and calls Engine_Initialize; a null
// handle from native code is an ErrNativeInit error and leaves the engine
// Uninitialized so registrations can be corrected. Update and Render only
// reach native code while Initialized; otherwise they return
// ErrInvalidState without touching the core. Destroy is idempotent and
// issues at most one Engine_Destroy.
//
// # Log Callback
//
// The Engine owns a logbridge.Bridge whose trampoline is registered with the
// core. Native code may call it from any thread during any lifecycle call.
// The trampoline never takes the lifecycle lock, and the Engine must outlive
// the last native call, so close the core only after Destroy returns.
package engine
