// Package locator implements the host side of the factory registration
// protocol.
//
// Backends produce a Factory per capability. Registering it moves the native
// pointer into the core through the capability's setter, after which the
// Factory can no longer be registered again. All capabilities share one
// registration shape: a factory plus an optional options blob.
//
// The locator is open until Seal, read once at Initialize, and closed on
// Destroy, after which nothing reaches the core. A second registration of
// the same capability replaces the first (last write wins) and is logged as
// a warning, or refused with OverwriteReject.
package locator
