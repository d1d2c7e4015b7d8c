// Package dynlib binds the engine core and backend libraries as shared
// libraries through purego, without cgo.
//
// OpenCore resolves every core entry point up front and fails on the first
// missing symbol. The log trampoline is a single purego callback created on
// first registration; re-registering swaps the Go function behind it, so the
// native side always holds the same pointer. purego callbacks are never
// freed, which matches the lifetime of a loaded core.
//
// Open loads a backend library and exposes its creation entry points as a
// native.FactorySource.
//
// Option blobs are pinned for the duration of the setter call only; native
// code must copy them before returning.
package dynlib
