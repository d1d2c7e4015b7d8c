// Package wasmcore runs a WebAssembly build of the engine core under wazero.
//
// The module exports the flat ABI entry points (PieceCore_Set*Factory,
// Engine_*) with i32 pointers and imports one host function:
//
//	(import "env" "piece_log" (func (param $level i32) (param $message i32)))
//
// where message is the address of a NUL-terminated string in the module's
// exported memory. Option blobs are copied into memory obtained from the
// optional piece_alloc(size i32) -> i32 export.
//
// Reference returns a small core assembled in Go that mirrors the native
// core's observable behavior, which lets the whole host run without a native
// toolchain.
package wasmcore
