// Package native defines the flat ABI between the host and the Piece engine
// core.
//
// The engine core is opaque: the host only sees Handle values it passes back
// into the core. Core abstracts the transport. The dynlib package binds a
// shared library through dlopen, the wasmcore package hosts a WebAssembly
// build of the core, and nativetest provides a recording fake for tests.
//
// Factories are registered by capability through a uniform setter:
//
//	void PieceCore_SetGraphicsDeviceFactory(void* factory, const void* options, uint32_t len);
//	void PieceCore_SetWindowFactory(void* factory, const void* options, uint32_t len);
//	void PieceCore_SetPhysicsWorldFactory(void* factory, const void* options, uint32_t len);
//
// Options are fixed little-endian layouts produced by Options.MarshalBinary.
// Native code reports diagnostics through a single registered LogFunc whose
// message argument is borrowed for the duration of the call.
package native
