// Package piecehost hosts the Piece engine core from Go.
//
// The engine core is an opaque native library. The host injects backend
// factories (graphics device, window system, physics world) before startup,
// drives the engine lifecycle and receives the log events native code emits
// while it runs.
//
// # Architecture Overview
//
//	piecehost/
//	├── native/            Flat ABI contract: handles, capabilities, option blobs
//	│   ├── dynlib/        Shared-library transport (purego)
//	│   ├── wasmcore/      WebAssembly transport (wazero) and the reference core
//	│   └── nativetest/    Recording fake core for tests
//	├── locator/           Host side of the factory registration protocol
//	├── logbridge/         Log trampoline, level table and zap sink
//	├── engine/            Engine lifecycle state machine
//	├── backend/           Backend providers (OpenGL, GLFW, Box2D)
//	├── config/            YAML and environment configuration
//	├── metrics/           Prometheus collectors
//	├── host/              Bootstrap, frame loop and metrics endpoint
//	└── errors/            Structured error types
//
// # Quick Start
//
// Drive the engine directly:
//
//	core, _ := wasmcore.LoadReference(ctx, nil)
//	defer core.Close(ctx)
//
//	eng := engine.New(core, engine.WithLogger(log))
//	defer eng.Close()
//
//	backend.GLFW.Install(ctx, core, eng, native.DefaultWindowOptions())
//	backend.OpenGL.Install(ctx, core, eng, nil)
//	backend.Box2D.Install(ctx, core, eng, nil)
//
//	if _, err := eng.Initialize(ctx); err != nil {
//		return err
//	}
//	for i := 0; i < 60; i++ {
//		eng.Step(ctx, 1.0/60)
//	}
//
// Or let a host.Host do it from configuration, as cmd/piece does.
//
// # Threading
//
// Every native call is synchronous. The engine serializes lifecycle calls;
// log delivery never takes the engine lock, so native code may log from any
// thread at any time, including during Initialize and Destroy.
package piecehost
