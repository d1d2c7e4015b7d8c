// Package backend wraps the backend libraries the engine core can use.
//
// Each backend library exports exactly one creation entry point for the
// capability it provides. A Provider names that entry point; Create calls it
// through a native.FactorySource (a shared library opened with dynlib, or a
// wasm core that links the backends in) and returns a locator.Factory ready
// to register.
//
// Built-in providers:
//
//	opengl  graphics  CreateOpenGLGraphicsDeviceFactory  ral_opengl_backend
//	glfw    window    CreateGlfwWindowFactory            wal_glfw
//	box2d   physics   CreateBox2DPhysicsWorldFactory     pal_box2d_backend
package backend
