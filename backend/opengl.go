package backend

import "github.com/pieceengine/piece-host/native"

// NameOpenGL is the registry name of the OpenGL graphics device backend.
const NameOpenGL = "opengl"

// OpenGL creates graphics device factories from the OpenGL render
// abstraction layer.
var OpenGL = Provider{
	Name:    NameOpenGL,
	Kind:    native.CapabilityGraphics,
	Symbol:  "CreateOpenGLGraphicsDeviceFactory",
	Library: "ral_opengl_backend",
}

func init() {
	Register(OpenGL)
}
