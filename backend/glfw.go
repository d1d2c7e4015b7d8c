package backend

import "github.com/pieceengine/piece-host/native"

// NameGLFW is the registry name of the GLFW window backend.
const NameGLFW = "glfw"

// GLFW creates window factories from the GLFW window abstraction layer.
var GLFW = Provider{
	Name:    NameGLFW,
	Kind:    native.CapabilityWindow,
	Symbol:  "CreateGlfwWindowFactory",
	Library: "wal_glfw",
}

func init() {
	Register(GLFW)
}
