package backend

import "github.com/pieceengine/piece-host/native"

// NameBox2D is the registry name of the Box2D physics backend.
const NameBox2D = "box2d"

// Box2D creates physics world factories.
var Box2D = Provider{
	Name:    NameBox2D,
	Kind:    native.CapabilityPhysics,
	Symbol:  "CreateBox2DPhysicsWorldFactory",
	Library: "pal_box2d_backend",
}

func init() {
	Register(Box2D)
}
