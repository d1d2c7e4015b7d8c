package native

import (
	"encoding/binary"
	"math"
)

// Options is a per-capability configuration blob passed alongside a factory.
type Options interface {
	Capability() Capability
	MarshalBinary() ([]byte, error)
}

// WindowFlags are bit flags for the window backend.
const (
	WindowResizable uint32 = 1 << iota
	WindowFullscreen
	WindowVSync
)

// WindowOptions configures the window factory.
// Layout: int32 width, int32 height, uint32 flags, uint32 title_len, title.
type WindowOptions struct {
	Width  int32
	Height int32
	Flags  uint32
	Title  string
}

// DefaultWindowOptions returns an 800x600 resizable window.
func DefaultWindowOptions() WindowOptions {
	return WindowOptions{
		Width:  800,
		Height: 600,
		Flags:  WindowResizable,
		Title:  "Piece Engine Window",
	}
}

func (WindowOptions) Capability() Capability { return CapabilityWindow }

func (o WindowOptions) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 16+len(o.Title))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(o.Width))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(o.Height))
	buf = binary.LittleEndian.AppendUint32(buf, o.Flags)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(o.Title)))
	buf = append(buf, o.Title...)
	return buf, nil
}

// GraphicsOptions configures the graphics device factory.
// Layout: uint32 enable_validation_layers, int32 max_frames_in_flight.
type GraphicsOptions struct {
	EnableValidationLayers bool
	MaxFramesInFlight      int32
}

func DefaultGraphicsOptions() GraphicsOptions {
	return GraphicsOptions{MaxFramesInFlight: 2}
}

func (GraphicsOptions) Capability() Capability { return CapabilityGraphics }

func (o GraphicsOptions) MarshalBinary() ([]byte, error) {
	var validation uint32
	if o.EnableValidationLayers {
		validation = 1
	}
	buf := make([]byte, 0, 8)
	buf = binary.LittleEndian.AppendUint32(buf, validation)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(o.MaxFramesInFlight))
	return buf, nil
}

// PhysicsOptions configures the physics world factory.
// Layout: float32 fixed_delta_time, uint32 max_physics_steps.
type PhysicsOptions struct {
	FixedDeltaTime float32
	MaxSteps       uint32
}

func DefaultPhysicsOptions() PhysicsOptions {
	return PhysicsOptions{FixedDeltaTime: 1.0 / 60.0, MaxSteps: 4}
}

func (PhysicsOptions) Capability() Capability { return CapabilityPhysics }

func (o PhysicsOptions) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 8)
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(o.FixedDeltaTime))
	buf = binary.LittleEndian.AppendUint32(buf, o.MaxSteps)
	return buf, nil
}

// NormalizeOptions turns a nil pointer to an option struct into a nil Options
// and dereferences any other pointer, so callers never invoke a value method
// through a nil pointer.
func NormalizeOptions(opts Options) Options {
	switch o := opts.(type) {
	case *WindowOptions:
		if o == nil {
			return nil
		}
		return *o
	case *GraphicsOptions:
		if o == nil {
			return nil
		}
		return *o
	case *PhysicsOptions:
		if o == nil {
			return nil
		}
		return *o
	}
	return opts
}

// EncodeOptions marshals opts, returning nil for a nil Options or a nil
// option struct pointer.
func EncodeOptions(opts Options) ([]byte, error) {
	opts = NormalizeOptions(opts)
	if opts == nil {
		return nil, nil
	}
	return opts.MarshalBinary()
}
