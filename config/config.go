package config

import (
	"bytes"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/native"
)

// Driver selects how the engine core is loaded.
type Driver string

const (
	// DriverReference runs the built-in WebAssembly reference core.
	DriverReference Driver = "reference"
	// DriverWasm runs a WebAssembly core module from disk.
	DriverWasm Driver = "wasm"
	// DriverDynlib opens the native core shared library.
	DriverDynlib Driver = "dynlib"
)

// Config is the complete host configuration.
type Config struct {
	Core     CoreConfig      `yaml:"core"`
	Backends []BackendConfig `yaml:"backends"`
	Window   WindowConfig    `yaml:"window"`
	Graphics GraphicsConfig  `yaml:"graphics"`
	Physics  PhysicsConfig   `yaml:"physics"`
	Loop     LoopConfig      `yaml:"loop"`
	Log      LogConfig       `yaml:"log"`
	Locator  LocatorConfig   `yaml:"locator"`
	Metrics  MetricsConfig   `yaml:"metrics"`
}

// CoreConfig locates the engine core.
type CoreConfig struct {
	Driver Driver `yaml:"driver"`
	// Library is the core shared library path (dynlib).
	Library string `yaml:"library"`
	// Module is the core WebAssembly module path (wasm).
	Module string `yaml:"module"`
	// BackendDir is searched for backend libraries that have no explicit path.
	BackendDir       string `yaml:"backend_dir"`
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
}

// BackendConfig selects one backend provider. Library overrides the
// provider's default library location (dynlib only).
type BackendConfig struct {
	Name    string `yaml:"name"`
	Library string `yaml:"library,omitempty"`
}

// WindowConfig mirrors native.WindowOptions.
type WindowConfig struct {
	Title      string `yaml:"title"`
	Width      int32  `yaml:"width"`
	Height     int32  `yaml:"height"`
	Resizable  bool   `yaml:"resizable"`
	Fullscreen bool   `yaml:"fullscreen"`
	VSync      bool   `yaml:"vsync"`
}

// GraphicsConfig mirrors native.GraphicsOptions.
type GraphicsConfig struct {
	EnableValidationLayers bool  `yaml:"enable_validation_layers"`
	MaxFramesInFlight      int32 `yaml:"max_frames_in_flight"`
}

// PhysicsConfig mirrors native.PhysicsOptions.
type PhysicsConfig struct {
	FixedDeltaTime float32 `yaml:"fixed_delta_time"`
	MaxSteps       uint32  `yaml:"max_steps"`
}

// LoopConfig controls the frame loop.
type LoopConfig struct {
	// TickRate is the number of frames per second.
	TickRate int `yaml:"tick_rate"`
	// MaxFrames stops the loop after that many frames. 0 runs until cancelled.
	MaxFrames int `yaml:"max_frames"`
}

// LogConfig controls the host logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// LocatorConfig controls factory registration.
type LocatorConfig struct {
	// Overwrite is "warn" or "reject".
	Overwrite string `yaml:"overwrite"`
}

// MetricsConfig controls the HTTP metrics endpoint.
type MetricsConfig struct {
	// Listen is the address for /metrics and /healthz. Empty disables it.
	Listen string `yaml:"listen"`
}

// Default returns the default configuration: the reference core with the
// GLFW, OpenGL and Box2D backends at 60 frames per second.
func Default() *Config {
	w := native.DefaultWindowOptions()
	g := native.DefaultGraphicsOptions()
	p := native.DefaultPhysicsOptions()
	return &Config{
		Core: CoreConfig{Driver: DriverReference},
		Backends: []BackendConfig{
			{Name: "glfw"},
			{Name: "opengl"},
			{Name: "box2d"},
		},
		Window: WindowConfig{
			Title:     w.Title,
			Width:     w.Width,
			Height:    w.Height,
			Resizable: w.Flags&native.WindowResizable != 0,
		},
		Graphics: GraphicsConfig{
			EnableValidationLayers: g.EnableValidationLayers,
			MaxFramesInFlight:      g.MaxFramesInFlight,
		},
		Physics: PhysicsConfig{
			FixedDeltaTime: p.FixedDeltaTime,
			MaxSteps:       p.MaxSteps,
		},
		Loop:    LoopConfig{TickRate: 60},
		Log:     LogConfig{Level: "info", Format: "console"},
		Locator: LocatorConfig{Overwrite: "warn"},
	}
}

// Load reads the YAML file at path over the defaults, applies PIECE_*
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Config("reading config file", err)
		}
		if err := cfg.Decode(data); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges YAML data into cfg. Unknown keys are rejected.
func (c *Config) Decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return errors.Config("parsing config", err)
	}
	return nil
}

// WindowOptions converts the window section to its native option blob.
func (c *Config) WindowOptions() native.WindowOptions {
	var flags uint32
	if c.Window.Resizable {
		flags |= native.WindowResizable
	}
	if c.Window.Fullscreen {
		flags |= native.WindowFullscreen
	}
	if c.Window.VSync {
		flags |= native.WindowVSync
	}
	return native.WindowOptions{
		Width:  c.Window.Width,
		Height: c.Window.Height,
		Flags:  flags,
		Title:  c.Window.Title,
	}
}

// GraphicsOptions converts the graphics section to its native option blob.
func (c *Config) GraphicsOptions() native.GraphicsOptions {
	return native.GraphicsOptions{
		EnableValidationLayers: c.Graphics.EnableValidationLayers,
		MaxFramesInFlight:      c.Graphics.MaxFramesInFlight,
	}
}

// PhysicsOptions converts the physics section to its native option blob.
func (c *Config) PhysicsOptions() native.PhysicsOptions {
	return native.PhysicsOptions{
		FixedDeltaTime: c.Physics.FixedDeltaTime,
		MaxSteps:       c.Physics.MaxSteps,
	}
}

// Options returns the option blob for kind.
func (c *Config) Options(kind native.Capability) native.Options {
	switch kind {
	case native.CapabilityGraphics:
		return c.GraphicsOptions()
	case native.CapabilityWindow:
		return c.WindowOptions()
	case native.CapabilityPhysics:
		return c.PhysicsOptions()
	default:
		return nil
	}
}

// TickInterval is the time between frames.
func (c *Config) TickInterval() time.Duration {
	if c.Loop.TickRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.Loop.TickRate)
}
