package config

import (
	"fmt"
	"math"

	"go.uber.org/zap/zapcore"

	"github.com/pieceengine/piece-host/backend"
	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/locator"
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Core.Driver {
	case DriverReference:
	case DriverWasm:
		if c.Core.Module == "" {
			return invalid("core.module is required for the wasm driver")
		}
	case DriverDynlib:
		if c.Core.Library == "" {
			return invalid("core.library is required for the dynlib driver")
		}
	default:
		return invalid("unknown core.driver %q", c.Core.Driver)
	}

	for i, b := range c.Backends {
		if b.Name == "" {
			return invalid("backends[%d]: name is required", i)
		}
		if _, err := backend.Lookup(b.Name); err != nil {
			return errors.Config(fmt.Sprintf("backends[%d]", i), err)
		}
	}

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return invalid("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Graphics.MaxFramesInFlight < 1 {
		return invalid("graphics.max_frames_in_flight must be at least 1")
	}
	dt := float64(c.Physics.FixedDeltaTime)
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt <= 0 {
		return invalid("physics.fixed_delta_time must be a positive number of seconds")
	}
	if c.Physics.MaxSteps == 0 {
		return invalid("physics.max_steps must be at least 1")
	}

	if c.Loop.TickRate <= 0 {
		return invalid("loop.tick_rate must be positive")
	}
	if c.Loop.MaxFrames < 0 {
		return invalid("loop.max_frames must not be negative")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Config("log.level", err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format %q must be json or console", c.Log.Format)
	}

	if _, err := locator.ParsePolicy(c.Locator.Overwrite); err != nil {
		return errors.Config("locator.overwrite", err)
	}
	return nil
}

// OverwritePolicy returns the parsed locator overwrite policy.
func (c *Config) OverwritePolicy() (locator.Policy, error) {
	return locator.ParsePolicy(c.Locator.Overwrite)
}

func invalid(format string, args ...any) error {
	return errors.Config(fmt.Sprintf(format, args...), nil)
}
