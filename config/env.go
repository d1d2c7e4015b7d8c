package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pieceengine/piece-host/errors"
)

// Environment variables read by ApplyEnv.
const (
	EnvDriver          = "PIECE_CORE_DRIVER"
	EnvCoreLibrary     = "PIECE_CORE_LIBRARY"
	EnvCoreModule      = "PIECE_CORE_MODULE"
	EnvBackendDir      = "PIECE_BACKEND_DIR"
	EnvBackends        = "PIECE_BACKENDS" // comma-separated provider names
	EnvWindowWidth     = "PIECE_WINDOW_WIDTH"
	EnvWindowHeight    = "PIECE_WINDOW_HEIGHT"
	EnvWindowTitle     = "PIECE_WINDOW_TITLE"
	EnvTickRate        = "PIECE_TICK_RATE"
	EnvMaxFrames       = "PIECE_MAX_FRAMES"
	EnvLogLevel        = "PIECE_LOG_LEVEL"
	EnvLogFormat       = "PIECE_LOG_FORMAT"
	EnvOverwritePolicy = "PIECE_LOCATOR_OVERWRITE"
	EnvMetricsListen   = "PIECE_METRICS_LISTEN"
)

// ApplyEnv overrides cfg with the PIECE_* environment variables that are set.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvDriver); ok {
		c.Core.Driver = Driver(strings.ToLower(strings.TrimSpace(v)))
	}
	setString(&c.Core.Library, EnvCoreLibrary)
	setString(&c.Core.Module, EnvCoreModule)
	setString(&c.Core.BackendDir, EnvBackendDir)
	setString(&c.Window.Title, EnvWindowTitle)
	setString(&c.Log.Level, EnvLogLevel)
	setString(&c.Log.Format, EnvLogFormat)
	setString(&c.Locator.Overwrite, EnvOverwritePolicy)
	setString(&c.Metrics.Listen, EnvMetricsListen)

	if v, ok := os.LookupEnv(EnvBackends); ok {
		c.Backends = c.Backends[:0]
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.Backends = append(c.Backends, BackendConfig{Name: name})
			}
		}
	}

	if err := setInt32(&c.Window.Width, EnvWindowWidth); err != nil {
		return err
	}
	if err := setInt32(&c.Window.Height, EnvWindowHeight); err != nil {
		return err
	}
	if err := setInt(&c.Loop.TickRate, EnvTickRate); err != nil {
		return err
	}
	return setInt(&c.Loop.MaxFrames, EnvMaxFrames)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return errors.Config(key, err)
	}
	*dst = n
	return nil
}

func setInt32(dst *int32, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
	if err != nil {
		return errors.Config(key, err)
	}
	*dst = int32(n)
	return nil
}
