package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/locator"
	"github.com/pieceengine/piece-host/native"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Core.Driver != DriverReference {
		t.Errorf("Driver = %q", cfg.Core.Driver)
	}
	if len(cfg.Backends) != 3 {
		t.Errorf("Backends = %v", cfg.Backends)
	}
	if got := cfg.WindowOptions(); got != native.DefaultWindowOptions() {
		t.Errorf("WindowOptions = %+v, want defaults", got)
	}
	if got := cfg.PhysicsOptions(); got != native.DefaultPhysicsOptions() {
		t.Errorf("PhysicsOptions = %+v, want defaults", got)
	}
	if got := cfg.TickInterval(); got != time.Second/60 {
		t.Errorf("TickInterval = %v", got)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "piece.yaml")
	data := `
core:
  driver: dynlib
  library: ./libpiece_core.so
backends:
  - name: box2d
  - name: box2d
window:
  width: 1280
  height: 720
  vsync: true
loop:
  tick_rate: 30
  max_frames: 120
locator:
  overwrite: reject
metrics:
  listen: ":9090"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Core.Driver != DriverDynlib || cfg.Core.Library != "./libpiece_core.so" {
		t.Errorf("Core = %+v", cfg.Core)
	}
	if len(cfg.Backends) != 2 {
		t.Errorf("Backends = %v", cfg.Backends)
	}
	w := cfg.WindowOptions()
	if w.Width != 1280 || w.Height != 720 {
		t.Errorf("window = %+v", w)
	}
	// Keys absent from the file keep their defaults.
	if w.Title != "Piece Engine Window" || w.Flags != native.WindowResizable|native.WindowVSync {
		t.Errorf("window = %+v", w)
	}
	if cfg.Loop.MaxFrames != 120 || cfg.TickInterval() != time.Second/30 {
		t.Errorf("Loop = %+v", cfg.Loop)
	}
	if p, _ := cfg.OverwritePolicy(); p != locator.OverwriteReject {
		t.Errorf("policy = %v", p)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown key", "core:\n  engine: x\n", "parsing config"},
		{"unknown driver", "core:\n  driver: jvm\n", "unknown core.driver"},
		{"dynlib without library", "core:\n  driver: dynlib\n", "core.library"},
		{"wasm without module", "core:\n  driver: wasm\n", "core.module"},
		{"unknown backend", "backends:\n  - name: vulkan\n", "vulkan"},
		{"zero width", "window:\n  width: 0\n", "window size"},
		{"zero tick rate", "loop:\n  tick_rate: 0\n", "tick_rate"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"bad policy", "locator:\n  overwrite: maybe\n", "locator.overwrite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "piece.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			var perr *errors.Error
			if !stderrors.As(err, &perr) || perr.Kind != errors.KindConfig {
				t.Errorf("err = %v, want config error", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvDriver, "WASM")
	t.Setenv(EnvCoreModule, "core.wasm")
	t.Setenv(EnvBackends, "glfw, box2d,")
	t.Setenv(EnvWindowWidth, "1920")
	t.Setenv(EnvMaxFrames, "10")
	t.Setenv(EnvOverwritePolicy, "reject")
	t.Setenv(EnvMetricsListen, "127.0.0.1:0")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Core.Driver != DriverWasm || cfg.Core.Module != "core.wasm" {
		t.Errorf("Core = %+v", cfg.Core)
	}
	if len(cfg.Backends) != 2 || cfg.Backends[0].Name != "glfw" || cfg.Backends[1].Name != "box2d" {
		t.Errorf("Backends = %v", cfg.Backends)
	}
	if cfg.Window.Width != 1920 || cfg.Loop.MaxFrames != 10 {
		t.Errorf("Window = %+v, Loop = %+v", cfg.Window, cfg.Loop)
	}
	if cfg.Locator.Overwrite != "reject" || cfg.Metrics.Listen != "127.0.0.1:0" {
		t.Errorf("Locator = %+v, Metrics = %+v", cfg.Locator, cfg.Metrics)
	}
}

func TestApplyEnv_BadNumber(t *testing.T) {
	t.Setenv(EnvTickRate, "fast")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), EnvTickRate) {
		t.Errorf("err = %v, want mention of %s", err, EnvTickRate)
	}
}

func TestOptions(t *testing.T) {
	cfg := Default()
	for _, kind := range native.Capabilities {
		opts := cfg.Options(kind)
		if opts == nil || opts.Capability() != kind {
			t.Errorf("Options(%v) = %v", kind, opts)
		}
	}
	if cfg.Options(native.Capability(9)) != nil {
		t.Error("unknown capability should have no options")
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := LogConfig{Level: "debug", Format: format}.NewLogger()
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if !log.Core().Enabled(-1) {
			t.Errorf("%s: debug not enabled", format)
		}
	}
	if _, err := (LogConfig{Level: "loud"}).NewLogger(); err == nil {
		t.Error("expected error for bad level")
	}
}
