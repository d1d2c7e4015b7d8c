package native

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func TestCapability(t *testing.T) {
	tests := []struct {
		c      Capability
		name   string
		valid  bool
		setter string
	}{
		{CapabilityGraphics, "graphics", true, SymbolSetGraphicsDeviceFactory},
		{CapabilityWindow, "window", true, SymbolSetWindowFactory},
		{CapabilityPhysics, "physics", true, SymbolSetPhysicsWorldFactory},
		{0, "capability(0)", false, ""},
		{9, "capability(9)", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.c.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
			if got := SetterSymbol(tt.c); got != tt.setter {
				t.Errorf("SetterSymbol() = %q, want %q", got, tt.setter)
			}
		})
	}
}

func TestHandle(t *testing.T) {
	if !Handle(0).IsNull() {
		t.Error("zero handle should be null")
	}
	if Handle(0x1001).IsNull() {
		t.Error("non-zero handle should not be null")
	}
	if got := Handle(0x1001).String(); got != "0x1001" {
		t.Errorf("String() = %q", got)
	}
}

func TestWindowOptions_MarshalBinary(t *testing.T) {
	opts := WindowOptions{Width: 1280, Height: 720, Flags: WindowResizable | WindowVSync, Title: "demo"}
	data, err := opts.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(data) != 16+4 {
		t.Fatalf("len = %d, want 20", len(data))
	}
	le := binary.LittleEndian
	if int32(le.Uint32(data[0:])) != 1280 || int32(le.Uint32(data[4:])) != 720 {
		t.Errorf("size = %dx%d", le.Uint32(data[0:]), le.Uint32(data[4:]))
	}
	if le.Uint32(data[8:]) != WindowResizable|WindowVSync {
		t.Errorf("flags = %b", le.Uint32(data[8:]))
	}
	if le.Uint32(data[12:]) != 4 || !bytes.Equal(data[16:], []byte("demo")) {
		t.Errorf("title = %q", data[16:])
	}
	if opts.Capability() != CapabilityWindow {
		t.Errorf("Capability() = %v", opts.Capability())
	}
}

func TestGraphicsOptions_MarshalBinary(t *testing.T) {
	data, err := GraphicsOptions{EnableValidationLayers: true, MaxFramesInFlight: 3}.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	want := []byte{1, 0, 0, 0, 3, 0, 0, 0}
	if !bytes.Equal(data, want) {
		t.Errorf("got % x, want % x", data, want)
	}
}

func TestPhysicsOptions_MarshalBinary(t *testing.T) {
	opts := DefaultPhysicsOptions()
	data, err := opts.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(data)); got != float32(1.0/60.0) {
		t.Errorf("fixed delta = %v", got)
	}
	if got := binary.LittleEndian.Uint32(data[4:]); got != 4 {
		t.Errorf("max steps = %d, want 4", got)
	}
}

func TestDefaults(t *testing.T) {
	w := DefaultWindowOptions()
	if w.Width != 800 || w.Height != 600 || w.Title != "Piece Engine Window" {
		t.Errorf("window defaults = %+v", w)
	}
	g := DefaultGraphicsOptions()
	if g.EnableValidationLayers || g.MaxFramesInFlight != 2 {
		t.Errorf("graphics defaults = %+v", g)
	}
}

func TestEncodeOptions_Nil(t *testing.T) {
	data, err := EncodeOptions(nil)
	if err != nil || data != nil {
		t.Errorf("EncodeOptions(nil) = %v, %v", data, err)
	}
}

func TestEncodeOptions_NilPointer(t *testing.T) {
	for _, opts := range []Options{(*WindowOptions)(nil), (*GraphicsOptions)(nil), (*PhysicsOptions)(nil)} {
		data, err := EncodeOptions(opts)
		if err != nil || data != nil {
			t.Errorf("EncodeOptions(%T nil) = %v, %v", opts, data, err)
		}
		if NormalizeOptions(opts) != nil {
			t.Errorf("NormalizeOptions(%T nil) is not nil", opts)
		}
	}

	w := DefaultWindowOptions()
	got, err := EncodeOptions(&w)
	want, _ := w.MarshalBinary()
	if err != nil || !bytes.Equal(got, want) {
		t.Errorf("EncodeOptions(&w) = % x, %v, want % x", got, err, want)
	}
}
