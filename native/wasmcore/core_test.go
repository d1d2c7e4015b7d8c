package wasmcore

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/native"
	"github.com/pieceengine/piece-host/native/wasmcore/internal/asm"
)

type logRecord struct {
	level int32
	text  string
}

type recorder struct {
	mu      sync.Mutex
	records []logRecord
}

func (r *recorder) fn(level int32, msg []byte) {
	r.mu.Lock()
	r.records = append(r.records, logRecord{level: level, text: string(msg)})
	r.mu.Unlock()
}

func (r *recorder) has(level int32, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.level == level && rec.text == text {
			return true
		}
	}
	return false
}

func loadReference(t *testing.T) (*Core, *recorder) {
	t.Helper()
	ctx := context.Background()
	c, err := LoadReference(ctx, nil)
	if err != nil {
		t.Fatalf("LoadReference: %v", err)
	}
	t.Cleanup(func() { c.Close(ctx) })

	rec := &recorder{}
	if err := c.RegisterLogCallback(ctx, rec.fn); err != nil {
		t.Fatal(err)
	}
	return c, rec
}

func registerAll(t *testing.T, c *Core) {
	t.Helper()
	ctx := context.Background()
	for _, reg := range []struct {
		kind   native.Capability
		symbol string
		opts   native.Options
	}{
		{native.CapabilityGraphics, SymbolCreateOpenGLGraphicsDeviceFactory, native.DefaultGraphicsOptions()},
		{native.CapabilityWindow, SymbolCreateGlfwWindowFactory, native.DefaultWindowOptions()},
		{native.CapabilityPhysics, SymbolCreateBox2DPhysicsWorldFactory, nil},
	} {
		h, err := c.CreateFactory(ctx, reg.symbol)
		if err != nil {
			t.Fatalf("CreateFactory(%s): %v", reg.symbol, err)
		}
		blob, err := native.EncodeOptions(reg.opts)
		if err != nil {
			t.Fatal(err)
		}
		if err := c.SetFactory(ctx, reg.kind, h, blob); err != nil {
			t.Fatalf("SetFactory(%v): %v", reg.kind, err)
		}
	}
}

func TestReference_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c, rec := loadReference(t)
	registerAll(t, c)

	h, err := c.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if h != ReferenceEngine {
		t.Fatalf("handle = %v, want %v", h, ReferenceEngine)
	}
	if !rec.has(2, "EngineCore: Initialized successfully.") {
		t.Errorf("missing init log, got %+v", rec.records)
	}

	for i := 0; i < 2; i++ {
		if err := c.Update(ctx, h, 0.016); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if err := c.Render(ctx, h); err != nil {
		t.Fatalf("Render: %v", err)
	}

	d, err := c.Diagnostics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Frames != 2 || d.Renders != 1 {
		t.Errorf("diagnostics = %+v, want 2 frames 1 render", d)
	}
	if d.Graphics != ReferenceGraphicsFactory || d.Window != ReferenceWindowFactory || d.Physics != ReferencePhysicsFactory {
		t.Errorf("registered factories = %+v", d)
	}

	if err := c.Destroy(ctx, h); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	d, _ = c.Diagnostics(ctx)
	if d.Graphics != 0 || d.Window != 0 || d.Physics != 0 {
		t.Errorf("registry not cleared on destroy: %+v", d)
	}
	if !rec.has(2, "EngineCore: Destroyed.") {
		t.Error("missing destroy log")
	}
}

func TestReference_InitializeWithMissingFactory(t *testing.T) {
	ctx := context.Background()
	c, rec := loadReference(t)

	h, err := c.CreateFactory(ctx, SymbolCreateOpenGLGraphicsDeviceFactory)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetFactory(ctx, native.CapabilityGraphics, h, nil); err != nil {
		t.Fatal(err)
	}

	engine, err := c.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !engine.IsNull() {
		t.Errorf("handle = %v, want null", engine)
	}
	if !rec.has(4, "IWindowFactory not set in ServiceLocator. Engine cannot initialize.") {
		t.Errorf("missing error log, got %+v", rec.records)
	}
}

func TestReference_LastRegistrationWins(t *testing.T) {
	ctx := context.Background()
	c, _ := loadReference(t)

	if err := c.SetFactory(ctx, native.CapabilityPhysics, 0xA, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.SetFactory(ctx, native.CapabilityPhysics, 0xB, nil); err != nil {
		t.Fatal(err)
	}
	d, err := c.Diagnostics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Physics != 0xB {
		t.Errorf("physics factory = %v, want 0xB", d.Physics)
	}
}

func TestReference_NullFactoryRefused(t *testing.T) {
	ctx := context.Background()
	c, rec := loadReference(t)

	if err := c.SetFactory(ctx, native.CapabilityWindow, 0, nil); err != nil {
		t.Fatal(err)
	}
	if !rec.has(4, "Invalid IWindowFactory pointer received.") {
		t.Errorf("missing error log, got %+v", rec.records)
	}
	d, _ := c.Diagnostics(ctx)
	if d.Window != 0 {
		t.Errorf("null window factory stored: %v", d.Window)
	}
}

func TestReference_NullEngineTolerated(t *testing.T) {
	ctx := context.Background()
	c, rec := loadReference(t)

	if err := c.Update(ctx, 0, 0.016); err != nil {
		t.Errorf("Update(null): %v", err)
	}
	if err := c.Render(ctx, 0); err != nil {
		t.Errorf("Render(null): %v", err)
	}
	if err := c.Destroy(ctx, 0); err != nil {
		t.Errorf("Destroy(null): %v", err)
	}
	if !rec.has(3, "Engine_Destroy called with null corePtr.") {
		t.Error("missing warning for null destroy")
	}
	d, _ := c.Diagnostics(ctx)
	if d.Frames != 0 || d.Renders != 0 {
		t.Errorf("null engine advanced counters: %+v", d)
	}
}

func TestCore_MessageIsBorrowed(t *testing.T) {
	ctx := context.Background()
	c, _ := loadReference(t)

	var view []byte
	var copied string
	_ = c.RegisterLogCallback(ctx, func(_ int32, msg []byte) {
		view = msg
		copied = string(msg)
	})
	if err := c.SetFactory(ctx, native.CapabilityGraphics, 1, nil); err != nil {
		t.Fatal(err)
	}
	if copied != native.SymbolSetGraphicsDeviceFactory+" called." {
		t.Fatalf("message = %q", copied)
	}
	// The view aliases the string table in guest memory.
	fill := make([]byte, heapBase-16)
	for i := range fill {
		fill[i] = 'x'
	}
	if !c.mod.Memory().Write(16, fill) {
		t.Fatal("memory write failed")
	}
	if string(view) == copied {
		t.Error("view does not alias guest memory")
	}
}

func TestCore_LastCallbackWins(t *testing.T) {
	ctx := context.Background()
	c, first := loadReference(t)
	second := &recorder{}
	if err := c.RegisterLogCallback(ctx, second.fn); err != nil {
		t.Fatal(err)
	}

	_ = c.SetFactory(ctx, native.CapabilityPhysics, 3, nil)

	if len(first.records) != 0 {
		t.Errorf("replaced callback still called: %+v", first.records)
	}
	if len(second.records) != 1 {
		t.Errorf("current callback called %d times, want 1", len(second.records))
	}

	_ = c.RegisterLogCallback(ctx, nil)
	_ = c.SetFactory(ctx, native.CapabilityPhysics, 3, nil)
	if len(second.records) != 1 {
		t.Error("nil callback should drop events")
	}
}

func TestCore_OptionsReachGuestMemory(t *testing.T) {
	ctx := context.Background()
	c, _ := loadReference(t)

	blob, _ := native.WindowOptions{Width: 640, Height: 480, Title: "t"}.MarshalBinary()
	before, _ := c.alloc.Call(ctx, 0)
	if err := c.SetFactory(ctx, native.CapabilityWindow, ReferenceWindowFactory, blob); err != nil {
		t.Fatal(err)
	}
	got, ok := c.mod.Memory().Read(uint32(before[0]), uint32(len(blob)))
	if !ok || string(got) != string(blob) {
		t.Errorf("guest copy = % x, want % x", got, blob)
	}
}

func TestCore_CreateFactoryErrors(t *testing.T) {
	ctx := context.Background()
	c, _ := loadReference(t)

	_, err := c.CreateFactory(ctx, "CreateVulkanGraphicsDeviceFactory")
	var perr *errors.Error
	if !stderrors.As(err, &perr) || perr.Kind != errors.KindSymbolMissing {
		t.Errorf("missing symbol err = %v", err)
	}

	_, err = c.CreateFactory(ctx, native.SymbolEngineRender)
	if !stderrors.As(err, &perr) || perr.Kind != errors.KindInvalidInput {
		t.Errorf("wrong signature err = %v", err)
	}
}

func TestCore_HandleRange(t *testing.T) {
	if ^uint(0)>>32 == 0 {
		t.Skip("32-bit platform")
	}
	ctx := context.Background()
	c, _ := loadReference(t)

	big := native.Handle(uint64(1) << 40)
	if err := c.Update(ctx, big, 0.016); err == nil {
		t.Error("64-bit handle accepted by a wasm32 core")
	}
}

func TestLoad_MissingExport(t *testing.T) {
	m := &asm.Module{}
	m.Memory(1)
	m.ExportMemory("memory")

	_, err := Load(context.Background(), m.Encode(), nil)
	var perr *errors.Error
	if !stderrors.As(err, &perr) || perr.Kind != errors.KindSymbolMissing {
		t.Fatalf("err = %v, want symbol missing", err)
	}
	if perr.Symbol != native.SymbolSetGraphicsDeviceFactory {
		t.Errorf("symbol = %q", perr.Symbol)
	}
}

func TestLoad_InvalidModule(t *testing.T) {
	_, err := Load(context.Background(), []byte("not wasm"), nil)
	if err == nil {
		t.Fatal("invalid module loaded")
	}
}

func TestCore_Close(t *testing.T) {
	ctx := context.Background()
	c, err := LoadReference(ctx, &Config{ModuleName: "closing", MemoryLimitPages: 16})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := c.Initialize(ctx); err == nil {
		t.Error("call after Close succeeded")
	}
}

func TestReference_Deterministic(t *testing.T) {
	a := buildReference()
	b := buildReference()
	if string(a) != string(b) {
		t.Error("reference core encoding is not deterministic")
	}
}

// flatMemory serves Size and Read from a byte slice.
type flatMemory struct {
	api.Memory
	data []byte
}

func (m flatMemory) Size() uint32 { return uint32(len(m.data)) }

func (m flatMemory) Read(offset, count uint32) ([]byte, bool) {
	if uint64(offset)+uint64(count) > uint64(len(m.data)) {
		return nil, false
	}
	return m.data[offset : offset+count], true
}

func TestCString(t *testing.T) {
	long := make([]byte, 8+maxMessageLen+8)
	for i := 8; i < len(long); i++ {
		long[i] = 'x'
	}

	tests := []struct {
		name      string
		mem       flatMemory
		ptr       uint32
		want      int
		truncated bool
	}{
		{"terminated", flatMemory{data: []byte("\x00\x00\x00\x00hello\x00rest")}, 4, 5, false},
		{"null pointer", flatMemory{data: []byte("abc\x00")}, 0, 0, false},
		{"out of range", flatMemory{data: []byte("abc\x00")}, 9, 0, false},
		{"end of memory", flatMemory{data: []byte("\x00\x00abc")}, 2, 3, true},
		{"over the limit", flatMemory{data: long}, 8, maxMessageLen, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := cString(tt.mem, tt.ptr)
			if len(got) != tt.want || truncated != tt.truncated {
				t.Errorf("cString() len = %d truncated = %v, want %d %v", len(got), truncated, tt.want, tt.truncated)
			}
		})
	}
}
