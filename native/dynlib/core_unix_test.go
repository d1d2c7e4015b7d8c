//go:build darwin || linux || freebsd

package dynlib

import (
	stderrors "errors"
	"path/filepath"
	"testing"
	"unsafe"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/native"
)

func TestCString(t *testing.T) {
	buf := []byte("EngineCore: Destroyed.\x00garbage")
	got, truncated := cString(uintptr(unsafe.Pointer(&buf[0])))
	if string(got) != "EngineCore: Destroyed." || truncated {
		t.Errorf("cString() = %q, %v", got, truncated)
	}

	// The result aliases the native buffer.
	buf[0] = 'e'
	if got[0] != 'e' {
		t.Error("cString should return a view, not a copy")
	}

	if got, _ := cString(0); got != nil {
		t.Error("null pointer should give a nil view")
	}
}

func TestCString_Bounded(t *testing.T) {
	buf := make([]byte, maxMessageLen+16)
	for i := range buf {
		buf[i] = 'a'
	}
	got, truncated := cString(uintptr(unsafe.Pointer(&buf[0])))
	if len(got) != maxMessageLen {
		t.Errorf("len = %d, want %d", len(got), maxMessageLen)
	}
	if !truncated {
		t.Error("unterminated message should be reported as truncated")
	}

	buf[maxMessageLen-1] = 0
	if got, truncated := cString(uintptr(unsafe.Pointer(&buf[0]))); truncated || len(got) != maxMessageLen-1 {
		t.Errorf("terminator at the limit: len = %d truncated = %v", len(got), truncated)
	}
}

func TestTrampoline_LogsTruncation(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := &Core{log: zap.New(core)}
	var gotLen int
	var fn native.LogFunc = func(_ int32, msg []byte) { gotLen = len(msg) }
	c.logFn.Store(&fn)

	buf := make([]byte, maxMessageLen+1)
	for i := range buf {
		buf[i] = 'b'
	}
	c.trampoline(2, uintptr(unsafe.Pointer(&buf[0])))

	if gotLen != maxMessageLen {
		t.Errorf("delivered len = %d, want %d", gotLen, maxMessageLen)
	}
	if logs.FilterMessage("native log message truncated").Len() != 1 {
		t.Errorf("truncation not logged: %v", logs.All())
	}
}

func TestTrampoline_NoCallback(t *testing.T) {
	c := &Core{log: Logger()}
	buf := []byte("x\x00")
	// Must not panic without a registered function.
	c.trampoline(2, uintptr(unsafe.Pointer(&buf[0])))
}

func TestTrampoline_RecoversPanic(t *testing.T) {
	c := &Core{log: Logger()}
	var fn native.LogFunc = func(int32, []byte) { panic("bug") }
	c.logFn.Store(&fn)

	buf := []byte("x\x00")
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic escaped the trampoline: %v", r)
		}
	}()
	c.trampoline(4, uintptr(unsafe.Pointer(&buf[0])))
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), LibraryName("does_not_exist")))
	var perr *errors.Error
	if !stderrors.As(err, &perr) || perr.Phase != errors.PhaseLoad {
		t.Fatalf("err = %v, want load error", err)
	}

	if _, err := OpenCore(filepath.Join(t.TempDir(), LibraryName("piece_core"))); err == nil {
		t.Error("OpenCore on a missing file succeeded")
	}
}
