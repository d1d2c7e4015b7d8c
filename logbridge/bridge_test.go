package logbridge

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/metrics"
	"github.com/pieceengine/piece-host/native/nativetest"
)

func newObserved(opts ...Option) (*Bridge, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New(zap.New(core), opts...), logs
}

func TestBridge_DeliverWritesToSink(t *testing.T) {
	b, logs := newObserved()

	b.Deliver(3, []byte("low memory"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", e.Level)
	}
	if e.Message != "low memory" {
		t.Errorf("message = %q", e.Message)
	}
	fields := e.ContextMap()
	if fields["native_level"] != "warning" {
		t.Errorf("native_level = %v", fields["native_level"])
	}
	if fields["raw_level"] != int32(3) {
		t.Errorf("raw_level = %v", fields["raw_level"])
	}
	if e.LoggerName != "native" {
		t.Errorf("logger name = %q", e.LoggerName)
	}
}

func TestBridge_OutOfRangeLevelIsInfo(t *testing.T) {
	b, logs := newObserved()

	b.Deliver(99, []byte("odd"))
	b.Deliver(-1, []byte("negative"))

	for _, e := range logs.All() {
		if e.Level != zapcore.InfoLevel {
			t.Errorf("%q logged at %v, want info", e.Message, e.Level)
		}
	}
	if got := b.Stats().ByLevel[LevelInfo]; got != 2 {
		t.Errorf("info count = %d, want 2", got)
	}
}

func TestBridge_FatalDoesNotExit(t *testing.T) {
	b, logs := newObserved()

	b.Deliver(5, []byte("device lost"))

	if logs.Len() != 1 || logs.All()[0].Level != zapcore.ErrorLevel {
		t.Fatalf("fatal should be logged at error level, got %+v", logs.All())
	}
}

func TestBridge_CopiesBorrowedMessage(t *testing.T) {
	b, _ := newObserved()

	var got Message
	b.Subscribe(func(m Message) { got = m })

	buf := []byte("frame 1 rendered")
	b.Deliver(2, buf)
	for i := range buf {
		buf[i] = 'x'
	}

	if got.Text != "frame 1 rendered" {
		t.Errorf("message not copied, got %q", got.Text)
	}
	if got.Level != LevelInfo || got.Raw != 2 {
		t.Errorf("level = %v raw = %d", got.Level, got.Raw)
	}
}

func TestBridge_InvalidUTF8(t *testing.T) {
	b, logs := newObserved()

	b.Deliver(2, []byte{'o', 'k', 0xff, 0xfe})

	if got := logs.All()[0].Message; got != "ok\uFFFD" {
		t.Errorf("message = %q", got)
	}
}

func TestBridge_PanicIsContained(t *testing.T) {
	var reported []*errors.Error
	collector := metrics.NewCollector("test")
	b, logs := newObserved(
		WithErrorHandler(func(err *errors.Error) { reported = append(reported, err) }),
		WithMetrics(collector),
	)
	b.Subscribe(func(Message) { panic("subscriber bug") })

	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("panic escaped Deliver: %v", r)
			}
		}()
		b.Deliver(4, []byte("boom"))
	}()

	if len(reported) != 1 {
		t.Fatalf("error handler called %d times, want 1", len(reported))
	}
	if !stderrors.Is(reported[0], errors.ErrCallbackProcessing) {
		t.Errorf("reported %v, want CallbackProcessing", reported[0])
	}
	if got := b.Stats().Failed; got != 1 {
		t.Errorf("failed = %d, want 1", got)
	}
	if logs.FilterMessage("native log callback failed").Len() != 1 {
		t.Error("failure not logged on the host error channel")
	}
}

func TestBridge_PanickingErrorHandler(t *testing.T) {
	b, _ := newObserved(WithErrorHandler(func(*errors.Error) { panic("handler bug") }))
	b.Subscribe(func(Message) { panic("subscriber bug") })

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic escaped Deliver: %v", r)
		}
	}()
	b.Deliver(2, []byte("x"))
}

func TestBridge_Subscribe(t *testing.T) {
	b, _ := newObserved()

	var count int
	cancel := b.Subscribe(func(Message) { count++ })
	b.Deliver(2, []byte("one"))
	cancel()
	cancel()
	b.Deliver(2, []byte("two"))

	if count != 1 {
		t.Errorf("subscriber called %d times, want 1", count)
	}
}

func TestBridge_Clock(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b, _ := newObserved(WithClock(func() time.Time { return at }))

	var got Message
	b.Subscribe(func(m Message) { got = m })
	b.Deliver(1, []byte("tick"))

	if !got.Time.Equal(at) {
		t.Errorf("time = %v, want %v", got.Time, at)
	}
}

func TestBridge_ConcurrentDelivery(t *testing.T) {
	b, logs := newObserved()
	core := nativetest.New()
	if err := core.RegisterLogCallback(context.Background(), b.Trampoline()); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	seen := 0
	b.Subscribe(func(Message) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	const n = 64
	core.EmitConcurrently(n, 2, "physics step")

	if got := b.Stats().Delivered; got != n {
		t.Errorf("delivered = %d, want %d", got, n)
	}
	if logs.Len() != n {
		t.Errorf("logged = %d, want %d", logs.Len(), n)
	}
	if seen != n {
		t.Errorf("subscriber saw %d, want %d", seen, n)
	}
}

func TestNew_DefaultLogger(t *testing.T) {
	b := New(nil)
	b.Deliver(2, []byte("discarded"))
	if b.Stats().Delivered != 1 {
		t.Error("delivery with default logger should still count")
	}
}
