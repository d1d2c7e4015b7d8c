package logbridge

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/metrics"
	"github.com/pieceengine/piece-host/native"
)

// Message is an owned copy of one native log event.
type Message struct {
	Time  time.Time
	Text  string
	Raw   int32
	Level Level
}

// Stats counts what a bridge has delivered.
type Stats struct {
	Delivered uint64
	Failed    uint64
	ByLevel   [6]uint64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithErrorHandler sets a hook receiving every callback processing error.
// The hook runs on the native caller's thread and must not block.
func WithErrorHandler(fn func(*errors.Error)) Option {
	return func(b *Bridge) { b.onError = fn }
}

// WithMetrics records deliveries and failures on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(b *Bridge) { b.metrics = c }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// Bridge turns native log events into zap entries and subscriber messages.
//
// Deliver is safe for concurrent use from any goroutine or foreign thread
// and never panics back into its caller.
type Bridge struct {
	log     *zap.Logger
	metrics *metrics.Collector
	onError func(*errors.Error)
	now     func() time.Time

	mu     sync.RWMutex
	subs   map[uint64]func(Message)
	nextID uint64

	delivered atomic.Uint64
	failed    atomic.Uint64
	byLevel   [6]atomic.Uint64
}

// New creates a bridge writing to log. A nil log uses the package Logger.
func New(log *zap.Logger, opts ...Option) *Bridge {
	if log == nil {
		log = Logger()
	}
	b := &Bridge{
		log:  log.Named("native"),
		now:  time.Now,
		subs: make(map[uint64]func(Message)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Trampoline returns the function handed to native code.
func (b *Bridge) Trampoline() native.LogFunc {
	return b.Deliver
}

// Deliver handles one native log event. message is borrowed and is copied
// before Deliver returns.
func (b *Bridge) Deliver(level int32, message []byte) {
	defer func() {
		if r := recover(); r != nil {
			b.fail(level, r)
		}
	}()

	msg := Message{
		Level: ParseLevel(level),
		Raw:   level,
		Text:  decode(message),
		Time:  b.now(),
	}

	if ce := b.log.Check(msg.Level.ZapLevel(), msg.Text); ce != nil {
		ce.Write(
			zap.String("native_level", msg.Level.String()),
			zap.Int32("raw_level", level),
		)
	}

	b.delivered.Add(1)
	b.byLevel[msg.Level].Add(1)
	b.metrics.RecordLog(msg.Level.String())

	b.mu.RLock()
	subs := make([]func(Message), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(msg)
	}
}

// decode copies a borrowed native buffer into an owned string. Invalid UTF-8
// sequences are replaced.
func decode(message []byte) string {
	if utf8.Valid(message) {
		return string(message)
	}
	return strings.ToValidUTF8(string(message), "\uFFFD")
}

func (b *Bridge) fail(level int32, r any) {
	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("%v", r)
	}
	err := errors.CallbackProcessing(level, cause)

	b.failed.Add(1)
	b.metrics.RecordCallbackFailure()

	// The error channel itself must not escape either.
	defer func() { _ = recover() }()
	b.log.Error("native log callback failed", zap.Error(err))
	if b.onError != nil {
		b.onError(err)
	}
}

// Subscribe registers fn for every delivered message and returns a function
// that removes it. fn runs on the delivering thread.
func (b *Bridge) Subscribe(fn func(Message)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Stats returns delivery counters.
func (b *Bridge) Stats() Stats {
	s := Stats{
		Delivered: b.delivered.Load(),
		Failed:    b.failed.Load(),
	}
	for i := range b.byLevel {
		s.ByLevel[i] = b.byLevel[i].Load()
	}
	return s
}
