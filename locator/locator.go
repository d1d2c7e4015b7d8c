package locator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/metrics"
	"github.com/pieceengine/piece-host/native"
)

// Policy decides what happens when a capability is registered twice.
type Policy int

const (
	// OverwriteWarn replaces the previous factory and logs a warning.
	// The replaced pointer is kept in Overwritten.
	OverwriteWarn Policy = iota
	// OverwriteReject refuses the second registration. The new factory is
	// not moved and stays with the caller.
	OverwriteReject
)

func (p Policy) String() string {
	switch p {
	case OverwriteWarn:
		return "warn"
	case OverwriteReject:
		return "reject"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses "warn" or "reject". An empty string is OverwriteWarn.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "warn":
		return OverwriteWarn, nil
	case "reject", "error":
		return OverwriteReject, nil
	default:
		return 0, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown overwrite policy %q", s))
	}
}

// Entry is one registered factory.
type Entry struct {
	Options    []byte
	Symbol     string
	Handle     native.Handle
	Capability native.Capability
}

// Snapshot is the registry content consumed by Initialize.
type Snapshot struct {
	entries map[native.Capability]Entry
}

// Get returns the entry for kind.
func (s Snapshot) Get(kind native.Capability) (Entry, bool) {
	e, ok := s.entries[kind]
	return e, ok
}

// Len returns the number of registered capabilities.
func (s Snapshot) Len() int { return len(s.entries) }

// Missing lists capabilities without a registration.
func (s Snapshot) Missing() []native.Capability {
	var missing []native.Capability
	for _, kind := range native.Capabilities {
		if _, ok := s.entries[kind]; !ok {
			missing = append(missing, kind)
		}
	}
	return missing
}

// Option configures a Locator.
type Option func(*Locator)

// WithPolicy sets the overwrite policy.
func WithPolicy(p Policy) Option {
	return func(l *Locator) { l.policy = p }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Locator) { l.log = log }
}

// WithMetrics records registrations on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(l *Locator) { l.metrics = c }
}

// Locator is the host side of the native service locator.
//
// It forwards each registration to the core's per-capability setter and
// mirrors what the native registry holds. Registration is open until Seal,
// which the engine calls at Initialize.
type Locator struct {
	core    native.Core
	log     *zap.Logger
	metrics *metrics.Collector
	policy  Policy

	mu          sync.Mutex
	entries     map[native.Capability]Entry
	overwritten []Entry
	sealed      bool
	closed      bool
}

// New creates a locator forwarding registrations to core.
func New(core native.Core, opts ...Option) *Locator {
	l := &Locator{
		core:    core,
		log:     Logger(),
		entries: make(map[native.Capability]Entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the overwrite policy.
func (l *Locator) Policy() Policy { return l.policy }

// RegisterGraphicsFactory registers a graphics device factory. opts may be nil.
func (l *Locator) RegisterGraphicsFactory(ctx context.Context, f *Factory, opts *native.GraphicsOptions) error {
	if opts == nil {
		return l.registerAs(ctx, native.CapabilityGraphics, f, nil)
	}
	return l.registerAs(ctx, native.CapabilityGraphics, f, *opts)
}

// RegisterWindowFactory registers a window factory. opts may be nil.
func (l *Locator) RegisterWindowFactory(ctx context.Context, f *Factory, opts *native.WindowOptions) error {
	if opts == nil {
		return l.registerAs(ctx, native.CapabilityWindow, f, nil)
	}
	return l.registerAs(ctx, native.CapabilityWindow, f, *opts)
}

// RegisterPhysicsFactory registers a physics world factory. opts may be nil.
func (l *Locator) RegisterPhysicsFactory(ctx context.Context, f *Factory, opts *native.PhysicsOptions) error {
	if opts == nil {
		return l.registerAs(ctx, native.CapabilityPhysics, f, nil)
	}
	return l.registerAs(ctx, native.CapabilityPhysics, f, *opts)
}

// Register registers f under its own capability. opts may be nil or a nil
// pointer to one of the option structs.
func (l *Locator) Register(ctx context.Context, f *Factory, opts native.Options) error {
	if f == nil {
		return errors.NilHandle(errors.PhaseRegister, "factory")
	}
	return l.registerAs(ctx, f.kind, f, native.NormalizeOptions(opts))
}

func (l *Locator) registerAs(ctx context.Context, kind native.Capability, f *Factory, opts native.Options) error {
	if f == nil {
		return errors.NilHandle(errors.PhaseRegister, kind.String()+" factory")
	}
	if f.kind != kind {
		return errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Capability(kind).
			Symbol(f.symbol).
			Detail("factory provides %s", f.kind).
			Build()
	}
	if opts != nil && opts.Capability() != kind {
		return errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Capability(kind).
			Detail("%s options passed for a %s factory", opts.Capability(), kind).
			Build()
	}
	blob, err := native.EncodeOptions(opts)
	if err != nil {
		return errors.Wrap(errors.PhaseRegister, errors.KindInvalidInput, err, "encoding options")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sealed {
		l.metrics.RecordRegistration(kind.String(), "sealed")
		detail := "registration after Initialize has no effect on the running engine"
		if l.closed {
			detail = "registration after Destroy"
		}
		return errors.New(errors.PhaseRegister, errors.KindInvalidState).
			Capability(kind).
			Symbol(f.symbol).
			Detail(detail).
			Build()
	}

	prev, exists := l.entries[kind]
	if exists && l.policy == OverwriteReject {
		l.metrics.RecordRegistration(kind.String(), "rejected")
		return errors.Overwrite(kind, prev.Symbol, f.symbol)
	}

	h, err := f.take()
	if err != nil {
		return err
	}
	if err := l.core.SetFactory(ctx, kind, h, blob); err != nil {
		f.restore()
		l.metrics.RecordRegistration(kind.String(), "error")
		return errors.NativeCall(errors.PhaseRegister, native.SetterSymbol(kind), err)
	}

	l.entries[kind] = Entry{
		Capability: kind,
		Handle:     h,
		Symbol:     f.symbol,
		Options:    blob,
	}

	if exists {
		l.overwritten = append(l.overwritten, prev)
		l.metrics.RecordRegistration(kind.String(), "overwritten")
		l.log.Warn("factory registered twice, previous registration replaced",
			zap.Stringer("capability", kind),
			zap.String("previous", prev.Symbol),
			zap.Stringer("previous_handle", prev.Handle),
			zap.String("symbol", f.symbol))
		return nil
	}

	l.metrics.RecordRegistration(kind.String(), "registered")
	l.log.Debug("factory registered",
		zap.Stringer("capability", kind),
		zap.String("symbol", f.symbol),
		zap.Int("options_len", len(blob)))
	return nil
}

// Seal closes registration and returns the registry content.
func (l *Locator) Seal() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sealed = true
	return l.snapshotLocked()
}

// Unseal reopens registration after a failed Initialize. It has no effect
// once the locator is closed.
func (l *Locator) Unseal() {
	l.mu.Lock()
	if !l.closed {
		l.sealed = false
	}
	l.mu.Unlock()
}

// Sealed reports whether registration is closed.
func (l *Locator) Sealed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sealed
}

// Clear forgets every entry and leaves the sealed flag as is. Use Close to
// end registration for good.
func (l *Locator) Clear() {
	l.mu.Lock()
	l.entries = make(map[native.Capability]Entry)
	l.overwritten = nil
	l.mu.Unlock()
}

// Close forgets every entry and seals the locator for good. The engine calls
// it on every path into Destroyed.
func (l *Locator) Close() {
	l.mu.Lock()
	l.entries = make(map[native.Capability]Entry)
	l.overwritten = nil
	l.sealed = true
	l.closed = true
	l.mu.Unlock()
}

// Closed reports whether Close was called.
func (l *Locator) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Snapshot returns the current registry content without sealing.
func (l *Locator) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Locator) snapshotLocked() Snapshot {
	entries := make(map[native.Capability]Entry, len(l.entries))
	for k, v := range l.entries {
		entries[k] = v
	}
	return Snapshot{entries: entries}
}

// Missing lists capabilities without a registration.
func (l *Locator) Missing() []native.Capability {
	return l.Snapshot().Missing()
}

// Entries returns the registrations in capability order.
func (l *Locator) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.entries))
	for _, kind := range native.Capabilities {
		if e, ok := l.entries[kind]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Overwritten returns entries replaced by a later registration. Their
// pointers were never released by native code.
func (l *Locator) Overwritten() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.overwritten...)
}
