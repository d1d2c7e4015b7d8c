package host

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pieceengine/piece-host/backend"
	"github.com/pieceengine/piece-host/config"
	"github.com/pieceengine/piece-host/engine"
	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/locator"
	"github.com/pieceengine/piece-host/logbridge"
	"github.com/pieceengine/piece-host/metrics"
	"github.com/pieceengine/piece-host/native"
	"github.com/pieceengine/piece-host/native/dynlib"
)

// Option configures a Host.
type Option func(*options)

type options struct {
	log     *zap.Logger
	metrics *metrics.Collector
	core    native.Core
	source  native.FactorySource
}

// WithLogger sets the host logger. The engine logs under it as "engine".
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics uses m instead of a fresh collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *options) { o.metrics = m }
}

// WithCore runs the host on an already opened core instead of loading one
// from the configured driver. src resolves backend creation entry points and
// may be nil if core implements native.FactorySource. The host does not
// close an injected core.
func WithCore(core native.Core, src native.FactorySource) Option {
	return func(o *options) {
		o.core = core
		o.source = src
	}
}

// Stats is a point-in-time view of the frame loop.
type Stats struct {
	State     engine.State
	Frames    uint64
	LastFrame time.Duration
	Logs      logbridge.Stats
}

// Host runs one engine: it loads the core, installs the configured backends,
// initializes the engine, drives the frame loop and serves metrics.
type Host struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Collector
	engine  *engine.Engine

	linked    native.FactorySource
	closeCore func(context.Context) error
	libraries map[string]*dynlib.Library

	mu      sync.Mutex
	server  *http.Server
	addr    net.Addr
	started bool
	stopped bool

	frames    atomic.Uint64
	lastFrame atomic.Int64
}

// New loads the core selected by cfg and prepares the engine. A nil cfg
// uses config.Default.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Host, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = Logger()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewCollector("")
	}

	policy, err := cfg.OverwritePolicy()
	if err != nil {
		return nil, errors.Config("locator.overwrite", err)
	}

	h := &Host{
		cfg:       cfg,
		log:       o.log,
		metrics:   o.metrics,
		libraries: make(map[string]*dynlib.Library),
	}

	core := o.core
	if core != nil {
		h.linked = o.source
		if h.linked == nil {
			h.linked, _ = core.(native.FactorySource)
		}
	} else {
		core, h.linked, h.closeCore, err = openCore(ctx, cfg, o.log)
		if err != nil {
			return nil, err
		}
	}

	h.engine = engine.New(core,
		engine.WithLogger(o.log),
		engine.WithMetrics(o.metrics),
		engine.WithLocatorOptions(locator.WithPolicy(policy)),
	)

	h.log.Info("core loaded",
		zap.String("driver", string(cfg.Core.Driver)),
		zap.Int("backends", len(cfg.Backends)))
	return h, nil
}

// Engine returns the hosted engine.
func (h *Host) Engine() *engine.Engine { return h.engine }

// Metrics returns the host's collector.
func (h *Host) Metrics() *metrics.Collector { return h.metrics }

// Config returns the host configuration.
func (h *Host) Config() *config.Config { return h.cfg }

// Start registers the log callback, installs the configured backends,
// initializes the engine and starts the metrics endpoint if one is
// configured. It fails if the native side refuses to initialize.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return errors.InvalidState(errors.PhaseInitialize, engine.StateDestroyed, "Start")
	}
	if h.started {
		return nil
	}

	if err := h.engine.RegisterLogCallback(ctx); err != nil {
		return err
	}
	if err := h.installBackends(ctx); err != nil {
		return err
	}
	if _, err := h.engine.Initialize(ctx); err != nil {
		return err
	}

	if h.cfg.Metrics.Listen != "" {
		if err := h.serveLocked(h.cfg.Metrics.Listen); err != nil {
			return err
		}
	}

	h.started = true
	h.log.Info("host started", zap.Stringer("engine", h.engine.Handle()))
	return nil
}

func (h *Host) installBackends(ctx context.Context) error {
	for _, b := range h.cfg.Backends {
		p, err := backend.Lookup(b.Name)
		if err != nil {
			return err
		}
		src, err := h.sourceFor(b, p)
		if err != nil {
			return err
		}
		if _, err := p.Install(ctx, src, h.engine, h.cfg.Options(p.Kind)); err != nil {
			return err
		}
		h.log.Debug("backend installed", zap.String("backend", p.Name), zap.Stringer("capability", p.Kind))
	}
	return nil
}

func (h *Host) serveLocked(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Config("metrics.listen", err)
	}
	h.addr = ln.Addr()
	h.server = &http.Server{
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := h.server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			h.log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	h.log.Info("metrics listening", zap.Stringer("addr", h.addr))
	return nil
}

// Addr returns the metrics listener address, or nil if none is running.
func (h *Host) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Step runs one frame with the given elapsed time.
func (h *Host) Step(ctx context.Context, dt time.Duration) error {
	start := time.Now()
	if err := h.engine.Step(ctx, float32(dt.Seconds())); err != nil {
		return err
	}
	h.frames.Add(1)
	h.lastFrame.Store(int64(time.Since(start)))
	return nil
}

// Run steps the engine at the configured tick rate until ctx is done or
// loop.max_frames frames have run. The delta passed to each frame is the
// measured time since the previous one.
func (h *Host) Run(ctx context.Context) error {
	interval := h.cfg.TickInterval()
	if interval <= 0 {
		return errors.Config("loop.tick_rate must be positive", nil)
	}
	maxFrames := uint64(h.cfg.Loop.MaxFrames)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.log.Info("frame loop started", zap.Duration("interval", interval), zap.Uint64("max_frames", maxFrames))
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			h.log.Info("frame loop stopped", zap.Uint64("frames", h.frames.Load()))
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if err := h.Step(ctx, dt); err != nil {
				return err
			}
			if maxFrames > 0 && h.frames.Load() >= maxFrames {
				h.log.Info("frame limit reached", zap.Uint64("frames", maxFrames))
				return nil
			}
		}
	}
}

// Stats returns frame loop statistics.
func (h *Host) Stats() Stats {
	return Stats{
		State:     h.engine.State(),
		Frames:    h.frames.Load(),
		LastFrame: time.Duration(h.lastFrame.Load()),
		Logs:      h.engine.Bridge().Stats(),
	}
}

// Stop destroys the engine, then shuts down the metrics endpoint and closes
// the core and backend libraries. Native code is unloaded only after the
// engine is destroyed. Stop is idempotent.
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}
	h.stopped = true

	var errs []error
	if err := h.engine.Destroy(ctx); err != nil {
		errs = append(errs, err)
	}
	if h.server != nil {
		if err := h.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		h.server = nil
		h.addr = nil
	}
	if h.closeCore != nil {
		if err := h.closeCore(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for path, lib := range h.libraries {
		if err := lib.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(h.libraries, path)
	}

	h.log.Info("host stopped", zap.Uint64("frames", h.frames.Load()))
	return stderrors.Join(errs...)
}
