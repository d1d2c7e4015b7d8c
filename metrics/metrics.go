// Package metrics provides engine host metrics collection.
// It wraps Prometheus collectors on a private registry covering the engine
// lifecycle, the frame loop, factory registration and native log delivery.
//
// All Record methods are safe to call on a nil *Collector, so components can
// take an optional collector without guarding every call site.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector provides engine host metrics collection.
type Collector struct {
	registry *prometheus.Registry

	// Lifecycle metrics
	engineState      prometheus.Gauge
	lifecycleCalls   *prometheus.CounterVec
	lifecycleLatency *prometheus.HistogramVec

	// Frame metrics
	frames        prometheus.Counter
	frameDuration prometheus.Histogram

	// Registration metrics
	registrations *prometheus.CounterVec

	// Log bridge metrics
	logMessages      *prometheus.CounterVec
	callbackFailures prometheus.Counter
}

// NewCollector creates a new collector. An empty namespace defaults to "piece".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "piece"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.engineState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "state",
			Help:      "Current engine state (0=uninitialized, 1=initialized, 2=destroyed)",
		},
	)

	c.lifecycleCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "native_calls_total",
			Help:      "Total number of native lifecycle calls",
		},
		[]string{"call", "result"},
	)

	c.lifecycleLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "native_call_duration_seconds",
			Help:      "Time spent inside native lifecycle calls",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100us to ~1.6s
		},
		[]string{"call"},
	)

	c.frames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "frames_total",
			Help:      "Total number of update/render frames driven",
		},
	)

	c.frameDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "frame_duration_seconds",
			Help:      "Wall time of one update plus render",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10), // 0.5ms to ~250ms
		},
	)

	c.registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "locator",
			Name:      "registrations_total",
			Help:      "Total number of factory registrations",
		},
		[]string{"capability", "result"},
	)

	c.logMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "native",
			Name:      "log_messages_total",
			Help:      "Total number of log messages delivered by native code",
		},
		[]string{"level"},
	)

	c.callbackFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "native",
			Name:      "callback_failures_total",
			Help:      "Total number of log callbacks that failed during processing",
		},
	)

	c.registry.MustRegister(
		c.engineState,
		c.lifecycleCalls,
		c.lifecycleLatency,
		c.frames,
		c.frameDuration,
		c.registrations,
		c.logMessages,
		c.callbackFailures,
		collectors.NewGoCollector(),
	)

	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordEngineState records the current lifecycle state.
func (c *Collector) RecordEngineState(state int) {
	if c == nil {
		return
	}
	c.engineState.Set(float64(state))
}

// RecordNativeCall records one native lifecycle call.
func (c *Collector) RecordNativeCall(call string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.lifecycleCalls.WithLabelValues(call, result(err)).Inc()
	c.lifecycleLatency.WithLabelValues(call).Observe(duration.Seconds())
}

// RecordFrame records one driven frame.
func (c *Collector) RecordFrame(duration time.Duration) {
	if c == nil {
		return
	}
	c.frames.Inc()
	c.frameDuration.Observe(duration.Seconds())
}

// RecordRegistration records a factory registration outcome.
func (c *Collector) RecordRegistration(capability, outcome string) {
	if c == nil {
		return
	}
	c.registrations.WithLabelValues(capability, outcome).Inc()
}

// RecordLog records a native log message at the given level name.
func (c *Collector) RecordLog(level string) {
	if c == nil {
		return
	}
	c.logMessages.WithLabelValues(level).Inc()
}

// RecordCallbackFailure records a log callback that failed during processing.
func (c *Collector) RecordCallbackFailure() {
	if c == nil {
		return
	}
	c.callbackFailures.Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
