package engine

import (
	"go.uber.org/zap"

	"github.com/pieceengine/piece-host/locator"
	"github.com/pieceengine/piece-host/logbridge"
	"github.com/pieceengine/piece-host/metrics"
)

// Option configures an Engine.
type Option func(*config)

type config struct {
	log        *zap.Logger
	metrics    *metrics.Collector
	locatorOps []locator.Option
	bridgeOps  []logbridge.Option
}

// WithLogger sets the logger for the engine, its locator and its log bridge.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithMetrics records lifecycle, registration and log metrics on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *config) { c.metrics = m }
}

// WithLocatorOptions passes options to the engine's locator.
func WithLocatorOptions(opts ...locator.Option) Option {
	return func(c *config) { c.locatorOps = append(c.locatorOps, opts...) }
}

// WithBridgeOptions passes options to the engine's log bridge.
func WithBridgeOptions(opts ...logbridge.Option) Option {
	return func(c *config) { c.bridgeOps = append(c.bridgeOps, opts...) }
}
