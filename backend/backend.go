package backend

import (
	"context"

	"github.com/pieceengine/piece-host/locator"
	"github.com/pieceengine/piece-host/native"
)

// Provider describes a backend library and its single creation entry point.
type Provider struct {
	// Name is the registry key, e.g. "opengl".
	Name string
	// Symbol is the exported void* (*)(void) creation entry point.
	Symbol string
	// Library is the platform-neutral base name of the shared library.
	Library string
	// Kind is the capability the factory provides.
	Kind native.Capability
}

// Registrar accepts factories. Both *locator.Locator and *engine.Engine
// satisfy it.
type Registrar interface {
	Register(ctx context.Context, f *locator.Factory, opts native.Options) error
}

// Create calls the provider's entry point through src and wraps the result.
func (p Provider) Create(ctx context.Context, src native.FactorySource) (*locator.Factory, error) {
	h, err := src.CreateFactory(ctx, p.Symbol)
	if err != nil {
		return nil, err
	}
	return locator.NewFactory(p.Kind, h, p.Symbol)
}

// Install creates a factory and registers it with opts.
func (p Provider) Install(ctx context.Context, src native.FactorySource, reg Registrar, opts native.Options) (*locator.Factory, error) {
	f, err := p.Create(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := reg.Register(ctx, f, opts); err != nil {
		return nil, err
	}
	return f, nil
}
