//go:build !(darwin || linux || freebsd)

package dynlib

import (
	"context"

	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/native"
)

var errUnsupported = errors.Unsupported(errors.PhaseLoad, "shared-library cores are not supported on this platform")

// Library is unavailable on this platform.
type Library struct{}

func Open(path string) (*Library, error) { return nil, errUnsupported }

func (l *Library) Path() string { return "" }

func (l *Library) CreateFactory(ctx context.Context, symbol string) (native.Handle, error) {
	return 0, errUnsupported
}

func (l *Library) Close() error { return nil }

// Core is unavailable on this platform.
type Core struct{}

func OpenCore(path string) (*Core, error) { return nil, errUnsupported }

func (c *Core) Library() *Library { return nil }

func (c *Core) SetFactory(context.Context, native.Capability, native.Handle, []byte) error {
	return errUnsupported
}

func (c *Core) RegisterLogCallback(context.Context, native.LogFunc) error { return errUnsupported }

func (c *Core) Initialize(context.Context) (native.Handle, error) { return 0, errUnsupported }

func (c *Core) Update(context.Context, native.Handle, float32) error { return errUnsupported }

func (c *Core) Render(context.Context, native.Handle) error { return errUnsupported }

func (c *Core) Destroy(context.Context, native.Handle) error { return errUnsupported }

func (c *Core) Close() error { return nil }

var (
	_ native.Core          = (*Core)(nil)
	_ native.FactorySource = (*Library)(nil)
)
