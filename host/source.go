package host

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/pieceengine/piece-host/backend"
	"github.com/pieceengine/piece-host/config"
	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/native"
	"github.com/pieceengine/piece-host/native/dynlib"
	"github.com/pieceengine/piece-host/native/wasmcore"
)

// openCore loads the engine core selected by cfg. linked is the factory
// source for backends compiled into the core; it is nil for dynlib cores,
// whose backends live in their own libraries.
func openCore(ctx context.Context, cfg *config.Config, log *zap.Logger) (core native.Core, linked native.FactorySource, closeFn func(context.Context) error, err error) {
	switch cfg.Core.Driver {
	case config.DriverReference, config.DriverWasm:
		wcfg := &wasmcore.Config{
			Logger:           log.Named("wasm"),
			MemoryLimitPages: cfg.Core.MemoryLimitPages,
		}
		var c *wasmcore.Core
		if cfg.Core.Driver == config.DriverReference {
			c, err = wasmcore.LoadReference(ctx, wcfg)
		} else {
			var wasm []byte
			wasm, err = os.ReadFile(cfg.Core.Module)
			if err != nil {
				return nil, nil, nil, errors.Load("reading core module "+cfg.Core.Module, err)
			}
			c, err = wasmcore.Load(ctx, wasm, wcfg)
		}
		if err != nil {
			return nil, nil, nil, err
		}
		return c, c, c.Close, nil

	case config.DriverDynlib:
		c, err := dynlib.OpenCore(cfg.Core.Library)
		if err != nil {
			return nil, nil, nil, err
		}
		return c, nil, func(context.Context) error { return c.Close() }, nil

	default:
		return nil, nil, nil, errors.Unsupported(errors.PhaseLoad, "core driver "+string(cfg.Core.Driver))
	}
}

// sourceFor returns where the creation entry point of p is resolved. Cores
// with linked backends serve every provider; otherwise each backend library
// is opened once and kept until Stop.
func (h *Host) sourceFor(b config.BackendConfig, p backend.Provider) (native.FactorySource, error) {
	if h.linked != nil {
		return h.linked, nil
	}

	path := b.Library
	if path == "" {
		path = dynlib.Resolve(h.cfg.Core.BackendDir, p.Library)
	}
	if lib, ok := h.libraries[path]; ok {
		return lib, nil
	}
	lib, err := dynlib.Open(path)
	if err != nil {
		return nil, err
	}
	h.libraries[path] = lib
	h.log.Debug("backend library opened", zap.String("backend", p.Name), zap.String("path", path))
	return lib, nil
}
