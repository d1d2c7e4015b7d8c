//go:build darwin || linux || freebsd

package dynlib

import (
	"context"
	"sync"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/native"
)

// Library is a loaded shared library.
type Library struct {
	path   string
	handle uintptr

	mu       sync.Mutex
	creators map[string]func() uintptr
	closed   bool
}

// Open loads the shared library at path.
func Open(path string) (*Library, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, errors.Load("opening "+path, err)
	}
	Logger().Debug("library loaded", zap.String("path", path))
	return &Library{
		path:     path,
		handle:   h,
		creators: make(map[string]func() uintptr),
	}, nil
}

// Path returns the path the library was opened from.
func (l *Library) Path() string { return l.path }

// Lookup returns the address of symbol.
func (l *Library) Lookup(symbol string) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lookupLocked(errors.PhaseLoad, symbol)
}

func (l *Library) lookupLocked(phase errors.Phase, symbol string) (uintptr, error) {
	if l.closed {
		return 0, errors.NativeCall(phase, symbol, errClosed)
	}
	sym, err := purego.Dlsym(l.handle, symbol)
	if err != nil || sym == 0 {
		return 0, errors.SymbolMissing(phase, symbol, err)
	}
	return sym, nil
}

// CreateFactory calls the exported void* symbol(void) creation entry point.
func (l *Library) CreateFactory(ctx context.Context, symbol string) (native.Handle, error) {
	l.mu.Lock()
	create, ok := l.creators[symbol]
	if !ok {
		sym, err := l.lookupLocked(errors.PhaseRegister, symbol)
		if err != nil {
			l.mu.Unlock()
			return 0, err
		}
		purego.RegisterFunc(&create, sym)
		l.creators[symbol] = create
	}
	closed := l.closed
	l.mu.Unlock()

	if closed {
		return 0, errors.NativeCall(errors.PhaseRegister, symbol, errClosed)
	}
	return native.Handle(create()), nil
}

// Close unloads the library. Factories and engines created from it must be
// gone by then.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := purego.Dlclose(l.handle); err != nil {
		return errors.Wrap(errors.PhaseDestroy, errors.KindNativeCall, err, "closing "+l.path)
	}
	return nil
}

var _ native.FactorySource = (*Library)(nil)
