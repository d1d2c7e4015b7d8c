// Package host runs a single engine as a long-lived service.
//
// A Host loads the engine core chosen by the configuration (the built-in
// reference core, a WebAssembly core module or the native shared library),
// installs the configured backends, initializes the engine and drives it at
// a fixed tick rate:
//
//	h, err := host.New(ctx, cfg, host.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	defer h.Stop(context.Background())
//
//	if err := h.Start(ctx); err != nil {
//		return err
//	}
//	return h.Run(ctx)
//
// Stop destroys the engine before any native library is unloaded, so the
// log trampoline outlives every native call that may use it.
package host
