package backend

import (
	"sort"
	"sync"

	"github.com/pieceengine/piece-host/errors"
	"github.com/pieceengine/piece-host/native"
)

// registry holds registered providers.
var (
	registryMu sync.RWMutex
	providers  = make(map[string]Provider)
)

// Register registers a provider under its name.
// This is typically called from init() functions.
// A provider with the same name is replaced.
func Register(p Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	providers[p.Name] = p
}

// Unregister removes a provider from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(providers, name)
}

// Lookup returns the provider registered as name.
func Lookup(name string) (Provider, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := providers[name]
	if !ok {
		return Provider{}, errors.NotFound(errors.PhaseConfig, "backend", name)
	}
	return p, nil
}

// Available returns the registered provider names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForCapability returns the providers of kind, sorted by name.
func ForCapability(kind native.Capability) []Provider {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var out []Provider
	for _, p := range providers {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
