package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/gpucore"
)

// Factory opens a backend.
type Factory func(cfg Config) (Backend, error)

// priority is the selection order of OpenDefault (first available wins).
var priority = []gpucore.RenderBackend{
	gpucore.BackendVulkan,
	gpucore.BackendD3D12,
	gpucore.BackendMetal,
	gpucore.BackendOpenGL,
	gpucore.BackendHeadless,
}

var registry = newRegistry()

func newRegistry() *gpucontext.Registry[Factory] {
	names := make([]string, len(priority))
	for i, kind := range priority {
		names[i] = kind.String()
	}
	return gpucontext.NewRegistry[Factory](gpucontext.WithPriority(names...))
}

// Register registers the factory for a backend kind, replacing any
// previous registration. Backend packages call it from init().
func Register(kind gpucore.RenderBackend, factory Factory) {
	registry.Register(kind.String(), func() Factory { return factory })
}

// Unregister removes a backend kind from the registry.
func Unregister(kind gpucore.RenderBackend) {
	registry.Unregister(kind.String())
}

// IsRegistered reports whether a factory is registered for kind.
func IsRegistered(kind gpucore.RenderBackend) bool {
	return registry.Has(kind.String())
}

// Available returns the registered backend kinds in priority order.
func Available() []gpucore.RenderBackend {
	kinds := make([]gpucore.RenderBackend, 0, registry.Count())
	for _, kind := range priority {
		if registry.Has(kind.String()) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Open opens a backend of the given kind.
func Open(kind gpucore.RenderBackend, cfg Config) (Backend, error) {
	if !registry.Has(kind.String()) {
		return nil, fmt.Errorf("%w: %s", ErrBackendNotAvailable, kind)
	}
	factory := registry.Get(kind.String())
	b, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("backend: open %s: %w", kind, err)
	}
	renderapi.Logger().Info("backend: opened",
		"backend", b.Name(),
		"adapter", b.AdapterInfo().Name,
	)
	return b, nil
}

// OpenDefault opens the highest-priority backend that succeeds. The
// returned error wraps ErrNoBackend and every individual failure.
func OpenDefault(cfg Config) (Backend, error) {
	errs := []error{ErrNoBackend}
	for _, kind := range Available() {
		b, err := Open(kind, cfg)
		if err == nil {
			return b, nil
		}
		renderapi.Logger().Warn("backend: open failed, trying next", "backend", kind, "err", err)
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
