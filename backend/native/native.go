//go:build !nogpu

package native

import (
	"fmt"
	"slices"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi/backend"
	"github.com/gogpu/renderapi/gpucore"
)

// kinds lists the backend kinds served by this package.
var kinds = []gpucore.RenderBackend{
	gpucore.BackendVulkan,
	gpucore.BackendD3D12,
	gpucore.BackendMetal,
	gpucore.BackendHeadless,
}

func init() {
	for _, kind := range kinds {
		backend.Register(kind, func(cfg backend.Config) (backend.Backend, error) {
			return Open(kind, cfg)
		})
	}
}

// Backend is a native backend. Everything but shader ingestion is shared
// with the HAL base implementation.
type Backend struct {
	*backend.Base
}

// Open opens a native backend of the given kind.
func Open(kind gpucore.RenderBackend, cfg backend.Config) (*Backend, error) {
	if !Supports(kind) {
		return nil, fmt.Errorf("%w: %s is not a native backend", backend.ErrBackendNotAvailable, kind)
	}
	base, err := backend.OpenBase(kind, cfg)
	if err != nil {
		return nil, err
	}
	return &Backend{Base: base}, nil
}

// Supports reports whether kind is served by this package.
func Supports(kind gpucore.RenderBackend) bool {
	return slices.Contains(kinds, kind)
}

// CreateShader creates a shader module. WGSL is accepted everywhere;
// SPIR-V only on Vulkan, whose driver consumes it directly.
func (b *Backend) CreateShader(src *backend.ShaderSource) (hal.ShaderModule, error) {
	if src != nil && src.WGSL == "" && len(src.SPIRV) != 0 && b.Kind() != gpucore.BackendVulkan {
		return nil, fmt.Errorf("%w: SPIR-V on %s", backend.ErrUnsupportedShaderFormat, b.Kind())
	}
	return b.Base.CreateShader(src)
}

var _ backend.Backend = (*Backend)(nil)
