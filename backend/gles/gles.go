//go:build !nogpu

package gles

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi/backend"
	"github.com/gogpu/renderapi/gpucore"
)

func init() {
	backend.Register(gpucore.BackendOpenGL, func(cfg backend.Config) (backend.Backend, error) {
		return Open(cfg)
	})
}

// Backend is the OpenGL backend.
type Backend struct {
	*backend.Base
}

// Open opens the OpenGL backend.
func Open(cfg backend.Config) (*Backend, error) {
	base, err := backend.OpenBase(gpucore.BackendOpenGL, cfg)
	if err != nil {
		return nil, err
	}
	return &Backend{Base: base}, nil
}

// CreateShader creates a shader module from WGSL. OpenGL drivers do not
// consume SPIR-V.
func (b *Backend) CreateShader(src *backend.ShaderSource) (hal.ShaderModule, error) {
	if src != nil && src.WGSL == "" && len(src.SPIRV) != 0 {
		return nil, fmt.Errorf("%w: SPIR-V on %s", backend.ErrUnsupportedShaderFormat, b.Kind())
	}
	return b.Base.CreateShader(src)
}

var (
	_ backend.Backend       = (*Backend)(nil)
	_ backend.ProgramLinker = (*Backend)(nil)
)
