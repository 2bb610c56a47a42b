package raw

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/backend"
	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/internal/hashutil"
)

// ErrEmptyBytecode is returned for shaders with neither WGSL nor SPIR-V.
var ErrEmptyBytecode = errors.New("raw: empty shader bytecode")

// ShaderBytecode is the compiled form of one shader stage. WGSL is
// preferred when both are present.
type ShaderBytecode struct {
	WGSL  string
	SPIRV []uint32
}

// IsEmpty reports whether the bytecode holds nothing.
func (c ShaderBytecode) IsEmpty() bool {
	return c.WGSL == "" && len(c.SPIRV) == 0
}

func (c ShaderBytecode) hash() uint64 {
	h := hashutil.New().String(c.WGSL)
	for _, word := range c.SPIRV {
		h.Uint32(word)
	}
	return h.Sum64()
}

// shaderIDs hands out shader identities.
var shaderIDs atomic.Uint64

// RawShader is a shader module of one stage. The GPU handle is created on
// first use.
type RawShader struct {
	id       uint64
	owner    Owner
	typ      gpucore.ShaderType
	name     string
	bytecode ShaderBytecode
	module   *ir.Module
	hash     uint64

	handle hal.ShaderModule
	failed bool

	nextSubscriber int
	subscribers    map[int]func(*RawShader)
}

// NewRawShader creates a shader of the given stage. WGSL sources are parsed
// so their IR is available for reflection.
func NewRawShader(owner Owner, typ gpucore.ShaderType, name string, code ShaderBytecode) (*RawShader, error) {
	s := &RawShader{
		id:          shaderIDs.Add(1),
		owner:       owner,
		typ:         typ,
		name:        name,
		subscribers: make(map[int]func(*RawShader)),
	}
	if err := s.setBytecode(code); err != nil {
		return nil, err
	}
	owner.AddDeviceObject(s)
	return s, nil
}

func (s *RawShader) setBytecode(code ShaderBytecode) error {
	if code.IsEmpty() {
		return fmt.Errorf("%w: %q", ErrEmptyBytecode, s.name)
	}
	var module *ir.Module
	if code.WGSL != "" {
		ast, err := naga.Parse(code.WGSL)
		if err != nil {
			return fmt.Errorf("raw: parse shader %q: %w", s.name, err)
		}
		module, err = naga.LowerWithSource(ast, code.WGSL)
		if err != nil {
			return fmt.Errorf("raw: lower shader %q: %w", s.name, err)
		}
	}
	s.bytecode = code
	s.module = module
	s.hash = code.hash()
	return nil
}

// ID identifies the shader object. Unlike Hash it survives reloads.
func (s *RawShader) ID() uint64 { return s.id }

// Type returns the shader stage.
func (s *RawShader) Type() gpucore.ShaderType { return s.typ }

// Name returns the debug name.
func (s *RawShader) Name() string { return s.name }

// Bytecode returns the shader bytecode.
func (s *RawShader) Bytecode() ShaderBytecode { return s.bytecode }

// Module returns the shader IR, or nil for SPIR-V only shaders.
func (s *RawShader) Module() *ir.Module { return s.module }

// Hash identifies the bytecode.
func (s *RawShader) Hash() uint64 { return s.hash }

// EntryPoint returns the entry point of the shader stage. SPIR-V shaders
// use "main".
func (s *RawShader) EntryPoint() string {
	if s.module == nil {
		return "main"
	}
	want := irStage(s.typ)
	for _, ep := range s.module.EntryPoints {
		if ep.Stage == want {
			return ep.Name
		}
	}
	return "main"
}

func irStage(t gpucore.ShaderType) ir.ShaderStage {
	switch t {
	case gpucore.PixelShader:
		return ir.StageFragment
	case gpucore.ComputeShader:
		return ir.StageCompute
	}
	return ir.StageVertex
}

// Handle returns the GPU shader module, creating it on first use. It
// returns nil while the device is invalidated or when creation failed.
func (s *RawShader) Handle() hal.ShaderModule {
	if s.handle != nil || s.failed {
		return s.handle
	}
	be := s.owner.Backend()
	if be.Device() == nil {
		return nil
	}
	handle, err := be.CreateShader(&backend.ShaderSource{
		Label: s.name,
		WGSL:  s.bytecode.WGSL,
		SPIRV: s.bytecode.SPIRV,
	})
	if err != nil {
		renderapi.Logger().Error("raw: cannot create shader", "shader", s.name, "type", s.typ, "err", err)
		s.failed = true
		return nil
	}
	s.handle = handle
	return handle
}

// IsValid reports whether the shader has, or can create, a GPU handle.
func (s *RawShader) IsValid() bool {
	return s.Handle() != nil
}

// Reload replaces the bytecode and notifies OnReloaded subscribers. The
// old bytecode is kept when the new one cannot be parsed.
func (s *RawShader) Reload(code ShaderBytecode) error {
	if err := s.setBytecode(code); err != nil {
		return err
	}
	s.release()
	s.failed = false
	for _, fn := range s.subscribers {
		fn(s)
	}
	return nil
}

// OnReloaded subscribes fn to reloads of the shader. The returned function
// cancels the subscription.
func (s *RawShader) OnReloaded(fn func(*RawShader)) (unsubscribe func()) {
	id := s.nextSubscriber
	s.nextSubscriber++
	s.subscribers[id] = fn
	return func() { delete(s.subscribers, id) }
}

// Invalidate releases the GPU module.
func (s *RawShader) Invalidate() {
	s.release()
}

// Restore recreates the GPU module.
func (s *RawShader) Restore() {
	s.failed = false
	s.Handle()
}

// Destroy releases the GPU module.
func (s *RawShader) Destroy() {
	s.release()
	clear(s.subscribers)
}

// Release destroys the shader and unregisters it from its owner.
func (s *RawShader) Release() {
	s.Destroy()
	s.owner.RemoveDeviceObject(s)
}

func (s *RawShader) release() {
	if s.handle == nil {
		return
	}
	if dev := s.owner.Backend().Device(); dev != nil {
		dev.DestroyShaderModule(s.handle)
	}
	s.handle = nil
}

var _ gpucore.DeviceObject = (*RawShader)(nil)
