package pipeline

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/backend"
	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/raw"
	"github.com/gogpu/renderapi/reflection"
)

// Pipeline state errors.
var (
	// ErrShaderNotCompiled is returned when a stage of the pipeline has no
	// GPU module.
	ErrShaderNotCompiled = errors.New("pipeline: shader is not compiled")

	// ErrUnsupportedTopology is returned for primitive types no backend
	// can draw.
	ErrUnsupportedTopology = errors.New("pipeline: unsupported primitive type")
)

// PipelineState is a created pipeline with its binding table, its
// reflection and the sampler state of every sampler it declares. States
// are shared through a PipelineStateCache and reference counted.
//
// A state whose creation failed stays in the cache with a nil handle;
// draws using it are skipped.
type PipelineState struct {
	cache *PipelineStateCache
	desc  PipelineStateDesc
	hash  uint64
	name  string
	refs  int

	pipeline   *backend.Pipeline
	binding    *Binding
	reflection *reflection.ShaderProgramReflection

	samplers            map[string]gpucore.SamplerStateDesc
	usesDefaultSamplers bool

	unsubscribe []func()
	failed      bool
}

func newPipelineState(c *PipelineStateCache, desc PipelineStateDesc, hash uint64) *PipelineState {
	s := &PipelineState{
		cache: c,
		desc:  desc,
		hash:  hash,
		name:  fmt.Sprintf("%s #%016x", desc.DebugName(), hash),
		refs:  1,
	}
	if g := desc.AsGraphics(); g != nil && (g.Geometry != nil || g.Hull != nil || g.Domain != nil) {
		renderapi.Logger().Warn("pipeline: geometry and tessellation stages are ignored", "pipeline", s.name)
	}
	for _, sh := range desc.shaders() {
		s.unsubscribe = append(s.unsubscribe, sh.OnReloaded(func(*raw.RawShader) {
			c.QueueReload(s)
		}))
	}
	c.owner.AddDeviceObject(s)
	_ = s.createGPU()
	return s
}

// Handle returns the created pipeline, or nil.
func (s *PipelineState) Handle() *backend.Pipeline { return s.pipeline }

// RenderPipeline returns the render pipeline, or nil.
func (s *PipelineState) RenderPipeline() hal.RenderPipeline {
	if s.pipeline == nil {
		return nil
	}
	return s.pipeline.Render
}

// ComputePipeline returns the compute pipeline, or nil.
func (s *PipelineState) ComputePipeline() hal.ComputePipeline {
	if s.pipeline == nil {
		return nil
	}
	return s.pipeline.Compute
}

// IsValid reports whether the pipeline was created.
func (s *PipelineState) IsValid() bool { return s.pipeline != nil }

// Type returns the pipeline type.
func (s *PipelineState) Type() gpucore.PipelineStateType { return s.desc.Type() }

// Desc returns the descriptor the state was created from.
func (s *PipelineState) Desc() *PipelineStateDesc { return &s.desc }

// Name returns the debug name, made unique by the descriptor hash.
func (s *PipelineState) Name() string { return s.name }

// Hash returns the descriptor hash.
func (s *PipelineState) Hash() uint64 { return s.hash }

// Reflection returns the program reflection, or nil before the first
// successful creation.
func (s *PipelineState) Reflection() *reflection.ShaderProgramReflection { return s.reflection }

// Binding returns the binding table, or nil while the pipeline has no
// handle.
func (s *PipelineState) Binding() *Binding { return s.binding }

// SamplerState returns the sampler state of the named texture.
func (s *PipelineState) SamplerState(name string) (gpucore.SamplerStateDesc, bool) {
	desc, ok := s.samplers[name]
	return desc, ok
}

// UsesDefaultSamplers reports whether any sampler state resolves the
// device default filter or anisotropy.
func (s *PipelineState) UsesDefaultSamplers() bool { return s.usesDefaultSamplers }

// Retain adds a reference.
func (s *PipelineState) Retain() {
	s.cache.mu.Lock()
	s.refs++
	s.cache.mu.Unlock()
}

// Release drops a reference. The last release removes the state from the
// cache and destroys it.
func (s *PipelineState) Release() {
	if !s.cache.release(s) {
		return
	}
	s.Destroy()
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.unsubscribe = nil
	s.cache.owner.RemoveDeviceObject(s)
}

// Invalidate destroys the pipeline and its binding table. The reflection
// is kept.
func (s *PipelineState) Invalidate() {
	s.destroyGPU()
}

// Restore recreates the pipeline.
func (s *PipelineState) Restore() {
	if s.pipeline == nil {
		_ = s.createGPU()
	}
}

// Destroy destroys the pipeline.
func (s *PipelineState) Destroy() {
	s.destroyGPU()
}

// rebuild recreates the pipeline and its reflection from the current
// shader bytecode.
func (s *PipelineState) rebuild() {
	s.destroyGPU()
	s.reflection = nil
	s.failed = false
	_ = s.createGPU()
}

func (s *PipelineState) destroyGPU() {
	if s.pipeline != nil {
		s.cache.owner.Backend().DestroyPipeline(s.pipeline)
	}
	s.pipeline = nil
	s.binding = nil
}

// stages returns the shader stages fed to reflection and linking.
func (s *PipelineState) stages() []reflection.ProgramStage {
	shaders := s.desc.shaders()
	stages := make([]reflection.ProgramStage, 0, len(shaders))
	for _, sh := range shaders {
		stages = append(stages, reflection.ProgramStage{
			Type:       sh.Type(),
			Module:     sh.Module(),
			EntryPoint: sh.EntryPoint(),
		})
	}
	return stages
}

func (s *PipelineState) createGPU() error {
	be := s.cache.owner.Backend()
	if be.Device() == nil {
		return backend.ErrDeviceInvalidated
	}
	for _, sh := range s.desc.shaders() {
		if sh.Handle() == nil {
			return s.fail(fmt.Errorf("%w: %s shader %q", ErrShaderNotCompiled, sh.Type(), sh.Name()))
		}
	}

	stages := s.stages()
	refl := reflection.FromStages(stages)
	pd, err := s.describe(be, refl)
	if err != nil {
		return s.fail(err)
	}
	if linker, ok := be.(backend.ProgramLinker); ok {
		linked, err := linker.LinkProgram(stages)
		if err != nil {
			return s.fail(fmt.Errorf("link program: %w", err))
		}
		if refl, err = s.finalize(pd, linked); err != nil {
			return s.fail(err)
		}
	}

	p, err := be.CreatePipeline(pd)
	if err != nil {
		return s.fail(err)
	}
	s.pipeline = p
	s.binding = newBinding(p.BindGroupLayouts, s.desc.shaders())
	// Reflection outlives device loss; only a shader reload clears it.
	if s.reflection != nil {
		refl = s.reflection
	}
	refl.ConnectToShaderVariables(s.desc.Type(), s.binding)
	s.reflection = refl
	s.resolveSamplers()
	s.failed = false
	renderapi.Logger().Debug("pipeline: created", "pipeline", s.name, "groups", len(p.BindGroupLayouts))
	return nil
}

// fail logs the first failure of a state. Repeated failures stay silent
// until the state is created again.
func (s *PipelineState) fail(err error) error {
	if !s.failed {
		renderapi.Logger().Error("pipeline: cannot create pipeline state", "pipeline", s.name, "err", err)
	}
	s.failed = true
	return err
}

// describe translates the descriptor into a backend pipeline descriptor.
func (s *PipelineState) describe(be backend.Backend, refl *reflection.ShaderProgramReflection) (*backend.PipelineDescriptor, error) {
	pd := &backend.PipelineDescriptor{
		Label:      s.name,
		BindGroups: refl.BindGroupLayouts(),
	}
	if c := s.desc.AsCompute(); c != nil {
		pd.Compute = true
		pd.ComputeStage = c.Compute.Handle()
		pd.ComputeEntry = c.Compute.EntryPoint()
		return pd, nil
	}

	g := s.desc.AsGraphics()
	log := renderapi.Logger()
	topology, ok := primitiveTopology(g.PrimitiveType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTopology, g.PrimitiveType)
	}
	switch g.FillMode {
	case gpucore.FillWireframe:
		log.Warn("pipeline: wireframe fill is not supported, drawing solid", "pipeline", s.name)
	case gpucore.FillPoint:
		topology = gputypes.PrimitiveTopologyPointList
	}
	if g.LineAntiAlias {
		log.Debug("pipeline: line antialiasing is ignored", "pipeline", s.name)
	}

	attrs := refl.VertexAttributes()
	if g.Vertex.Module() == nil {
		attrs = layoutAttributes(&g.InputLayout)
	}
	buffers, err := vertexBuffers(&g.InputLayout, attrs)
	if err != nil {
		return nil, err
	}

	pd.Vertex = g.Vertex.Handle()
	pd.VertexEntry = g.Vertex.EntryPoint()
	pd.VertexBuffers = buffers
	pd.Fragment = g.Pixel.Handle()
	pd.FragmentEntry = g.Pixel.EntryPoint()

	writeMask := gputypes.ColorWriteMaskNone
	if g.ColorWrite {
		writeMask = gputypes.ColorWriteMaskAll
	}
	blend := blendState(g.BlendMode)
	for _, format := range g.Output.RenderTargets() {
		pd.Targets = append(pd.Targets, gputypes.ColorTargetState{
			Format:    format,
			Blend:     blend,
			WriteMask: writeMask,
		})
	}

	pd.Primitive = gputypes.PrimitiveState{
		Topology:  topology,
		FrontFace: gputypes.FrontFaceCW,
		CullMode:  cullMode(g.CullMode),
	}
	pd.Multisample = gputypes.MultisampleState{
		Count:                  max(g.Output.MultiSample, 1),
		Mask:                   0xFFFFFFFF,
		AlphaToCoverageEnabled: g.AlphaToCoverage,
	}
	pd.DepthStencil = depthStencilState(g, be.Kind().IsLegacy())
	return pd, nil
}

// depthStencilState returns the depth-stencil state, or nil when the
// pipeline renders without a depth buffer.
func depthStencilState(g *GraphicsPipelineStateDesc, legacy bool) *hal.DepthStencilState {
	format := g.Output.DepthStencilFormat
	if format == gputypes.TextureFormatUndefined {
		return nil
	}
	ds := &hal.DepthStencilState{
		Format:              format,
		DepthWriteEnabled:   g.DepthWrite,
		DepthCompare:        compareFunction(g.DepthCompare),
		DepthBias:           depthBias(g.ConstantDepthBias, format, legacy),
		DepthBiasSlopeScale: g.SlopeScaledDepthBias,
	}
	face := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	if g.StencilTest && gpucore.HasStencil(format) {
		face = hal.StencilFaceState{
			Compare:     compareFunction(g.StencilCompare),
			FailOp:      stencilOperation(g.StencilFail),
			DepthFailOp: stencilOperation(g.StencilDepthFail),
			PassOp:      stencilOperation(g.StencilPass),
		}
		ds.StencilReadMask = g.StencilReadMask
		ds.StencilWriteMask = g.StencilWriteMask
	}
	ds.StencilFront = face
	ds.StencilBack = face
	return ds
}

// finalize completes a descriptor from the linked program: vertex
// attribute locations are only known after linking.
func (s *PipelineState) finalize(pd *backend.PipelineDescriptor, linked *reflection.LinkedProgram) (*reflection.ShaderProgramReflection, error) {
	refl := reflection.FromLinkedProgram(linked)
	if g := s.desc.AsGraphics(); g != nil {
		buffers, err := vertexBuffers(&g.InputLayout, refl.VertexAttributes())
		if err != nil {
			return nil, err
		}
		pd.VertexBuffers = buffers
	}
	return refl, nil
}

// resolveSamplers picks the sampler state of every sampler the program
// declares. Samplers without an immutable state use bilinear filtering.
func (s *PipelineState) resolveSamplers() {
	s.samplers = make(map[string]gpucore.SamplerStateDesc)
	s.usesDefaultSamplers = false
	immutable := s.desc.samplers()
	for _, smp := range s.reflection.Samplers() {
		desc, ok := immutable.Get(smp.Name)
		if !ok {
			renderapi.Logger().Warn("pipeline: default sampler is used", "pipeline", s.name, "resource", smp.Name)
			desc = gpucore.BilinearSampler(gpucore.AddressWrap)
			desc.ShadowCompare = smp.Comparison
		}
		if desc.UsesDefaults() {
			s.usesDefaultSamplers = true
		}
		s.samplers[smp.Name] = desc
	}
}

var _ gpucore.DeviceObject = (*PipelineState)(nil)
