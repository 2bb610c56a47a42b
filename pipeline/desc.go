package pipeline

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/internal/hashutil"
	"github.com/gogpu/renderapi/raw"
)

// MaxVertexElements is the capacity of an input layout.
const MaxVertexElements = 32

// InputLayoutDesc is a fixed-capacity list of vertex elements. It is
// comparable so descriptors holding it can be compared with ==.
type InputLayoutDesc struct {
	elements [MaxVertexElements]gpucore.VertexElement
	size     int

	// Strides overrides the vertex stride of each buffer slot. A zero stride
	// is computed from the elements of the slot.
	Strides [gpucore.MaxVertexStreams]uint32
}

// InputLayout returns a layout holding elements.
func InputLayout(elements ...gpucore.VertexElement) InputLayoutDesc {
	var l InputLayoutDesc
	l.Append(elements...)
	return l
}

// Append adds elements to the layout. Elements past the capacity or with
// an out of range buffer slot are dropped with a warning.
func (l *InputLayoutDesc) Append(elements ...gpucore.VertexElement) {
	for _, e := range elements {
		if l.size == MaxVertexElements {
			renderapi.Logger().Warn("pipeline: too many vertex elements", "max", MaxVertexElements)
			return
		}
		if e.BufferSlot >= gpucore.MaxVertexStreams {
			renderapi.Logger().Warn("pipeline: vertex element buffer slot out of range", "slot", e.BufferSlot)
			continue
		}
		l.elements[l.size] = e
		l.size++
	}
}

// Elements returns the elements of the layout.
func (l *InputLayoutDesc) Elements() []gpucore.VertexElement {
	return l.elements[:l.size]
}

// Len returns the number of elements.
func (l *InputLayoutDesc) Len() int { return l.size }

// Stride returns the vertex stride of a buffer slot.
func (l *InputLayoutDesc) Stride(slot uint8) uint32 {
	if slot >= gpucore.MaxVertexStreams {
		return 0
	}
	if l.Strides[slot] != 0 {
		return l.Strides[slot]
	}
	var stride uint32
	for _, e := range l.Elements() {
		if e.BufferSlot == slot {
			stride = max(stride, e.Offset+e.Type.Size())
		}
	}
	return stride
}

// ImmutableSamplers maps texture names, without the s prefix, to the
// sampler state used with them.
type ImmutableSamplers struct {
	names [gpucore.MaxImmutableSamplers]string
	descs [gpucore.MaxImmutableSamplers]gpucore.SamplerStateDesc
	size  int
}

// Add sets the sampler of the named texture.
func (s *ImmutableSamplers) Add(name string, desc gpucore.SamplerStateDesc) {
	for i := range s.size {
		if s.names[i] == name {
			s.descs[i] = desc
			return
		}
	}
	if s.size == gpucore.MaxImmutableSamplers {
		renderapi.Logger().Warn("pipeline: too many immutable samplers", "sampler", name)
		return
	}
	s.names[s.size] = name
	s.descs[s.size] = desc
	s.size++
}

// Get returns the sampler of the named texture.
func (s *ImmutableSamplers) Get(name string) (gpucore.SamplerStateDesc, bool) {
	for i := range s.size {
		if s.names[i] == name {
			return s.descs[i], true
		}
	}
	return gpucore.SamplerStateDesc{}, false
}

// Len returns the number of samplers.
func (s *ImmutableSamplers) Len() int { return s.size }

func (s *ImmutableSamplers) hash(h *hashutil.Hasher) {
	h.Uint32(uint32(s.size))
	for i := range s.size {
		h.String(s.names[i]).Uint64(s.descs[i].Hash())
	}
}

// OutputDesc describes the render targets a graphics pipeline renders into.
type OutputDesc struct {
	DepthStencilFormat  gputypes.TextureFormat
	NumRenderTargets    uint8
	RenderTargetFormats [gpucore.MaxRenderTargets]gputypes.TextureFormat
	MultiSample         uint32
}

// RenderTargets returns the formats of the bound color targets.
func (o *OutputDesc) RenderTargets() []gputypes.TextureFormat {
	return o.RenderTargetFormats[:min(int(o.NumRenderTargets), gpucore.MaxRenderTargets)]
}

func (o *OutputDesc) hash(h *hashutil.Hasher) {
	h.Uint32(uint32(o.DepthStencilFormat)).Uint32(uint32(o.NumRenderTargets))
	for _, f := range o.RenderTargets() {
		h.Uint32(uint32(f))
	}
	h.Uint32(o.MultiSample)
}

// GraphicsPipelineStateDesc describes a graphics pipeline state. Two
// descriptors that differ only in DebugName describe the same state.
type GraphicsPipelineStateDesc struct {
	DebugName string

	Vertex   *raw.RawShader
	Pixel    *raw.RawShader
	Geometry *raw.RawShader
	Hull     *raw.RawShader
	Domain   *raw.RawShader

	InputLayout   InputLayoutDesc
	PrimitiveType gpucore.PrimitiveType

	ColorWrite      bool
	BlendMode       gpucore.BlendMode
	AlphaToCoverage bool

	DepthWrite   bool
	DepthCompare gpucore.CompareMode

	StencilTest      bool
	StencilCompare   gpucore.CompareMode
	StencilPass      gpucore.StencilOp
	StencilFail      gpucore.StencilOp
	StencilDepthFail gpucore.StencilOp
	StencilReadMask  uint32
	StencilWriteMask uint32

	FillMode             gpucore.FillMode
	CullMode             gpucore.CullMode
	ConstantDepthBias    float32
	SlopeScaledDepthBias float32
	LineAntiAlias        bool

	Output   OutputDesc
	Samplers ImmutableSamplers
}

// DefaultGraphicsPipelineStateDesc returns a descriptor with the usual
// opaque state: color and depth writes on, less-equal depth test, back
// faces culled, no stencil test.
func DefaultGraphicsPipelineStateDesc() GraphicsPipelineStateDesc {
	return GraphicsPipelineStateDesc{
		ColorWrite:       true,
		DepthWrite:       true,
		DepthCompare:     gpucore.CompareLessEqual,
		StencilCompare:   gpucore.CompareAlways,
		StencilReadMask:  0xff,
		StencilWriteMask: 0xff,
		CullMode:         gpucore.CullCCW,
	}
}

// IsInitialized reports whether the descriptor names vertex and pixel
// shaders.
func (d *GraphicsPipelineStateDesc) IsInitialized() bool {
	return d.Vertex != nil && d.Pixel != nil
}

// shaders returns the stages a pipeline is built from. Geometry and
// tessellation stages have no native counterpart and are not built.
func (d *GraphicsPipelineStateDesc) shaders() []*raw.RawShader {
	if !d.IsInitialized() {
		return nil
	}
	return []*raw.RawShader{d.Vertex, d.Pixel}
}

func shaderID(s *raw.RawShader) uint64 {
	if s == nil {
		return 0
	}
	return s.ID()
}

// Hash returns the hash of everything but the debug name.
func (d *GraphicsPipelineStateDesc) Hash() uint64 {
	h := hashutil.New().Uint32(uint32(gpucore.PipelineGraphics))
	for _, s := range [...]*raw.RawShader{d.Vertex, d.Pixel, d.Geometry, d.Hull, d.Domain} {
		h.Uint64(shaderID(s))
	}

	h.Uint32(uint32(d.InputLayout.size))
	for _, e := range d.InputLayout.Elements() {
		h.Uint32(uint32(e.Type)).
			Uint32(uint32(e.Semantic)).
			Uint32(uint32(e.SemanticIndex)).
			Uint32(e.Offset).
			Uint32(uint32(e.BufferSlot)).
			Bool(e.PerInstance)
	}
	for _, stride := range d.InputLayout.Strides {
		h.Uint32(stride)
	}
	h.Uint32(uint32(d.PrimitiveType))

	h.Bool(d.ColorWrite).Uint32(uint32(d.BlendMode)).Bool(d.AlphaToCoverage)
	h.Bool(d.DepthWrite).Uint32(uint32(d.DepthCompare))
	h.Bool(d.StencilTest).
		Uint32(uint32(d.StencilCompare)).
		Uint32(uint32(d.StencilPass)).
		Uint32(uint32(d.StencilFail)).
		Uint32(uint32(d.StencilDepthFail)).
		Uint32(d.StencilReadMask).
		Uint32(d.StencilWriteMask)
	h.Uint32(uint32(d.FillMode)).
		Uint32(uint32(d.CullMode)).
		Float32(d.ConstantDepthBias).
		Float32(d.SlopeScaledDepthBias).
		Bool(d.LineAntiAlias)

	d.Output.hash(h)
	d.Samplers.hash(h)
	return h.Sum64()
}

// Equal reports whether d and other describe the same state.
func (d GraphicsPipelineStateDesc) Equal(other GraphicsPipelineStateDesc) bool {
	d.DebugName, other.DebugName = "", ""
	return d == other
}

// ComputePipelineStateDesc describes a compute pipeline state.
type ComputePipelineStateDesc struct {
	DebugName string
	Compute   *raw.RawShader
	Samplers  ImmutableSamplers
}

// IsInitialized reports whether the descriptor names a compute shader.
func (d *ComputePipelineStateDesc) IsInitialized() bool {
	return d.Compute != nil
}

// Hash returns the hash of everything but the debug name.
func (d *ComputePipelineStateDesc) Hash() uint64 {
	h := hashutil.New().Uint32(uint32(gpucore.PipelineCompute)).Uint64(shaderID(d.Compute))
	d.Samplers.hash(h)
	return h.Sum64()
}

// Equal reports whether d and other describe the same state.
func (d ComputePipelineStateDesc) Equal(other ComputePipelineStateDesc) bool {
	d.DebugName, other.DebugName = "", ""
	return d == other
}

// PipelineStateDesc holds either a graphics or a compute descriptor.
type PipelineStateDesc struct {
	typ      gpucore.PipelineStateType
	graphics GraphicsPipelineStateDesc
	compute  ComputePipelineStateDesc
}

// GraphicsDesc wraps a graphics descriptor.
func GraphicsDesc(d GraphicsPipelineStateDesc) PipelineStateDesc {
	return PipelineStateDesc{typ: gpucore.PipelineGraphics, graphics: d}
}

// ComputeDesc wraps a compute descriptor.
func ComputeDesc(d ComputePipelineStateDesc) PipelineStateDesc {
	return PipelineStateDesc{typ: gpucore.PipelineCompute, compute: d}
}

// Type returns the pipeline type.
func (d *PipelineStateDesc) Type() gpucore.PipelineStateType { return d.typ }

// AsGraphics returns the graphics descriptor, or nil.
func (d *PipelineStateDesc) AsGraphics() *GraphicsPipelineStateDesc {
	if d.typ != gpucore.PipelineGraphics {
		return nil
	}
	return &d.graphics
}

// AsCompute returns the compute descriptor, or nil.
func (d *PipelineStateDesc) AsCompute() *ComputePipelineStateDesc {
	if d.typ != gpucore.PipelineCompute {
		return nil
	}
	return &d.compute
}

// DebugName returns the debug name of the wrapped descriptor.
func (d *PipelineStateDesc) DebugName() string {
	if d.typ == gpucore.PipelineCompute {
		return d.compute.DebugName
	}
	return d.graphics.DebugName
}

// IsInitialized reports whether the wrapped descriptor names its shaders.
func (d *PipelineStateDesc) IsInitialized() bool {
	if d.typ == gpucore.PipelineCompute {
		return d.compute.IsInitialized()
	}
	return d.graphics.IsInitialized()
}

// Hash returns the hash of the wrapped descriptor.
func (d *PipelineStateDesc) Hash() uint64 {
	if d.typ == gpucore.PipelineCompute {
		return d.compute.Hash()
	}
	return d.graphics.Hash()
}

// Equal reports whether d and other describe the same state.
func (d *PipelineStateDesc) Equal(other *PipelineStateDesc) bool {
	if d.typ != other.typ {
		return false
	}
	if d.typ == gpucore.PipelineCompute {
		return d.compute.Equal(other.compute)
	}
	return d.graphics.Equal(other.graphics)
}

// samplers returns the immutable samplers of the wrapped descriptor.
func (d *PipelineStateDesc) samplers() *ImmutableSamplers {
	if d.typ == gpucore.PipelineCompute {
		return &d.compute.Samplers
	}
	return &d.graphics.Samplers
}

// shaders returns the stages of the wrapped descriptor.
func (d *PipelineStateDesc) shaders() []*raw.RawShader {
	if d.typ == gpucore.PipelineCompute {
		if d.compute.Compute == nil {
			return nil
		}
		return []*raw.RawShader{d.compute.Compute}
	}
	return d.graphics.shaders()
}
