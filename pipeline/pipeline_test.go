package pipeline

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/renderapi/backend"
	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/raw"
	"github.com/gogpu/renderapi/reflection"
)

const litShader = `
struct Camera {
    cViewProj: mat4x4<f32>,
}

struct Object {
    cModel: mat4x4<f32>,
}

@group(0) @binding(0) var<uniform> camera: Camera;
@group(0) @binding(1) var<uniform> object: Object;
@group(1) @binding(0) var sDiffMap: texture_2d<f32>;
@group(1) @binding(1) var sDiffMap_sampler: sampler;
@group(1) @binding(2) var sNormalMap: texture_2d<f32>;
@group(1) @binding(3) var sNormalMap_sampler: sampler;

struct VertexInput {
    @location(0) iPos: vec3<f32>,
    @location(1) iTexCoord: vec2<f32>,
}

struct VertexOutput {
    @builtin(position) pos: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(input: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.pos = camera.cViewProj * object.cModel * vec4<f32>(input.iPos, 1.0);
    out.uv = input.iTexCoord;
    return out;
}

@fragment
fn ps_main(input: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(sDiffMap, sDiffMap_sampler, input.uv) * textureSample(sNormalMap, sNormalMap_sampler, input.uv);
}
`

const particleShader = `
@group(0) @binding(0) var<storage, read_write> uParticles: array<vec4<f32>>;

@compute @workgroup_size(64)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {
    uParticles[id.x] = uParticles[id.x] * 2.0;
}
`

// testOwner is a minimal device: a backend and an object list.
type testOwner struct {
	be      backend.Backend
	objects []gpucore.DeviceObject
}

func newTestOwner(t *testing.T) *testOwner {
	t.Helper()
	be, err := backend.OpenBase(gpucore.BackendHeadless, backend.Config{
		HAL:       noop.API{},
		SwapChain: backend.SwapChainConfig{Width: 64, Height: 64},
	})
	if err != nil {
		t.Fatalf("OpenBase failed: %v", err)
	}
	t.Cleanup(be.Destroy)
	return &testOwner{be: be}
}

func (o *testOwner) Backend() backend.Backend { return o.be }

func (o *testOwner) AddDeviceObject(obj gpucore.DeviceObject) {
	o.objects = append(o.objects, obj)
}

func (o *testOwner) RemoveDeviceObject(obj gpucore.DeviceObject) {
	o.objects = slices.DeleteFunc(o.objects, func(x gpucore.DeviceObject) bool { return x == obj })
}

func (o *testOwner) invalidate() {
	for _, obj := range o.objects {
		obj.Invalidate()
	}
	o.be.Invalidate()
}

func (o *testOwner) restore(t *testing.T) {
	t.Helper()
	if err := o.be.Restore(); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	for _, obj := range o.objects {
		obj.Restore()
	}
}

func (o *testOwner) has(obj gpucore.DeviceObject) bool {
	return slices.Contains(o.objects, obj)
}

func newShader(t *testing.T, owner raw.Owner, typ gpucore.ShaderType, src string) *raw.RawShader {
	t.Helper()
	s, err := raw.NewRawShader(owner, typ, typ.String(), raw.ShaderBytecode{WGSL: src})
	if err != nil {
		t.Fatalf("NewRawShader(%s) failed: %v", typ, err)
	}
	return s
}

func litDesc(t *testing.T, owner raw.Owner) GraphicsPipelineStateDesc {
	t.Helper()
	desc := DefaultGraphicsPipelineStateDesc()
	desc.DebugName = "lit"
	desc.Vertex = newShader(t, owner, gpucore.VertexShader, litShader)
	desc.Pixel = newShader(t, owner, gpucore.PixelShader, litShader)
	desc.InputLayout = InputLayout(
		gpucore.VertexElement{Type: gpucore.TypeVector3, Semantic: gpucore.SemanticPosition},
		gpucore.VertexElement{Type: gpucore.TypeVector3, Semantic: gpucore.SemanticNormal, Offset: 12},
		gpucore.VertexElement{Type: gpucore.TypeVector2, Semantic: gpucore.SemanticTexCoord, Offset: 24},
	)
	desc.Output.NumRenderTargets = 1
	desc.Output.RenderTargetFormats[0] = gputypes.TextureFormatBGRA8Unorm
	desc.Output.DepthStencilFormat = gputypes.TextureFormatDepth24PlusStencil8
	desc.Output.MultiSample = 1
	return desc
}

func TestDescEquality(t *testing.T) {
	owner := newTestOwner(t)
	a := litDesc(t, owner)
	b := a
	b.DebugName = "other name"

	if !a.Equal(b) || a.Hash() != b.Hash() {
		t.Error("descriptors differing only in debug name should be equal")
	}

	c := a
	c.BlendMode = gpucore.BlendAlpha
	if a.Equal(c) || a.Hash() == c.Hash() {
		t.Error("descriptors with different blend modes should differ")
	}

	d := a
	d.Samplers.Add("DiffMap", gpucore.NearestSampler(gpucore.AddressClamp))
	if a.Equal(d) || a.Hash() == d.Hash() {
		t.Error("descriptors with different samplers should differ")
	}

	ga, ca := GraphicsDesc(a), ComputeDesc(ComputePipelineStateDesc{Compute: a.Vertex})
	if ga.Equal(&ca) {
		t.Error("graphics and compute descriptors should differ")
	}
}

func TestImmutableSamplers(t *testing.T) {
	var s ImmutableSamplers
	s.Add("DiffMap", gpucore.NearestSampler(gpucore.AddressWrap))
	s.Add("DiffMap", gpucore.TrilinearSampler(gpucore.AddressClamp))
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after replacing", s.Len())
	}
	got, ok := s.Get("DiffMap")
	if !ok || got != gpucore.TrilinearSampler(gpucore.AddressClamp) {
		t.Errorf("Get(DiffMap) = %+v, %v", got, ok)
	}
	for i := range gpucore.MaxImmutableSamplers + 2 {
		s.Add(string(rune('A'+i)), gpucore.DefaultSampler(gpucore.AddressWrap))
	}
	if s.Len() != gpucore.MaxImmutableSamplers {
		t.Errorf("Len = %d, want %d", s.Len(), gpucore.MaxImmutableSamplers)
	}
}

func TestBlendState(t *testing.T) {
	tests := []struct {
		mode     gpucore.BlendMode
		wantNil  bool
		src, dst gputypes.BlendFactor
		alphaSrc gputypes.BlendFactor
		alphaDst gputypes.BlendFactor
		op       gputypes.BlendOperation
	}{
		{mode: gpucore.BlendReplace, wantNil: true},
		{gpucore.BlendAdd, false, one, one, one, one, add},
		{gpucore.BlendMultiply, false, dstColor, zero, dstColor, zero, add},
		{gpucore.BlendAlpha, false, srcAlpha, oneMinusSrcAlpha, srcAlpha, oneMinusSrcAlpha, add},
		{gpucore.BlendPremulAlpha, false, one, oneMinusSrcAlpha, one, oneMinusSrcAlpha, add},
		{gpucore.BlendInvDestAlpha, false, oneMinusDstAlpha, dstAlpha, oneMinusDstAlpha, dstAlpha, add},
		{gpucore.BlendSubtract, false, one, one, one, one, revSubtract},
		{gpucore.BlendSubtractAlpha, false, srcAlpha, one, srcAlpha, one, revSubtract},
		{gpucore.BlendDeferredDecal, false, srcAlpha, oneMinusSrcAlpha, zero, one, add},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			got := blendState(tt.mode)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("blendState = %+v, want nil", got)
				}
				return
			}
			want := gputypes.BlendState{
				Color: gputypes.BlendComponent{SrcFactor: tt.src, DstFactor: tt.dst, Operation: tt.op},
				Alpha: gputypes.BlendComponent{SrcFactor: tt.alphaSrc, DstFactor: tt.alphaDst, Operation: tt.op},
			}
			if got == nil || *got != want {
				t.Errorf("blendState = %+v, want %+v", got, want)
			}
		})
	}
}

func TestTranslationTables(t *testing.T) {
	if got := cullMode(gpucore.CullCCW); got != gputypes.CullModeBack {
		t.Errorf("cullMode(CCW) = %v, want Back", got)
	}
	if got := cullMode(gpucore.CullCW); got != gputypes.CullModeFront {
		t.Errorf("cullMode(CW) = %v, want Front", got)
	}
	if got := stencilOperation(gpucore.StencilRef); got != hal.StencilOperationReplace {
		t.Errorf("stencilOperation(Ref) = %v, want Replace", got)
	}
	if got := stencilOperation(gpucore.StencilIncr); got != hal.StencilOperationIncrementWrap {
		t.Errorf("stencilOperation(Incr) = %v, want IncrementWrap", got)
	}
	if got := compareFunction(gpucore.CompareGreaterEqual); got != gputypes.CompareFunctionGreaterEqual {
		t.Errorf("compareFunction(GreaterEqual) = %v", got)
	}
	if _, ok := primitiveTopology(gpucore.TriangleFan); ok {
		t.Error("triangle fans should be unsupported")
	}
	if got, ok := primitiveTopology(gpucore.LineStrip); !ok || got != gputypes.PrimitiveTopologyLineStrip {
		t.Errorf("primitiveTopology(LineStrip) = %v, %v", got, ok)
	}
}

func TestDepthBias(t *testing.T) {
	tests := []struct {
		name   string
		bias   float32
		format gputypes.TextureFormat
		legacy bool
		want   int32
	}{
		{"24-bit", 1.0 / 1024, gputypes.TextureFormatDepth24PlusStencil8, false, 1 << 14},
		{"16-bit", 1.0 / 1024, gputypes.TextureFormatDepth16Unorm, false, 1 << 6},
		{"32-bit float", 0.5, gputypes.TextureFormatDepth32Float, false, 1 << 23},
		{"legacy unscaled", 3, gputypes.TextureFormatDepth24PlusStencil8, true, 3},
		{"zero", 0, gputypes.TextureFormatDepth16Unorm, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := depthBias(tt.bias, tt.format, tt.legacy); got != tt.want {
				t.Errorf("depthBias(%v) = %d, want %d", tt.bias, got, tt.want)
			}
		})
	}
}

func TestVertexBuffers(t *testing.T) {
	pos := gpucore.VertexElement{Type: gpucore.TypeVector3, Semantic: gpucore.SemanticPosition}
	normal := gpucore.VertexElement{Type: gpucore.TypeVector3, Semantic: gpucore.SemanticNormal, Offset: 12}
	uv := gpucore.VertexElement{Type: gpucore.TypeVector2, Semantic: gpucore.SemanticTexCoord, Offset: 24}
	attrs := []gpucore.VertexShaderAttribute{
		{Semantic: gpucore.SemanticPosition, Location: 0},
		{Semantic: gpucore.SemanticTexCoord, Location: 1},
	}

	t.Run("unused elements dropped", func(t *testing.T) {
		layout := InputLayout(pos, normal, uv)
		buffers, err := vertexBuffers(&layout, attrs)
		if err != nil {
			t.Fatalf("vertexBuffers failed: %v", err)
		}
		if len(buffers) != 1 {
			t.Fatalf("got %d buffers, want 1", len(buffers))
		}
		b := buffers[0]
		if b.ArrayStride != 32 || b.StepMode != gputypes.VertexStepModeVertex {
			t.Errorf("buffer = stride %d, step %v", b.ArrayStride, b.StepMode)
		}
		if len(b.Attributes) != 2 || b.Attributes[1].Offset != 24 || b.Attributes[1].ShaderLocation != 1 {
			t.Errorf("attributes = %+v", b.Attributes)
		}
	})

	t.Run("missing element", func(t *testing.T) {
		layout := InputLayout(pos)
		_, err := vertexBuffers(&layout, attrs)
		if !errors.Is(err, ErrMissingVertexElement) {
			t.Errorf("err = %v, want ErrMissingVertexElement", err)
		}
	})

	t.Run("last match wins", func(t *testing.T) {
		uv2 := uv
		uv2.Offset = 12
		layout := InputLayout(pos, uv, uv2)
		buffers, err := vertexBuffers(&layout, attrs)
		if err != nil {
			t.Fatalf("vertexBuffers failed: %v", err)
		}
		if got := buffers[0].Attributes[1].Offset; got != 12 {
			t.Errorf("texcoord offset = %d, want 12", got)
		}
	})

	t.Run("instance stream with gap", func(t *testing.T) {
		inst := gpucore.VertexElement{
			Type:          gpucore.TypeVector4,
			Semantic:      gpucore.SemanticTexCoord,
			SemanticIndex: 4,
			BufferSlot:    2,
			PerInstance:   true,
		}
		layout := InputLayout(pos, uv, inst)
		withInstance := append(slices.Clone(attrs), gpucore.VertexShaderAttribute{
			Semantic: gpucore.SemanticTexCoord, SemanticIndex: 4, Location: 2,
		})
		buffers, err := vertexBuffers(&layout, withInstance)
		if err != nil {
			t.Fatalf("vertexBuffers failed: %v", err)
		}
		if len(buffers) != 3 {
			t.Fatalf("got %d buffers, want 3", len(buffers))
		}
		if buffers[1].StepMode != gputypes.VertexStepModeVertexBufferNotUsed {
			t.Errorf("slot 1 step mode = %v, want unused", buffers[1].StepMode)
		}
		if buffers[2].StepMode != gputypes.VertexStepModeInstance || buffers[2].ArrayStride != 16 {
			t.Errorf("slot 2 = step %v, stride %d", buffers[2].StepMode, buffers[2].ArrayStride)
		}
	})

	t.Run("explicit stride", func(t *testing.T) {
		layout := InputLayout(pos, uv)
		layout.Strides[0] = 48
		buffers, err := vertexBuffers(&layout, attrs)
		if err != nil {
			t.Fatalf("vertexBuffers failed: %v", err)
		}
		if buffers[0].ArrayStride != 48 {
			t.Errorf("stride = %d, want 48", buffers[0].ArrayStride)
		}
	})
}

func TestLayoutAttributes(t *testing.T) {
	layout := InputLayout(
		gpucore.VertexElement{Type: gpucore.TypeVector3, Semantic: gpucore.SemanticPosition},
		gpucore.VertexElement{Type: gpucore.TypeUByte4Norm, Semantic: gpucore.SemanticColor, Offset: 12},
	)
	attrs := layoutAttributes(&layout)
	if len(attrs) != 2 || attrs[1].Semantic != gpucore.SemanticColor || attrs[1].Location != 1 {
		t.Errorf("layoutAttributes = %+v", attrs)
	}
}

func TestPipelineStateCache(t *testing.T) {
	owner := newTestOwner(t)
	cache := NewPipelineStateCache(owner)
	desc := litDesc(t, owner)

	a := cache.GetGraphicsPipelineState(desc)
	if a == nil || !a.IsValid() {
		t.Fatal("state should be created")
	}
	renamed := desc
	renamed.DebugName = "lit again"
	b := cache.GetGraphicsPipelineState(renamed)
	if a != b {
		t.Error("descriptors differing only in debug name should share a state")
	}
	if cache.Len() != 1 {
		t.Errorf("Len = %d, want 1", cache.Len())
	}
	if hits, misses := cache.Stats(); hits != 1 || misses != 1 {
		t.Errorf("Stats = %d hits, %d misses, want 1, 1", hits, misses)
	}
	if !owner.has(a) {
		t.Error("state should register with its owner")
	}

	a.Release()
	if cache.Len() != 1 || !a.IsValid() {
		t.Fatal("state should survive while referenced")
	}
	b.Release()
	if cache.Len() != 0 {
		t.Errorf("Len = %d after last release, want 0", cache.Len())
	}
	if a.IsValid() || owner.has(a) {
		t.Error("last release should destroy and unregister the state")
	}

	c := cache.GetGraphicsPipelineState(desc)
	if c == a {
		t.Error("a released state should not be returned again")
	}
	c.Release()
}

func TestPipelineStateUninitialized(t *testing.T) {
	owner := newTestOwner(t)
	cache := NewPipelineStateCache(owner)

	desc := litDesc(t, owner)
	desc.Pixel = nil
	if s := cache.GetGraphicsPipelineState(desc); s != nil {
		t.Error("descriptor without pixel shader should give nil")
	}
	if s := cache.GetComputePipelineState(ComputePipelineStateDesc{}); s != nil {
		t.Error("descriptor without compute shader should give nil")
	}
	if cache.Len() != 0 {
		t.Errorf("Len = %d, want 0", cache.Len())
	}
}

func TestPipelineStateDegraded(t *testing.T) {
	owner := newTestOwner(t)
	cache := NewPipelineStateCache(owner)

	tests := []struct {
		name   string
		modify func(*GraphicsPipelineStateDesc)
	}{
		{"triangle fan", func(d *GraphicsPipelineStateDesc) { d.PrimitiveType = gpucore.TriangleFan }},
		{"missing vertex element", func(d *GraphicsPipelineStateDesc) {
			d.InputLayout = InputLayout(gpucore.VertexElement{Type: gpucore.TypeVector3, Semantic: gpucore.SemanticPosition})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := litDesc(t, owner)
			tt.modify(&desc)
			s := cache.GetGraphicsPipelineState(desc)
			if s == nil {
				t.Fatal("degraded state should still be returned")
			}
			defer s.Release()
			if s.IsValid() || s.Binding() != nil {
				t.Error("degraded state should have no handle")
			}
			if again := cache.GetGraphicsPipelineState(desc); again != s {
				t.Error("degraded state should be cached")
			} else {
				again.Release()
			}
		})
	}
}

func TestPipelineStateDescribe(t *testing.T) {
	owner := newTestOwner(t)
	cache := NewPipelineStateCache(owner)
	desc := litDesc(t, owner)
	desc.BlendMode = gpucore.BlendAlpha
	desc.ColorWrite = false
	desc.FillMode = gpucore.FillPoint
	desc.StencilTest = true
	desc.StencilCompare = gpucore.CompareEqual
	desc.StencilPass = gpucore.StencilRef
	desc.StencilReadMask = 0x0f
	desc.ConstantDepthBias = 1.0 / 1024

	s := cache.GetGraphicsPipelineState(desc)
	defer s.Release()
	pd, err := s.describe(owner.Backend(), s.Reflection())
	if err != nil {
		t.Fatalf("describe failed: %v", err)
	}

	if pd.Primitive.Topology != gputypes.PrimitiveTopologyPointList {
		t.Errorf("point fill should draw points, got %v", pd.Primitive.Topology)
	}
	if pd.Primitive.FrontFace != gputypes.FrontFaceCW || pd.Primitive.CullMode != gputypes.CullModeBack {
		t.Errorf("primitive = %+v", pd.Primitive)
	}
	if len(pd.Targets) != 1 || pd.Targets[0].Blend == nil || pd.Targets[0].WriteMask != gputypes.ColorWriteMaskNone {
		t.Errorf("targets = %+v", pd.Targets)
	}
	ds := pd.DepthStencil
	if ds == nil {
		t.Fatal("depth-stencil state expected")
	}
	if ds.StencilFront.Compare != gputypes.CompareFunctionEqual || ds.StencilFront.PassOp != hal.StencilOperationReplace {
		t.Errorf("stencil front = %+v", ds.StencilFront)
	}
	if ds.StencilReadMask != 0x0f || ds.DepthBias != 1<<14 {
		t.Errorf("read mask %#x, depth bias %d", ds.StencilReadMask, ds.DepthBias)
	}
	if len(pd.BindGroups) != 2 {
		t.Errorf("got %d bind groups, want 2", len(pd.BindGroups))
	}

	noDepth := desc
	noDepth.Output.DepthStencilFormat = gputypes.TextureFormatUndefined
	if depthStencilState(&noDepth, false) != nil {
		t.Error("no depth-stencil state expected without a depth format")
	}
}

func TestPipelineStateReflection(t *testing.T) {
	owner := newTestOwner(t)
	cache := NewPipelineStateCache(owner)
	desc := litDesc(t, owner)
	desc.Samplers.Add("DiffMap", gpucore.NearestSampler(gpucore.AddressClamp))

	s := cache.GetGraphicsPipelineState(desc)
	defer s.Release()

	camera := s.Reflection().UniformBuffer(gpucore.GroupCamera)
	if camera == nil || camera.Slot != (reflection.Slot{Group: 0, Binding: 0}) {
		t.Fatalf("camera buffer = %+v", camera)
	}
	if !slices.Contains(camera.Stages, gpucore.VertexShader) {
		t.Errorf("camera stages = %v, want the vertex stage", camera.Stages)
	}
	if s.Binding().NumGroups() != 2 || s.Binding().Layout(1) == nil || s.Binding().Layout(2) != nil {
		t.Errorf("binding has %d groups", s.Binding().NumGroups())
	}

	if got, ok := s.SamplerState("DiffMap"); !ok || got != gpucore.NearestSampler(gpucore.AddressClamp) {
		t.Errorf("SamplerState(DiffMap) = %+v, %v", got, ok)
	}
	if got, ok := s.SamplerState("NormalMap"); !ok || got != gpucore.BilinearSampler(gpucore.AddressWrap) {
		t.Errorf("SamplerState(NormalMap) = %+v, %v, want the bilinear default", got, ok)
	}
	// Both samplers leave anisotropy to the device.
	if !s.UsesDefaultSamplers() {
		t.Error("samplers without anisotropy should resolve device defaults")
	}
}

func TestPipelineStateExplicitSamplers(t *testing.T) {
	owner := newTestOwner(t)
	cache := NewPipelineStateCache(owner)
	desc := litDesc(t, owner)
	for _, name := range []string{"DiffMap", "NormalMap"} {
		smp := gpucore.NearestSampler(gpucore.AddressClamp)
		smp.Anisotropy = 1
		desc.Samplers.Add(name, smp)
	}

	s := cache.GetGraphicsPipelineState(desc)
	defer s.Release()
	if s.UsesDefaultSamplers() {
		t.Error("explicit sampler states should not resolve device defaults")
	}
	if got, ok := s.SamplerState("NormalMap"); !ok || got.Anisotropy != 1 {
		t.Errorf("SamplerState(NormalMap) = %+v, %v", got, ok)
	}
}

func TestComputePipelineState(t *testing.T) {
	owner := newTestOwner(t)
	cache := NewPipelineStateCache(owner)
	cs := newShader(t, owner, gpucore.ComputeShader, particleShader)

	s := cache.GetComputePipelineState(ComputePipelineStateDesc{DebugName: "particles", Compute: cs})
	if s == nil || !s.IsValid() {
		t.Fatal("compute state should be created")
	}
	defer s.Release()
	if s.Type() != gpucore.PipelineCompute || s.ComputePipeline() == nil || s.RenderPipeline() != nil {
		t.Error("compute state should hold a compute pipeline only")
	}
	if s.Reflection().UnorderedAccessView("Particles") == nil {
		t.Error("uParticles should be reflected")
	}
}

func TestPipelineStateReload(t *testing.T) {
	owner := newTestOwner(t)
	cache := NewPipelineStateCache(owner)
	desc := litDesc(t, owner)
	s := cache.GetGraphicsPipelineState(desc)
	defer s.Release()
	refl := s.Reflection()

	if err := desc.Pixel.Reload(raw.ShaderBytecode{WGSL: litShader}); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if n := cache.ProcessReloads(); n != 1 {
		t.Fatalf("ProcessReloads = %d, want 1", n)
	}
	if !s.IsValid() || s.Reflection() == nil {
		t.Error("state should be rebuilt after reload")
	}
	if s.Reflection() == refl {
		t.Error("reload should recompute the reflection")
	}
	if n := cache.ProcessReloads(); n != 0 {
		t.Errorf("ProcessReloads = %d on empty queue", n)
	}
}

func TestPipelineStateDeviceLoss(t *testing.T) {
	owner := newTestOwner(t)
	cache := NewPipelineStateCache(owner)
	s := cache.GetGraphicsPipelineState(litDesc(t, owner))
	defer s.Release()

	refl := s.Reflection()

	owner.invalidate()
	if s.IsValid() || s.Binding() != nil {
		t.Error("invalidate should drop the handle and binding")
	}
	if s.Reflection() != refl {
		t.Error("invalidate should keep the reflection")
	}
	owner.restore(t)
	if !s.IsValid() || s.Binding() == nil {
		t.Error("restore should recreate the pipeline")
	}
	if s.Reflection() != refl {
		t.Error("restore should keep the reflection")
	}
	if s.Reflection().UniformBuffer(gpucore.GroupCamera) == nil {
		t.Error("kept reflection should stay connected")
	}
}

func TestPipelineStateForEach(t *testing.T) {
	owner := newTestOwner(t)
	cache := NewPipelineStateCache(owner)
	desc := litDesc(t, owner)
	a := cache.GetGraphicsPipelineState(desc)
	defer a.Release()
	desc.CullMode = gpucore.CullNone
	b := cache.GetGraphicsPipelineState(desc)
	defer b.Release()

	var seen []*PipelineState
	cache.ForEach(func(s *PipelineState) { seen = append(seen, s) })
	if len(seen) != 2 || !slices.Contains(seen, a) || !slices.Contains(seen, b) {
		t.Errorf("ForEach visited %d states", len(seen))
	}
}
