package drawqueue

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"math"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/renderapi/backend"
	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/pipeline"
	"github.com/gogpu/renderapi/raw"
	"github.com/gogpu/renderapi/rendercontext"
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
    return textureSample(sDiffMap, sDiffMap_sampler, input.uv);
}
`

// flatShader shares the object layout of litShader but not its camera.
const flatShader = `
struct Camera {
    cViewProj: mat4x4<f32>,
    cCameraPos: vec4<f32>,
}

struct Object {
    cModel: mat4x4<f32>,
}

@group(0) @binding(0) var<uniform> camera: Camera;
@group(0) @binding(1) var<uniform> object: Object;

struct VertexInput {
    @location(0) iPos: vec3<f32>,
}

@vertex
fn vs_main(input: VertexInput) -> @builtin(position) vec4<f32> {
    return camera.cViewProj * object.cModel * vec4<f32>(input.iPos, 1.0) + camera.cCameraPos * 0.0;
}

@fragment
fn ps_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 1.0, 1.0, 1.0);
}
`

const particleShader = `
@group(0) @binding(0) var<storage, read_write> uParticles: array<vec4<f32>>;

@compute @workgroup_size(64)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {
    uParticles[id.x] = uParticles[id.x] * 2.0;
}
`

// capsBackend overrides the probed capabilities of a backend.
type capsBackend struct {
	backend.Backend
	caps gpucore.Caps
}

func (b capsBackend) Caps() gpucore.Caps { return b.caps }

// testDevice is a minimal Device on a headless noop backend.
type testDevice struct {
	be       backend.Backend
	objects  []gpucore.DeviceObject
	samplers *raw.SamplerCache
	defaults map[gpucore.TextureType]*raw.RawTexture
}

func newTestDevice(t *testing.T) *testDevice {
	t.Helper()
	be, err := backend.OpenBase(gpucore.BackendHeadless, backend.Config{
		HAL:       noop.API{},
		SwapChain: backend.SwapChainConfig{Width: 320, Height: 240},
	})
	if err != nil {
		t.Fatalf("OpenBase failed: %v", err)
	}
	t.Cleanup(be.Destroy)
	d := &testDevice{be: be, defaults: make(map[gpucore.TextureType]*raw.RawTexture)}
	d.samplers = raw.NewSamplerCache(d)
	return d
}

// setCaps overrides the capabilities reported by the backend.
func (d *testDevice) setCaps(fn func(*gpucore.Caps)) {
	caps := d.be.Caps()
	fn(&caps)
	if cb, ok := d.be.(capsBackend); ok {
		d.be = cb.Backend
	}
	d.be = capsBackend{Backend: d.be, caps: caps}
}

func (d *testDevice) Backend() backend.Backend { return d.be }

func (d *testDevice) AddDeviceObject(obj gpucore.DeviceObject) {
	d.objects = append(d.objects, obj)
}

func (d *testDevice) RemoveDeviceObject(obj gpucore.DeviceObject) {
	d.objects = slices.DeleteFunc(d.objects, func(x gpucore.DeviceObject) bool { return x == obj })
}

func (d *testDevice) SamplerCache() *raw.SamplerCache { return d.samplers }

func (d *testDevice) DefaultTexture(typ gpucore.TextureType) *raw.RawTexture {
	if tex, ok := d.defaults[typ]; ok {
		return tex
	}
	tex := raw.NewRawTexture(d)
	_ = tex.Create(raw.RawTextureParams{
		Label:  "default",
		Type:   typ,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Width:  1,
		Height: 1,
	})
	d.defaults[typ] = tex
	return tex
}

func newShader(t *testing.T, dev raw.Owner, typ gpucore.ShaderType, src string) *raw.RawShader {
	t.Helper()
	s, err := raw.NewRawShader(dev, typ, typ.String(), raw.ShaderBytecode{WGSL: src})
	if err != nil {
		t.Fatalf("NewRawShader(%s) failed: %v", typ, err)
	}
	return s
}

func graphicsState(t *testing.T, dev raw.Owner, cache *pipeline.PipelineStateCache, src string) *pipeline.PipelineState {
	t.Helper()
	desc := pipeline.DefaultGraphicsPipelineStateDesc()
	desc.Vertex = newShader(t, dev, gpucore.VertexShader, src)
	desc.Pixel = newShader(t, dev, gpucore.PixelShader, src)
	desc.InputLayout = pipeline.InputLayout(
		gpucore.VertexElement{Type: gpucore.TypeVector3, Semantic: gpucore.SemanticPosition},
		gpucore.VertexElement{Type: gpucore.TypeVector2, Semantic: gpucore.SemanticTexCoord, Offset: 12},
	)
	desc.Output.NumRenderTargets = 1
	desc.Output.RenderTargetFormats[0] = gputypes.TextureFormatRGBA8Unorm
	desc.Output.DepthStencilFormat = gputypes.TextureFormatDepth24PlusStencil8
	desc.Output.MultiSample = 1

	s := cache.GetGraphicsPipelineState(desc)
	if s == nil || !s.IsValid() {
		t.Fatal("graphics pipeline state should be created")
	}
	t.Cleanup(s.Release)
	return s
}

func computeState(t *testing.T, dev raw.Owner, cache *pipeline.PipelineStateCache) *pipeline.PipelineState {
	t.Helper()
	s := cache.GetComputePipelineState(pipeline.ComputePipelineStateDesc{
		DebugName: "particles",
		Compute:   newShader(t, dev, gpucore.ComputeShader, particleShader),
	})
	if s == nil || !s.IsValid() {
		t.Fatal("compute pipeline state should be created")
	}
	t.Cleanup(s.Release)
	return s
}

func newBuffer(t *testing.T, dev raw.Owner, usage gputypes.BufferUsage, flags gpucore.BufferFlags, stride uint32, count uint64) *raw.RawBuffer {
	t.Helper()
	buf := raw.NewRawBuffer(dev)
	err := buf.Create(raw.RawBufferParams{
		Label:  "test",
		Size:   uint64(stride) * count,
		Stride: stride,
		Usage:  usage,
		Flags:  flags,
	})
	if err != nil {
		t.Fatalf("Create buffer failed: %v", err)
	}
	return buf
}

func floats(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}

func TestConstantBufferCollection(t *testing.T) {
	var c ConstantBufferCollection
	c.Reset(256)

	block := bytes.Repeat([]byte{1}, 64)
	r1, reused := c.Add(gpucore.GroupCamera, block)
	if reused || r1 != (ConstantBufferRange{Offset: 0, Size: 64}) {
		t.Fatalf("first Add = %+v, %v", r1, reused)
	}
	if r2, reused := c.Add(gpucore.GroupCamera, bytes.Clone(block)); !reused || r2 != r1 {
		t.Errorf("identical Add = %+v, %v, want %+v reused", r2, reused, r1)
	}
	if r3, reused := c.Add(gpucore.GroupObject, block); reused || r3.Offset != 256 {
		t.Errorf("Add to another group = %+v, %v, want a new allocation at 256", r3, reused)
	}
	other := bytes.Repeat([]byte{2}, 64)
	if r4, _ := c.Add(gpucore.GroupCamera, other); r4.Offset != 512 || !bytes.Equal(c.Bytes(r4), other) {
		t.Errorf("different Add = %+v", r4)
	}
	if c.NumAllocations() != 3 || c.Len() != 576 {
		t.Errorf("NumAllocations = %d, Len = %d, want 3, 576", c.NumAllocations(), c.Len())
	}

	z := c.Allocate(16)
	if z.Offset != 768 || !bytes.Equal(c.Bytes(z), make([]byte, 16)) {
		t.Errorf("Allocate = %+v with %v", z, c.Bytes(z))
	}
	if r, _ := c.Add(gpucore.GroupCamera, nil); !r.IsEmpty() {
		t.Errorf("empty Add = %+v, want the empty range", r)
	}

	c.Reset(0)
	if c.Len() != 0 || c.NumAllocations() != 0 {
		t.Fatal("Reset kept allocations")
	}
	if r, reused := c.Add(gpucore.GroupCamera, block); reused || r.Offset != 0 {
		t.Errorf("Add after Reset = %+v, %v", r, reused)
	}
	c.Add(gpucore.GroupObject, other)
	if got := c.Allocate(4).Offset; got != 2*defaultConstantBufferAlignment {
		t.Errorf("default alignment offset = %d", got)
	}
}

func TestAppendParameter(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []float32
	}{
		{"float32", float32(1.5), []float32{1.5}},
		{"float64", 2.5, []float32{2.5}},
		{"vec3", mgl32.Vec3{1, 2, 3}, []float32{1, 2, 3}},
		{"f32 vec4", f32.Vec4{1, 2, 3, 4}, []float32{1, 2, 3, 4}},
		{
			"mgl32 mat3",
			mgl32.Mat3{1, 2, 3, 4, 5, 6, 7, 8, 9},
			[]float32{1, 2, 3, 0, 4, 5, 6, 0, 7, 8, 9, 0},
		},
		{
			"mgl32 mat3x4",
			mgl32.Mat3x4{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
			[]float32{1, 2, 3, 0, 4, 5, 6, 0, 7, 8, 9, 0, 10, 11, 12, 0},
		},
		{
			"mgl32 mat4",
			mgl32.Mat4{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
			[]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		},
		{
			"f32 mat4 is row major",
			f32.Mat4{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
			[]float32{1, 5, 9, 13, 2, 6, 10, 14, 3, 7, 11, 15, 4, 8, 12, 16},
		},
		{
			"f32 mat3 is row major",
			f32.Mat3{1, 2, 3, 4, 5, 6, 7, 8, 9},
			[]float32{1, 4, 7, 0, 2, 5, 8, 0, 3, 6, 9, 0},
		},
		{"vec4 slice", []mgl32.Vec4{{1, 2, 3, 4}, {5, 6, 7, 8}}, []float32{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := appendParameter(nil, tt.value)
			if !ok {
				t.Fatalf("appendParameter(%T) unsupported", tt.value)
			}
			if !slices.Equal(floats(got), tt.want) {
				t.Errorf("appendParameter = %v, want %v", floats(got), tt.want)
			}
		})
	}

	if got, _ := appendParameter(nil, true); binary.LittleEndian.Uint32(got) != 1 {
		t.Errorf("bool encodes as %v", got)
	}
	if got, _ := appendParameter(nil, -1); binary.LittleEndian.Uint32(got) != math.MaxUint32 {
		t.Errorf("int -1 encodes as %v", got)
	}
	if _, ok := appendParameter(nil, "red"); ok {
		t.Error("strings should be unsupported")
	}
}

func TestRecording(t *testing.T) {
	dev := newTestDevice(t)
	cache := pipeline.NewPipelineStateCache(dev)
	lit := graphicsState(t, dev, cache, litShader)
	tex := dev.DefaultTexture(gpucore.Texture2D)

	q := New(dev)
	q.SetPipelineState(lit)

	q.SetScissorRect(image.Rect(0, 0, 10, 10))
	q.SetScissorRect(image.Rect(0, 0, 10, 10))
	q.SetShaderResource("DiffMap", tex)
	q.CommitShaderResources()
	q.Draw(0, 3)

	q.SetScissorRect(image.Rectangle{})
	q.DrawIndexed(3, 6, 0)

	cmds := q.Commands()
	if q.NumDrawCommands() != 2 || len(q.scissors) != 3 {
		t.Fatalf("%d commands and %d scissors, want 2 and 3", q.NumDrawCommands(), len(q.scissors))
	}
	if cmds[0].ScissorRect != 1 || cmds[1].ScissorRect != 2 {
		t.Errorf("scissor indices = %d, %d", cmds[0].ScissorRect, cmds[1].ScissorRect)
	}
	if cmds[0].ShaderResources != (IndexRange{Start: 0, Count: 1}) || cmds[1].ShaderResources != cmds[0].ShaderResources {
		t.Errorf("shader resources = %+v, %+v", cmds[0].ShaderResources, cmds[1].ShaderResources)
	}
	if b := q.lookupResource(&cmds[0], "DiffMap", false); b.texture != tex {
		t.Error("DiffMap should resolve to the committed texture")
	}
	if b := q.lookupResource(&cmds[0], "DiffMap", true); b.texture != nil {
		t.Error("shader resources should not resolve as unordered access views")
	}

	q.Reset()
	if !q.IsEmpty() || len(q.scissors) != 1 || q.Constants().Len() != 0 {
		t.Error("Reset kept recorded state")
	}
}

func TestShaderParameters(t *testing.T) {
	dev := newTestDevice(t)
	cache := pipeline.NewPipelineStateCache(dev)
	lit := graphicsState(t, dev, cache, litShader)
	flat := graphicsState(t, dev, cache, flatShader)

	q := New(dev)
	q.SetPipelineState(lit)
	viewProj := mgl32.Translate3D(1, 2, 3)
	if !q.BeginShaderParameterGroup(gpucore.GroupCamera, true) {
		t.Fatal("camera group should be writable")
	}
	q.AddShaderParameter("ViewProj", viewProj)
	q.AddShaderParameter("Unknown", float32(1))
	q.AddShaderParameter("ViewProj", "unsupported")
	q.CommitShaderParameterGroup(gpucore.GroupCamera)

	if !q.BeginShaderParameterGroup(gpucore.GroupObject, true) {
		t.Fatal("object group should be writable")
	}
	q.AddShaderParameter("Model", mgl32.Ident4())
	q.CommitShaderParameterGroup(gpucore.GroupObject)

	if q.BeginShaderParameterGroup(gpucore.GroupCamera, false) {
		t.Error("unchanged camera group should not be rewritten")
	}
	if q.BeginShaderParameterGroup(gpucore.GroupMaterial, true) {
		t.Error("lit declares no material group")
	}
	q.Draw(0, 3)

	camera := q.Commands()[0].ConstantBuffers[gpucore.GroupCamera]
	if camera.Size != 64 {
		t.Fatalf("camera range = %+v, want 64 bytes", camera)
	}
	if got := floats(q.Constants().Bytes(camera)); !slices.Equal(got, viewProj[:]) {
		t.Errorf("camera data = %v, want %v", got, viewProj)
	}

	// The flat camera layout differs, its object layout does not.
	q.SetPipelineState(flat)
	q.Draw(0, 3)
	cmd := q.Commands()[1]
	if !cmd.ConstantBuffers[gpucore.GroupCamera].IsEmpty() {
		t.Error("camera written for another layout should be dropped")
	}
	if cmd.ConstantBuffers[gpucore.GroupObject] != q.Commands()[0].ConstantBuffers[gpucore.GroupObject] {
		t.Error("object data of the same layout should be kept")
	}
	if !q.BeginShaderParameterGroup(gpucore.GroupCamera, false) {
		t.Error("dropped camera group should be writable")
	}
	q.AddShaderParameter("CameraPos", mgl32.Vec4{1, 2, 3, 1})
	q.CommitShaderParameterGroup(gpucore.GroupCamera)
	if got := q.current.ConstantBuffers[gpucore.GroupCamera].Size; got != 80 {
		t.Errorf("flat camera size = %d, want 80", got)
	}
}

func TestExecuteMinimizesStateChanges(t *testing.T) {
	dev := newTestDevice(t)
	cache := pipeline.NewPipelineStateCache(dev)
	lit := graphicsState(t, dev, cache, litShader)
	vb := newBuffer(t, dev, gputypes.BufferUsageVertex, 0, 20, 6)

	ctx := rendercontext.New(dev)
	ctx.SetSwapChainRenderTargets()

	q := New(dev)
	q.SetPipelineState(lit)
	q.SetVertexBuffers(vb)
	for range 3 {
		if q.BeginShaderParameterGroup(gpucore.GroupCamera, false) {
			q.AddShaderParameter("ViewProj", mgl32.Ident4())
			q.CommitShaderParameterGroup(gpucore.GroupCamera)
		}
		if q.BeginShaderParameterGroup(gpucore.GroupObject, true) {
			q.AddShaderParameter("Model", mgl32.Translate3D(0, 1, 0))
			q.CommitShaderParameterGroup(gpucore.GroupObject)
		}
		q.Draw(0, 6)
	}
	if q.Constants().NumAllocations() != 2 {
		t.Errorf("NumAllocations = %d, want 2 for identical blocks", q.Constants().NumAllocations())
	}

	if err := q.ExecuteInContext(ctx); err != nil {
		t.Fatalf("ExecuteInContext failed: %v", err)
	}
	got := ctx.CommandStats()
	want := rendercontext.CommandStats{
		RenderPasses:      1,
		PipelineBinds:     1,
		VertexBufferBinds: 1,
		BindGroupBinds:    2,
		ScissorSets:       1,
		Draws:             3,
	}
	if got != want {
		t.Errorf("CommandStats() = %+v, want %+v", got, want)
	}
	if s := q.Stats(); s.Draws != 3 || s.Skipped != 0 || s.ConstantBytes == 0 {
		t.Errorf("Stats() = %+v", s)
	}
	if s := ctx.Stats(); s.NumDraws != 3 || s.NumPrimitives != 6 {
		t.Errorf("context Stats() = %+v, want 3 draws of 6 primitives", s)
	}
	if err := ctx.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

func TestExecuteRenderTargetSubstitution(t *testing.T) {
	dev := newTestDevice(t)
	cache := pipeline.NewPipelineStateCache(dev)
	lit := graphicsState(t, dev, cache, litShader)
	vb := newBuffer(t, dev, gputypes.BufferUsageVertex, 0, 20, 3)

	color := raw.NewRawTexture(dev)
	err := color.Create(raw.RawTextureParams{
		Label:  "color",
		Type:   gpucore.Texture2D,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Width:  64,
		Height: 64,
		Flags:  gpucore.TextureBindRenderTarget,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ctx := rendercontext.New(dev)
	if err := ctx.SetRenderTargets(rendercontext.NoDepthStencil(), rendercontext.TextureRenderTarget(color)); err != nil {
		t.Fatalf("SetRenderTargets failed: %v", err)
	}

	q := New(dev)
	q.SetPipelineState(lit)
	q.SetVertexBuffers(vb)
	q.SetShaderResource("DiffMap", color)
	q.CommitShaderResources()
	q.Draw(0, 3)

	if err := q.ExecuteInContext(ctx); err != nil {
		t.Fatalf("ExecuteInContext failed: %v", err)
	}
	if s := q.Stats(); s.Substitutions != 1 || s.Draws != 1 {
		t.Errorf("Stats() = %+v, want one substituted draw", s)
	}
	if !color.IsDirty() {
		t.Error("render target should stay dirty while bound")
	}

	ctx.SetSwapChainRenderTargets()
	if err := q.ExecuteInContext(ctx); err != nil {
		t.Fatalf("ExecuteInContext failed: %v", err)
	}
	if s := q.Stats(); s.Substitutions != 0 || s.Draws != 1 {
		t.Errorf("Stats() = %+v, want no substitution", s)
	}
	if color.IsDirty() {
		t.Error("sampling should resolve the dirty texture")
	}
}

func TestExecuteBaseVertex(t *testing.T) {
	tests := []struct {
		name        string
		baseVertex  bool
		wantDraws   uint32
		wantSkipped uint32
	}{
		{"unsupported", false, 1, 1},
		{"supported", true, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice(t)
			dev.setCaps(func(c *gpucore.Caps) { c.DrawBaseVertex = tt.baseVertex })
			cache := pipeline.NewPipelineStateCache(dev)
			lit := graphicsState(t, dev, cache, litShader)
			vb := newBuffer(t, dev, gputypes.BufferUsageVertex, 0, 20, 8)
			ib := newBuffer(t, dev, gputypes.BufferUsageIndex, 0, 2, 6)

			ctx := rendercontext.New(dev)
			ctx.SetSwapChainRenderTargets()

			q := New(dev)
			q.SetPipelineState(lit)
			q.SetVertexBuffers(vb)
			q.SetIndexBuffer(ib)
			q.DrawIndexed(0, 6, 0)
			q.DrawIndexed(0, 6, 4)

			if err := q.ExecuteInContext(ctx); err != nil {
				t.Fatalf("ExecuteInContext failed: %v", err)
			}
			if s := q.Stats(); s.Draws != tt.wantDraws || s.Skipped != tt.wantSkipped {
				t.Errorf("Stats() = %+v", s)
			}
			if cs := ctx.CommandStats(); cs.IndexBufferBinds != 1 || cs.Draws != tt.wantDraws {
				t.Errorf("CommandStats() = %+v", cs)
			}
		})
	}
}

func TestExecuteInstancing(t *testing.T) {
	tests := []struct {
		name         string
		baseInstance bool
		wantBinds    uint32
	}{
		{"emulated", false, 4},
		{"native", true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice(t)
			dev.setCaps(func(c *gpucore.Caps) { c.DrawBaseInstance = tt.baseInstance })
			cache := pipeline.NewPipelineStateCache(dev)
			lit := graphicsState(t, dev, cache, litShader)
			vb := newBuffer(t, dev, gputypes.BufferUsageVertex, 0, 20, 3)
			inst := newBuffer(t, dev, gputypes.BufferUsageVertex, gpucore.BufferPerInstanceData, 64, 16)

			ctx := rendercontext.New(dev)
			ctx.SetSwapChainRenderTargets()

			q := New(dev)
			q.SetPipelineState(lit)
			q.SetVertexBuffers(vb, inst)
			q.DrawInstanced(0, 3, 2, 4)
			q.DrawInstanced(0, 3, 6, 4)
			if !q.Commands()[0].IsInstanced() {
				t.Fatal("DrawInstanced should record an instanced command")
			}

			if err := q.ExecuteInContext(ctx); err != nil {
				t.Fatalf("ExecuteInContext failed: %v", err)
			}
			if cs := ctx.CommandStats(); cs.VertexBufferBinds != tt.wantBinds || cs.Draws != 2 {
				t.Errorf("CommandStats() = %+v, want %d vertex buffer binds", cs, tt.wantBinds)
			}
			if s := ctx.Stats(); s.NumPrimitives != 8 {
				t.Errorf("NumPrimitives = %d, want 8", s.NumPrimitives)
			}
		})
	}
}

func TestExecuteCompute(t *testing.T) {
	tests := []struct {
		name           string
		compute        bool
		wantDispatches uint32
		wantSkipped    uint32
	}{
		{"unsupported", false, 0, 2},
		{"supported", true, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice(t)
			dev.setCaps(func(c *gpucore.Caps) { c.ComputeShaders = tt.compute })
			cache := pipeline.NewPipelineStateCache(dev)
			cs := computeState(t, dev, cache)
			particles := newBuffer(t, dev, gputypes.BufferUsageStorage, gpucore.BufferBindUnorderedAccess, 16, 256)

			ctx := rendercontext.New(dev)
			q := New(dev)
			q.SetPipelineState(cs)
			q.SetUnorderedAccess("Particles", particles)
			q.CommitShaderResources()
			q.Dispatch(4, 1, 1)
			// Without the storage buffer.
			q.CommitShaderResources()
			q.Dispatch(4, 1, 1)

			if err := q.ExecuteInContext(ctx); err != nil {
				t.Fatalf("ExecuteInContext failed: %v", err)
			}
			if s := q.Stats(); s.Dispatches != tt.wantDispatches || s.Skipped != tt.wantSkipped {
				t.Errorf("Stats() = %+v", s)
			}
			if got := ctx.Stats().NumDispatches; got != tt.wantDispatches {
				t.Errorf("NumDispatches = %d, want %d", got, tt.wantDispatches)
			}
		})
	}
}

func TestExecuteSkipsInvalidCommands(t *testing.T) {
	dev := newTestDevice(t)
	cache := pipeline.NewPipelineStateCache(dev)
	lit := graphicsState(t, dev, cache, litShader)
	cs := computeState(t, dev, cache)
	ctx := rendercontext.New(dev)

	q := New(dev)
	if err := q.ExecuteInContext(ctx); err != nil {
		t.Fatalf("empty ExecuteInContext failed: %v", err)
	}

	q.SetPipelineState(nil)
	q.Draw(0, 3)
	q.SetPipelineState(cs)
	q.Draw(0, 3)
	q.SetPipelineState(lit)
	q.Dispatch(1, 1, 1)
	q.DrawIndexed(0, 3, 0)
	if err := q.ExecuteInContext(ctx); err != nil {
		t.Fatalf("ExecuteInContext failed: %v", err)
	}
	if s := q.Stats(); s.Skipped != 4 || s.Draws != 0 {
		t.Errorf("Stats() = %+v, want 4 skipped", s)
	}

	// A valid draw needs render targets.
	q.Reset()
	q.SetPipelineState(lit)
	q.Draw(0, 3)
	if err := q.ExecuteInContext(ctx); !errors.Is(err, rendercontext.ErrNoRenderTargets) {
		t.Errorf("ExecuteInContext without targets error = %v", err)
	}
}

func TestGroupEntriesWithoutUniformBuffer(t *testing.T) {
	dev := newTestDevice(t)
	cache := pipeline.NewPipelineStateCache(dev)
	lit := graphicsState(t, dev, cache, litShader)

	e := &execution{q: New(dev), caps: dev.Backend().Caps()}
	cmd := &DrawCommandDescription{PipelineState: lit}
	if _, _, err := e.groupEntries(cmd, lit.Reflection(), 0); !errors.Is(err, ErrNoUniformBuffer) {
		t.Errorf("groupEntries error = %v, want ErrNoUniformBuffer", err)
	}
}
