package backend

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/renderapi/gpucore"
)

// openNoop opens a Base on the noop HAL and registers cleanup.
func openNoop(t *testing.T, kind gpucore.RenderBackend, cfg Config) *Base {
	t.Helper()
	cfg.HAL = noop.API{}
	if cfg.SwapChain.Width == 0 {
		cfg.SwapChain = SwapChainConfig{Width: 640, Height: 480}
	}
	b, err := OpenBase(kind, cfg)
	if err != nil {
		t.Fatalf("OpenBase failed: %v", err)
	}
	t.Cleanup(b.Destroy)
	return b
}

func TestOpenBaseHeadless(t *testing.T) {
	b := openNoop(t, gpucore.BackendHeadless, Config{})

	if b.Device() == nil || b.Queue() == nil {
		t.Fatal("expected device and queue")
	}
	if got := b.AdapterInfo().Name; got != "Noop Adapter" {
		t.Errorf("AdapterInfo().Name = %q", got)
	}
	if b.Name() != "Headless" {
		t.Errorf("Name() = %q, want Headless", b.Name())
	}
	if b.SwapChainFormat() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("SwapChainFormat() = %v", b.SwapChainFormat())
	}
	if b.BackBufferTexture() == nil {
		t.Error("expected offscreen back buffer texture")
	}

	bb, err := b.AcquireBackBuffer()
	if err != nil {
		t.Fatalf("AcquireBackBuffer failed: %v", err)
	}
	if bb.Color == nil || bb.Depth == nil {
		t.Error("expected color and depth views")
	}
	if bb.Resolve != nil {
		t.Error("expected no resolve view without multisampling")
	}
	if bb.Width != 640 || bb.Height != 480 {
		t.Errorf("back buffer size = %dx%d", bb.Width, bb.Height)
	}
	if err := b.Present(); err != nil {
		t.Errorf("Present failed: %v", err)
	}
}

func TestOpenBaseZeroSize(t *testing.T) {
	_, err := OpenBase(gpucore.BackendHeadless, Config{HAL: noop.API{}})
	if !errors.Is(err, errSwapChainSize) {
		t.Fatalf("OpenBase error = %v, want errSwapChainSize", err)
	}
}

func TestConfigureSwapChainMultisample(t *testing.T) {
	b := openNoop(t, gpucore.BackendVulkan, Config{})

	cfg := SwapChainConfig{Width: 800, Height: 600, SampleCount: 4, SRGB: true}
	if err := b.ConfigureSwapChain(cfg); err != nil {
		t.Fatalf("ConfigureSwapChain failed: %v", err)
	}
	if b.SwapChain() != cfg {
		t.Errorf("SwapChain() = %+v, want %+v", b.SwapChain(), cfg)
	}
	if b.SwapChainFormat() != gputypes.TextureFormatRGBA8UnormSrgb {
		t.Errorf("SwapChainFormat() = %v, want sRGB", b.SwapChainFormat())
	}
	bb, err := b.AcquireBackBuffer()
	if err != nil {
		t.Fatalf("AcquireBackBuffer failed: %v", err)
	}
	if bb.Resolve == nil {
		t.Error("expected resolve view with multisampling")
	}

	// Unchanged configuration keeps the resources.
	msaa := b.swap.msaa.texture
	if err := b.ConfigureSwapChain(cfg); err != nil {
		t.Fatalf("ConfigureSwapChain failed: %v", err)
	}
	if b.swap.msaa.texture != msaa {
		t.Error("unchanged configuration recreated the swap chain")
	}
}

func TestSurfaceAcquirePresent(t *testing.T) {
	b := openNoop(t, gpucore.BackendVulkan, Config{
		Window:    &WindowHandle{Display: 1, Window: 2},
		SwapChain: SwapChainConfig{Width: 320, Height: 240, VSync: true},
	})

	if b.BackBufferTexture() != nil {
		t.Error("surface swap chain must not allocate an offscreen texture")
	}
	if b.SwapChainFormat() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("SwapChainFormat() = %v, want BGRA8Unorm", b.SwapChainFormat())
	}
	for frame := 0; frame < 3; frame++ {
		if _, err := b.AcquireBackBuffer(); err != nil {
			t.Fatalf("frame %d: AcquireBackBuffer failed: %v", frame, err)
		}
		if b.swap.acquired == nil {
			t.Fatalf("frame %d: surface texture not acquired", frame)
		}
		if err := b.Present(); err != nil {
			t.Fatalf("frame %d: Present failed: %v", frame, err)
		}
		if b.swap.acquired != nil {
			t.Fatalf("frame %d: surface texture still held after Present", frame)
		}
	}
}

func TestInvalidateRestore(t *testing.T) {
	b := openNoop(t, gpucore.BackendHeadless, Config{})
	cfg := b.SwapChain()

	b.Invalidate()
	if b.Device() != nil {
		t.Fatal("Device() must be nil while invalidated")
	}
	if _, err := b.CreateShader(&ShaderSource{WGSL: "fn main() {}"}); !errors.Is(err, ErrDeviceInvalidated) {
		t.Errorf("CreateShader error = %v, want ErrDeviceInvalidated", err)
	}
	if err := b.Submit(nil); !errors.Is(err, ErrDeviceInvalidated) {
		t.Errorf("Submit error = %v, want ErrDeviceInvalidated", err)
	}
	b.Invalidate() // second call is a no-op

	if err := b.Restore(); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if b.Device() == nil {
		t.Fatal("Device() is nil after Restore")
	}
	if b.SwapChain() != cfg {
		t.Errorf("SwapChain() = %+v after Restore, want %+v", b.SwapChain(), cfg)
	}
	if _, err := b.AcquireBackBuffer(); err != nil {
		t.Errorf("AcquireBackBuffer after Restore failed: %v", err)
	}
}

func TestCreateShader(t *testing.T) {
	b := openNoop(t, gpucore.BackendHeadless, Config{})

	if _, err := b.CreateShader(&ShaderSource{}); !errors.Is(err, ErrEmptyShader) {
		t.Errorf("empty source error = %v, want ErrEmptyShader", err)
	}
	if _, err := b.CreateShader(nil); !errors.Is(err, ErrEmptyShader) {
		t.Errorf("nil source error = %v, want ErrEmptyShader", err)
	}
	if _, err := b.CreateShader(&ShaderSource{Label: "spirv", SPIRV: []uint32{0x07230203}}); err != nil {
		t.Errorf("SPIR-V source failed: %v", err)
	}
}

func TestCreatePipeline(t *testing.T) {
	b := openNoop(t, gpucore.BackendHeadless, Config{})

	module, err := b.CreateShader(&ShaderSource{Label: "test", WGSL: "@vertex fn vs() {}"})
	if err != nil {
		t.Fatalf("CreateShader failed: %v", err)
	}

	tests := []struct {
		name    string
		desc    PipelineDescriptor
		wantErr error
		compute bool
	}{
		{
			name: "render",
			desc: PipelineDescriptor{
				Label:      "render",
				BindGroups: [][]gputypes.BindGroupLayoutEntry{{{Binding: 0, Visibility: gputypes.ShaderStageVertex}}, nil},
				Vertex:     module, VertexEntry: "vs",
				Fragment: module, FragmentEntry: "fs",
				Targets: []gputypes.ColorTargetState{{Format: gputypes.TextureFormatRGBA8Unorm, WriteMask: gputypes.ColorWriteMaskAll}},
			},
		},
		{
			name:    "compute",
			desc:    PipelineDescriptor{Label: "compute", Compute: true, ComputeStage: module, ComputeEntry: "cs"},
			compute: true,
		},
		{name: "missing vertex", desc: PipelineDescriptor{Label: "bad"}, wantErr: ErrNilShader},
		{name: "missing compute", desc: PipelineDescriptor{Label: "bad", Compute: true}, wantErr: ErrNilShader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := b.CreatePipeline(&tt.desc)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreatePipeline failed: %v", err)
			}
			if p.IsCompute() != tt.compute {
				t.Errorf("IsCompute() = %v, want %v", p.IsCompute(), tt.compute)
			}
			if len(p.BindGroupLayouts) != len(tt.desc.BindGroups) {
				t.Errorf("bind group layouts = %d, want %d", len(p.BindGroupLayouts), len(tt.desc.BindGroups))
			}
			b.DestroyPipeline(p)
			if p.Layout != nil || p.Render != nil {
				t.Error("DestroyPipeline did not clear the pipeline")
			}
		})
	}
}

func TestSubmitReclaims(t *testing.T) {
	b := openNoop(t, gpucore.BackendHeadless, Config{})

	encoder, err := b.Device().CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "test"})
	if err != nil {
		t.Fatalf("CreateCommandEncoder failed: %v", err)
	}
	if err := encoder.BeginEncoding("test"); err != nil {
		t.Fatalf("BeginEncoding failed: %v", err)
	}
	cmd, err := encoder.EndEncoding()
	if err != nil {
		t.Fatalf("EndEncoding failed: %v", err)
	}
	if err := b.Submit([]hal.CommandBuffer{cmd}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	// The noop queue completes every submission immediately.
	if len(b.pending) != 0 {
		t.Errorf("pending submissions = %d, want 0", len(b.pending))
	}
	if err := b.Submit(nil); err != nil {
		t.Errorf("empty Submit failed: %v", err)
	}
}

func TestSelectAdapter(t *testing.T) {
	adapters := []hal.ExposedAdapter{
		{Info: gputypes.AdapterInfo{Name: "Software Rasterizer", DeviceType: gputypes.DeviceTypeCPU}},
		{Info: gputypes.AdapterInfo{Name: "Intel UHD", DeviceType: gputypes.DeviceTypeIntegratedGPU}},
		{Info: gputypes.AdapterInfo{Name: "NVIDIA RTX", DeviceType: gputypes.DeviceTypeDiscreteGPU}},
	}

	tests := []struct {
		name string
		want string
	}{
		{"", "NVIDIA RTX"},
		{"intel", "Intel UHD"},
		{"software", "Software Rasterizer"},
		{"missing", "NVIDIA RTX"},
	}
	for _, tt := range tests {
		got, err := selectAdapter(adapters, tt.name)
		if err != nil {
			t.Fatalf("selectAdapter(%q) failed: %v", tt.name, err)
		}
		if got.Info.Name != tt.want {
			t.Errorf("selectAdapter(%q) = %q, want %q", tt.name, got.Info.Name, tt.want)
		}
	}

	if _, err := selectAdapter(nil, ""); !errors.Is(err, ErrNoAdapter) {
		t.Errorf("selectAdapter(nil) error = %v, want ErrNoAdapter", err)
	}
}
