package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/gpucore"
)

// Base implements Backend on top of a HAL instance. Concrete backends embed
// it and override what their native API does differently.
type Base struct {
	kind gpucore.RenderBackend
	cfg  Config
	api  hal.Backend

	instance hal.Instance
	surface  hal.Surface
	adapter  hal.ExposedAdapter
	device   hal.Device
	queue    hal.Queue

	caps    gpucore.Caps
	formats map[gputypes.TextureFormat]hal.TextureFormatCapabilityFlags

	swap swapChain

	// pending holds submitted command buffers until the GPU completes them.
	pending []pendingSubmission
}

type pendingSubmission struct {
	index uint64
	cmds  []hal.CommandBuffer
}

// OpenBase opens the HAL instance, adapter and device for a backend kind
// and creates the initial swap chain.
func OpenBase(kind gpucore.RenderBackend, cfg Config) (*Base, error) {
	api := cfg.HAL
	if api == nil {
		var ok bool
		api, ok = hal.GetBackend(kind.GPUBackend())
		if !ok {
			return nil, fmt.Errorf("%w: no HAL for %s", ErrBackendNotAvailable, kind)
		}
	}

	b := &Base{
		kind:    kind,
		cfg:     cfg,
		api:     api,
		formats: make(map[gputypes.TextureFormat]hal.TextureFormatCapabilityFlags),
	}
	if err := b.open(); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

func (b *Base) open() error {
	backends := gputypes.BackendsNone
	if v := b.api.Variant(); v != gputypes.BackendEmpty {
		backends = gputypes.Backends(1) << v
	}
	instance, err := b.api.CreateInstance(&hal.InstanceDescriptor{Backends: backends})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	b.instance = instance

	if w := b.cfg.Window; w != nil {
		surface, err := instance.CreateSurface(w.Display, w.Window)
		if err != nil {
			return fmt.Errorf("create surface: %w", err)
		}
		b.surface = surface
	}

	adapter, err := selectAdapter(instance.EnumerateAdapters(b.surface), b.cfg.AdapterName)
	if err != nil {
		return err
	}
	b.adapter = adapter

	if err := b.openDevice(); err != nil {
		return err
	}
	b.caps = Probe(b.kind, b.adapter, b.FormatSupport)

	return b.ConfigureSwapChain(b.cfg.SwapChain)
}

// selectAdapter picks the first adapter whose name contains name. Without
// a name it prefers a discrete GPU, then an integrated one.
func selectAdapter(adapters []hal.ExposedAdapter, name string) (hal.ExposedAdapter, error) {
	if len(adapters) == 0 {
		return hal.ExposedAdapter{}, ErrNoAdapter
	}
	if name != "" {
		for _, a := range adapters {
			if strings.Contains(strings.ToLower(a.Info.Name), strings.ToLower(name)) {
				return a, nil
			}
		}
		renderapi.Logger().Warn("backend: adapter not found, using default", "adapter", name)
	}
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for _, a := range adapters {
			if a.Info.DeviceType == want {
				return a, nil
			}
		}
	}
	return adapters[0], nil
}

func (b *Base) openDevice() error {
	opened, err := b.adapter.Adapter.Open(b.adapter.Features, b.adapter.Capabilities.Limits)
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	b.device = opened.Device
	b.queue = opened.Queue
	return nil
}

// Kind returns the native API implemented by the backend.
func (b *Base) Kind() gpucore.RenderBackend { return b.kind }

// Name returns the backend identifier.
func (b *Base) Name() string { return b.kind.String() }

// AdapterInfo describes the adapter the device was opened on.
func (b *Base) AdapterInfo() gputypes.AdapterInfo { return b.adapter.Info }

// Caps returns the probed capabilities.
func (b *Base) Caps() gpucore.Caps { return b.caps }

// Limits returns the adapter limits the device was opened with.
func (b *Base) Limits() gputypes.Limits { return b.adapter.Capabilities.Limits }

// Device returns the HAL device, or nil while invalidated.
func (b *Base) Device() hal.Device { return b.device }

// Queue returns the HAL queue, or nil while invalidated.
func (b *Base) Queue() hal.Queue { return b.queue }

// FormatSupport returns the capability flags of a texture format. Results
// are cached for the lifetime of the adapter.
func (b *Base) FormatSupport(format gputypes.TextureFormat) hal.TextureFormatCapabilityFlags {
	if flags, ok := b.formats[format]; ok {
		return flags
	}
	var flags hal.TextureFormatCapabilityFlags
	if b.adapter.Adapter != nil {
		flags = b.adapter.Adapter.TextureFormatCapabilities(format).Flags
	}
	b.formats[format] = flags
	return flags
}

// SampleCounts returns the bitmask of sample counts supported by format.
func (b *Base) SampleCounts(format gputypes.TextureFormat) uint32 {
	return SampleCountMask(b.FormatSupport(format))
}

// CreateShader creates a shader module from WGSL or SPIR-V.
func (b *Base) CreateShader(src *ShaderSource) (hal.ShaderModule, error) {
	if b.device == nil {
		return nil, ErrDeviceInvalidated
	}
	if src == nil || (src.WGSL == "" && len(src.SPIRV) == 0) {
		return nil, ErrEmptyShader
	}
	module, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  src.Label,
		Source: hal.ShaderSource{WGSL: src.WGSL, SPIRV: src.SPIRV},
	})
	if err != nil {
		return nil, fmt.Errorf("compile shader %q: %w", src.Label, err)
	}
	return module, nil
}

// CreateBuffer creates a GPU buffer.
func (b *Base) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	if b.device == nil {
		return nil, ErrDeviceInvalidated
	}
	buf, err := b.device.CreateBuffer(desc)
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", desc.Label, err)
	}
	return buf, nil
}

// CreatePipeline creates the bind group layouts, the pipeline layout and
// the pipeline described by desc. On failure every object created so far
// is destroyed.
func (b *Base) CreatePipeline(desc *PipelineDescriptor) (*Pipeline, error) { //nolint:funlen // GPU pipeline descriptors are inherently verbose
	if b.device == nil {
		return nil, ErrDeviceInvalidated
	}
	p := &Pipeline{}

	for i, entries := range desc.BindGroups {
		layout, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s_group%d", desc.Label, i),
			Entries: entries,
		})
		if err != nil {
			b.DestroyPipeline(p)
			return nil, fmt.Errorf("create bind group layout %d: %w", i, err)
		}
		p.BindGroupLayouts = append(p.BindGroupLayouts, layout)
	}

	layout, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_layout",
		BindGroupLayouts: p.BindGroupLayouts,
	})
	if err != nil {
		b.DestroyPipeline(p)
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	p.Layout = layout

	if desc.Compute {
		if desc.ComputeStage == nil {
			b.DestroyPipeline(p)
			return nil, fmt.Errorf("compute pipeline %q: %w", desc.Label, ErrNilShader)
		}
		compute, err := b.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  desc.Label,
			Layout: layout,
			Compute: hal.ComputeState{
				Module:     desc.ComputeStage,
				EntryPoint: desc.ComputeEntry,
			},
		})
		if err != nil {
			b.DestroyPipeline(p)
			return nil, fmt.Errorf("create compute pipeline %q: %w", desc.Label, err)
		}
		p.Compute = compute
		return p, nil
	}

	if desc.Vertex == nil {
		b.DestroyPipeline(p)
		return nil, fmt.Errorf("render pipeline %q: vertex: %w", desc.Label, ErrNilShader)
	}
	var fragment *hal.FragmentState
	if desc.Fragment != nil {
		fragment = &hal.FragmentState{
			Module:     desc.Fragment,
			EntryPoint: desc.FragmentEntry,
			Targets:    desc.Targets,
		}
	}
	render, err := b.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     desc.Vertex,
			EntryPoint: desc.VertexEntry,
			Buffers:    desc.VertexBuffers,
		},
		Primitive:    desc.Primitive,
		DepthStencil: desc.DepthStencil,
		Multisample:  desc.Multisample,
		Fragment:     fragment,
	})
	if err != nil {
		b.DestroyPipeline(p)
		return nil, fmt.Errorf("create render pipeline %q: %w", desc.Label, err)
	}
	p.Render = render
	return p, nil
}

// DestroyPipeline releases a pipeline and its layouts. Objects already
// lost with the device are skipped.
func (b *Base) DestroyPipeline(p *Pipeline) {
	if p == nil {
		return
	}
	if b.device != nil {
		if p.Render != nil {
			b.device.DestroyRenderPipeline(p.Render)
		}
		if p.Compute != nil {
			b.device.DestroyComputePipeline(p.Compute)
		}
		if p.Layout != nil {
			b.device.DestroyPipelineLayout(p.Layout)
		}
		for _, l := range p.BindGroupLayouts {
			b.device.DestroyBindGroupLayout(l)
		}
	}
	*p = Pipeline{}
}

// Submit submits command buffers. They are freed once the queue reports
// their submission as completed.
func (b *Base) Submit(cmds []hal.CommandBuffer) error {
	if b.device == nil {
		return ErrDeviceInvalidated
	}
	if len(cmds) == 0 {
		return nil
	}
	owned := append([]hal.CommandBuffer(nil), cmds...)
	index, err := b.queue.Submit(owned)
	if err != nil {
		for _, c := range owned {
			b.device.FreeCommandBuffer(c)
		}
		return fmt.Errorf("submit: %w", err)
	}
	b.pending = append(b.pending, pendingSubmission{index: index, cmds: owned})
	b.reclaim(b.queue.PollCompleted())
	return nil
}

// reclaim frees command buffers of submissions up to completed.
func (b *Base) reclaim(completed uint64) {
	n := 0
	for _, p := range b.pending {
		if p.index > completed {
			b.pending[n] = p
			n++
			continue
		}
		for _, c := range p.cmds {
			b.device.FreeCommandBuffer(c)
		}
	}
	clear(b.pending[n:])
	b.pending = b.pending[:n]
}

// waitIdle blocks until the GPU is idle and frees every pending command
// buffer.
func (b *Base) waitIdle() {
	if b.device == nil {
		return
	}
	if err := b.device.WaitIdle(); err != nil {
		renderapi.Logger().Warn("backend: wait idle failed", "err", err)
	}
	for _, p := range b.pending {
		for _, c := range p.cmds {
			b.device.FreeCommandBuffer(c)
		}
	}
	b.pending = nil
}

// Invalidate releases the swap chain and the device. Adapter, instance and
// surface are kept so Restore can reopen the device.
func (b *Base) Invalidate() {
	if b.device == nil {
		return
	}
	b.waitIdle()
	b.releaseSwapChain()
	if b.surface != nil {
		b.surface.Unconfigure(b.device)
	}
	b.device.Destroy()
	b.device = nil
	b.queue = nil
	renderapi.Logger().Debug("backend: device invalidated", "backend", b.Name())
}

// Restore reopens the device and recreates the swap chain with the last
// configuration.
func (b *Base) Restore() error {
	if b.device != nil {
		return nil
	}
	if b.adapter.Adapter == nil {
		return ErrNoAdapter
	}
	if err := b.openDevice(); err != nil {
		return err
	}
	cfg := b.swap.cfg
	b.swap = swapChain{}
	if err := b.ConfigureSwapChain(cfg); err != nil {
		return fmt.Errorf("restore swap chain: %w", err)
	}
	renderapi.Logger().Debug("backend: device restored", "backend", b.Name())
	return nil
}

// Destroy releases the device and every HAL object owned by the backend.
func (b *Base) Destroy() {
	b.Invalidate()
	if b.surface != nil {
		b.surface.Destroy()
		b.surface = nil
	}
	if b.adapter.Adapter != nil {
		b.adapter.Adapter.Destroy()
		b.adapter = hal.ExposedAdapter{}
	}
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
}

// errSwapChainSize is returned for zero-sized swap chains.
var errSwapChainSize = errors.New("backend: swap chain size must be non-zero")

var _ Backend = (*Base)(nil)
