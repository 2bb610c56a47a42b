package backend

import (
	"errors"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/reflection"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or its HAL implementation is missing on this platform.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNoBackend is returned when no registered backend could be opened.
	ErrNoBackend = errors.New("backend: no backend could be opened")

	// ErrNoAdapter is returned when the HAL instance exposes no adapter.
	ErrNoAdapter = errors.New("backend: no adapter found")

	// ErrUnsupportedShaderFormat is returned when a backend cannot consume
	// the provided shader bytecode.
	ErrUnsupportedShaderFormat = errors.New("backend: unsupported shader format")

	// ErrEmptyShader is returned for shader sources with neither WGSL nor SPIR-V.
	ErrEmptyShader = errors.New("backend: empty shader source")

	// ErrNilShader is returned when a pipeline references a missing shader module.
	ErrNilShader = errors.New("backend: shader module is nil")

	// ErrDeviceInvalidated is returned for GPU calls issued between
	// Invalidate and Restore.
	ErrDeviceInvalidated = errors.New("backend: device is invalidated")
)

// Backend is an opened native graphics device.
//
// Backend is not safe for concurrent use; all calls happen on the render
// thread.
type Backend interface {
	// Kind returns the native API implemented by the backend.
	Kind() gpucore.RenderBackend

	// Name returns the backend identifier (e.g. "Vulkan").
	Name() string

	// AdapterInfo describes the adapter the device was opened on.
	AdapterInfo() gputypes.AdapterInfo

	// Caps returns the capabilities probed at open time.
	Caps() gpucore.Caps

	// Limits returns the device limits.
	Limits() gputypes.Limits

	// FormatSupport returns the capability flags of a texture format.
	FormatSupport(format gputypes.TextureFormat) hal.TextureFormatCapabilityFlags

	// SampleCounts returns a bitmask of supported sample counts for format:
	// the bit with value n is set when n samples are supported.
	SampleCounts(format gputypes.TextureFormat) uint32

	// Device returns the HAL device, or nil while invalidated.
	Device() hal.Device

	// Queue returns the HAL queue, or nil while invalidated.
	Queue() hal.Queue

	// CreateShader creates a shader module from backend-specific bytecode.
	CreateShader(src *ShaderSource) (hal.ShaderModule, error)

	// CreateBuffer creates a GPU buffer.
	CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error)

	// CreatePipeline creates a render or compute pipeline with its layouts.
	CreatePipeline(desc *PipelineDescriptor) (*Pipeline, error)

	// DestroyPipeline releases a pipeline created by CreatePipeline.
	DestroyPipeline(p *Pipeline)

	// Submit submits recorded command buffers and frees them.
	Submit(cmds []hal.CommandBuffer) error

	// ConfigureSwapChain (re)creates the swap chain. It is a no-op when the
	// configuration is unchanged.
	ConfigureSwapChain(cfg SwapChainConfig) error

	// SwapChain returns the current swap chain configuration.
	SwapChain() SwapChainConfig

	// SwapChainFormat returns the format of the swap chain color buffer.
	SwapChainFormat() gputypes.TextureFormat

	// SwapChainDepthFormat returns the format of the swap chain depth buffer.
	SwapChainDepthFormat() gputypes.TextureFormat

	// AcquireBackBuffer returns the views to render the current frame into.
	AcquireBackBuffer() (BackBuffer, error)

	// Present presents the acquired back buffer.
	Present() error

	// Invalidate releases the device and every swap chain resource.
	Invalidate()

	// Restore reopens the device and recreates the swap chain.
	Restore() error

	// Destroy releases everything. The backend must not be used afterwards.
	Destroy()
}

// ProgramLinker is implemented by backends that resolve vertex attribute
// locations and uniform offsets only when the shader stages are linked.
// Pipeline states built on such a backend complete their reflection from
// the linked program.
type ProgramLinker interface {
	LinkProgram(stages []reflection.ProgramStage) (*reflection.LinkedProgram, error)
}

// WindowHandle identifies a native window for surface creation.
type WindowHandle struct {
	Display uintptr
	Window  uintptr
}

// Config configures a backend at open time.
type Config struct {
	// HAL overrides the HAL implementation. Tests pass noop.API{}.
	HAL hal.Backend

	// Window is the native window to present into. A nil Window renders
	// into an offscreen back buffer.
	Window *WindowHandle

	// AdapterName selects the first adapter whose name contains it.
	// Empty prefers a discrete GPU.
	AdapterName string

	// SwapChain is the initial swap chain configuration.
	SwapChain SwapChainConfig

	// Label prefixes debug labels of backend-owned objects.
	Label string
}

// SwapChainConfig describes the swap chain.
type SwapChainConfig struct {
	Width       uint32
	Height      uint32
	SampleCount uint32
	VSync       bool
	SRGB        bool
}

// BackBuffer holds the views of the current frame.
type BackBuffer struct {
	// Color is the view draws render into. With multisampling it is the
	// multisampled target and Resolve is the presentable view.
	Color   hal.TextureView
	Resolve hal.TextureView
	Depth   hal.TextureView
	Format  gputypes.TextureFormat
	Width   uint32
	Height  uint32
}

// ShaderSource is compiled shader bytecode for one stage.
type ShaderSource struct {
	Label string
	WGSL  string
	SPIRV []uint32
}

// PipelineDescriptor is the backend-level description of a pipeline.
// Pipeline states produce it from their descriptors.
type PipelineDescriptor struct {
	Label string

	// BindGroups lists the layout entries of each bind group, by group index.
	BindGroups [][]gputypes.BindGroupLayoutEntry

	// Compute selects a compute pipeline.
	Compute      bool
	ComputeStage hal.ShaderModule
	ComputeEntry string

	Vertex        hal.ShaderModule
	VertexEntry   string
	VertexBuffers []gputypes.VertexBufferLayout
	Fragment      hal.ShaderModule
	FragmentEntry string
	Targets       []gputypes.ColorTargetState
	Primitive     gputypes.PrimitiveState
	DepthStencil  *hal.DepthStencilState
	Multisample   gputypes.MultisampleState
}

// Pipeline is a created pipeline and the layouts it owns.
type Pipeline struct {
	Render           hal.RenderPipeline
	Compute          hal.ComputePipeline
	Layout           hal.PipelineLayout
	BindGroupLayouts []hal.BindGroupLayout
}

// IsCompute reports whether p is a compute pipeline.
func (p *Pipeline) IsCompute() bool {
	return p != nil && p.Compute != nil
}
