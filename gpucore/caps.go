package gpucore

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/gogpu/gputypes"
)

// RenderBackend identifies a native graphics API.
type RenderBackend uint8

// Render backends.
const (
	BackendD3D11 RenderBackend = iota
	BackendD3D12
	BackendOpenGL
	BackendVulkan
	BackendMetal
	// BackendHeadless runs on the HAL's window-less slot: the software
	// rasterizer, or the noop device in tests.
	BackendHeadless
)

var backendNames = [...]string{"D3D11", "D3D12", "OpenGL", "Vulkan", "Metal", "Headless"}

func (b RenderBackend) String() string {
	if int(b) < len(backendNames) {
		return backendNames[b]
	}
	return fmt.Sprintf("RenderBackend(%d)", b)
}

// IsLegacy reports whether the backend is the immediate-mode API that binds
// shader inputs at link time.
func (b RenderBackend) IsLegacy() bool {
	return b == BackendOpenGL
}

// GPUBackend returns the HAL backend variant that implements b.
// D3D11 has no HAL implementation. Both D3D11 and the headless backend map
// to BackendEmpty.
func (b RenderBackend) GPUBackend() gputypes.Backend {
	switch b {
	case BackendD3D12:
		return gputypes.BackendDX12
	case BackendOpenGL:
		return gputypes.BackendGL
	case BackendVulkan:
		return gputypes.BackendVulkan
	case BackendMetal:
		return gputypes.BackendMetal
	}
	return gputypes.BackendEmpty
}

// ParseRenderBackend parses a backend name, case-insensitively.
func ParseRenderBackend(name string) (RenderBackend, bool) {
	for i, n := range backendNames {
		if strings.EqualFold(n, name) {
			return RenderBackend(i), true
		}
	}
	switch strings.ToLower(name) {
	case "gl", "gles":
		return BackendOpenGL, true
	case "dx12":
		return BackendD3D12, true
	case "noop", "software":
		return BackendHeadless, true
	}
	return 0, false
}

// Caps are the capabilities probed once from the active adapter.
// Everything above the backend queries Caps instead of the adapter.
type Caps struct {
	ComputeShaders   bool
	DrawBaseVertex   bool
	DrawBaseInstance bool
	ClipDistance     bool
	ReadOnlyDepth    bool
	SRGBOutput       bool
	HDROutput        bool

	ConstantBufferOffsetAlignment uint32
	MaxTextureSize                uint32
	MaxRenderTargetSize           uint32
}

// Stats counts work submitted during a frame.
type Stats struct {
	NumPrimitives uint32
	NumDraws      uint32
	NumDispatches uint32
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.NumPrimitives += other.NumPrimitives
	s.NumDraws += other.NumDraws
	s.NumDispatches += other.NumDispatches
}

// Max returns the elementwise maximum of s and other.
func (s Stats) Max(other Stats) Stats {
	return Stats{
		NumPrimitives: max(s.NumPrimitives, other.NumPrimitives),
		NumDraws:      max(s.NumDraws, other.NumDraws),
		NumDispatches: max(s.NumDispatches, other.NumDispatches),
	}
}

// FrameIndex is a monotonic frame counter. Resources use it to resolve
// pending work at most once per frame.
type FrameIndex uint64

// DeviceObject is implemented by every object that owns GPU handles.
//
// Invalidate releases the GPU handles while keeping everything needed to
// recreate them. Restore recreates them. Destroy is sent when the device
// shuts down before the object was released.
type DeviceObject interface {
	Invalidate()
	Restore()
	Destroy()
}

// NextPowerOfTwo returns the smallest power of two that is >= v.
func NextPowerOfTwo(v uint32) uint32 {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len32(v-1)
}

// IsPowerOfTwo reports whether v is a nonzero power of two.
func IsPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

// ClampMultiSample clamps a multisample level into [1, MaxMultiSample].
func ClampMultiSample(ms uint32) uint32 {
	return min(max(ms, 1), MaxMultiSample)
}
