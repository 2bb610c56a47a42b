// Package backend is the single polymorphic interface between renderapi and
// the native graphics APIs.
//
// A [Backend] wraps one opened HAL device: it creates shaders, buffers and
// pipelines, submits command buffers and presents the swap chain. Exactly one
// backend is selected at startup; every call site above this package depends
// only on the interface.
//
// # Backend Registration
//
// Backend packages register a [Factory] from init():
//
//	import _ "github.com/gogpu/renderapi/backend/native" // Vulkan, D3D12, Metal, Headless
//	import _ "github.com/gogpu/renderapi/backend/gles"   // OpenGL
//
// # Backend Selection
//
// [Open] opens a specific kind; [OpenDefault] walks the priority list
// Vulkan > D3D12 > Metal > OpenGL > Headless and returns the first backend
// that opens successfully.
//
// # Capability Probe
//
// [Probe] computes [gpucore.Caps] once from the selected adapter. Everything
// above the backend queries the probed caps instead of the adapter.
package backend
