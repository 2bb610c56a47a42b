// Package native registers the backends that drive a modern explicit
// graphics API through the wgpu HAL: Vulkan, Direct3D 12, Metal and the
// headless software rasterizer.
//
// Import it for its side effect:
//
//	import _ "github.com/gogpu/renderapi/backend/native"
//
// The HAL implementations themselves are linked by importing
// github.com/gogpu/wgpu/hal/allbackends.
package native
