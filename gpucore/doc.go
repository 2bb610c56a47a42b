// Package gpucore defines the backend-agnostic vocabulary shared by every
// renderapi package.
//
// The enums here describe render state in engine terms (blend modes,
// compare modes, cull and fill modes, stencil operations, primitive types,
// vertex element semantics, texture filtering). Pipeline creation translates
// them through fixed lookup tables into [github.com/gogpu/gputypes] values.
//
// # Semantic parameter groups
//
// Uniform buffers are organized into exactly seven [ShaderParameterGroup]
// values: Frame, Camera, Zone, Light, Material, Object and Custom. Shader
// authors name their uniform buffers after these groups; anything else is
// rejected by reflection.
//
// # Device objects
//
// Every GPU-owning object implements [DeviceObject] and registers with the
// render device so it receives invalidate/restore broadcasts around device
// loss.
//
//	+-------------+       Invalidate()        +----------------+
//	| RenderDevice| ------------------------> | DeviceObject   |
//	|             | <------------------------ | (buffer, PSO,  |
//	+-------------+   Add/RemoveDeviceObject  |  shader, ...)  |
//	                                          +----------------+
package gpucore
