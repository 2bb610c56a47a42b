// Package renderapi is a GPU render-command abstraction layer built on the
// gogpu/wgpu HAL.
//
// Higher-level rendering code issues draw and dispatch work through one
// uniform API while execution happens on one of several native backends:
// explicit APIs (Vulkan, D3D12, Metal) and the legacy OpenGL path.
//
// # Packages
//
//   - [github.com/gogpu/renderapi/device]: window/swap-chain ownership,
//     backend selection, device loss and restore, frame presentation.
//   - [github.com/gogpu/renderapi/pipeline]: pipeline state descriptors,
//     pipeline states and the content-addressed pipeline state cache.
//   - [github.com/gogpu/renderapi/reflection]: shader program reflection
//     normalized into seven semantic uniform-buffer groups.
//   - [github.com/gogpu/renderapi/drawqueue]: batched draw/dispatch commands
//     with deduplicated constant buffers and redundant-state suppression.
//   - [github.com/gogpu/renderapi/rendercontext]: render targets, viewport,
//     clears and render pass management.
//   - [github.com/gogpu/renderapi/raw]: buffer, shader and texture wrappers
//     that survive device loss.
//   - [github.com/gogpu/renderapi/backend]: the backend interface, registry
//     and capability probe.
//
// # Quick Start
//
//	dev, err := device.New(device.DefaultSettings())
//	if err != nil {
//	    log.Fatal(err) // no backend could be created
//	}
//	defer dev.Close()
//
//	state := dev.PipelineStates().GetGraphicsPipelineState(desc)
//	defer state.Release()
//
//	q := drawqueue.New(dev)
//	q.SetPipelineState(state)
//	q.SetVertexBuffers(vb)
//	q.SetIndexBuffer(ib)
//	q.DrawIndexed(0, 36, 0)
//	if err := q.ExecuteInContext(dev.Context()); err != nil {
//	    log.Print(err)
//	}
//	dev.Present()
//
// # Logging
//
// Nothing is logged by default. Call [SetLogger] to enable output.
package renderapi
