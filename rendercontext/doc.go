// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package rendercontext records the native commands of a frame.
//
// A [RenderContext] holds the bound render targets, the viewport and the
// scissor rectangle. Render and compute passes are opened lazily by the
// first command that needs one, and ended when the bound targets change,
// a clear is requested or the frame is flushed:
//
//	ctx.SetSwapChainRenderTargets()
//	ctx.ClearRenderTarget(0, gputypes.Color{A: 1})
//	ctx.ClearDepthStencil(gpucore.ClearDepth|gpucore.ClearStencil, 1, 0)
//	queue.ExecuteInContext(ctx)
//	err := ctx.Flush()
//
// Clears become load operations of the next render pass. Textures bound as
// targets are marked dirty so consumers know their content changed.
package rendercontext
